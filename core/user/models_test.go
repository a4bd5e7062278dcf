package user

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
)

func newValidator() *validator.Validate {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)
	return validate
}

func TestUser_roles(t *testing.T) {
	tests := []struct {
		name                    string
		roles                   []string
		admin, teacher, student bool
		maxPriority             int
	}{
		{name: "none"},
		{name: "owner", roles: []string{RoleAdminOwner}, admin: true, maxPriority: 30},
		{name: "tutor", roles: []string{RoleTutor}, teacher: true, maxPriority: 12},
		{name: "student", roles: []string{RoleStudent}, student: true, maxPriority: 1},
		{name: "principal teacher", roles: []string{RoleTeacher, RoleAdminPrincipal}, admin: true, teacher: true, maxPriority: 29},
		{name: "unknown", roles: []string{"king:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Roles: tt.roles}
			assert.Equal(t, tt.admin, usr.IsAdmin())
			assert.Equal(t, tt.teacher, usr.IsTeacher())
			assert.Equal(t, tt.student, usr.IsStudent())
			assert.Equal(t, tt.maxPriority, MaxRolePriority(tt.roles))
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name    string
		nu      NewUser
		wantErr bool
	}{
		{name: "empty", nu: NewUser{}, wantErr: true},
		{name: "bad email", nu: NewUser{Name: "Ana", Email: "ana", Roles: []string{RoleStudent}}, wantErr: true},
		{name: "no roles", nu: NewUser{Name: "Ana", Email: "ana@test.school"}, wantErr: true},
		{name: "unknown role", nu: NewUser{Name: "Ana", Email: "ana@test.school", Roles: []string{"king:"}}, wantErr: true},
		{name: "bad name", nu: NewUser{Name: "<Ana>", Email: "ana@test.school", Roles: []string{RoleStudent}}, wantErr: true},
		{name: "valid", nu: NewUser{Name: " Ana Núñez ", Email: " ANA@test.school", Roles: []string{" Student: ", RoleStudent}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, NewUser{Name: "Ana Núñez", Email: "ana@test.school", Roles: []string{RoleStudent}}, tt.nu)
		})
	}
}

func TestQueryFilter_Match(t *testing.T) {
	active, inactive := true, false
	usr := User{Name: "María García", Email: "maria@test.school", IsActive: true, Roles: []string{RoleTutor}}

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "search name", filter: QueryFilter{Search: " GARCÍA "}, want: true},
		{name: "search email", filter: QueryFilter{Search: "maria@"}, want: true},
		{name: "search miss", filter: QueryFilter{Search: "pablo"}},
		{name: "role prefix", filter: QueryFilter{Roles: []string{RoleTeacher}}, want: true},
		{name: "role miss", filter: QueryFilter{Roles: AdminRoles}},
		{name: "active", filter: QueryFilter{IsActive: &active}, want: true},
		{name: "inactive", filter: QueryFilter{IsActive: &inactive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Clean()
			assert.Equal(t, tt.want, tt.filter.Match(usr))
		})
	}
}

// memRepo is the smallest Repository able to back the Service.
type memRepo map[string]User

func (r memRepo) CheckEmailUniqueness(_ context.Context, email string) error {
	for _, usr := range r {
		if usr.Email == email {
			return ErrEmailExists
		}
	}
	return nil
}

func (r memRepo) CreateUser(_ context.Context, usr User) (User, error) {
	r[usr.ID] = usr
	return usr, nil
}

func (r memRepo) GetUserByID(_ context.Context, id string) (User, error) {
	if usr, ok := r[id]; ok {
		return usr, nil
	}
	return User{}, ErrNotFound
}

func (r memRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, usr := range r {
		if usr.Email == email {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r memRepo) QueryUsers(_ context.Context, filter QueryFilter) ([]User, error) {
	var res []User
	for _, usr := range r {
		if filter.Match(usr) {
			res = append(res, usr)
		}
	}
	return res, nil
}

func (r memRepo) SetUserActive(_ context.Context, id string, isActive bool, updatedAt time.Time) (User, error) {
	usr, ok := r[id]
	if !ok {
		return User{}, ErrNotFound
	}
	usr.IsActive = isActive
	usr.UpdatedAt = updatedAt
	r[id] = usr
	return usr, nil
}

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memRepo{})

	usr, err := svc.Create(ctx, NewUser{Name: "Ana", Email: "ana@test.school", Roles: []string{RoleStudent}})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.NotEmpty(t, usr.ID)

	_, err = svc.Create(ctx, NewUser{Name: "Otra Ana", Email: "ana@test.school", Roles: []string{RoleStudent}})
	assert.True(t, core.IsValidationError(err))

	_, err = svc.GetByID(ctx, "  ")
	assert.Equal(t, ErrNotFound, err)

	got, err := svc.GetByEmail(ctx, " ANA@test.school ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	got, err = svc.Deactivate(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active := true
	users, err := svc.Query(ctx, QueryFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Empty(t, users)
}
