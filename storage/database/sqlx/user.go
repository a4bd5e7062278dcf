package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

const userColumns = "id, name, email, is_active, roles, created_at, updated_at"

type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	IsActive  bool           `db:"is_active"`
	Roles     pq.StringArray `db:"roles"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:        usr.ID,
		Name:      usr.Name,
		Email:     usr.Email,
		IsActive:  usr.IsActive,
		Roles:     pq.StringArray(usr.Roles),
		CreatedAt: usr.CreatedAt.UTC(),
		UpdatedAt: usr.UpdatedAt.UTC(),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		IsActive:  r.IsActive,
		Roles:     []string(r.Roles),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

// trapNoRowsErr maps "no rows" to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	err := repo.exec.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := "INSERT INTO users (" + userColumns + ") VALUES (:id, :name, :email, :is_active, :roles, :created_at, :updated_at)"
	if _, err := repo.exec.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	if err := repo.exec.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+where, arg); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = $1", email)
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	// users with Name or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		conds = append(conds, "(name ILIKE ? OR email ILIKE ?)")
		args = append(args, val, val)
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		patterns := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			patterns = append(patterns, role+"%")
		}
		conds = append(conds, "EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ANY (?))")
		args = append(args, pq.Array(patterns))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *filter.IsActive)
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + core.DBOrdering{Field: "name", Ascending: true}.String()

	var rows []userRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) SetUserActive(ctx context.Context, id string, isActive bool, updatedAt time.Time) (user.User, error) {
	var row userRow
	q := "UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3 RETURNING " + userColumns
	if err := repo.exec.GetContext(ctx, &row, q, isActive, updatedAt.UTC(), id); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.user(), nil
}
