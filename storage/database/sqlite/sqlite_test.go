package sqliterepos

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
	testutil "github.com/Digmusic88/MWPanel3.1--sub000/tests"
)

func setup(t *testing.T) (string, *sqlx.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "test.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return path, db
}

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	_, db := setup(t)
	a := NewAdapter(db)

	grp := academic.Group{ID: "g1", Name: "1ºA", StudentIDs: []string{"s1"}, MaxCapacity: 2, CurrentCapacity: 1}
	require.NoError(t, a.Create(ctx, academic.KindGroup, grp))
	assert.Error(t, a.Create(ctx, academic.KindGroup, grp))
	// same id, different kind
	require.NoError(t, a.Create(ctx, academic.KindLevel, academic.Level{ID: "g1", Name: "Primaria"}))

	grp.Name = "1ºB"
	require.NoError(t, a.Update(ctx, academic.KindGroup, "g1", grp))
	assert.ErrorIs(t, a.Update(ctx, academic.KindGroup, "g2", academic.Group{ID: "g2"}), ErrRecordNotFound)
	assert.Error(t, a.Update(ctx, academic.KindGroup, "g1", academic.Group{ID: "g2"}))
	assert.Error(t, a.Create(ctx, "lol", grp))

	require.NoError(t, a.Create(ctx, academic.KindHistory, history.Entry{ID: 1, Type: history.TypeGroup, Action: history.ActionArchive}))

	snap, err := a.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, "1ºB", snap.Groups[0].Name)
	assert.Equal(t, []string{"s1"}, snap.Groups[0].StudentIDs)
	assert.Len(t, snap.Levels, 1)
	assert.Len(t, snap.History, 1)

	require.NoError(t, a.Delete(ctx, academic.KindGroup, "g1"))
	assert.ErrorIs(t, a.Delete(ctx, academic.KindGroup, "g1"), ErrRecordNotFound)
}

func TestAdapter_reopen(t *testing.T) {
	ctx := context.Background()
	path, db := setup(t)
	users := NewUserRepository(db)
	eng, _ := testutil.NewEngine(t, NewAdapter(db), users)

	students := testutil.CreateStudents(t, users, "Student ", 2)
	lvl, grp := testutil.CreateGroup(t, eng, "1º ESO A", 30)
	sub, sg := testutil.CreateSubject(t, eng, "LEN1", lvl.ID, 1)
	for _, st := range students {
		_, err := eng.AssignStudentToGroup(ctx, st.ID, grp.ID, "")
		require.NoError(t, err)
	}
	_, err := eng.EnrollStudent(ctx, students[0].ID, sub.ID, lvl.ID, sg.ID, "")
	require.NoError(t, err)
	_, err = eng.EnrollStudent(ctx, students[1].ID, sub.ID, lvl.ID, sg.ID, "")
	require.ErrorIs(t, err, academic.ErrCapacityExceeded)
	require.NoError(t, db.Close())

	db2, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = db2.Close() }()

	eng2, _ := testutil.NewEngine(t, NewAdapter(db2), NewUserRepository(db2))
	require.NoError(t, eng2.Load(ctx, NewAdapter(db2)))
	assert.Equal(t, eng.Dashboard(), eng2.Dashboard())
	got, err := eng2.GetSubject(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Groups[0].CurrentStudents)
	assert.Equal(t, eng.History(history.Filter{}), eng2.History(history.Filter{}))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	_, db := setup(t)
	repo := NewUserRepository(db)

	tutor := testutil.CreateUser(t, repo, "Tomás Tutor", "tomas@school.test", []string{user.RoleTutor}, true)
	_ = testutil.CreateUser(t, repo, "Ana Admin", "ana@school.test", []string{user.RoleAdminOwner}, true)

	assert.ErrorIs(t, repo.CheckEmailUniqueness(ctx, "tomas@school.test"), user.ErrEmailExists)
	_, err := repo.CreateUser(ctx, user.User{ID: "x", Email: "tomas@school.test"})
	assert.ErrorIs(t, err, user.ErrEmailExists)

	got, err := repo.GetUserByEmail(ctx, "tomas@school.test")
	require.NoError(t, err)
	assert.Equal(t, tutor.ID, got.ID)
	_, err = repo.GetUserByID(ctx, "nope")
	assert.ErrorIs(t, err, user.ErrNotFound)

	all, err := repo.QueryUsers(ctx, user.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana Admin", all[0].Name)

	teachers, err := repo.QueryUsers(ctx, user.QueryFilter{Roles: []string{user.RoleTeacher}})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)

	usr, err := repo.SetUserActive(ctx, tutor.ID, false, tutor.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)
	got, err = repo.GetUserByID(ctx, tutor.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
