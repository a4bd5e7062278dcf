package dummydb

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

func setup(t *testing.T) (*DB, *user.Service, *academic.Service) {
	t.Helper()
	db := Open()
	usrSvc := user.NewService(NewUserRepository(db))
	eng := academic.NewService(academic.Options{Adapter: NewAdapter(db), People: usrSvc})
	return db, usrSvc, eng
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	db, usrSvc, eng := setup(t)

	demo, err := Seed(ctx, usrSvc, eng)
	require.NoError(t, err)

	assert.Equal(t, 3, demo.Groups[0].CurrentCapacity)
	assert.Equal(t, 3, demo.Groups[1].CurrentCapacity)
	assert.Equal(t, "MAT101", demo.Subject.Code)
	assert.Equal(t, 3, demo.Subject.Groups[0].CurrentStudents)

	assert.Equal(t, 2, db.Count(academic.KindLevel))
	assert.Equal(t, 2, db.Count(academic.KindGroup))
	assert.Equal(t, 6, db.Count(academic.KindAssignment))
	assert.Equal(t, 6, db.Count(academic.KindEnrollment))
	assert.Equal(t, 12, db.Count(academic.KindHistory))

	entries := eng.History(history.Filter{})
	require.NotEmpty(t, entries)
	assert.Equal(t, demo.Admin.ID, entries[0].ChangedBy)

	// a fresh engine hydrated from the adapter sees the same state
	eng2 := academic.NewService(academic.Options{Adapter: NewAdapter(db), People: usrSvc})
	require.NoError(t, eng2.Load(ctx, NewAdapter(db)))
	assert.Equal(t, eng.Dashboard(), eng2.Dashboard())
	assert.Len(t, eng2.History(history.Filter{}), 12)

	// the dataset can only be seeded once
	_, err = Seed(ctx, usrSvc, eng)
	assert.Error(t, err)
}

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	db := Open()
	a := NewAdapter(db)

	grp := academic.Group{ID: "g1", Name: "1ºA"}
	require.NoError(t, a.Create(ctx, academic.KindGroup, grp))
	assert.Error(t, a.Create(ctx, academic.KindGroup, grp))

	grp.Name = "1ºB"
	require.NoError(t, a.Update(ctx, academic.KindGroup, "g1", grp))
	rec, ok := db.Record(academic.KindGroup, "g1")
	require.True(t, ok)
	assert.Equal(t, "1ºB", rec.(academic.Group).Name)

	assert.ErrorIs(t, a.Update(ctx, academic.KindGroup, "nope", grp), ErrRecordNotFound)
	assert.ErrorIs(t, a.Delete(ctx, academic.KindLevel, "nope"), ErrRecordNotFound)
	assert.Error(t, a.Delete(ctx, academic.Kind("lol"), "g1"))

	boom := errors.New("boom")
	db.FailWith(func(_ context.Context, op string, _ academic.Kind, _ string) error {
		if op == "delete" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, a.Delete(ctx, academic.KindGroup, "g1"), boom)
	db.FailWith(nil)
	require.NoError(t, a.Delete(ctx, academic.KindGroup, "g1"))
	assert.Zero(t, db.Count(academic.KindGroup))

	db.records.table[academic.KindGroup]["bad"] = "not a group"
	_, err := a.Load(ctx)
	assert.Error(t, err)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	_, usrSvc, _ := setup(t)

	usr, err := usrSvc.Create(ctx, user.NewUser{Name: "Ana", Email: "ana@test.es", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)

	_, err = usrSvc.Create(ctx, user.NewUser{Name: "Ana Bis", Email: "ana@test.es", Roles: []string{user.RoleStudent}})
	assert.Error(t, err)

	got, err := usrSvc.GetByEmail(ctx, " ANA@test.es")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	usr, err = usrSvc.Deactivate(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	inactive := false
	found, err := usrSvc.Query(ctx, user.QueryFilter{IsActive: &inactive})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = usrSvc.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
