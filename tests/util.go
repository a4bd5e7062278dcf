package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

// NewEngine returns an engine persisting to adapter and resolving people from repo.
func NewEngine(t *testing.T, adapter academic.Adapter, repo user.Repository) (*academic.Service, *user.Service) {
	t.Helper()
	usrSvc := user.NewService(repo)
	return academic.NewService(academic.Options{Adapter: adapter, People: usrSvc}), usrSvc
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudents creates n active students named after prefix.
func CreateStudents(t *testing.T, repo user.Repository, prefix string, n int) []user.User {
	t.Helper()
	students := make([]user.User, 0, n)
	for i := 0; i < n; i++ {
		name := prefix + string(rune('A'+i))
		students = append(students, CreateUser(t, repo, name, uuid.New().String()+"@students.test", []string{user.RoleStudent}, true))
	}
	return students
}

// CreateGroup adds a level named after name and a group of capacity seats in it.
func CreateGroup(t *testing.T, eng *academic.Service, name string, capacity int) (academic.Level, academic.Group) {
	t.Helper()
	ctx := context.Background()
	lvl, err := eng.AddLevel(ctx, academic.NewLevel{Name: "Nivel " + name})
	if err != nil {
		t.Fatalf("AddLevel() failed: %v", err)
	}
	grp, err := eng.AddGroup(ctx, academic.NewGroup{
		Name:         name,
		LevelID:      lvl.ID,
		AcademicYear: "2024-2025",
		MaxCapacity:  capacity,
	})
	if err != nil {
		t.Fatalf("AddGroup() failed: %v", err)
	}
	return lvl, grp
}

// CreateSubject adds a subject taught at levelID with one subject group of seats seats.
func CreateSubject(t *testing.T, eng *academic.Service, code, levelID string, seats int) (academic.Subject, academic.SubjectGroup) {
	t.Helper()
	ctx := context.Background()
	sub, err := eng.AddSubject(ctx, academic.NewSubject{
		Name:   "Asignatura " + code,
		Code:   code,
		Levels: []academic.NewSubjectLevel{{LevelID: levelID}},
	})
	if err != nil {
		t.Fatalf("AddSubject() failed: %v", err)
	}
	sg, err := eng.AddSubjectGroup(ctx, sub.ID, academic.NewSubjectGroup{LevelID: levelID, Name: code + " A", MaxStudents: seats})
	if err != nil {
		t.Fatalf("AddSubjectGroup() failed: %v", err)
	}
	if sub, err = eng.GetSubject(sub.ID); err != nil {
		t.Fatalf("GetSubject() failed: %v", err)
	}
	return sub, sg
}
