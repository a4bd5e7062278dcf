package dummydb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

const demoYear = "2024-2025"

// Demo references the main records created by Seed.
type Demo struct {
	Admin    user.User
	Tutors   []user.User
	Students []user.User
	Levels   []academic.Level
	Groups   []academic.Group
	Subject  academic.Subject
}

// Seed fills an empty school with the demo dataset, going through the services
// so that every invariant holds and the history is recorded.
func Seed(ctx context.Context, users *user.Service, eng *academic.Service) (*Demo, error) {
	var (
		demo Demo
		err  error
	)
	newUser := func(name, email string, roles ...string) (user.User, error) {
		return users.Create(ctx, user.NewUser{Name: name, Email: email, Roles: roles})
	}

	if demo.Admin, err = newUser("Administración", "admin@demo.school", user.RoleAdminOwner); err != nil {
		return nil, errors.Wrap(err, "seeding admin")
	}
	ctx = history.WithActor(ctx, demo.Admin.ID)

	for _, t := range []struct{ name, email string }{
		{"María García", "maria.garcia@demo.school"},
		{"José Martínez", "jose.martinez@demo.school"},
	} {
		tutor, err := newUser(t.name, t.email, user.RoleTutor)
		if err != nil {
			return nil, errors.Wrap(err, "seeding tutors")
		}
		demo.Tutors = append(demo.Tutors, tutor)
	}
	for _, s := range []struct{ name, email string }{
		{"Lucía Fernández", "lucia@demo.school"},
		{"Hugo López", "hugo@demo.school"},
		{"Martina Sánchez", "martina@demo.school"},
		{"Pablo Romero", "pablo@demo.school"},
		{"Sofía Navarro", "sofia@demo.school"},
		{"Daniel Torres", "daniel@demo.school"},
	} {
		student, err := newUser(s.name, s.email, user.RoleStudent)
		if err != nil {
			return nil, errors.Wrap(err, "seeding students")
		}
		demo.Students = append(demo.Students, student)
	}

	for i, name := range []string{"Primaria", "Secundaria"} {
		lvl, err := eng.AddLevel(ctx, academic.NewLevel{Name: name, Order: i + 1})
		if err != nil {
			return nil, errors.Wrap(err, "seeding levels")
		}
		demo.Levels = append(demo.Levels, lvl)
	}

	for i, g := range []struct {
		name     string
		capacity int
	}{
		{"1º Primaria A", 25},
		{"1º ESO A", 30},
	} {
		grp, err := eng.AddGroup(ctx, academic.NewGroup{
			Name:         g.name,
			LevelID:      demo.Levels[i].ID,
			AcademicYear: demoYear,
			MaxCapacity:  g.capacity,
			TutorID:      demo.Tutors[i].ID,
		})
		if err != nil {
			return nil, errors.Wrap(err, "seeding groups")
		}
		demo.Groups = append(demo.Groups, grp)
	}

	sub, err := eng.AddSubject(ctx, academic.NewSubject{
		Name:       "Matemáticas",
		Code:       "MAT101",
		Department: "Ciencias",
		Credits:    6,
		Levels: []academic.NewSubjectLevel{
			{LevelID: demo.Levels[0].ID, MaxStudents: 50},
			{LevelID: demo.Levels[1].ID, MaxStudents: 60},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "seeding subjects")
	}
	sections := make([]academic.SubjectGroup, 0, 2)
	for i, name := range []string{"Grupo A", "Grupo B"} {
		sg, err := eng.AddSubjectGroup(ctx, sub.ID, academic.NewSubjectGroup{
			LevelID:     demo.Levels[i].ID,
			Name:        name,
			TeacherID:   demo.Tutors[i].ID,
			MaxStudents: 25,
			Schedule: []academic.ClassSchedule{
				{Day: "monday", StartTime: "09:00", EndTime: "10:00", Room: "A1"},
				{Day: "wednesday", StartTime: "09:00", EndTime: "10:00", Room: "A1"},
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "seeding subject groups")
		}
		sections = append(sections, sg)
	}

	// first half in Primaria, second half in Secundaria
	half := len(demo.Students) / 2
	for i, student := range demo.Students {
		idx := 0
		if i >= half {
			idx = 1
		}
		if _, err = eng.AssignStudentToGroup(ctx, student.ID, demo.Groups[idx].ID, ""); err != nil {
			return nil, errors.Wrap(err, "seeding assignments")
		}
		if _, err = eng.EnrollStudent(ctx, student.ID, sub.ID, demo.Levels[idx].ID, sections[idx].ID, ""); err != nil {
			return nil, errors.Wrap(err, "seeding enrollments")
		}
	}

	if demo.Subject, err = eng.GetSubject(sub.ID); err != nil {
		return nil, err
	}
	for i := range demo.Groups {
		if demo.Groups[i], err = eng.GetGroup(demo.Groups[i].ID); err != nil {
			return nil, err
		}
	}
	return &demo, nil
}
