package academic

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
)

// NewLevel contains information needed to create a new Level.
type NewLevel struct {
	Name     string         `json:"name" validate:"required,name_"`
	Order    int            `json:"order" validate:"gte=0"`
	Subjects []LevelSubject `json:"subjects" validate:"dive"`
}

func (nl *NewLevel) Validate(validate *validator.Validate) error {
	nl.Name = core.CleanString(nl.Name)
	return validate.Struct(nl)
}

// LevelPatch defines what may be modified on an existing Level.
type LevelPatch struct {
	Name     *string         `json:"name" validate:"omitempty,name_"`
	Order    *int            `json:"order" validate:"omitempty,gte=0"`
	IsActive *bool           `json:"is_active"`
	Subjects *[]LevelSubject `json:"subjects" validate:"omitempty,dive"`
}

func (lp *LevelPatch) Validate(validate *validator.Validate) error {
	cleanPtr(&lp.Name)
	return validate.Struct(lp)
}

func (lp LevelPatch) apply(l *Level) {
	if lp.Name != nil {
		l.Name = *lp.Name
	}
	if lp.Order != nil {
		l.Order = *lp.Order
	}
	if lp.IsActive != nil {
		l.IsActive = *lp.IsActive
	}
	if lp.Subjects != nil {
		l.Subjects = cloneLevelSubjects(*lp.Subjects)
	}
}

// NewGroup contains information needed to create a new academic Group.
type NewGroup struct {
	Name         string `json:"name" validate:"required,name_"`
	Description  string `json:"description"`
	LevelID      string `json:"level_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required,academicyear"`
	MaxCapacity  int    `json:"max_capacity" validate:"required,gt=0"`
	TutorID      string `json:"tutor_id"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.LevelID = core.CleanString(ng.LevelID)
	ng.AcademicYear = core.CleanString(ng.AcademicYear)
	ng.TutorID = core.CleanString(ng.TutorID)
	return validate.Struct(ng)
}

// GroupPatch defines what may be modified on an existing Group.
// Membership, capacity counters and the archive flag are only changed by the engine operations.
type GroupPatch struct {
	Name         *string `json:"name" validate:"omitempty,name_"`
	Description  *string `json:"description"`
	LevelID      *string `json:"level_id" validate:"omitempty,min=1"`
	AcademicYear *string `json:"academic_year" validate:"omitempty,academicyear"`
	MaxCapacity  *int    `json:"max_capacity" validate:"omitempty,gt=0"`
	TutorID      *string `json:"tutor_id"`
	IsActive     *bool   `json:"is_active"`
}

func (gp *GroupPatch) Validate(validate *validator.Validate) error {
	cleanPtr(&gp.Name)
	cleanPtr(&gp.Description)
	cleanPtr(&gp.LevelID)
	cleanPtr(&gp.AcademicYear)
	cleanPtr(&gp.TutorID)
	return validate.Struct(gp)
}

func (gp GroupPatch) apply(g *Group) {
	if gp.Name != nil {
		g.Name = *gp.Name
	}
	if gp.Description != nil {
		g.Description = *gp.Description
	}
	if gp.LevelID != nil {
		g.LevelID = *gp.LevelID
	}
	if gp.AcademicYear != nil {
		g.AcademicYear = *gp.AcademicYear
	}
	if gp.MaxCapacity != nil {
		g.MaxCapacity = *gp.MaxCapacity
	}
	if gp.TutorID != nil {
		g.TutorID = *gp.TutorID
	}
	if gp.IsActive != nil {
		g.IsActive = *gp.IsActive
	}
}

// NewSubjectLevel adds a level a subject is taught at.
type NewSubjectLevel struct {
	LevelID      string   `json:"level_id" validate:"required"`
	Name         string   `json:"name"`
	MaxStudents  int      `json:"max_students" validate:"gte=0"`
	Requirements []string `json:"requirements"`
}

func (nl *NewSubjectLevel) Validate(validate *validator.Validate) error {
	nl.clean()
	return validate.Struct(nl)
}

func (nl *NewSubjectLevel) clean() {
	nl.LevelID = core.CleanString(nl.LevelID)
	nl.Name = core.CleanString(nl.Name)
	nl.Requirements = core.CleanStrings(nl.Requirements)
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name       string            `json:"name" validate:"required"`
	Code       string            `json:"code" validate:"required,subjectcode"`
	Department string            `json:"department"`
	Credits    int               `json:"credits" validate:"gte=0"`
	Levels     []NewSubjectLevel `json:"levels" validate:"dive"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Department = core.CleanString(ns.Department)
	for i := range ns.Levels {
		ns.Levels[i].clean()
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(ns.Levels))
	for _, l := range ns.Levels {
		if _, ok := seen[l.LevelID]; ok {
			return core.NewFieldError("levels", "level "+l.LevelID+" is listed twice")
		}
		seen[l.LevelID] = struct{}{}
	}
	return nil
}

// SubjectPatch defines what may be modified on an existing Subject.
type SubjectPatch struct {
	Name       *string `json:"name" validate:"omitempty,min=1"`
	Department *string `json:"department"`
	Credits    *int    `json:"credits" validate:"omitempty,gte=0"`
	IsActive   *bool   `json:"is_active"`
}

func (sp *SubjectPatch) Validate(validate *validator.Validate) error {
	cleanPtr(&sp.Name)
	cleanPtr(&sp.Department)
	return validate.Struct(sp)
}

func (sp SubjectPatch) apply(s *Subject) {
	if sp.Name != nil {
		s.Name = *sp.Name
	}
	if sp.Department != nil {
		s.Department = *sp.Department
	}
	if sp.Credits != nil {
		s.Credits = *sp.Credits
	}
	if sp.IsActive != nil {
		s.IsActive = *sp.IsActive
	}
}

// NewSubjectGroup contains information needed to open a new section of a Subject.
type NewSubjectGroup struct {
	LevelID     string          `json:"level_id" validate:"required"`
	Name        string          `json:"name" validate:"required,name_"`
	TeacherID   string          `json:"teacher_id"`
	MaxStudents int             `json:"max_students" validate:"required,gt=0"`
	Schedule    []ClassSchedule `json:"schedule" validate:"dive"`
}

func (ng *NewSubjectGroup) Validate(validate *validator.Validate) error {
	ng.LevelID = core.CleanString(ng.LevelID)
	ng.Name = core.CleanString(ng.Name)
	ng.TeacherID = core.CleanString(ng.TeacherID)
	for i := range ng.Schedule {
		ng.Schedule[i].Day = core.CleanString(ng.Schedule[i].Day, true /* lower */)
		ng.Schedule[i].Room = core.CleanString(ng.Schedule[i].Room)
	}
	if err := validate.Struct(ng); err != nil {
		return err
	}
	for _, cs := range ng.Schedule {
		// HH:MM strings compare chronologically
		if cs.EndTime <= cs.StartTime {
			return core.NewFieldError("schedule", "end_time must be after start_time")
		}
	}
	return nil
}

// ProgressPatch updates the academic progress of an enrollment.
type ProgressPatch struct {
	Attendance *float64 `json:"attendance" validate:"omitempty,gte=0,lte=100"`
	Grade      *float64 `json:"grade" validate:"omitempty,gte=0,lte=10"`
	Notes      *string  `json:"notes"`
}

func (pp *ProgressPatch) Validate(validate *validator.Validate) error {
	cleanPtr(&pp.Notes)
	return validate.Struct(pp)
}

func (pp ProgressPatch) apply(e *Enrollment) {
	if pp.Attendance != nil {
		e.Attendance = *pp.Attendance
	}
	if pp.Grade != nil {
		g := *pp.Grade
		e.Grade = &g
	}
	if pp.Notes != nil {
		e.Notes = *pp.Notes
	}
}

// EnrollmentFilter selects enrollments; zero fields match everything.
type EnrollmentFilter struct {
	StudentID string           `query:"student_id"`
	SubjectID string           `query:"subject_id"`
	GroupID   string           `query:"group_id"`
	Status    EnrollmentStatus `query:"status"`
}

func (f EnrollmentFilter) Match(e Enrollment) bool {
	return (f.StudentID == "" || e.StudentID == f.StudentID) &&
		(f.SubjectID == "" || e.SubjectID == f.SubjectID) &&
		(f.GroupID == "" || e.GroupID == f.GroupID) &&
		(f.Status == "" || e.Status == f.Status)
}

func cleanPtr(s **string) {
	if *s != nil {
		v := core.CleanString(**s)
		*s = &v
	}
}
