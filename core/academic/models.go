package academic

import (
	"time"
)

// Group is an academic cohort of students under one tutor for an academic year.
// CurrentCapacity always equals len(StudentIDs) and never exceeds MaxCapacity.
// An archived group is never active.
type Group struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	LevelID         string    `json:"level_id"`
	AcademicYear    string    `json:"academic_year"`
	MaxCapacity     int       `json:"max_capacity"`
	CurrentCapacity int       `json:"current_capacity"`
	TutorID         string    `json:"tutor_id,omitempty"`
	IsActive        bool      `json:"is_active"`
	IsArchived      bool      `json:"is_archived"`
	StudentIDs      []string  `json:"student_ids"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

func (g Group) HasStudent(studentID string) bool {
	for _, id := range g.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// IsAvailable reports whether the group can take one more student.
func (g Group) IsAvailable() bool {
	return g.IsActive && !g.IsArchived && g.CurrentCapacity < g.MaxCapacity
}

func (g Group) clone() Group {
	g.StudentIDs = cloneStrings(g.StudentIDs)
	return g
}

// EvaluationCriteria weighs one component of a subject grade at a level.
type EvaluationCriteria struct {
	Name   string  `json:"name" validate:"required"`
	Weight float64 `json:"weight" validate:"gte=0,lte=100"`
}

// LevelSubject is the evaluation setup of a subject at a level.
type LevelSubject struct {
	SubjectID string               `json:"subject_id" validate:"required"`
	Criteria  []EvaluationCriteria `json:"criteria" validate:"dive"`
}

// CriteriaWeightTotal sums the criteria weights. Totals other than 100 are accepted as is.
func (ls LevelSubject) CriteriaWeightTotal() float64 {
	var total float64
	for _, c := range ls.Criteria {
		total += c.Weight
	}
	return total
}

// Level is an educational stage (e.g. Primaria) groups belong to.
type Level struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Order     int            `json:"order"`
	IsActive  bool           `json:"is_active"`
	Subjects  []LevelSubject `json:"subjects"`
	CreatedAt time.Time      `json:"created_at"` // UTC
	UpdatedAt time.Time      `json:"updated_at"` // UTC
}

func (l Level) clone() Level {
	l.Subjects = cloneLevelSubjects(l.Subjects)
	return l
}

// SubjectLevel is a level a subject is taught at.
// MaxStudents is advisory: enrollment capacity is enforced per SubjectGroup.
type SubjectLevel struct {
	LevelID         string   `json:"level_id"`
	Name            string   `json:"name"`
	MaxStudents     int      `json:"max_students"`
	CurrentStudents int      `json:"current_students"`
	Requirements    []string `json:"requirements,omitempty"`
}

type ClassSchedule struct {
	Day       string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	Room      string `json:"room,omitempty"`
}

// SubjectGroup is a teacher-led section of a subject at a given level.
type SubjectGroup struct {
	ID              string          `json:"id"`
	LevelID         string          `json:"level_id"`
	Name            string          `json:"name"`
	TeacherID       string          `json:"teacher_id,omitempty"`
	MaxStudents     int             `json:"max_students"`
	CurrentStudents int             `json:"current_students"`
	Schedule        []ClassSchedule `json:"schedule,omitempty"`
}

type Subject struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Code       string         `json:"code"` // unique, upper-case
	Department string         `json:"department,omitempty"`
	Credits    int            `json:"credits"`
	IsActive   bool           `json:"is_active"`
	Levels     []SubjectLevel `json:"levels"`
	Groups     []SubjectGroup `json:"groups"`
	CreatedAt  time.Time      `json:"created_at"` // UTC
	UpdatedAt  time.Time      `json:"updated_at"` // UTC
}

func (s Subject) levelIndex(levelID string) int {
	for i, l := range s.Levels {
		if l.LevelID == levelID {
			return i
		}
	}
	return -1
}

func (s Subject) groupIndex(groupID string) int {
	for i, g := range s.Groups {
		if g.ID == groupID {
			return i
		}
	}
	return -1
}

// Group returns the subject group with the given id.
func (s Subject) Group(groupID string) (SubjectGroup, bool) {
	if i := s.groupIndex(groupID); i >= 0 {
		return s.Groups[i], true
	}
	return SubjectGroup{}, false
}

// Level returns the subject level with the given level id.
func (s Subject) Level(levelID string) (SubjectLevel, bool) {
	if i := s.levelIndex(levelID); i >= 0 {
		return s.Levels[i], true
	}
	return SubjectLevel{}, false
}

func (s Subject) clone() Subject {
	if s.Levels != nil {
		levels := make([]SubjectLevel, len(s.Levels))
		for i, l := range s.Levels {
			l.Requirements = cloneStrings(l.Requirements)
			levels[i] = l
		}
		s.Levels = levels
	}
	if s.Groups != nil {
		groups := make([]SubjectGroup, len(s.Groups))
		for i, g := range s.Groups {
			if g.Schedule != nil {
				g.Schedule = append([]ClassSchedule(nil), g.Schedule...)
			}
			groups[i] = g
		}
		s.Groups = groups
	}
	return s
}

// seat moves one student into (delta=1) or out of (delta=-1) a subject group and its level.
// Counters never drop below zero.
func (s *Subject) seat(levelID, groupID string, delta int) {
	if i := s.groupIndex(groupID); i >= 0 {
		s.Groups[i].CurrentStudents = floor0(s.Groups[i].CurrentStudents + delta)
	}
	if i := s.levelIndex(levelID); i >= 0 {
		s.Levels[i].CurrentStudents = floor0(s.Levels[i].CurrentStudents + delta)
	}
}

type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusInactive  EnrollmentStatus = "inactive"
	StatusCompleted EnrollmentStatus = "completed"
	StatusDropped   EnrollmentStatus = "dropped"
)

// Enrollment is a student's membership in a SubjectGroup.
// A student has at most one active enrollment per subject.
type Enrollment struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	SubjectID  string           `json:"subject_id"`
	LevelID    string           `json:"level_id"`
	GroupID    string           `json:"group_id"`
	Status     EnrollmentStatus `json:"status"`
	Attendance float64          `json:"attendance"` // percentage
	Grade      *float64         `json:"grade,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	EnrolledAt time.Time        `json:"enrolled_at"` // UTC
	UpdatedAt  time.Time        `json:"updated_at"`  // UTC
}

func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

func (e Enrollment) clone() Enrollment {
	if e.Grade != nil {
		g := *e.Grade
		e.Grade = &g
	}
	return e
}

// GroupAssignment is a student's membership in an academic Group.
type GroupAssignment struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"student_id"`
	GroupID    string     `json:"group_id"`
	IsActive   bool       `json:"is_active"`
	AssignedAt time.Time  `json:"assigned_at"` // UTC
	AssignedBy string     `json:"assigned_by"`
	RemovedAt  *time.Time `json:"removed_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (a GroupAssignment) clone() GroupAssignment {
	if a.RemovedAt != nil {
		t := *a.RemovedAt
		a.RemovedAt = &t
	}
	return a
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append([]string(nil), ss...)
}

func cloneLevelSubjects(ls []LevelSubject) []LevelSubject {
	if ls == nil {
		return nil
	}
	out := make([]LevelSubject, len(ls))
	for i, s := range ls {
		if s.Criteria != nil {
			s.Criteria = append([]EvaluationCriteria(nil), s.Criteria...)
		}
		out[i] = s
	}
	return out
}

func floor0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
