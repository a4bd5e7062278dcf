package academic

import (
	"sort"

	"github.com/pkg/errors"
)

type pairKey struct {
	studentID string
	otherID   string // subject id or group id
}

// Store is the authoritative in-memory collection of academic entities.
// Id lookups are O(1). Getters return copies.
// A Store is not safe for concurrent use: Service serialises every access.
type Store struct {
	levels      map[string]*Level
	groups      map[string]*Group
	subjects    map[string]*Subject
	enrollments map[string]*Enrollment
	assignments map[string]*GroupAssignment

	// indexes
	subjectGroups     map[string]string  // subject group id -> subject id
	subjectCodes      map[string]string  // subject code -> subject id
	activeEnrollments map[pairKey]string // (student, subject) -> enrollment id
	activeAssignments map[pairKey]string // (student, group) -> assignment id
}

func NewStore() *Store {
	return &Store{
		levels:            make(map[string]*Level),
		groups:            make(map[string]*Group),
		subjects:          make(map[string]*Subject),
		enrollments:       make(map[string]*Enrollment),
		assignments:       make(map[string]*GroupAssignment),
		subjectGroups:     make(map[string]string),
		subjectCodes:      make(map[string]string),
		activeEnrollments: make(map[pairKey]string),
		activeAssignments: make(map[pairKey]string),
	}
}

func notFound(what, id string) error {
	return errors.Wrapf(ErrNotFound, "%s %q", what, id)
}

func duplicateID(what, id string) error {
	return errors.Wrapf(ErrDuplicateID, "%s %q", what, id)
}

// Levels

func (s *Store) Level(id string) (Level, error) {
	if l, ok := s.levels[id]; ok {
		return l.clone(), nil
	}
	return Level{}, notFound("level", id)
}

func (s *Store) Levels() []Level {
	levels := make([]Level, 0, len(s.levels))
	for _, l := range s.levels {
		levels = append(levels, l.clone())
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Order != levels[j].Order {
			return levels[i].Order < levels[j].Order
		}
		return levels[i].Name < levels[j].Name
	})
	return levels
}

func (s *Store) InsertLevel(l Level) error {
	if _, ok := s.levels[l.ID]; ok {
		return duplicateID("level", l.ID)
	}
	l = l.clone()
	s.levels[l.ID] = &l
	return nil
}

func (s *Store) ReplaceLevel(l Level) error {
	if _, ok := s.levels[l.ID]; !ok {
		return notFound("level", l.ID)
	}
	l = l.clone()
	s.levels[l.ID] = &l
	return nil
}

// Groups

func (s *Store) Group(id string) (Group, error) {
	if g, ok := s.groups[id]; ok {
		return g.clone(), nil
	}
	return Group{}, notFound("group", id)
}

// Groups returns the groups matching keep (all when nil), sorted by name.
func (s *Store) Groups(keep func(*Group) bool) []Group {
	groups := make([]Group, 0)
	for _, g := range s.groups {
		if keep == nil || keep(g) {
			groups = append(groups, g.clone())
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].ID < groups[j].ID
	})
	return groups
}

func (s *Store) GroupsByLevel(levelID string) []Group {
	return s.Groups(func(g *Group) bool { return g.LevelID == levelID })
}

func (s *Store) GroupsByTutor(tutorID string) []Group {
	return s.Groups(func(g *Group) bool { return g.TutorID == tutorID })
}

func (s *Store) InsertGroup(g Group) error {
	if _, ok := s.groups[g.ID]; ok {
		return duplicateID("group", g.ID)
	}
	g = g.clone()
	s.groups[g.ID] = &g
	return nil
}

func (s *Store) ReplaceGroup(g Group) error {
	if _, ok := s.groups[g.ID]; !ok {
		return notFound("group", g.ID)
	}
	g = g.clone()
	s.groups[g.ID] = &g
	return nil
}

func (s *Store) DeleteGroup(id string) error {
	if _, ok := s.groups[id]; !ok {
		return notFound("group", id)
	}
	delete(s.groups, id)
	return nil
}

// Subjects

func (s *Store) Subject(id string) (Subject, error) {
	if sub, ok := s.subjects[id]; ok {
		return sub.clone(), nil
	}
	return Subject{}, notFound("subject", id)
}

// SubjectByCode looks a subject up by its (upper-case) code.
func (s *Store) SubjectByCode(code string) (Subject, error) {
	if id, ok := s.subjectCodes[code]; ok {
		return s.Subject(id)
	}
	return Subject{}, notFound("subject code", code)
}

// SubjectOfGroup returns the subject owning the given subject group.
func (s *Store) SubjectOfGroup(groupID string) (Subject, error) {
	if id, ok := s.subjectGroups[groupID]; ok {
		return s.Subject(id)
	}
	return Subject{}, notFound("subject group", groupID)
}

func (s *Store) Subjects() []Subject {
	subjects := make([]Subject, 0, len(s.subjects))
	for _, sub := range s.subjects {
		subjects = append(subjects, sub.clone())
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects
}

func (s *Store) checkSubjectKeys(sub Subject) error {
	if id, ok := s.subjectCodes[sub.Code]; ok && id != sub.ID {
		return errors.Wrapf(ErrDuplicateID, "subject code %q", sub.Code)
	}
	seen := make(map[string]struct{}, len(sub.Groups))
	for _, g := range sub.Groups {
		if _, ok := seen[g.ID]; ok {
			return duplicateID("subject group", g.ID)
		}
		seen[g.ID] = struct{}{}
		if owner, ok := s.subjectGroups[g.ID]; ok && owner != sub.ID {
			return duplicateID("subject group", g.ID)
		}
	}
	return nil
}

func (s *Store) indexSubject(sub *Subject) {
	s.subjectCodes[sub.Code] = sub.ID
	for _, g := range sub.Groups {
		s.subjectGroups[g.ID] = sub.ID
	}
}

func (s *Store) unindexSubject(sub *Subject) {
	delete(s.subjectCodes, sub.Code)
	for _, g := range sub.Groups {
		delete(s.subjectGroups, g.ID)
	}
}

func (s *Store) InsertSubject(sub Subject) error {
	if _, ok := s.subjects[sub.ID]; ok {
		return duplicateID("subject", sub.ID)
	}
	if err := s.checkSubjectKeys(sub); err != nil {
		return err
	}
	sub = sub.clone()
	s.subjects[sub.ID] = &sub
	s.indexSubject(&sub)
	return nil
}

func (s *Store) ReplaceSubject(sub Subject) error {
	prev, ok := s.subjects[sub.ID]
	if !ok {
		return notFound("subject", sub.ID)
	}
	if err := s.checkSubjectKeys(sub); err != nil {
		return err
	}
	s.unindexSubject(prev)
	sub = sub.clone()
	s.subjects[sub.ID] = &sub
	s.indexSubject(&sub)
	return nil
}

// Enrollments

func (s *Store) Enrollment(id string) (Enrollment, error) {
	if e, ok := s.enrollments[id]; ok {
		return e.clone(), nil
	}
	return Enrollment{}, notFound("enrollment", id)
}

// ActiveEnrollment returns the active enrollment of a student in a subject.
func (s *Store) ActiveEnrollment(studentID, subjectID string) (Enrollment, bool) {
	if id, ok := s.activeEnrollments[pairKey{studentID, subjectID}]; ok {
		return s.enrollments[id].clone(), true
	}
	return Enrollment{}, false
}

// Enrollments returns the matching enrollments, oldest first.
func (s *Store) Enrollments(filter EnrollmentFilter) []Enrollment {
	res := make([]Enrollment, 0)
	for _, e := range s.enrollments {
		if filter.Match(*e) {
			res = append(res, e.clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].EnrolledAt.Equal(res[j].EnrolledAt) {
			return res[i].EnrolledAt.Before(res[j].EnrolledAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

func (s *Store) checkActiveEnrollment(e Enrollment) error {
	if !e.IsActive() {
		return nil
	}
	if id, ok := s.activeEnrollments[pairKey{e.StudentID, e.SubjectID}]; ok && id != e.ID {
		return errors.Wrapf(ErrAlreadyEnrolled, "student %q, subject %q", e.StudentID, e.SubjectID)
	}
	return nil
}

func (s *Store) indexEnrollment(e *Enrollment) {
	if e.IsActive() {
		s.activeEnrollments[pairKey{e.StudentID, e.SubjectID}] = e.ID
	}
}

func (s *Store) unindexEnrollment(e *Enrollment) {
	key := pairKey{e.StudentID, e.SubjectID}
	if id, ok := s.activeEnrollments[key]; ok && id == e.ID {
		delete(s.activeEnrollments, key)
	}
}

func (s *Store) InsertEnrollment(e Enrollment) error {
	if _, ok := s.enrollments[e.ID]; ok {
		return duplicateID("enrollment", e.ID)
	}
	if err := s.checkActiveEnrollment(e); err != nil {
		return err
	}
	e = e.clone()
	s.enrollments[e.ID] = &e
	s.indexEnrollment(&e)
	return nil
}

func (s *Store) ReplaceEnrollment(e Enrollment) error {
	prev, ok := s.enrollments[e.ID]
	if !ok {
		return notFound("enrollment", e.ID)
	}
	if err := s.checkActiveEnrollment(e); err != nil {
		return err
	}
	s.unindexEnrollment(prev)
	e = e.clone()
	s.enrollments[e.ID] = &e
	s.indexEnrollment(&e)
	return nil
}

// Group assignments

func (s *Store) Assignment(id string) (GroupAssignment, error) {
	if a, ok := s.assignments[id]; ok {
		return a.clone(), nil
	}
	return GroupAssignment{}, notFound("assignment", id)
}

// ActiveAssignment returns the active assignment of a student to a group.
func (s *Store) ActiveAssignment(studentID, groupID string) (GroupAssignment, bool) {
	if id, ok := s.activeAssignments[pairKey{studentID, groupID}]; ok {
		return s.assignments[id].clone(), true
	}
	return GroupAssignment{}, false
}

// Assignments returns the assignments of a student (all students when empty), oldest first.
func (s *Store) Assignments(studentID string, activeOnly bool) []GroupAssignment {
	res := make([]GroupAssignment, 0)
	for _, a := range s.assignments {
		if (studentID == "" || a.StudentID == studentID) && (!activeOnly || a.IsActive) {
			res = append(res, a.clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].AssignedAt.Equal(res[j].AssignedAt) {
			return res[i].AssignedAt.Before(res[j].AssignedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

func (s *Store) checkActiveAssignment(a GroupAssignment) error {
	if !a.IsActive {
		return nil
	}
	if id, ok := s.activeAssignments[pairKey{a.StudentID, a.GroupID}]; ok && id != a.ID {
		return errors.Wrapf(ErrDuplicateAssignment, "student %q, group %q", a.StudentID, a.GroupID)
	}
	return nil
}

func (s *Store) unindexAssignment(a *GroupAssignment) {
	key := pairKey{a.StudentID, a.GroupID}
	if id, ok := s.activeAssignments[key]; ok && id == a.ID {
		delete(s.activeAssignments, key)
	}
}

func (s *Store) InsertAssignment(a GroupAssignment) error {
	if _, ok := s.assignments[a.ID]; ok {
		return duplicateID("assignment", a.ID)
	}
	if err := s.checkActiveAssignment(a); err != nil {
		return err
	}
	a = a.clone()
	s.assignments[a.ID] = &a
	if a.IsActive {
		s.activeAssignments[pairKey{a.StudentID, a.GroupID}] = a.ID
	}
	return nil
}

func (s *Store) ReplaceAssignment(a GroupAssignment) error {
	prev, ok := s.assignments[a.ID]
	if !ok {
		return notFound("assignment", a.ID)
	}
	if err := s.checkActiveAssignment(a); err != nil {
		return err
	}
	s.unindexAssignment(prev)
	a = a.clone()
	s.assignments[a.ID] = &a
	if a.IsActive {
		s.activeAssignments[pairKey{a.StudentID, a.GroupID}] = a.ID
	}
	return nil
}

// Restore replaces the whole content of the store with snap.
// Occupancy counters are re-derived from memberships and active enrollments,
// and a snapshot whose counters break the capacity rules is rejected with ErrInvalidSnapshot.
func (s *Store) Restore(snap *Snapshot) error {
	fresh := NewStore()

	for _, l := range snap.Levels {
		if err := fresh.InsertLevel(l); err != nil {
			return err
		}
	}
	for _, g := range snap.Groups {
		g.StudentIDs = uniqueStrings(g.StudentIDs)
		g.CurrentCapacity = len(g.StudentIDs)
		if g.CurrentCapacity > g.MaxCapacity {
			return errors.Wrapf(ErrInvalidSnapshot, "group %q holds %d students for %d seats", g.ID, g.CurrentCapacity, g.MaxCapacity)
		}
		if g.IsArchived {
			if g.CurrentCapacity > 0 {
				return errors.Wrapf(ErrInvalidSnapshot, "archived group %q still has %d students", g.ID, g.CurrentCapacity)
			}
			g.IsActive = false
		}
		if err := fresh.InsertGroup(g); err != nil {
			return err
		}
	}
	for _, e := range snap.Enrollments {
		if err := fresh.InsertEnrollment(e); err != nil {
			return err
		}
	}
	for _, a := range snap.Assignments {
		if err := fresh.InsertAssignment(a); err != nil {
			return err
		}
	}
	for _, sub := range snap.Subjects {
		sub = sub.clone()
		for i := range sub.Levels {
			sub.Levels[i].CurrentStudents = 0
		}
		for i := range sub.Groups {
			sub.Groups[i].CurrentStudents = 0
		}
		for _, e := range fresh.enrollments {
			if e.SubjectID == sub.ID && e.IsActive() {
				sub.seat(e.LevelID, e.GroupID, 1)
			}
		}
		for _, sg := range sub.Groups {
			if sg.CurrentStudents > sg.MaxStudents {
				return errors.Wrapf(ErrInvalidSnapshot, "subject group %q holds %d students for %d seats", sg.ID, sg.CurrentStudents, sg.MaxStudents)
			}
		}
		if err := fresh.InsertSubject(sub); err != nil {
			return err
		}
	}

	*s = *fresh
	return nil
}

func uniqueStrings(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
