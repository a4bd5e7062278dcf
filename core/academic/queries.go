package academic

import (
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

// Read side. Everything is derived from the current store content on every call.

type (
	LevelStats struct {
		LevelID   string  `json:"level_id"`
		Name      string  `json:"name"`
		Groups    int     `json:"groups"`
		Students  int     `json:"students"`
		Capacity  int     `json:"capacity"`
		Occupancy float64 `json:"occupancy"` // percentage
	}

	// Dashboard holds the aggregate counts shown on the admin home page.
	// Capacity and occupancy figures only consider groups that are not archived.
	Dashboard struct {
		TotalGroups       int          `json:"total_groups"`
		ActiveGroups      int          `json:"active_groups"`
		ArchivedGroups    int          `json:"archived_groups"`
		AvailableGroups   int          `json:"available_groups"`
		Levels            int          `json:"levels"`
		Subjects          int          `json:"subjects"`
		ActiveSubjects    int          `json:"active_subjects"`
		ActiveEnrollments int          `json:"active_enrollments"`
		StudentsAssigned  int          `json:"students_assigned"` // distinct
		TotalCapacity     int          `json:"total_capacity"`
		Occupancy         float64      `json:"occupancy"` // percentage
		ByLevel           []LevelStats `json:"by_level"`
	}
)

func occupancy(students, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(students) * 100 / float64(capacity)
}

func (s *Service) GetGroup(id string) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Group(id)
}

func (s *Service) GetLevel(id string) (Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Level(id)
}

func (s *Service) GetSubject(id string) (Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Subject(id)
}

func (s *Service) GetEnrollment(id string) (Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Enrollment(id)
}

func (s *Service) ListLevels() []Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Levels()
}

func (s *Service) ListGroups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Groups(nil)
}

func (s *Service) ListGroupsByLevel(levelID string) []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GroupsByLevel(levelID)
}

func (s *Service) ListGroupsByTutor(tutorID string) []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GroupsByTutor(tutorID)
}

func (s *Service) ListSubjects() []Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Subjects()
}

func (s *Service) ListEnrollments(filter EnrollmentFilter) []Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Enrollments(filter)
}

// ListAssignments returns the group assignments of a student, all students when empty.
func (s *Service) ListAssignments(studentID string, activeOnly bool) []GroupAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Assignments(studentID, activeOnly)
}

// GetAvailableGroups returns the active groups with room left.
func (s *Service) GetAvailableGroups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Groups(func(g *Group) bool { return g.IsAvailable() })
}

// GetActiveGroups returns the groups that are not archived.
func (s *Service) GetActiveGroups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Groups(func(g *Group) bool { return !g.IsArchived })
}

func (s *Service) GetArchivedGroups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Groups(func(g *Group) bool { return g.IsArchived })
}

// GetStudentsByGroup returns the ids of the members of an academic group.
func (s *Service) GetStudentsByGroup(groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grp, err := s.store.Group(groupID)
	if err != nil {
		return nil, err
	}
	return grp.StudentIDs, nil
}

func (s *Service) History(filter history.Filter) []history.Entry {
	filter.Clean()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hist.Query(filter)
}

func (s *Service) Dashboard() Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := s.store.Levels()
	dash := Dashboard{Levels: len(levels), ByLevel: make([]LevelStats, 0, len(levels))}
	byLevel := make(map[string]*LevelStats, len(levels))
	for _, l := range levels {
		dash.ByLevel = append(dash.ByLevel, LevelStats{LevelID: l.ID, Name: l.Name})
	}
	for i := range dash.ByLevel {
		byLevel[dash.ByLevel[i].LevelID] = &dash.ByLevel[i]
	}

	students := make(map[string]struct{})
	var assigned int
	for _, g := range s.store.Groups(nil) {
		dash.TotalGroups++
		if g.IsArchived {
			dash.ArchivedGroups++
			continue
		}
		dash.ActiveGroups++
		if g.IsAvailable() {
			dash.AvailableGroups++
		}
		dash.TotalCapacity += g.MaxCapacity
		assigned += g.CurrentCapacity
		for _, id := range g.StudentIDs {
			students[id] = struct{}{}
		}
		if ls, ok := byLevel[g.LevelID]; ok {
			ls.Groups++
			ls.Students += g.CurrentCapacity
			ls.Capacity += g.MaxCapacity
		}
	}
	dash.StudentsAssigned = len(students)
	dash.Occupancy = occupancy(assigned, dash.TotalCapacity)
	for i := range dash.ByLevel {
		dash.ByLevel[i].Occupancy = occupancy(dash.ByLevel[i].Students, dash.ByLevel[i].Capacity)
	}

	for _, sub := range s.store.Subjects() {
		dash.Subjects++
		if sub.IsActive {
			dash.ActiveSubjects++
		}
	}
	dash.ActiveEnrollments = len(s.store.activeEnrollments)
	return dash
}
