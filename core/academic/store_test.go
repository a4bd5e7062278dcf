package academic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_insert(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.InsertGroup(Group{ID: "g1", Name: "B", LevelID: "l1", TutorID: "t1"}))
	require.NoError(t, s.InsertGroup(Group{ID: "g2", Name: "A", LevelID: "l1"}))
	require.NoError(t, s.InsertGroup(Group{ID: "g3", Name: "C", LevelID: "l2", TutorID: "t1"}))
	assert.ErrorIs(t, s.InsertGroup(Group{ID: "g1"}), ErrDuplicateID)

	names := func(gs []Group) []string {
		res := make([]string, 0, len(gs))
		for _, g := range gs {
			res = append(res, g.Name)
		}
		return res
	}
	assert.Equal(t, []string{"A", "B"}, names(s.GroupsByLevel("l1")))
	assert.Equal(t, []string{"B", "C"}, names(s.GroupsByTutor("t1")))
	assert.Empty(t, s.GroupsByTutor("nobody"))

	require.NoError(t, s.InsertSubject(Subject{ID: "sub1", Code: "MAT101", Groups: []SubjectGroup{{ID: "sg1"}}}))
	assert.ErrorIs(t, s.InsertSubject(Subject{ID: "sub2", Code: "MAT101"}), ErrDuplicateID)
	assert.ErrorIs(t, s.InsertSubject(Subject{ID: "sub2", Code: "FIS101", Groups: []SubjectGroup{{ID: "sg1"}}}), ErrDuplicateID)

	sub, err := s.SubjectOfGroup("sg1")
	require.NoError(t, err)
	assert.Equal(t, "sub1", sub.ID)
	_, err = s.SubjectByCode("FIS101")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_copies(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.InsertGroup(Group{ID: "g1", StudentIDs: []string{"s1"}}))

	g, err := s.Group("g1")
	require.NoError(t, err)
	g.StudentIDs[0] = "hacked"
	g.StudentIDs = append(g.StudentIDs, "s2")

	again, _ := s.Group("g1")
	assert.Equal(t, []string{"s1"}, again.StudentIDs)
}

func TestStore_activeIndexes(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.InsertEnrollment(Enrollment{ID: "e1", StudentID: "s1", SubjectID: "sub1", Status: StatusActive}))
	err := s.InsertEnrollment(Enrollment{ID: "e2", StudentID: "s1", SubjectID: "sub1", Status: StatusActive})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	require.NoError(t, s.InsertEnrollment(Enrollment{ID: "e2", StudentID: "s1", SubjectID: "sub1", Status: StatusDropped}))

	_, ok := s.ActiveEnrollment("s1", "sub1")
	assert.True(t, ok)

	require.NoError(t, s.ReplaceEnrollment(Enrollment{ID: "e1", StudentID: "s1", SubjectID: "sub1", Status: StatusCompleted}))
	_, ok = s.ActiveEnrollment("s1", "sub1")
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, s.InsertAssignment(GroupAssignment{ID: "a1", StudentID: "s1", GroupID: "g1", IsActive: true, AssignedAt: now}))
	err = s.InsertAssignment(GroupAssignment{ID: "a2", StudentID: "s1", GroupID: "g1", IsActive: true, AssignedAt: now})
	assert.ErrorIs(t, err, ErrDuplicateAssignment)
	require.NoError(t, s.ReplaceAssignment(GroupAssignment{ID: "a1", StudentID: "s1", GroupID: "g1", AssignedAt: now}))
	_, ok = s.ActiveAssignment("s1", "g1")
	assert.False(t, ok)
	assert.Len(t, s.Assignments("s1", false), 1)
	assert.Empty(t, s.Assignments("s1", true))
}

func TestStore_Restore(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.InsertLevel(Level{ID: "stale"}))

	snap := &Snapshot{
		Levels: []Level{{ID: "l1"}},
		Groups: []Group{
			{ID: "g1", MaxCapacity: 5, CurrentCapacity: 9, StudentIDs: []string{"s1", "s2", "s1", ""}, IsActive: true},
			{ID: "g2", IsArchived: true, IsActive: true},
		},
		Subjects: []Subject{{
			ID:     "sub1",
			Code:   "MAT101",
			Levels: []SubjectLevel{{LevelID: "l1", CurrentStudents: 7}},
			Groups: []SubjectGroup{{ID: "sg1", LevelID: "l1", MaxStudents: 3, CurrentStudents: 7}},
		}},
		Enrollments: []Enrollment{
			{ID: "e1", StudentID: "s1", SubjectID: "sub1", LevelID: "l1", GroupID: "sg1", Status: StatusActive},
			{ID: "e2", StudentID: "s2", SubjectID: "sub1", LevelID: "l1", GroupID: "sg1", Status: StatusDropped},
		},
	}
	require.NoError(t, s.Restore(snap))

	_, err := s.Level("stale")
	assert.ErrorIs(t, err, ErrNotFound)

	g1, _ := s.Group("g1")
	assert.Equal(t, []string{"s1", "s2"}, g1.StudentIDs)
	assert.Equal(t, 2, g1.CurrentCapacity)
	g2, _ := s.Group("g2")
	assert.False(t, g2.IsActive)

	sub, _ := s.Subject("sub1")
	assert.Equal(t, 1, sub.Groups[0].CurrentStudents)
	assert.Equal(t, 1, sub.Levels[0].CurrentStudents)

	t.Run("capacity rules", func(t *testing.T) {
		tests := []struct {
			name string
			snap *Snapshot
		}{
			{
				name: "over capacity",
				snap: &Snapshot{Groups: []Group{{ID: "g", MaxCapacity: 1, StudentIDs: []string{"s1", "s2"}, IsActive: true}}},
			},
			{
				name: "archived with members",
				snap: &Snapshot{Groups: []Group{{ID: "g", MaxCapacity: 5, StudentIDs: []string{"s1"}, IsArchived: true}}},
			},
			{
				name: "subject group over capacity",
				snap: &Snapshot{
					Levels:   []Level{{ID: "l1"}},
					Subjects: []Subject{{
						ID:     "sub",
						Code:   "FIS101",
						Levels: []SubjectLevel{{LevelID: "l1"}},
						Groups: []SubjectGroup{{ID: "sg", LevelID: "l1", MaxStudents: 1}},
					}},
					Enrollments: []Enrollment{
						{ID: "e1", StudentID: "s1", SubjectID: "sub", LevelID: "l1", GroupID: "sg", Status: StatusActive},
						{ID: "e2", StudentID: "s2", SubjectID: "sub", LevelID: "l1", GroupID: "sg", Status: StatusActive},
					},
				},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.ErrorIs(t, s.Restore(tt.snap), ErrInvalidSnapshot)
				_, err := s.Group("g1")
				assert.NoError(t, err)
			})
		}
	})

	t.Run("duplicates are rejected and keep the old content", func(t *testing.T) {
		err := s.Restore(&Snapshot{Levels: []Level{{ID: "x"}, {ID: "x"}}})
		assert.ErrorIs(t, err, ErrDuplicateID)
		_, err = s.Level("l1")
		assert.NoError(t, err)
	})
}
