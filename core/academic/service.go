package academic

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

var (
	nowFunc = time.Now                                      // mockable
	newID   = func() string { return uuid.New().String() } // mockable
)

type (
	// People resolves students, tutors and teachers.
	People interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// Observer is told about every engine operation.
	Observer interface {
		Observe(op string, took time.Duration, err error)
	}

	Options struct {
		Adapter  Adapter // nil keeps everything in memory
		People   People
		Validate *validator.Validate // nil builds a default one
		Logger   core.Logger
		Observer Observer

		// ExclusiveGroupMembership limits students to one active academic group per academic year.
		ExclusiveGroupMembership bool
	}

	// Service owns the entity store and is the only writer of occupancy related fields.
	// Validation and mutation of every operation run in one critical section.
	Service struct {
		mu        sync.RWMutex
		store     *Store
		hist      *history.Log
		adapter   Adapter
		people    People
		validate  *validator.Validate
		logger    core.Logger
		observer  Observer
		exclusive bool
	}
)

func NewService(opts Options) *Service {
	svc := &Service{
		store:     NewStore(),
		hist:      history.NewLog(),
		adapter:   opts.Adapter,
		people:    opts.People,
		validate:  opts.Validate,
		logger:    opts.Logger,
		observer:  opts.Observer,
		exclusive: opts.ExclusiveGroupMembership,
	}
	if svc.adapter == nil {
		svc.adapter = nopAdapter{}
	}
	if svc.validate == nil {
		translator := core.NewTranslator()
		svc.validate = core.NewValidator(translator)
		user.InitValidators(svc.validate, translator)
	}
	if svc.logger == nil {
		svc.logger = core.NopLogger{}
	}
	return svc
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.observer != nil {
		s.observer.Observe(op, time.Since(start), *err)
	}
}

// Load replaces the engine state with the adapter's persisted state.
func (s *Service) Load(ctx context.Context, loader Loader) (err error) {
	defer s.observe("load", time.Now(), &err)

	snap, err := loader.Load(ctx)
	if err != nil {
		return &PersistenceError{Op: "load", Kind: "*", Err: err}
	}

	store := NewStore()
	if err = store.Restore(snap); err != nil {
		return errors.Wrap(err, "restoring store")
	}
	hist := history.NewLog()
	if err = hist.Restore(snap.History); err != nil {
		return errors.Wrap(err, "restoring history")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	s.hist = hist
	return nil
}

// checkStudent fails with ErrInvalidStudent unless id is a known active student.
func (s *Service) checkStudent(ctx context.Context, id string) error {
	if core.CleanString(id) == "" || s.people == nil {
		return errors.Wrapf(ErrInvalidStudent, "student %q", id)
	}
	usr, err := s.people.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errors.Wrapf(ErrInvalidStudent, "student %q", id)
		}
		return errors.Wrap(err, "finding student")
	}
	if !usr.IsActive || !usr.IsStudent() {
		return errors.Wrapf(ErrInvalidStudent, "student %q", id)
	}
	return nil
}

// checkTeacher validates an optional tutor/teacher reference.
func (s *Service) checkTeacher(ctx context.Context, field, id string) error {
	if id == "" || s.people == nil {
		return nil
	}
	usr, err := s.people.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError(field, "teacher not found")
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsActive || !usr.IsTeacher() {
		return core.NewFieldError(field, "must be an active teacher")
	}
	return nil
}

// Levels

func (s *Service) AddLevel(ctx context.Context, nl NewLevel) (lvl Level, err error) {
	defer s.observe("add_level", time.Now(), &err)
	if err = nl.Validate(s.validate); err != nil {
		return Level{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowFunc().UTC()
	lvl = Level{
		ID:        newID(),
		Name:      nl.Name,
		Order:     nl.Order,
		IsActive:  true,
		Subjects:  cloneLevelSubjects(nl.Subjects),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.persist(ctx, createWrite(KindLevel, lvl.ID, lvl)); err != nil {
		return Level{}, err
	}
	if err = s.store.InsertLevel(lvl); err != nil {
		return Level{}, err
	}
	return lvl.clone(), nil
}

func (s *Service) UpdateLevel(ctx context.Context, id string, lp LevelPatch) (lvl Level, err error) {
	defer s.observe("update_level", time.Now(), &err)
	if err = lp.Validate(s.validate); err != nil {
		return Level{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Level(id)
	if err != nil {
		return Level{}, err
	}
	lvl = prev.clone()
	lp.apply(&lvl)
	lvl.UpdatedAt = nowFunc().UTC()

	if err = s.persist(ctx, updateWrite(KindLevel, id, prev, lvl)); err != nil {
		return Level{}, err
	}
	if err = s.store.ReplaceLevel(lvl); err != nil {
		return Level{}, err
	}
	return lvl.clone(), nil
}

// Groups

func (s *Service) AddGroup(ctx context.Context, ng NewGroup) (grp Group, err error) {
	defer s.observe("add_group", time.Now(), &err)
	if err = ng.Validate(s.validate); err != nil {
		return Group{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err = s.store.Level(ng.LevelID); err != nil {
		return Group{}, err
	}
	if err = s.checkTeacher(ctx, "tutor_id", ng.TutorID); err != nil {
		return Group{}, err
	}

	now := nowFunc().UTC()
	grp = Group{
		ID:           newID(),
		Name:         ng.Name,
		Description:  ng.Description,
		LevelID:      ng.LevelID,
		AcademicYear: ng.AcademicYear,
		MaxCapacity:  ng.MaxCapacity,
		TutorID:      ng.TutorID,
		IsActive:     true,
		StudentIDs:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.persist(ctx, createWrite(KindGroup, grp.ID, grp)); err != nil {
		return Group{}, err
	}
	if err = s.store.InsertGroup(grp); err != nil {
		return Group{}, err
	}
	return grp.clone(), nil
}

// UpdateGroup applies gp. MaxCapacity cannot go below the current occupancy
// and an archived group cannot be re-activated here (see UnarchiveGroup).
func (s *Service) UpdateGroup(ctx context.Context, id string, gp GroupPatch) (grp Group, err error) {
	defer s.observe("update_group", time.Now(), &err)
	if err = gp.Validate(s.validate); err != nil {
		return Group{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Group(id)
	if err != nil {
		return Group{}, err
	}
	if gp.IsActive != nil && *gp.IsActive && prev.IsArchived {
		return Group{}, errors.Wrapf(ErrInactiveGroup, "group %q is archived", id)
	}
	if gp.MaxCapacity != nil && *gp.MaxCapacity < prev.CurrentCapacity {
		return Group{}, errors.Wrapf(ErrCapacityExceeded, "group %q has %d students", id, prev.CurrentCapacity)
	}
	if gp.LevelID != nil {
		if _, err = s.store.Level(*gp.LevelID); err != nil {
			return Group{}, err
		}
	}
	if gp.TutorID != nil {
		if err = s.checkTeacher(ctx, "tutor_id", *gp.TutorID); err != nil {
			return Group{}, err
		}
	}

	grp = prev.clone()
	gp.apply(&grp)
	grp.UpdatedAt = nowFunc().UTC()

	if err = s.persist(ctx, updateWrite(KindGroup, id, prev, grp)); err != nil {
		return Group{}, err
	}
	if err = s.store.ReplaceGroup(grp); err != nil {
		return Group{}, err
	}
	return grp.clone(), nil
}

// Subjects

func (s *Service) AddSubject(ctx context.Context, ns NewSubject) (sub Subject, err error) {
	defer s.observe("add_subject", time.Now(), &err)
	if err = ns.Validate(s.validate); err != nil {
		return Subject{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err = s.store.SubjectByCode(ns.Code); err == nil {
		return Subject{}, core.NewFieldError("code", "a subject with this code already exists")
	}
	levels := make([]SubjectLevel, 0, len(ns.Levels))
	for _, nl := range ns.Levels {
		lvl, err := s.store.Level(nl.LevelID)
		if err != nil {
			return Subject{}, err
		}
		levels = append(levels, newSubjectLevel(nl, lvl))
	}

	now := nowFunc().UTC()
	sub = Subject{
		ID:         newID(),
		Name:       ns.Name,
		Code:       ns.Code,
		Department: ns.Department,
		Credits:    ns.Credits,
		IsActive:   true,
		Levels:     levels,
		Groups:     []SubjectGroup{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.persist(ctx, createWrite(KindSubject, sub.ID, sub)); err != nil {
		return Subject{}, err
	}
	if err = s.store.InsertSubject(sub); err != nil {
		return Subject{}, err
	}
	return sub.clone(), nil
}

func newSubjectLevel(nl NewSubjectLevel, lvl Level) SubjectLevel {
	name := nl.Name
	if name == "" {
		name = lvl.Name
	}
	return SubjectLevel{
		LevelID:      nl.LevelID,
		Name:         name,
		MaxStudents:  nl.MaxStudents,
		Requirements: cloneStrings(nl.Requirements),
	}
}

func (s *Service) UpdateSubject(ctx context.Context, id string, sp SubjectPatch) (sub Subject, err error) {
	defer s.observe("update_subject", time.Now(), &err)
	if err = sp.Validate(s.validate); err != nil {
		return Subject{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Subject(id)
	if err != nil {
		return Subject{}, err
	}
	sub = prev.clone()
	sp.apply(&sub)
	sub.UpdatedAt = nowFunc().UTC()
	if err = s.replaceSubject(ctx, prev, sub); err != nil {
		return Subject{}, err
	}
	return sub.clone(), nil
}

func (s *Service) replaceSubject(ctx context.Context, prev, next Subject) error {
	if err := s.persist(ctx, updateWrite(KindSubject, next.ID, prev, next)); err != nil {
		return err
	}
	return s.store.ReplaceSubject(next)
}

// AddSubjectLevel makes a subject available at one more level.
func (s *Service) AddSubjectLevel(ctx context.Context, subjectID string, nl NewSubjectLevel) (sub Subject, err error) {
	defer s.observe("add_subject_level", time.Now(), &err)
	if err = nl.Validate(s.validate); err != nil {
		return Subject{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Subject(subjectID)
	if err != nil {
		return Subject{}, err
	}
	lvl, err := s.store.Level(nl.LevelID)
	if err != nil {
		return Subject{}, err
	}
	if _, ok := prev.Level(nl.LevelID); ok {
		return Subject{}, core.NewFieldError("level_id", "the subject is already taught at this level")
	}

	sub = prev.clone()
	sub.Levels = append(sub.Levels, newSubjectLevel(nl, lvl))
	sub.UpdatedAt = nowFunc().UTC()
	if err = s.replaceSubject(ctx, prev, sub); err != nil {
		return Subject{}, err
	}
	return sub.clone(), nil
}

// AddSubjectGroup opens a new section of a subject at one of its levels.
func (s *Service) AddSubjectGroup(ctx context.Context, subjectID string, ng NewSubjectGroup) (sg SubjectGroup, err error) {
	defer s.observe("add_subject_group", time.Now(), &err)
	if err = ng.Validate(s.validate); err != nil {
		return SubjectGroup{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Subject(subjectID)
	if err != nil {
		return SubjectGroup{}, err
	}
	if _, ok := prev.Level(ng.LevelID); !ok {
		return SubjectGroup{}, notFound("subject level", ng.LevelID)
	}
	if err = s.checkTeacher(ctx, "teacher_id", ng.TeacherID); err != nil {
		return SubjectGroup{}, err
	}

	sg = SubjectGroup{
		ID:          newID(),
		LevelID:     ng.LevelID,
		Name:        ng.Name,
		TeacherID:   ng.TeacherID,
		MaxStudents: ng.MaxStudents,
		Schedule:    append([]ClassSchedule(nil), ng.Schedule...),
	}
	sub := prev.clone()
	sub.Groups = append(sub.Groups, sg)
	sub.UpdatedAt = nowFunc().UTC()
	if err = s.replaceSubject(ctx, prev, sub); err != nil {
		return SubjectGroup{}, err
	}
	return sg, nil
}

// Enrollments

// UpdateEnrollmentProgress records attendance, grade and notes. Status is not touched.
func (s *Service) UpdateEnrollmentProgress(ctx context.Context, id string, pp ProgressPatch) (enr Enrollment, err error) {
	defer s.observe("update_enrollment_progress", time.Now(), &err)
	if err = pp.Validate(s.validate); err != nil {
		return Enrollment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Enrollment(id)
	if err != nil {
		return Enrollment{}, err
	}
	enr = prev.clone()
	pp.apply(&enr)
	enr.UpdatedAt = nowFunc().UTC()

	if err = s.persist(ctx, updateWrite(KindEnrollment, id, prev, enr)); err != nil {
		return Enrollment{}, err
	}
	if err = s.store.ReplaceEnrollment(enr); err != nil {
		return Enrollment{}, err
	}
	return enr.clone(), nil
}
