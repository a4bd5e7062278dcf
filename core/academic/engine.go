package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

// Academic groups

// AssignStudentToGroup adds a student to an academic group.
// Checks run in order and the first failing one wins: group exists, group active,
// room left, not already a member, student valid (then the optional one group per year rule).
func (s *Service) AssignStudentToGroup(ctx context.Context, studentID, groupID, notes string) (asg GroupAssignment, err error) {
	defer s.observe("assign_student", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Group(groupID)
	if err != nil {
		return GroupAssignment{}, err
	}
	if !prev.IsActive || prev.IsArchived {
		return GroupAssignment{}, errors.Wrapf(ErrInactiveGroup, "group %q", groupID)
	}
	if prev.CurrentCapacity >= prev.MaxCapacity {
		return GroupAssignment{}, errors.Wrapf(ErrCapacityExceeded, "group %q is full (%d/%d)", groupID, prev.CurrentCapacity, prev.MaxCapacity)
	}
	if _, ok := s.store.ActiveAssignment(studentID, groupID); ok || prev.HasStudent(studentID) {
		return GroupAssignment{}, errors.Wrapf(ErrDuplicateAssignment, "student %q, group %q", studentID, groupID)
	}
	if err = s.checkStudent(ctx, studentID); err != nil {
		return GroupAssignment{}, err
	}
	if s.exclusive {
		if err = s.checkExclusive(studentID, prev); err != nil {
			return GroupAssignment{}, err
		}
	}

	now := nowFunc().UTC()
	grp := prev.clone()
	grp.StudentIDs = append(grp.StudentIDs, studentID)
	grp.CurrentCapacity = len(grp.StudentIDs)
	grp.UpdatedAt = now

	asg = GroupAssignment{
		ID:         newID(),
		StudentID:  studentID,
		GroupID:    groupID,
		IsActive:   true,
		AssignedAt: now,
		AssignedBy: history.ActorFrom(ctx),
		Notes:      notes,
	}

	err = s.persist(ctx,
		updateWrite(KindGroup, groupID, prev, grp),
		createWrite(KindAssignment, asg.ID, asg),
	)
	if err != nil {
		return GroupAssignment{}, err
	}
	if err = s.store.ReplaceGroup(grp); err != nil {
		return GroupAssignment{}, err
	}
	if err = s.store.InsertAssignment(asg); err != nil {
		return GroupAssignment{}, err
	}

	s.record(ctx, history.Entry{
		StudentID: studentID,
		Type:      history.TypeGroup,
		Action:    history.ActionAssign,
		ToID:      groupID,
		Notes:     notes,
	})
	return asg.clone(), nil
}

// checkExclusive rejects a second active group of the same academic year.
func (s *Service) checkExclusive(studentID string, target Group) error {
	for _, a := range s.store.Assignments(studentID, true) {
		grp, err := s.store.Group(a.GroupID)
		if err != nil {
			continue
		}
		if grp.AcademicYear == target.AcademicYear && !grp.IsArchived {
			return errors.Wrapf(ErrDuplicateAssignment,
				"student %q is already in group %q for %s", studentID, grp.ID, grp.AcademicYear)
		}
	}
	return nil
}

// RemoveStudentFromGroup takes a student out of an academic group.
func (s *Service) RemoveStudentFromGroup(ctx context.Context, studentID, groupID, reason string) (err error) {
	defer s.observe("remove_student", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Group(groupID)
	if err != nil {
		return err
	}
	if !prev.HasStudent(studentID) {
		return errors.Wrapf(ErrNotAssigned, "student %q, group %q", studentID, groupID)
	}

	now := nowFunc().UTC()
	grp := prev.clone()
	ids := make([]string, 0, len(grp.StudentIDs))
	for _, id := range grp.StudentIDs {
		if id != studentID {
			ids = append(ids, id)
		}
	}
	grp.StudentIDs = ids
	grp.CurrentCapacity = floor0(len(ids))
	grp.UpdatedAt = now

	writes := []write{updateWrite(KindGroup, groupID, prev, grp)}
	prevAsg, hasAsg := s.store.ActiveAssignment(studentID, groupID)
	asg := prevAsg.clone()
	if hasAsg {
		asg.IsActive = false
		asg.RemovedAt = &now
		writes = append(writes, updateWrite(KindAssignment, asg.ID, prevAsg, asg))
	}

	if err = s.persist(ctx, writes...); err != nil {
		return err
	}
	if err = s.store.ReplaceGroup(grp); err != nil {
		return err
	}
	if hasAsg {
		if err = s.store.ReplaceAssignment(asg); err != nil {
			return err
		}
	}

	s.record(ctx, history.Entry{
		StudentID: studentID,
		Type:      history.TypeGroup,
		Action:    history.ActionRemove,
		FromID:    groupID,
		Reason:    reason,
	})
	return nil
}

// ArchiveGroup soft-deletes an empty group. Archiving an archived group is allowed.
func (s *Service) ArchiveGroup(ctx context.Context, id, reason string) (err error) {
	defer s.observe("archive_group", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Group(id)
	if err != nil {
		return err
	}
	if prev.CurrentCapacity > 0 {
		return errors.Wrapf(ErrNonEmptyGroup, "group %q has %d students", id, prev.CurrentCapacity)
	}

	grp := prev.clone()
	grp.IsArchived = true
	grp.IsActive = false
	grp.UpdatedAt = nowFunc().UTC()
	if err = s.commitGroup(ctx, prev, grp); err != nil {
		return err
	}

	s.record(ctx, history.Entry{Type: history.TypeGroup, Action: history.ActionArchive, FromID: id, Reason: reason})
	return nil
}

func (s *Service) UnarchiveGroup(ctx context.Context, id, reason string) (err error) {
	defer s.observe("unarchive_group", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Group(id)
	if err != nil {
		return err
	}
	if !prev.IsArchived {
		return errors.Wrapf(ErrNotArchived, "group %q", id)
	}

	grp := prev.clone()
	grp.IsArchived = false
	grp.IsActive = true
	grp.UpdatedAt = nowFunc().UTC()
	if err = s.commitGroup(ctx, prev, grp); err != nil {
		return err
	}

	s.record(ctx, history.Entry{Type: history.TypeGroup, Action: history.ActionUnarchive, ToID: id, Reason: reason})
	return nil
}

func (s *Service) commitGroup(ctx context.Context, prev, next Group) error {
	if err := s.persist(ctx, updateWrite(KindGroup, next.ID, prev, next)); err != nil {
		return err
	}
	return s.store.ReplaceGroup(next)
}

// DeleteGroup hard-deletes an empty group.
func (s *Service) DeleteGroup(ctx context.Context, id, reason string) (err error) {
	defer s.observe("delete_group", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Group(id)
	if err != nil {
		return err
	}
	if prev.CurrentCapacity > 0 {
		return errors.Wrapf(ErrNonEmptyGroup, "group %q has %d students", id, prev.CurrentCapacity)
	}

	if err = s.persist(ctx, deleteWrite(KindGroup, id, prev)); err != nil {
		return err
	}
	if err = s.store.DeleteGroup(id); err != nil {
		return err
	}

	s.record(ctx, history.Entry{Type: history.TypeGroup, Action: history.ActionDelete, FromID: id, Reason: reason})
	return nil
}

// Subject enrollments

// EnrollStudent enrolls a student in a subject group.
// Checks run in order: subject exists, subject active, no active enrollment in the subject,
// level and subject group exist, room left in the subject group, student valid.
func (s *Service) EnrollStudent(ctx context.Context, studentID, subjectID, levelID, groupID, notes string) (enr Enrollment, err error) {
	defer s.observe("enroll_student", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.Subject(subjectID)
	if err != nil {
		return Enrollment{}, err
	}
	if err = s.checkEnrollable(ctx, studentID, prev, levelID, groupID); err != nil {
		return Enrollment{}, err
	}

	now := nowFunc().UTC()
	enr = Enrollment{
		ID:         newID(),
		StudentID:  studentID,
		SubjectID:  subjectID,
		LevelID:    levelID,
		GroupID:    groupID,
		Status:     StatusActive,
		Notes:      notes,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	sub := prev.clone()
	sub.seat(levelID, groupID, 1)
	sub.UpdatedAt = now

	err = s.persist(ctx,
		createWrite(KindEnrollment, enr.ID, enr),
		updateWrite(KindSubject, subjectID, prev, sub),
	)
	if err != nil {
		return Enrollment{}, err
	}
	if err = s.store.InsertEnrollment(enr); err != nil {
		return Enrollment{}, err
	}
	if err = s.store.ReplaceSubject(sub); err != nil {
		return Enrollment{}, err
	}

	s.record(ctx, history.Entry{
		StudentID: studentID,
		Type:      history.TypeSubject,
		Action:    history.ActionEnroll,
		ToID:      groupID,
		Notes:     notes,
	})
	return enr.clone(), nil
}

func (s *Service) checkEnrollable(ctx context.Context, studentID string, sub Subject, levelID, groupID string) error {
	if !sub.IsActive {
		return errors.Wrapf(ErrInactiveSubject, "subject %q", sub.ID)
	}
	if _, ok := s.store.ActiveEnrollment(studentID, sub.ID); ok {
		return errors.Wrapf(ErrAlreadyEnrolled, "student %q, subject %q", studentID, sub.Code)
	}
	sg, err := lookupSubjectGroup(sub, levelID, groupID)
	if err != nil {
		return err
	}
	if err = checkSeats(sg); err != nil {
		return err
	}
	return s.checkStudent(ctx, studentID)
}

// lookupSubjectGroup finds a subject group taught at levelID.
func lookupSubjectGroup(sub Subject, levelID, groupID string) (SubjectGroup, error) {
	if _, ok := sub.Level(levelID); !ok {
		return SubjectGroup{}, notFound("subject level", levelID)
	}
	sg, ok := sub.Group(groupID)
	if !ok || sg.LevelID != levelID {
		return SubjectGroup{}, notFound("subject group", groupID)
	}
	return sg, nil
}

func checkSeats(sg SubjectGroup) error {
	if sg.CurrentStudents >= sg.MaxStudents {
		return errors.Wrapf(ErrCapacityExceeded, "subject group %q is full (%d/%d)", sg.ID, sg.CurrentStudents, sg.MaxStudents)
	}
	return nil
}

// activeEnrollment returns the active enrollment of a student in a subject or ErrNotAssigned.
func (s *Service) activeEnrollment(studentID string, sub Subject) (Enrollment, error) {
	enr, ok := s.store.ActiveEnrollment(studentID, sub.ID)
	if !ok {
		return Enrollment{}, errors.Wrapf(ErrNotAssigned, "student %q has no active enrollment in %q", studentID, sub.Code)
	}
	return enr, nil
}

// RemoveStudent drops the active enrollment of a student in a subject. The record is kept.
func (s *Service) RemoveStudent(ctx context.Context, studentID, subjectID, reason string) (err error) {
	defer s.observe("drop_student", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	prevSub, err := s.store.Subject(subjectID)
	if err != nil {
		return err
	}
	prevEnr, err := s.activeEnrollment(studentID, prevSub)
	if err != nil {
		return err
	}

	now := nowFunc().UTC()
	enr, sub := dropEnrollment(prevEnr, prevSub, now)

	err = s.persist(ctx,
		updateWrite(KindEnrollment, enr.ID, prevEnr, enr),
		updateWrite(KindSubject, subjectID, prevSub, sub),
	)
	if err != nil {
		return err
	}
	if err = s.store.ReplaceEnrollment(enr); err != nil {
		return err
	}
	if err = s.store.ReplaceSubject(sub); err != nil {
		return err
	}

	s.record(ctx, history.Entry{
		StudentID: studentID,
		Type:      history.TypeSubject,
		Action:    history.ActionDrop,
		FromID:    prevEnr.GroupID,
		Reason:    reason,
	})
	return nil
}

func dropEnrollment(prevEnr Enrollment, prevSub Subject, now time.Time) (Enrollment, Subject) {
	enr := prevEnr.clone()
	enr.Status = StatusDropped
	enr.UpdatedAt = now

	sub := prevSub.clone()
	sub.seat(prevEnr.LevelID, prevEnr.GroupID, -1)
	sub.UpdatedAt = now
	return enr, sub
}

// ChangeLevelStudent moves the active enrollment of a student to another level/group of the same subject.
func (s *Service) ChangeLevelStudent(ctx context.Context, studentID, subjectID, newLevelID, newGroupID, reason string) (enr Enrollment, err error) {
	defer s.observe("change_level", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.store.Subject(subjectID)
	if err != nil {
		return Enrollment{}, err
	}
	prevEnr, err := s.activeEnrollment(studentID, sub)
	if err != nil {
		return Enrollment{}, err
	}
	return s.move(ctx, history.ActionChangeLevel, prevEnr, sub, newLevelID, newGroupID, reason)
}

// move swaps level and group of an enrollment in place, within one subject.
func (s *Service) move(ctx context.Context, action string, prevEnr Enrollment, prevSub Subject, levelID, groupID, reason string) (Enrollment, error) {
	if !prevSub.IsActive {
		return Enrollment{}, errors.Wrapf(ErrInactiveSubject, "subject %q", prevSub.ID)
	}
	sg, err := lookupSubjectGroup(prevSub, levelID, groupID)
	if err != nil {
		return Enrollment{}, err
	}
	if prevEnr.GroupID == groupID {
		return Enrollment{}, errors.Wrapf(ErrDuplicateAssignment, "student %q is already in subject group %q", prevEnr.StudentID, groupID)
	}
	if err = checkSeats(sg); err != nil {
		return Enrollment{}, err
	}

	now := nowFunc().UTC()
	enr := prevEnr.clone()
	enr.LevelID = levelID
	enr.GroupID = groupID
	enr.UpdatedAt = now

	sub := prevSub.clone()
	sub.seat(prevEnr.LevelID, prevEnr.GroupID, -1)
	sub.seat(levelID, groupID, 1)
	sub.UpdatedAt = now

	err = s.persist(ctx,
		updateWrite(KindEnrollment, enr.ID, prevEnr, enr),
		updateWrite(KindSubject, sub.ID, prevSub, sub),
	)
	if err != nil {
		return Enrollment{}, err
	}
	if err = s.store.ReplaceEnrollment(enr); err != nil {
		return Enrollment{}, err
	}
	if err = s.store.ReplaceSubject(sub); err != nil {
		return Enrollment{}, err
	}

	s.record(ctx, history.Entry{
		StudentID: enr.StudentID,
		Type:      history.TypeSubject,
		Action:    action,
		FromID:    prevEnr.GroupID,
		ToID:      groupID,
		Reason:    reason,
	})
	return enr.clone(), nil
}

// TransferStudent moves a student from the subject group fromGroupID to toGroupID.
// Within one subject the enrollment is updated in place. Across subjects the old enrollment
// is dropped and a new one created: both steps are validated first and persisted together,
// the drop being reverted if the enrollment cannot be stored.
func (s *Service) TransferStudent(ctx context.Context, studentID, fromGroupID, toSubjectID, toLevelID, toGroupID, reason string) (enr Enrollment, err error) {
	defer s.observe("transfer_student", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	fromSub, err := s.store.SubjectOfGroup(fromGroupID)
	if err != nil {
		return Enrollment{}, err
	}
	prevEnr, err := s.activeEnrollment(studentID, fromSub)
	if err != nil {
		return Enrollment{}, err
	}
	if prevEnr.GroupID != fromGroupID {
		return Enrollment{}, errors.Wrapf(ErrNotAssigned, "student %q, subject group %q", studentID, fromGroupID)
	}

	if toSubjectID == fromSub.ID {
		return s.move(ctx, history.ActionTransfer, prevEnr, fromSub, toLevelID, toGroupID, reason)
	}

	toPrev, err := s.store.Subject(toSubjectID)
	if err != nil {
		return Enrollment{}, err
	}
	if err = s.checkEnrollable(ctx, studentID, toPrev, toLevelID, toGroupID); err != nil {
		return Enrollment{}, err
	}

	now := nowFunc().UTC()
	dropped, fromNext := dropEnrollment(prevEnr, fromSub, now)

	enr = Enrollment{
		ID:         newID(),
		StudentID:  studentID,
		SubjectID:  toSubjectID,
		LevelID:    toLevelID,
		GroupID:    toGroupID,
		Status:     StatusActive,
		Notes:      reason,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	toNext := toPrev.clone()
	toNext.seat(toLevelID, toGroupID, 1)
	toNext.UpdatedAt = now

	err = s.persist(ctx,
		updateWrite(KindEnrollment, dropped.ID, prevEnr, dropped),
		updateWrite(KindSubject, fromSub.ID, fromSub, fromNext),
		createWrite(KindEnrollment, enr.ID, enr),
		updateWrite(KindSubject, toSubjectID, toPrev, toNext),
	)
	if err != nil {
		return Enrollment{}, err
	}
	for _, commit := range []func() error{
		func() error { return s.store.ReplaceEnrollment(dropped) },
		func() error { return s.store.ReplaceSubject(fromNext) },
		func() error { return s.store.InsertEnrollment(enr) },
		func() error { return s.store.ReplaceSubject(toNext) },
	} {
		if err = commit(); err != nil {
			return Enrollment{}, err
		}
	}

	s.record(ctx, history.Entry{
		StudentID: studentID,
		Type:      history.TypeSubject,
		Action:    history.ActionDrop,
		FromID:    fromGroupID,
		Reason:    reason,
	})
	s.record(ctx, history.Entry{
		StudentID: studentID,
		Type:      history.TypeSubject,
		Action:    history.ActionEnroll,
		ToID:      toGroupID,
		Reason:    reason,
	})
	return enr.clone(), nil
}
