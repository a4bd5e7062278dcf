package dummydb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

var ErrRecordNotFound = errors.New("record not found")

// Adapter stores engine records in memory.
type Adapter struct {
	db *recordTable
}

var (
	_ academic.Adapter = (*Adapter)(nil) // interface compliance check
	_ academic.Loader  = (*Adapter)(nil) // interface compliance check
)

func NewAdapter(db *DB) *Adapter {
	return &Adapter{db: db.records}
}

func (a *Adapter) check(ctx context.Context, op string, kind academic.Kind, id string) error {
	if a.db.fail != nil {
		if err := a.db.fail(ctx, op, kind, id); err != nil {
			return err
		}
	}
	if _, ok := a.db.table[kind]; !ok {
		return errors.Errorf("unknown kind %q", kind)
	}
	return nil
}

func (a *Adapter) Create(ctx context.Context, kind academic.Kind, record interface{}) error {
	id, err := academic.RecordID(record)
	if err != nil {
		return err
	}

	a.db.Lock()
	defer a.db.Unlock()

	if err = a.check(ctx, "create", kind, id); err != nil {
		return err
	}
	if _, ok := a.db.table[kind][id]; ok {
		return errors.Errorf("%s %q already exists", kind, id)
	}
	a.db.table[kind][id] = record
	return nil
}

func (a *Adapter) Update(ctx context.Context, kind academic.Kind, id string, patch interface{}) error {
	a.db.Lock()
	defer a.db.Unlock()

	if err := a.check(ctx, "update", kind, id); err != nil {
		return err
	}
	if _, ok := a.db.table[kind][id]; !ok {
		return errors.Wrapf(ErrRecordNotFound, "%s %q", kind, id)
	}
	a.db.table[kind][id] = patch
	return nil
}

func (a *Adapter) Delete(ctx context.Context, kind academic.Kind, id string) error {
	a.db.Lock()
	defer a.db.Unlock()

	if err := a.check(ctx, "delete", kind, id); err != nil {
		return err
	}
	if _, ok := a.db.table[kind][id]; !ok {
		return errors.Wrapf(ErrRecordNotFound, "%s %q", kind, id)
	}
	delete(a.db.table[kind], id)
	return nil
}

// Load returns every stored record. Records of an unexpected type are reported as errors.
func (a *Adapter) Load(_ context.Context) (*academic.Snapshot, error) {
	a.db.RLock()
	defer a.db.RUnlock()

	snap := new(academic.Snapshot)
	for kind, records := range a.db.table {
		for id, rec := range records {
			var ok bool
			switch kind {
			case academic.KindLevel:
				var v academic.Level
				if v, ok = rec.(academic.Level); ok {
					snap.Levels = append(snap.Levels, v)
				}
			case academic.KindGroup:
				var v academic.Group
				if v, ok = rec.(academic.Group); ok {
					snap.Groups = append(snap.Groups, v)
				}
			case academic.KindSubject:
				var v academic.Subject
				if v, ok = rec.(academic.Subject); ok {
					snap.Subjects = append(snap.Subjects, v)
				}
			case academic.KindEnrollment:
				var v academic.Enrollment
				if v, ok = rec.(academic.Enrollment); ok {
					snap.Enrollments = append(snap.Enrollments, v)
				}
			case academic.KindAssignment:
				var v academic.GroupAssignment
				if v, ok = rec.(academic.GroupAssignment); ok {
					snap.Assignments = append(snap.Assignments, v)
				}
			case academic.KindHistory:
				var v history.Entry
				if v, ok = rec.(history.Entry); ok {
					snap.History = append(snap.History, v)
				}
			}
			if !ok {
				return nil, errors.Errorf("%s %q: unexpected record type %T", kind, id, rec)
			}
		}
	}
	return snap, nil
}
