package academic

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

// Kind names a persisted record collection.
type Kind string

const (
	KindLevel      Kind = "level"
	KindGroup      Kind = "group"
	KindSubject    Kind = "subject"
	KindEnrollment Kind = "enrollment"
	KindAssignment Kind = "assignment"
	KindHistory    Kind = "history"
)

var Kinds = []Kind{KindLevel, KindGroup, KindSubject, KindEnrollment, KindAssignment, KindHistory}

type (
	// Adapter translates engine mutations to a backing datastore.
	// record and patch are values of the engine types (Group, Subject, history.Entry...);
	// patch always holds the full next state of the record.
	// Calls complete or fail independently of each other.
	Adapter interface {
		Create(ctx context.Context, kind Kind, record interface{}) error
		Update(ctx context.Context, kind Kind, id string, patch interface{}) error
		Delete(ctx context.Context, kind Kind, id string) error
	}

	// Loader is implemented by adapters able to hydrate the engine at startup.
	Loader interface {
		Load(ctx context.Context) (*Snapshot, error)
	}

	// Snapshot is the full persisted state.
	Snapshot struct {
		Levels      []Level           `json:"levels"`
		Groups      []Group           `json:"groups"`
		Subjects    []Subject         `json:"subjects"`
		Enrollments []Enrollment      `json:"enrollments"`
		Assignments []GroupAssignment `json:"assignments"`
		History     []history.Entry   `json:"history"`
	}
)

// RecordID returns the id of an engine record value.
func RecordID(record interface{}) (string, error) {
	switch r := record.(type) {
	case Level:
		return r.ID, nil
	case Group:
		return r.ID, nil
	case Subject:
		return r.ID, nil
	case Enrollment:
		return r.ID, nil
	case GroupAssignment:
		return r.ID, nil
	case history.Entry:
		return strconv.FormatInt(r.ID, 10), nil
	default:
		return "", errors.Errorf("unsupported record type %T", record)
	}
}

type nopAdapter struct{}

func (nopAdapter) Create(context.Context, Kind, interface{}) error         { return nil }
func (nopAdapter) Update(context.Context, Kind, string, interface{}) error { return nil }
func (nopAdapter) Delete(context.Context, Kind, string) error              { return nil }

// RetryingAdapter retries failed adapter calls with a linear back-off.
type RetryingAdapter struct {
	next     Adapter
	attempts int
	delay    time.Duration
	logger   core.Logger
}

var _ Adapter = (*RetryingAdapter)(nil) // interface compliance check

// NewRetryingAdapter wraps next so each call is tried up to attempts times,
// waiting delay*attempt between tries.
func NewRetryingAdapter(next Adapter, attempts int, delay time.Duration, logger core.Logger) *RetryingAdapter {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &RetryingAdapter{next: next, attempts: attempts, delay: delay, logger: logger}
}

// Unwrap returns the wrapped adapter.
func (r *RetryingAdapter) Unwrap() Adapter { return r.next }

func (r *RetryingAdapter) do(ctx context.Context, desc string, call func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		r.logger.Warn("persistence call failed, retrying", err, map[string]interface{}{"call": desc, "attempt": attempt})
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), desc)
		case <-time.After(time.Duration(attempt) * r.delay):
		}
	}
	return errors.Wrapf(err, "%s: giving up after %d attempts", desc, r.attempts)
}

func (r *RetryingAdapter) Create(ctx context.Context, kind Kind, record interface{}) error {
	return r.do(ctx, "create "+string(kind), func() error { return r.next.Create(ctx, kind, record) })
}

func (r *RetryingAdapter) Update(ctx context.Context, kind Kind, id string, patch interface{}) error {
	return r.do(ctx, "update "+string(kind)+" "+id, func() error { return r.next.Update(ctx, kind, id, patch) })
}

func (r *RetryingAdapter) Delete(ctx context.Context, kind Kind, id string) error {
	return r.do(ctx, "delete "+string(kind)+" "+id, func() error { return r.next.Delete(ctx, kind, id) })
}

// Load forwards to the wrapped adapter when it is a Loader.
func (r *RetryingAdapter) Load(ctx context.Context) (*Snapshot, error) {
	loader, ok := r.next.(Loader)
	if !ok {
		return &Snapshot{}, nil
	}
	var snap *Snapshot
	err := r.do(ctx, "load", func() error {
		var err error
		snap, err = loader.Load(ctx)
		return err
	})
	return snap, err
}
