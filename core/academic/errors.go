package academic

import (
	"fmt"

	"github.com/pkg/errors"
)

// Business rule violations. They are returned wrapped with context: compare with errors.Cause or errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInactiveGroup       = errors.New("group is not active")
	ErrInactiveSubject     = errors.New("subject is not active")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrDuplicateAssignment = errors.New("student is already assigned to this group")
	ErrAlreadyEnrolled     = errors.New("student already has an active enrollment in this subject")
	ErrInvalidStudent      = errors.New("student does not exist or is not active")
	ErrNotAssigned         = errors.New("student is not a member of this group")
	ErrNonEmptyGroup       = errors.New("group still has students")
	ErrNotArchived         = errors.New("group is not archived")
	ErrDuplicateID         = errors.New("duplicate id")
)

// ErrInvalidSnapshot is returned when persisted state already breaks the capacity rules.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

var ruleViolations = []error{
	ErrInactiveGroup,
	ErrInactiveSubject,
	ErrCapacityExceeded,
	ErrDuplicateAssignment,
	ErrAlreadyEnrolled,
	ErrInvalidStudent,
	ErrNotAssigned,
	ErrNonEmptyGroup,
	ErrNotArchived,
	ErrDuplicateID,
}

// IsRuleViolation reports whether err was caused by a business rule (not found excluded).
func IsRuleViolation(err error) bool {
	cause := errors.Cause(err)
	for _, rv := range ruleViolations {
		if cause == rv {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// PersistenceError wraps a failure of the persistence adapter.
// Partial is set when a multi record write could not be fully reverted,
// meaning the backing store needs to be reloaded.
type PersistenceError struct {
	Op      string
	Kind    Kind
	ID      string
	Partial bool
	Err     error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("persistence: %s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
	if e.Partial {
		msg += " (partially applied)"
	}
	return msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err wraps a *PersistenceError.
func IsPersistenceError(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}
