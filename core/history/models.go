package history

import (
	"time"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
)

// Type tells which kind of membership an Entry is about.
type Type string

const (
	TypeGroup   Type = "group"   // academic group assignment
	TypeSubject Type = "subject" // subject group enrollment
)

func (t Type) Valid() bool {
	return t == TypeGroup || t == TypeSubject
}

// Actions
const (
	ActionAssign      = "assign"
	ActionRemove      = "remove"
	ActionArchive     = "archive"
	ActionUnarchive   = "unarchive"
	ActionDelete      = "delete"
	ActionEnroll      = "enroll"
	ActionDrop        = "drop"
	ActionTransfer    = "transfer"
	ActionChangeLevel = "change_level"
)

// Entry is an immutable record of a membership change.
// StudentID is empty for group level events (archive, delete...).
type Entry struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"student_id,omitempty"`
	Type      Type      `json:"type"`
	Action    string    `json:"action"`
	FromID    string    `json:"from_id,omitempty"`
	ToID      string    `json:"to_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"` // UTC
	Notes     string    `json:"notes,omitempty"`
}

// Filter selects entries; zero fields match everything. From and To are inclusive.
type Filter struct {
	StudentID string    `query:"student_id"`
	Type      Type      `query:"type" validate:"omitempty,oneof=group subject"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
	Limit     int       `query:"limit" validate:"gte=0"`
}

func (f *Filter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.Type = Type(core.CleanString(string(f.Type), true /* lower */))
}

func (f Filter) Match(e Entry) bool {
	if f.StudentID != "" && e.StudentID != f.StudentID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && e.ChangedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.ChangedAt.After(f.To) {
		return false
	}
	return true
}
