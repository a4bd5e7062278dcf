package history

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidType = errors.New("invalid history entry type")
	ErrOutOfOrder  = errors.New("history entries are out of order")

	nowFunc = time.Now // mockable
)

// Log is an append-only, in-memory sequence of entries.
// Ids strictly increase and timestamps never go backwards.
// It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	lastID  int64
}

func NewLog() *Log {
	return &Log{}
}

// Record appends e and returns the stored entry with its id and timestamp set.
func (l *Log) Record(e Entry) (Entry, error) {
	if !e.Type.Valid() {
		return Entry{}, errors.Wrapf(ErrInvalidType, "%q", e.Type)
	}
	if e.ChangedBy == "" {
		e.ChangedBy = SystemActor
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := nowFunc().UTC()
	if n := len(l.entries); n > 0 {
		if last := l.entries[n-1].ChangedAt; now.Before(last) {
			now = last
		}
	}
	l.lastID++
	e.ID = l.lastID
	e.ChangedAt = now
	l.entries = append(l.entries, e)
	return e, nil
}

// Restore loads previously persisted entries into an empty log.
func (l *Log) Restore(entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID || sorted[i].ChangedAt.Before(sorted[i-1].ChangedAt) {
			return errors.Wrapf(ErrOutOfOrder, "entry %d", sorted[i].ID)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 0 {
		return errors.New("restoring a non-empty history log")
	}
	l.entries = sorted
	if n := len(sorted); n > 0 {
		l.lastID = sorted[n-1].ID
	}
	return nil
}

// Query returns the matching entries, oldest first.
// With a positive filter.Limit only the most recent matches are kept.
func (l *Log) Query(filter Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res := make([]Entry, 0)
	for _, e := range l.entries {
		if filter.Match(e) {
			res = append(res, e)
		}
	}
	if filter.Limit > 0 && len(res) > filter.Limit {
		res = res[len(res)-filter.Limit:]
	}
	return res
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}
