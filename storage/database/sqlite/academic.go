package sqliterepos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

var ErrRecordNotFound = errors.New("record not found")

type recordRow struct {
	Kind    string `db:"kind"`
	ID      string `db:"id"`
	Payload []byte `db:"payload"`
}

// Adapter stores engine records as JSON documents in a single SQLite table.
type Adapter struct {
	exec core.DBExecutor
}

var (
	_ academic.Adapter = (*Adapter)(nil) // interface compliance check
	_ academic.Loader  = (*Adapter)(nil) // interface compliance check
)

func NewAdapter(exec core.DBExecutor) *Adapter {
	return &Adapter{exec: exec}
}

func knownKind(kind academic.Kind) error {
	for _, k := range academic.Kinds {
		if k == kind {
			return nil
		}
	}
	return errors.Errorf("unknown kind %q", kind)
}

func encode(kind academic.Kind, record interface{}) (recordRow, error) {
	if err := knownKind(kind); err != nil {
		return recordRow{}, err
	}
	id, err := academic.RecordID(record)
	if err != nil {
		return recordRow{}, err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return recordRow{}, errors.Wrapf(err, "encoding %s %q", kind, id)
	}
	return recordRow{Kind: string(kind), ID: id, Payload: payload}, nil
}

func (a *Adapter) Create(ctx context.Context, kind academic.Kind, record interface{}) error {
	row, err := encode(kind, record)
	if err != nil {
		return err
	}
	if _, err = a.exec.NamedExecContext(ctx, "INSERT INTO records (kind, id, payload) VALUES (:kind, :id, :payload)", row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.Errorf("%s %q already exists", kind, row.ID)
		}
		return errors.Wrapf(err, "inserting %s", kind)
	}
	return nil
}

func (a *Adapter) Update(ctx context.Context, kind academic.Kind, id string, patch interface{}) error {
	row, err := encode(kind, patch)
	if err != nil {
		return err
	}
	if row.ID != id {
		return errors.Errorf("%s %q: patch holds record %q", kind, id, row.ID)
	}
	res, err := a.exec.NamedExecContext(ctx, "UPDATE records SET payload = :payload WHERE kind = :kind AND id = :id", row)
	if err != nil {
		return errors.Wrapf(err, "updating %s %q", kind, id)
	}
	return checkAffected(res.RowsAffected, kind, id)
}

func (a *Adapter) Delete(ctx context.Context, kind academic.Kind, id string) error {
	if err := knownKind(kind); err != nil {
		return err
	}
	res, err := a.exec.ExecContext(ctx, "DELETE FROM records WHERE kind = ? AND id = ?", string(kind), id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s %q", kind, id)
	}
	return checkAffected(res.RowsAffected, kind, id)
}

func checkAffected(rowsAffected func() (int64, error), kind academic.Kind, id string) error {
	n, err := rowsAffected()
	if err != nil {
		return errors.Wrapf(err, "%s %q: rows affected", kind, id)
	}
	if n == 0 {
		return errors.Wrapf(ErrRecordNotFound, "%s %q", kind, id)
	}
	return nil
}

// Load decodes every stored record, in insertion order.
func (a *Adapter) Load(ctx context.Context) (*academic.Snapshot, error) {
	var rows []recordRow
	if err := a.exec.SelectContext(ctx, &rows, "SELECT kind, id, payload FROM records ORDER BY rowid"); err != nil {
		return nil, errors.Wrap(err, "loading records")
	}

	snap := new(academic.Snapshot)
	for _, r := range rows {
		var err error
		switch academic.Kind(r.Kind) {
		case academic.KindLevel:
			var v academic.Level
			if err = json.Unmarshal(r.Payload, &v); err == nil {
				snap.Levels = append(snap.Levels, v)
			}
		case academic.KindGroup:
			var v academic.Group
			if err = json.Unmarshal(r.Payload, &v); err == nil {
				snap.Groups = append(snap.Groups, v)
			}
		case academic.KindSubject:
			var v academic.Subject
			if err = json.Unmarshal(r.Payload, &v); err == nil {
				snap.Subjects = append(snap.Subjects, v)
			}
		case academic.KindEnrollment:
			var v academic.Enrollment
			if err = json.Unmarshal(r.Payload, &v); err == nil {
				snap.Enrollments = append(snap.Enrollments, v)
			}
		case academic.KindAssignment:
			var v academic.GroupAssignment
			if err = json.Unmarshal(r.Payload, &v); err == nil {
				snap.Assignments = append(snap.Assignments, v)
			}
		case academic.KindHistory:
			var v history.Entry
			if err = json.Unmarshal(r.Payload, &v); err == nil {
				snap.History = append(snap.History, v)
			}
		default:
			err = errors.New("unknown kind")
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s %q", r.Kind, r.ID)
		}
	}
	return snap, nil
}
