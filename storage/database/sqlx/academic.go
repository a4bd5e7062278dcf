package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

var ErrRecordNotFound = errors.New("record not found")

type (
	levelRow struct {
		ID        string         `db:"id"`
		Name      string         `db:"name"`
		Position  int            `db:"position"`
		IsActive  bool           `db:"is_active"`
		Subjects  types.JSONText `db:"subjects"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}

	groupRow struct {
		ID              string         `db:"id"`
		Name            string         `db:"name"`
		Description     null.String    `db:"description"`
		LevelID         string         `db:"level_id"`
		AcademicYear    string         `db:"academic_year"`
		MaxCapacity     int            `db:"max_capacity"`
		CurrentCapacity int            `db:"current_capacity"`
		TutorID         null.String    `db:"tutor_id"`
		IsActive        bool           `db:"is_active"`
		IsArchived      bool           `db:"is_archived"`
		StudentIDs      pq.StringArray `db:"student_ids"`
		CreatedAt       time.Time      `db:"created_at"`
		UpdatedAt       time.Time      `db:"updated_at"`
	}

	subjectRow struct {
		ID         string         `db:"id"`
		Name       string         `db:"name"`
		Code       string         `db:"code"`
		Department null.String    `db:"department"`
		Credits    int            `db:"credits"`
		IsActive   bool           `db:"is_active"`
		Levels     types.JSONText `db:"levels"`
		Groups     types.JSONText `db:"sections"`
		CreatedAt  time.Time      `db:"created_at"`
		UpdatedAt  time.Time      `db:"updated_at"`
	}

	enrollmentRow struct {
		ID         string       `db:"id"`
		StudentID  string       `db:"student_id"`
		SubjectID  string       `db:"subject_id"`
		LevelID    string       `db:"level_id"`
		GroupID    string       `db:"group_id"`
		Status     string       `db:"status"`
		Attendance float64      `db:"attendance"`
		Grade      null.Float64 `db:"grade"`
		Notes      null.String  `db:"notes"`
		EnrolledAt time.Time    `db:"enrolled_at"`
		UpdatedAt  time.Time    `db:"updated_at"`
	}

	assignmentRow struct {
		ID         string      `db:"id"`
		StudentID  string      `db:"student_id"`
		GroupID    string      `db:"group_id"`
		IsActive   bool        `db:"is_active"`
		AssignedAt time.Time   `db:"assigned_at"`
		AssignedBy string      `db:"assigned_by"`
		RemovedAt  null.Time   `db:"removed_at"`
		Notes      null.String `db:"notes"`
	}

	historyRow struct {
		ID        int64       `db:"id"`
		StudentID null.String `db:"student_id"`
		Type      string      `db:"type"`
		Action    string      `db:"action"`
		FromID    null.String `db:"from_id"`
		ToID      null.String `db:"to_id"`
		Reason    null.String `db:"reason"`
		ChangedBy string      `db:"changed_by"`
		ChangedAt time.Time   `db:"changed_at"`
		Notes     null.String `db:"notes"`
	}
)

func optString(s string) null.String {
	return null.NewString(s, s != "")
}

// jsonText encodes v, nil slices as empty arrays.
func jsonText(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		b = []byte("[]")
	}
	return types.JSONText(b), nil
}

func nonNil(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ss)
}

func toLevelRow(l academic.Level) (levelRow, error) {
	subjects, err := jsonText(l.Subjects)
	if err != nil {
		return levelRow{}, errors.Wrap(err, "encoding level subjects")
	}
	return levelRow{
		ID:        l.ID,
		Name:      l.Name,
		Position:  l.Order,
		IsActive:  l.IsActive,
		Subjects:  subjects,
		CreatedAt: l.CreatedAt.UTC(),
		UpdatedAt: l.UpdatedAt.UTC(),
	}, nil
}

func (r levelRow) level() (academic.Level, error) {
	l := academic.Level{
		ID:        r.ID,
		Name:      r.Name,
		Order:     r.Position,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := r.Subjects.Unmarshal(&l.Subjects); err != nil {
		return academic.Level{}, errors.Wrapf(err, "decoding level %q subjects", r.ID)
	}
	return l, nil
}

func toGroupRow(g academic.Group) groupRow {
	return groupRow{
		ID:              g.ID,
		Name:            g.Name,
		Description:     optString(g.Description),
		LevelID:         g.LevelID,
		AcademicYear:    g.AcademicYear,
		MaxCapacity:     g.MaxCapacity,
		CurrentCapacity: g.CurrentCapacity,
		TutorID:         optString(g.TutorID),
		IsActive:        g.IsActive,
		IsArchived:      g.IsArchived,
		StudentIDs:      nonNil(g.StudentIDs),
		CreatedAt:       g.CreatedAt.UTC(),
		UpdatedAt:       g.UpdatedAt.UTC(),
	}
}

func (r groupRow) group() academic.Group {
	return academic.Group{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description.String,
		LevelID:         r.LevelID,
		AcademicYear:    r.AcademicYear,
		MaxCapacity:     r.MaxCapacity,
		CurrentCapacity: r.CurrentCapacity,
		TutorID:         r.TutorID.String,
		IsActive:        r.IsActive,
		IsArchived:      r.IsArchived,
		StudentIDs:      []string(r.StudentIDs),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func toSubjectRow(s academic.Subject) (subjectRow, error) {
	levels, err := jsonText(s.Levels)
	if err != nil {
		return subjectRow{}, errors.Wrap(err, "encoding subject levels")
	}
	groups, err := jsonText(s.Groups)
	if err != nil {
		return subjectRow{}, errors.Wrap(err, "encoding subject groups")
	}
	return subjectRow{
		ID:         s.ID,
		Name:       s.Name,
		Code:       s.Code,
		Department: optString(s.Department),
		Credits:    s.Credits,
		IsActive:   s.IsActive,
		Levels:     levels,
		Groups:     groups,
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
	}, nil
}

func (r subjectRow) subject() (academic.Subject, error) {
	s := academic.Subject{
		ID:         r.ID,
		Name:       r.Name,
		Code:       r.Code,
		Department: r.Department.String,
		Credits:    r.Credits,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if err := r.Levels.Unmarshal(&s.Levels); err != nil {
		return academic.Subject{}, errors.Wrapf(err, "decoding subject %q levels", r.ID)
	}
	if err := r.Groups.Unmarshal(&s.Groups); err != nil {
		return academic.Subject{}, errors.Wrapf(err, "decoding subject %q groups", r.ID)
	}
	return s, nil
}

func toEnrollmentRow(e academic.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:         e.ID,
		StudentID:  e.StudentID,
		SubjectID:  e.SubjectID,
		LevelID:    e.LevelID,
		GroupID:    e.GroupID,
		Status:     string(e.Status),
		Attendance: e.Attendance,
		Grade:      null.Float64FromPtr(e.Grade),
		Notes:      optString(e.Notes),
		EnrolledAt: e.EnrolledAt.UTC(),
		UpdatedAt:  e.UpdatedAt.UTC(),
	}
}

func (r enrollmentRow) enrollment() academic.Enrollment {
	return academic.Enrollment{
		ID:         r.ID,
		StudentID:  r.StudentID,
		SubjectID:  r.SubjectID,
		LevelID:    r.LevelID,
		GroupID:    r.GroupID,
		Status:     academic.EnrollmentStatus(r.Status),
		Attendance: r.Attendance,
		Grade:      r.Grade.Ptr(),
		Notes:      r.Notes.String,
		EnrolledAt: r.EnrolledAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func toAssignmentRow(a academic.GroupAssignment) assignmentRow {
	row := assignmentRow{
		ID:         a.ID,
		StudentID:  a.StudentID,
		GroupID:    a.GroupID,
		IsActive:   a.IsActive,
		AssignedAt: a.AssignedAt.UTC(),
		AssignedBy: a.AssignedBy,
		Notes:      optString(a.Notes),
	}
	if a.RemovedAt != nil {
		row.RemovedAt = null.TimeFrom(a.RemovedAt.UTC())
	}
	return row
}

func (r assignmentRow) assignment() academic.GroupAssignment {
	a := academic.GroupAssignment{
		ID:         r.ID,
		StudentID:  r.StudentID,
		GroupID:    r.GroupID,
		IsActive:   r.IsActive,
		AssignedAt: r.AssignedAt.UTC(),
		AssignedBy: r.AssignedBy,
		Notes:      r.Notes.String,
	}
	if r.RemovedAt.Valid {
		t := r.RemovedAt.Time.UTC()
		a.RemovedAt = &t
	}
	return a
}

func toHistoryRow(e history.Entry) historyRow {
	return historyRow{
		ID:        e.ID,
		StudentID: optString(e.StudentID),
		Type:      string(e.Type),
		Action:    e.Action,
		FromID:    optString(e.FromID),
		ToID:      optString(e.ToID),
		Reason:    optString(e.Reason),
		ChangedBy: e.ChangedBy,
		ChangedAt: e.ChangedAt.UTC(),
		Notes:     optString(e.Notes),
	}
}

func (r historyRow) entry() history.Entry {
	return history.Entry{
		ID:        r.ID,
		StudentID: r.StudentID.String,
		Type:      history.Type(r.Type),
		Action:    r.Action,
		FromID:    r.FromID.String,
		ToID:      r.ToID.String,
		Reason:    r.Reason.String,
		ChangedBy: r.ChangedBy,
		ChangedAt: r.ChangedAt.UTC(),
		Notes:     r.Notes.String,
	}
}

// table maps a record kind to its SQL table.
type table struct {
	name    string
	columns []string // id first
	order   string
	toRow   func(record interface{}) (interface{}, error)
}

func (t table) insertQuery() string {
	return "INSERT INTO " + t.name + " (" + strings.Join(t.columns, ", ") +
		") VALUES (:" + strings.Join(t.columns, ", :") + ")"
}

func (t table) updateQuery() string {
	sets := make([]string, 0, len(t.columns)-1)
	for _, col := range t.columns[1:] {
		sets = append(sets, col+" = :"+col)
	}
	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE id = :id"
}

func (t table) selectQuery() string {
	return "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name + " ORDER BY " + t.order
}

func unexpected(kind academic.Kind, record interface{}) error {
	return errors.Errorf("%s: unexpected record type %T", kind, record)
}

var tables = map[academic.Kind]table{
	academic.KindLevel: {
		name:    "levels",
		columns: []string{"id", "name", "position", "is_active", "subjects", "created_at", "updated_at"},
		order:   "position, created_at",
		toRow: func(record interface{}) (interface{}, error) {
			l, ok := record.(academic.Level)
			if !ok {
				return nil, unexpected(academic.KindLevel, record)
			}
			return toLevelRow(l)
		},
	},
	academic.KindGroup: {
		name: "academic_groups",
		columns: []string{
			"id", "name", "description", "level_id", "academic_year", "max_capacity", "current_capacity",
			"tutor_id", "is_active", "is_archived", "student_ids", "created_at", "updated_at",
		},
		order: "created_at",
		toRow: func(record interface{}) (interface{}, error) {
			g, ok := record.(academic.Group)
			if !ok {
				return nil, unexpected(academic.KindGroup, record)
			}
			return toGroupRow(g), nil
		},
	},
	academic.KindSubject: {
		name:    "subjects",
		columns: []string{"id", "name", "code", "department", "credits", "is_active", "levels", "sections", "created_at", "updated_at"},
		order:   "created_at",
		toRow: func(record interface{}) (interface{}, error) {
			s, ok := record.(academic.Subject)
			if !ok {
				return nil, unexpected(academic.KindSubject, record)
			}
			return toSubjectRow(s)
		},
	},
	academic.KindEnrollment: {
		name: "enrollments",
		columns: []string{
			"id", "student_id", "subject_id", "level_id", "group_id", "status", "attendance",
			"grade", "notes", "enrolled_at", "updated_at",
		},
		order: "enrolled_at",
		toRow: func(record interface{}) (interface{}, error) {
			e, ok := record.(academic.Enrollment)
			if !ok {
				return nil, unexpected(academic.KindEnrollment, record)
			}
			return toEnrollmentRow(e), nil
		},
	},
	academic.KindAssignment: {
		name:    "group_assignments",
		columns: []string{"id", "student_id", "group_id", "is_active", "assigned_at", "assigned_by", "removed_at", "notes"},
		order:   "assigned_at",
		toRow: func(record interface{}) (interface{}, error) {
			a, ok := record.(academic.GroupAssignment)
			if !ok {
				return nil, unexpected(academic.KindAssignment, record)
			}
			return toAssignmentRow(a), nil
		},
	},
	academic.KindHistory: {
		name:    "assignment_history",
		columns: []string{"id", "student_id", "type", "action", "from_id", "to_id", "reason", "changed_by", "changed_at", "notes"},
		order:   "id",
		toRow: func(record interface{}) (interface{}, error) {
			e, ok := record.(history.Entry)
			if !ok {
				return nil, unexpected(academic.KindHistory, record)
			}
			return toHistoryRow(e), nil
		},
	},
}

func tableOf(kind academic.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, errors.Errorf("unknown kind %q", kind)
	}
	return t, nil
}

// Adapter stores engine records in PostgreSQL, one table per record kind.
type Adapter struct {
	db core.DB
}

var (
	_ academic.Adapter = (*Adapter)(nil) // interface compliance check
	_ academic.Loader  = (*Adapter)(nil) // interface compliance check
)

func NewAdapter(db core.DB) *Adapter {
	return &Adapter{db: db}
}

func (a *Adapter) Create(ctx context.Context, kind academic.Kind, record interface{}) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	row, err := t.toRow(record)
	if err != nil {
		return err
	}
	if _, err = a.db.NamedExecContext(ctx, t.insertQuery(), row); err != nil {
		return errors.Wrapf(err, "inserting %s", kind)
	}
	return nil
}

func (a *Adapter) Update(ctx context.Context, kind academic.Kind, id string, patch interface{}) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	recID, err := academic.RecordID(patch)
	if err != nil {
		return err
	}
	if recID != id {
		return errors.Errorf("%s %q: patch holds record %q", kind, id, recID)
	}
	row, err := t.toRow(patch)
	if err != nil {
		return err
	}
	res, err := a.db.NamedExecContext(ctx, t.updateQuery(), row)
	if err != nil {
		return errors.Wrapf(err, "updating %s %q", kind, id)
	}
	return checkAffected(res.RowsAffected, kind, id)
}

func (a *Adapter) Delete(ctx context.Context, kind academic.Kind, id string) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	res, err := a.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = $1", id)
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

// Load reads every table into a snapshot, inside one read-only repeatable read transaction
// so that concurrent writers cannot leave it half updated.
func (a *Adapter) Load(ctx context.Context) (snap *academic.Snapshot, err error) {
	var tx core.DBTransactor
	tx, err = a.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "starting snapshot transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			snap, err = nil, errors.Wrap(err, "closing snapshot transaction")
		}
	}()
	return loadSnapshot(ctx, tx)
}

func loadSnapshot(ctx context.Context, exec core.DBExecutor) (*academic.Snapshot, error) {
	snap := new(academic.Snapshot)

	var levels []levelRow
	if err := exec.SelectContext(ctx, &levels, tables[academic.KindLevel].selectQuery()); err != nil {
		return nil, errors.Wrap(err, "loading levels")
	}
	for _, r := range levels {
		l, err := r.level()
		if err != nil {
			return nil, err
		}
		snap.Levels = append(snap.Levels, l)
	}

	var groups []groupRow
	if err := exec.SelectContext(ctx, &groups, tables[academic.KindGroup].selectQuery()); err != nil {
		return nil, errors.Wrap(err, "loading groups")
	}
	for _, r := range groups {
		snap.Groups = append(snap.Groups, r.group())
	}

	var subjects []subjectRow
	if err := exec.SelectContext(ctx, &subjects, tables[academic.KindSubject].selectQuery()); err != nil {
		return nil, errors.Wrap(err, "loading subjects")
	}
	for _, r := range subjects {
		s, err := r.subject()
		if err != nil {
			return nil, err
		}
		snap.Subjects = append(snap.Subjects, s)
	}

	var enrollments []enrollmentRow
	if err := exec.SelectContext(ctx, &enrollments, tables[academic.KindEnrollment].selectQuery()); err != nil {
		return nil, errors.Wrap(err, "loading enrollments")
	}
	for _, r := range enrollments {
		snap.Enrollments = append(snap.Enrollments, r.enrollment())
	}

	var assignments []assignmentRow
	if err := exec.SelectContext(ctx, &assignments, tables[academic.KindAssignment].selectQuery()); err != nil {
		return nil, errors.Wrap(err, "loading group assignments")
	}
	for _, r := range assignments {
		snap.Assignments = append(snap.Assignments, r.assignment())
	}

	var entries []historyRow
	if err := exec.SelectContext(ctx, &entries, tables[academic.KindHistory].selectQuery()); err != nil {
		return nil, errors.Wrap(err, "loading history")
	}
	for _, r := range entries {
		snap.History = append(snap.History, r.entry())
	}
	return snap, nil
}
