package metricsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", want: OutcomeOK},
		{name: "not found", err: errors.Wrap(academic.ErrNotFound, "group g1"), want: OutcomeNotFound},
		{name: "rule", err: errors.Wrap(academic.ErrCapacityExceeded, "group g1"), want: OutcomeRejected},
		{name: "validation", err: core.NewFieldError("name", "required"), want: OutcomeRejected},
		{name: "persistence", err: &academic.PersistenceError{Op: "create", Err: errors.New("down")}, want: OutcomePersistence},
		{name: "other", err: errors.New("boom"), want: OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestObserver(t *testing.T) {
	obs := NewObserver()
	obs.Observe("assign_student", time.Millisecond, nil)
	obs.Observe("assign_student", time.Millisecond, errors.Wrap(academic.ErrCapacityExceeded, "g1"))
	obs.Observe("enroll", 2*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.ops.WithLabelValues("assign_student", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.ops.WithLabelValues("assign_student", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.ops.WithLabelValues("enroll", OutcomeOK)))
	assert.Equal(t, 2, testutil.CollectAndCount(obs.duration))
}

func TestObserver_engine(t *testing.T) {
	ctx := context.Background()
	obs := NewObserver()
	eng := academic.NewService(academic.Options{Observer: obs})
	obs.WatchOccupancy(eng)

	lvl, err := eng.AddLevel(ctx, academic.NewLevel{Name: "Primaria"})
	require.NoError(t, err)
	_, err = eng.AddGroup(ctx, academic.NewGroup{Name: "1ºA", LevelID: lvl.ID, AcademicYear: "2024-2025", MaxCapacity: 25})
	require.NoError(t, err)
	_, err = eng.GetGroup("nope")
	require.Error(t, err)
	_, err = eng.AssignStudentToGroup(ctx, "s1", "nope", "")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.ops.WithLabelValues("assign_student", OutcomeNotFound)))

	expected := `
# HELP mwpanel_students_assigned Distinct students holding a seat in an academic group.
# TYPE mwpanel_students_assigned gauge
mwpanel_students_assigned 0
`
	assert.NoError(t, testutil.GatherAndCompare(obs.Registry(), strings.NewReader(expected), "mwpanel_students_assigned"))

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mwpanel_engine_operations_total")
}
