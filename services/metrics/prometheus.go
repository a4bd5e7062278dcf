package metricsvc

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
)

const namespace = "mwpanel"

// outcomes
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeRejected    = "rejected" // business rule or invalid input
	OutcomePersistence = "persistence_error"
	OutcomeError       = "error"
)

// Outcome classifies an engine operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case academic.IsNotFound(err):
		return OutcomeNotFound
	case academic.IsPersistenceError(err):
		return OutcomePersistence
	case academic.IsRuleViolation(err), isValidation(err):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func isValidation(err error) bool {
	var verrs validator.ValidationErrors
	return core.IsValidationError(err) || errors.As(err, &verrs)
}

// Observer records engine operations as Prometheus metrics.
type Observer struct {
	reg      *prometheus.Registry
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ academic.Observer = (*Observer)(nil) // interface compliance check

func NewObserver() *Observer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Observer{
		reg: reg,
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency, persistence included.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"op"}),
	}
}

func (o *Observer) Observe(op string, took time.Duration, err error) {
	o.ops.WithLabelValues(op, Outcome(err)).Inc()
	o.duration.WithLabelValues(op).Observe(took.Seconds())
}

// WatchOccupancy exports the dashboard figures of eng as gauges, computed at scrape time.
func (o *Observer) WatchOccupancy(eng *academic.Service) {
	factory := promauto.With(o.reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "occupancy_percent",
		Help:      "Assigned students over the capacity of the groups that are not archived.",
	}, func() float64 { return eng.Dashboard().Occupancy })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "students_assigned",
		Help:      "Distinct students holding a seat in an academic group.",
	}, func() float64 { return float64(eng.Dashboard().StudentsAssigned) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_enrollments",
		Help:      "Active subject enrollments.",
	}, func() float64 { return float64(eng.Dashboard().ActiveEnrollments) })
}

// Registry returns the registry holding every metric of the observer.
func (o *Observer) Registry() *prometheus.Registry {
	return o.reg
}

// Handler serves the metrics in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{})
}
