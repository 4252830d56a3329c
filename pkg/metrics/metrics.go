package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metrics
type Metrics struct {
	SchedulesCreated    *prometheus.CounterVec
	SchedulesCompleted  prometheus.Counter
	AdHocCompletions    prometheus.Counter
	SweepTransitions    *prometheus.CounterVec
	SweepDuration       prometheus.Histogram
	RemindersSent       prometheus.Counter
	EscalationsSent     prometheus.Counter
	NotificationsFailed *prometheus.CounterVec
	UpdateConflicts     prometheus.Counter
}

// NewMetrics creates and registers all engine metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		SchedulesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "schedules_created_total",
			Help:      "Total number of schedule items created",
		}, []string{"origin"}),
		SchedulesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "schedules_completed_total",
			Help:      "Total number of schedule items linked to an investigation",
		}),
		AdHocCompletions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "adhoc_completions_total",
			Help:      "Total number of investigations that matched no open window",
		}),
		SweepTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweep_transitions_total",
			Help:      "Total number of state transitions applied by the sweeper",
		}, []string{"transition"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent per sweep cycle",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_sent_total",
			Help:      "Total number of reminder notifications dispatched",
		}),
		EscalationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "escalations_sent_total",
			Help:      "Total number of escalation notifications dispatched",
		}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_failed_total",
			Help:      "Total number of notification delivery failures",
		}, []string{"kind"}),
		UpdateConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "update_conflicts_total",
			Help:      "Total number of optimistic update preconditions that failed",
		}),
	}
}

// New creates metrics with unregistered collectors, for tests and
// embedded use where the default registry would collide.
func New(namespace string) *Metrics {
	return &Metrics{
		SchedulesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_created_total",
			Help:      "Total number of schedule items created",
		}, []string{"origin"}),
		SchedulesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_completed_total",
			Help:      "Total number of schedule items linked to an investigation",
		}),
		AdHocCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adhoc_completions_total",
			Help:      "Total number of investigations that matched no open window",
		}),
		SweepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_transitions_total",
			Help:      "Total number of state transitions applied by the sweeper",
		}, []string{"transition"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent per sweep cycle",
		}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total number of reminder notifications dispatched",
		}),
		EscalationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_sent_total",
			Help:      "Total number of escalation notifications dispatched",
		}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of notification delivery failures",
		}, []string{"kind"}),
		UpdateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_conflicts_total",
			Help:      "Total number of optimistic update preconditions that failed",
		}),
	}
}
