package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

// Metrics — Prometheus метрики scheduler и runner.
//
// Все методы безопасны для nil-получателя: компоненты без метрик
// (например, в unit-тестах) просто не передают Metrics в Config.
type Metrics struct {
	scheduled         prometheus.Counter
	scheduleFailures  prometheus.Counter
	outcomes          *prometheus.CounterVec
	executionDuration prometheus.Histogram
	pollErrors        prometheus.Counter
	executing         prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
// Для глобального реестра передайте prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		scheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_scheduled_total",
			Help:      "Tasks persisted by the scheduler.",
		}),
		scheduleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_schedule_failures_total",
			Help:      "Schedule calls rejected with a persistence error.",
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Task executions by published event kind and error reason.",
		}, []string{"kind", "reason"}),
		executionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_execution_duration_seconds",
			Help:      "Duration of transport calls made by the runner.",
			Buckets:   prometheus.DefBuckets,
		}),
		pollErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runner_poll_errors_total",
			Help:      "Poll cycles aborted because the store could not be read.",
		}),
		executing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runner_executing",
			Help:      "1 while the runner has a task in flight.",
		}),
	}
}

// ObserveScheduled учитывает успешно запланированную task.
func (m *Metrics) ObserveScheduled() {
	if m == nil {
		return
	}
	m.scheduled.Inc()
}

// ObserveScheduleFailure учитывает неудачный вызов Schedule.
func (m *Metrics) ObserveScheduleFailure() {
	if m == nil {
		return
	}
	m.scheduleFailures.Inc()
}

// ObserveOutcome учитывает опубликованный результат выполнения.
// reason пустой для успешных выполнений.
func (m *Metrics) ObserveOutcome(kind, reason string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, reason).Inc()
}

// ObserveExecution учитывает длительность вызова transport.
func (m *Metrics) ObserveExecution(d time.Duration) {
	if m == nil {
		return
	}
	m.executionDuration.Observe(d.Seconds())
}

// ObservePollError учитывает ошибку чтения хранилища.
func (m *Metrics) ObservePollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

// SetExecuting отражает, есть ли task в процессе выполнения.
func (m *Metrics) SetExecuting(executing bool) {
	if m == nil {
		return
	}
	if executing {
		m.executing.Set(1)
	} else {
		m.executing.Set(0)
	}
}
