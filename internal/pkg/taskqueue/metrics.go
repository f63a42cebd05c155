package taskqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes queue activity to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	submitted *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	restarts  *prometheus.CounterVec
	pending   prometheus.Gauge
	running   prometheus.Gauge
	workers   prometheus.Gauge
}

// NewMetrics registers the queue collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Labels:
		//   - type: task type (e.g. "thumbnail", "hash")
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaq_tasks_submitted_total",
			Help: "The total number of submitted tasks",
		}, []string{"type"}),

		// Labels:
		//   - status: "succeeded" or "failed"
		//   - type: task type
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaq_tasks_completed_total",
			Help: "The total number of tasks that reached a terminal state",
		}, []string{"status", "type"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediaq_task_duration_seconds",
			Help:    "Time from dispatch to terminal result",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		// Labels:
		//   - reason: "timeout" or "crash"
		restarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaq_worker_restarts_total",
			Help: "The total number of worker processes replaced",
		}, []string{"reason"}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediaq_tasks_pending",
			Help: "Number of tasks waiting for a worker",
		}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediaq_tasks_running",
			Help: "Number of tasks bound to a worker",
		}),
		workers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediaq_workers",
			Help: "Number of live worker processes",
		}),
	}
}

func (m *Metrics) taskSubmitted(taskType string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(taskType).Inc()
}

func (m *Metrics) taskCompleted(r Result) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(string(r.Status), r.TaskType).Inc()
	if d := r.Duration(); d > 0 {
		m.duration.WithLabelValues(r.TaskType).Observe(d.Seconds())
	}
}

func (m *Metrics) workerRestarted(reason string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(reason).Inc()
}

func (m *Metrics) observe(pending, running, workers int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.running.Set(float64(running))
	m.workers.Set(float64(workers))
}
