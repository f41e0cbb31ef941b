// Package metrics exports scheduler activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ output.TaskObserver = (*Observer)(nil)

type Observer struct {
	registry *prometheus.Registry

	tasksQueued   *prometheus.CounterVec
	tasksFinished *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksRunning  prometheus.Gauge
}

func NewObserver(namespace string) *Observer {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Observer{
		registry: reg,
		tasksQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_queued_total",
				Help:      "Total number of tasks added to the queue",
			},
			[]string{"type"},
		),
		tasksFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_finished_total",
				Help:      "Total number of finished tasks by final status",
			},
			[]string{"type", "status"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task wall-clock execution time in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"type"},
		),
		tasksRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks_running",
				Help:      "Number of tasks currently executing",
			},
		),
	}
}

func (o *Observer) TaskQueued(task entity.Task) {
	o.tasksQueued.WithLabelValues(string(task.Type)).Inc()
}

func (o *Observer) TaskStarted(task entity.Task) {
	o.tasksRunning.Inc()
}

func (o *Observer) TaskFinished(task entity.Task, elapsed time.Duration) {
	o.tasksRunning.Dec()
	o.tasksFinished.WithLabelValues(string(task.Type), string(task.Status)).Inc()
	o.taskDuration.WithLabelValues(string(task.Type)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
