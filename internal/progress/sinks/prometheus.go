package sinks

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// PrometheusSink exports task progress metrics via Prometheus. It owns all
// collectors for tasks started/completed/active and per-task step counters.
type PrometheusSink struct {
	tasksStarted   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksActive    prometheus.Gauge
	taskDepth      prometheus.Histogram

	advancements *prometheus.CounterVec
	stepsAtClose *prometheus.HistogramVec

	tracker *taskTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_tasks_started_total",
			Help: "Total tasks registered, partitioned by whether they ran on the primary stack.",
		}, []string{"primary"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_tasks_completed_total",
			Help: "Total tasks completed, partitioned by whether they ran on the primary stack.",
		}, []string{"primary"}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progress_tasks_active",
			Help: "Tasks registered but not yet completed across all stacks.",
		}),
		taskDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "progress_task_depth",
			Help:    "Nesting depth of tasks when they start.",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
		}),
		advancements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_task_advancements_total",
			Help: "Step advancements partitioned by task name.",
		}, []string{"task"}),
		stepsAtClose: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "progress_task_steps",
			Help:    "Steps a task had started when it completed.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"task"}),
		tracker: newTaskTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.tasksStarted,
		s.tasksCompleted,
		s.tasksActive,
		s.taskDepth,
		s.advancements,
		s.stepsAtClose,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	primary := strconv.FormatBool(evt.Primary)
	switch evt.Kind {
	case progress.KindNew:
		s.tasksStarted.WithLabelValues(primary).Inc()
		s.taskDepth.Observe(float64(max(evt.Depth, 0)))
		if s.tracker.start(evt.TaskID) {
			s.tasksActive.Inc()
		}
	case progress.KindAdvance:
		s.advancements.WithLabelValues(evt.Task).Inc()
	case progress.KindDone:
		s.tasksCompleted.WithLabelValues(primary).Inc()
		s.stepsAtClose.WithLabelValues(evt.Task).Observe(float64(evt.StepIndex + 1))
		if s.tracker.complete(evt.TaskID) {
			s.tasksActive.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type taskTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newTaskTracker() *taskTracker {
	return &taskTracker{running: make(map[[16]byte]struct{})}
}

func (t *taskTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *taskTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
