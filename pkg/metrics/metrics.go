// Package metrics collects pipeline and worker pool counters in a private
// Prometheus registry. The registry can be dumped in the text exposition
// format with WriteFile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/parser"
)

const namespace = "cppillr"

// Metrics implements pool.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	tasksQueued   prometheus.Counter
	tasksInFlight prometheus.Gauge
	taskDuration  prometheus.Histogram
	files         *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	bytesRead     prometheus.Counter
	functions     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		tasksQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_queued_total",
			Help:      "Tasks handed to the worker pool.",
		}),
		tasksInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_in_flight",
			Help:      "Tasks currently running on a worker.",
		}),
		taskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_duration_seconds",
			Help:      "Time spent running a task.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		files: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lexer",
			Name:      "tokens_total",
			Help:      "Tokens produced, by kind.",
		}, []string{"kind"}),
		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lexer",
			Name:      "bytes_read_total",
			Help:      "Bytes consumed by the lexer.",
		}),
		functions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "functions_total",
			Help:      "Function definitions found by the first parsing phase.",
		}),
	}
}

func (m *Metrics) TaskQueued() { m.tasksQueued.Inc() }

func (m *Metrics) TaskStarted() { m.tasksInFlight.Inc() }

func (m *Metrics) TaskFinished(d time.Duration) {
	m.tasksInFlight.Dec()
	m.taskDuration.Observe(d.Seconds())
}

func (m *Metrics) FileLexed(r *lexer.Result) {
	m.files.WithLabelValues("lex", "ok").Inc()
	m.bytesRead.Add(float64(r.BytesRead))
	for _, t := range r.Tokens {
		m.tokens.WithLabelValues(t.Kind.String()).Inc()
	}
}

func (m *Metrics) FileParsed(r *parser.Result) {
	m.files.WithLabelValues("parse", "ok").Inc()
	m.functions.Add(float64(len(r.Functions)))
}

// FileFailed counts a file dropped at stage ("lex" or "parse") because of
// an error of the given kind.
func (m *Metrics) FileFailed(stage, outcome string) {
	m.files.WithLabelValues(stage, outcome).Inc()
}

// WriteFile writes every metric to path in the Prometheus text format,
// replacing the file atomically.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
