package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planovo_events_emitted_total",
			Help: "Total events emitted onto the bus by event name",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planovo_events_dropped_total",
			Help: "Events dropped before dispatch by reason (closed, chain_depth)",
		},
		[]string{"reason"},
	)

	HandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planovo_handler_failures_total",
			Help: "Handler errors and recovered panics by event name",
		},
		[]string{"event"},
	)

	BusQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planovo_bus_queue_depth",
			Help: "Deliveries currently waiting in the bus queue",
		},
	)

	RuleExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planovo_rule_executions_total",
			Help: "Automation rule outcomes by event name and status (ok, error, condition_error)",
		},
		[]string{"event", "status"},
	)

	TextGenTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planovo_textgen_tokens_total",
			Help: "Total tokens consumed by the text generation client",
		},
	)

	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planovo_report_generation_seconds",
			Help:    "Daily report generation latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		},
	)
)
