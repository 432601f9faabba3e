// Package metrics exposes Prometheus metrics for the dial server.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ActiveCallsProvider exposes the number of in-flight call sessions.
type ActiveCallsProvider interface {
	Len() int
}

// DispositionCounter returns finished-call counts grouped by disposition.
type DispositionCounter interface {
	CountByDisposition(ctx context.Context) (map[string]int64, error)
}

// Metrics holds the event counters incremented by the dispatcher and the
// scrape-time collectors.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal          prometheus.Counter
	TranscriptsSaved    prometheus.Counter
	FetchFailures       prometheus.Counter
	GenerationFailures  prometheus.Counter
	DuplicateRecordings prometheus.Counter
}

// New creates the metrics set and registers the scrape-time collector.
// Either provider may be nil if unavailable.
func New(active ActiveCallsProvider, dispositions DispositionCounter, startTime time.Time) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientdial_turns_total",
			Help: "Total patient dialog turns taken across all calls",
		}),
		TranscriptsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientdial_transcripts_saved_total",
			Help: "Total transcript artifacts persisted",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientdial_recording_fetch_failures_total",
			Help: "Total recording downloads that did not complete",
		}),
		GenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientdial_generation_failures_total",
			Help: "Total utterance generation failures",
		}),
		DuplicateRecordings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patientdial_duplicate_recordings_total",
			Help: "Total duplicate recording deliveries skipped",
		}),
	}

	m.registry.MustRegister(
		m.TurnsTotal,
		m.TranscriptsSaved,
		m.FetchFailures,
		m.GenerationFailures,
		m.DuplicateRecordings,
		newCollector(active, dispositions, startTime),
	)

	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// collector gathers state-derived metrics at scrape time.
type collector struct {
	active       ActiveCallsProvider
	dispositions DispositionCounter
	startTime    time.Time

	activeCallsDesc *prometheus.Desc
	callsTotalDesc  *prometheus.Desc
	uptimeDesc      *prometheus.Desc
}

func newCollector(active ActiveCallsProvider, dispositions DispositionCounter, startTime time.Time) *collector {
	return &collector{
		active:       active,
		dispositions: dispositions,
		startTime:    startTime,

		activeCallsDesc: prometheus.NewDesc(
			"patientdial_active_calls",
			"Number of in-flight call sessions",
			nil, nil,
		),
		callsTotalDesc: prometheus.NewDesc(
			"patientdial_calls_total",
			"Total finished calls by disposition",
			[]string{"disposition"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"patientdial_uptime_seconds",
			"Seconds since the server started",
			nil, nil,
		),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeCallsDesc
	ch <- c.callsTotalDesc
	ch <- c.uptimeDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	if c.active != nil {
		ch <- prometheus.MustNewConstMetric(c.activeCallsDesc, prometheus.GaugeValue, float64(c.active.Len()))
	}

	if c.dispositions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		counts, err := c.dispositions.CountByDisposition(ctx)
		if err != nil {
			slog.Warn("collecting call disposition counts", "error", err)
		} else {
			for disposition, count := range counts {
				ch <- prometheus.MustNewConstMetric(c.callsTotalDesc, prometheus.CounterValue, float64(count), disposition)
			}
		}
	}

	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
