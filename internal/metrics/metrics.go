package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters, registered on a dedicated
// registry so repeated construction never collides with process
// globals.
type Metrics struct {
	Registry *prometheus.Registry

	EventsReceived    *prometheus.CounterVec
	EventsIgnored     *prometheus.CounterVec
	DuplicatesSkipped *prometheus.CounterVec
	LedgerEntries     *prometheus.CounterVec
	StageFailures     *prometheus.CounterVec
	UnknownCurrency   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync",
			Name:      "webhook_events_received_total",
			Help:      "Inbound provider events by provider and event name.",
		}, []string{"provider", "event"}),
		EventsIgnored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync",
			Name:      "webhook_events_ignored_total",
			Help:      "Events accepted but outside the sale-event allow-list.",
		}, []string{"provider", "event"}),
		DuplicatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync",
			Name:      "duplicate_deliveries_total",
			Help:      "Retried deliveries detected via unique constraints.",
		}, []string{"table"}),
		LedgerEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync",
			Name:      "ledger_entries_written_total",
			Help:      "Ledger entries written by event type.",
		}, []string{"event_type"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync",
			Name:      "pipeline_stage_failures_total",
			Help:      "Non-critical pipeline stage failures.",
		}, []string{"stage"}),
		UnknownCurrency: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync",
			Name:      "unknown_currency_total",
			Help:      "Conversions that fell back to rate=1 for an unknown code.",
		}, []string{"currency"}),
	}
}
