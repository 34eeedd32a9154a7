package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/kitakits"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Command metrics
	CommandsTotal  metric.Int64Counter
	ReportDuration metric.Float64Histogram

	// Webhook metrics
	WebhookMessagesTotal   metric.Int64Counter
	WebhookDuplicatesTotal metric.Int64Counter
	SignatureFailuresTotal metric.Int64Counter

	// Outbound delivery metrics
	DeliveriesTotal       metric.Int64Counter
	DeliveryFailuresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments bind to the global meter provider at first call, so call
// InitTelemetry first when exporting.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.CommandsTotal, _ = meter.Int64Counter(
		"kitakits.commands.total",
		metric.WithDescription("Total number of chat commands processed"),
		metric.WithUnit("{command}"),
	)

	m.ReportDuration, _ = meter.Float64Histogram(
		"kitakits.reports.duration",
		metric.WithDescription("Duration of statistics report generation"),
		metric.WithUnit("ms"),
	)

	m.WebhookMessagesTotal, _ = meter.Int64Counter(
		"kitakits.webhook.messages.total",
		metric.WithDescription("Total number of inbound messages received via webhook"),
		metric.WithUnit("{message}"),
	)

	m.WebhookDuplicatesTotal, _ = meter.Int64Counter(
		"kitakits.webhook.duplicates.total",
		metric.WithDescription("Total number of redelivered messages skipped"),
		metric.WithUnit("{message}"),
	)

	m.SignatureFailuresTotal, _ = meter.Int64Counter(
		"kitakits.webhook.signature_failures.total",
		metric.WithDescription("Total number of webhook requests rejected for a bad signature"),
		metric.WithUnit("{request}"),
	)

	m.DeliveriesTotal, _ = meter.Int64Counter(
		"kitakits.deliveries.total",
		metric.WithDescription("Total number of outbound delivery attempts"),
		metric.WithUnit("{delivery}"),
	)

	m.DeliveryFailuresTotal, _ = meter.Int64Counter(
		"kitakits.deliveries.failures.total",
		metric.WithDescription("Total number of failed outbound deliveries"),
		metric.WithUnit("{delivery}"),
	)

	return m
}
