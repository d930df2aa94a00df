package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records per-task job outcomes through OpenTelemetry. The
// exporter registers with the default Prometheus registry, so the instruments
// are served on /metrics next to the client_golang collectors.
//
// A nil *Observability is valid and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("failed to create prometheus exporter: %v", err)
		return nil
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return newWithProvider(provider, serviceName)
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"lead_intake.jobs.processed",
		otelmetric.WithDescription("Zeebe jobs handled, by task type and outcome"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"lead_intake.jobs.duration",
		otelmetric.WithDescription("Zeebe job handling time"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
	}
}

// RecordJob counts one handled job and its duration.
func (o *Observability) RecordJob(ctx context.Context, taskType, status string, d time.Duration) {
	if o == nil || o.jobCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	o.jobCounter.Add(ctx, 1, attrs)
	o.jobDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		log.Printf("meter provider shutdown: %v", err)
	}
}
