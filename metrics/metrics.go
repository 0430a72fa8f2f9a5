// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package metrics implements OpenTelemetry and Prometheus metrics
// collection for the resolver: inbound query counts, resolution
// outcomes, referral-hop depth, errors, and end-to-end query latency
// per inbound transport.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics manages OpenTelemetry and Prometheus metric collection.
type Metrics struct {
	queryCounter     metric.Int64Counter
	outcomeCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	hopsRecorder     metric.Int64Histogram
	latencyRecorder  metric.Float64Histogram
	prometheusAddr   string
	prometheusServer *http.Server
}

// New initializes metrics with OpenTelemetry and/or Prometheus endpoints.
func New(otelEndpoint string, prometheusEndpoint string) (*Metrics, error) {
	m := &Metrics{
		prometheusAddr: prometheusEndpoint,
	}

	// Metrics are enabled if at least one endpoint is provided
	if otelEndpoint == "" && prometheusEndpoint == "" {
		return m, nil
	}

	ctx := context.Background()

	var readers []sdkmetric.Reader

	if otelEndpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(otelEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			slog.Warn("failed to create OTLP exporter", "error", err)
		} else {
			readers = append(readers, sdkmetric.NewPeriodicReader(exporter))
			slog.Info("OTLP exporter configured", "endpoint", otelEndpoint)
		}
	}

	if prometheusEndpoint != "" {
		promExporter, err := prometheus.New()
		if err != nil {
			slog.Warn("failed to create Prometheus exporter", "error", err)
		} else {
			readers = append(readers, promExporter)
			slog.Info("Prometheus exporter configured", "endpoint", prometheusEndpoint)
		}
	}

	if len(readers) == 0 {
		slog.Warn("no metric exporters configured")
		return m, nil
	}

	var opts []sdkmetric.Option
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	meterProvider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	meter := otel.Meter("dnstk")

	queryCounter, err := meter.Int64Counter(
		"dnstk.queries.total",
		metric.WithDescription("Total inbound DNS queries accepted by the server"),
	)
	if err != nil {
		slog.Warn("failed to create query counter", "error", err)
		return m, nil
	}

	outcomeCounter, err := meter.Int64Counter(
		"dnstk.resolutions.total",
		metric.WithDescription("Resolution outcomes (noerror/nxdomain/refused/servfail)"),
	)
	if err != nil {
		slog.Warn("failed to create outcome counter", "error", err)
		return m, nil
	}

	errorCounter, err := meter.Int64Counter(
		"dnstk.errors.total",
		metric.WithDescription("Total errors (parse, transport, ACL-denied)"),
	)
	if err != nil {
		slog.Warn("failed to create error counter", "error", err)
		return m, nil
	}

	hopsRecorder, err := meter.Int64Histogram(
		"dnstk.resolution.hops",
		metric.WithDescription("Number of referral hops a resolution took"),
	)
	if err != nil {
		slog.Warn("failed to create hops recorder", "error", err)
		return m, nil
	}

	latencyRecorder, err := meter.Float64Histogram(
		"dnstk.query.latency_ms",
		metric.WithDescription("End-to-end query latency in milliseconds"),
	)
	if err != nil {
		slog.Warn("failed to create latency recorder", "error", err)
		return m, nil
	}

	m.queryCounter = queryCounter
	m.outcomeCounter = outcomeCounter
	m.errorCounter = errorCounter
	m.hopsRecorder = hopsRecorder
	m.latencyRecorder = latencyRecorder

	if m.prometheusAddr != "" {
		if err := m.startPrometheusServer(); err != nil {
			slog.Warn("failed to start Prometheus server", "error", err)
		}
	}

	return m, nil
}

// RecordQuery records an inbound query, labeled by transport (udp/tcp)
// and query type.
func (m *Metrics) RecordQuery(transport string, qtype string) {
	if m.queryCounter == nil {
		return
	}

	m.queryCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("transport", transport),
			attribute.String("qtype", qtype),
		),
	)
}

// RecordOutcome records the rcode a resolution ended with.
func (m *Metrics) RecordOutcome(rcode string) {
	if m.outcomeCounter == nil {
		return
	}

	m.outcomeCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("rcode", rcode),
		),
	)
}

// RecordError records an error, labeled by the stage it occurred in.
func (m *Metrics) RecordError(stage string, errType string) {
	if m.errorCounter == nil {
		return
	}

	m.errorCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("type", errType),
		),
	)
}

// RecordHops records how many referral hops a resolution took.
func (m *Metrics) RecordHops(hops int) {
	if m.hopsRecorder == nil {
		return
	}

	m.hopsRecorder.Record(context.Background(), int64(hops))
}

// RecordLatency records total query latency in milliseconds, labeled
// by the inbound transport.
func (m *Metrics) RecordLatency(transport string, latencyMs float64) {
	if m.latencyRecorder == nil {
		return
	}

	m.latencyRecorder.Record(context.Background(), latencyMs,
		metric.WithAttributes(
			attribute.String("transport", transport),
		),
	)
}

// startPrometheusServer starts the HTTP server for Prometheus metrics
func (m *Metrics) startPrometheusServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := m.prometheusAddr
	m.prometheusServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		slog.Info("starting Prometheus metrics server", "endpoint", addr+"/metrics")
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Prometheus metrics server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the Prometheus metrics server
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}
