// Package metrics wires OpenTelemetry tracer and meter providers for the
// detection engine.
package metrics

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "modscan"

type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider holds the tracer, meter and the engine's instruments.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	scans        metric.Int64Counter
	hits         metric.Int64Counter
	vpnChecks    metric.Int64Counter
	urlScans     metric.Int64Counter
	scanDuration metric.Float64Histogram

	shutdown []func(context.Context) error
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	p := &Provider{
		tracer: tracenoop.NewTracerProvider().Tracer(""),
		meter:  metricnoop.NewMeterProvider().Meter(""),
	}
	p.initInstruments()
	return p
}

// NewProvider configures OTLP exporters. When disabled it returns Noop().
func NewProvider(ctx context.Context, cfg Config, log *zap.Logger) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Service == "" {
		cfg.Service = instrumentationName
	}

	log.Info("telemetry enabled",
		zap.String("protocol", strings.ToLower(cfg.Protocol)),
		zap.String("endpoint", cfg.Endpoint))

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	var (
		spanExp   sdktrace.SpanExporter
		metricExp sdkmetric.Exporter
	)
	switch strings.ToLower(cfg.Protocol) {
	case "", "grpc":
		if spanExp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()); err != nil {
			return nil, err
		}
		if metricExp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure()); err != nil {
			return nil, err
		}
	case "http":
		if spanExp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()); err != nil {
			return nil, err
		}
		if metricExp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure()); err != nil {
			return nil, err
		}
	default:
		return nil, errUnknownProtocol(cfg.Protocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p := &Provider{
		Enabled:  true,
		tracer:   tp.Tracer(instrumentationName),
		meter:    mp.Meter(instrumentationName),
		shutdown: []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}
	p.initInstruments()
	return p, nil
}

// NewWithMeterProvider builds a provider on an existing meter provider,
// used by tests with a manual reader.
func NewWithMeterProvider(mp metric.MeterProvider) *Provider {
	p := &Provider{
		Enabled: true,
		tracer:  tracenoop.NewTracerProvider().Tracer(""),
		meter:   mp.Meter(instrumentationName),
	}
	p.initInstruments()
	return p
}

type errUnknownProtocol string

func (e errUnknownProtocol) Error() string {
	return "telemetry protocol must be grpc or http, got " + strconv.Quote(string(e))
}

func (p *Provider) initInstruments() {
	// Instrument errors are ignored; telemetry is best-effort.
	p.scans, _ = p.meter.Int64Counter("modscan_scans_total")
	p.hits, _ = p.meter.Int64Counter("modscan_hits_total")
	p.vpnChecks, _ = p.meter.Int64Counter("modscan_vpn_checks_total")
	p.urlScans, _ = p.meter.Int64Counter("modscan_url_scans_total")
	p.scanDuration, _ = p.meter.Float64Histogram("modscan_scan_duration_ms")
}

func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Shutdown flushes exporters.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	for _, fn := range p.shutdown {
		_ = fn(ctx)
	}
}

// RecordScan counts one finished scan with its status, hits and duration.
func (p *Provider) RecordScan(ctx context.Context, kind, status string, hits int, durMs float64) {
	if p == nil {
		return
	}
	kindAttr := metric.WithAttributes(attribute.String("kind", kind))
	p.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("status", status)))
	if hits > 0 {
		p.hits.Add(ctx, int64(hits), kindAttr)
	}
	p.scanDuration.Record(ctx, durMs, kindAttr)
}

func (p *Provider) RecordVpnCheck(ctx context.Context, flagged bool, source string) {
	if p == nil {
		return
	}
	p.vpnChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("flagged", flagged),
		attribute.String("source", source),
	))
}

func (p *Provider) RecordUrlScan(ctx context.Context, status string) {
	if p == nil {
		return
	}
	p.urlScans.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
