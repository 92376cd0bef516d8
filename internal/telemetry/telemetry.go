// Package telemetry builds the OpenTelemetry tracer provider for a session.
// Spans are written as JSON lines to a local file; nothing leaves the host.
package telemetry

import (
	"context"
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Config struct {
	Enabled bool
	// Path of the JSONL span file.
	Path    string
	Service string
}

// Provider pairs a tracer provider with its shutdown hook.
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans and closes the span file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// New returns a no-op provider unless cfg.Enabled.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}
	if cfg.Service == "" {
		cfg.Service = "opsclean"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, cerr.Wrap(err, "failed to create telemetry directory")
	}
	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, cerr.Wrap(err, "failed to open telemetry file")
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		file.Close()
		return nil, cerr.Wrap(err, "failed to create file exporter")
	}

	hostname, _ := os.Hostname()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", cfg.Service),
			attribute.String("host.name", hostname),
		)),
	)

	return &Provider{
		TracerProvider: tp,
		shutdown: func(ctx context.Context) error {
			err := tp.Shutdown(ctx)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			return err
		},
	}, nil
}
