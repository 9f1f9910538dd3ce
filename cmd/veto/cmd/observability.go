package cmd

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vetoguard/veto/internal/domain/audit"
)

// setupTracing wires a real OTel SDK TracerProvider backed by the stdout
// exporter, printing one JSON span per decision (and one per audit-trail
// entry: rule matches from simple verbosity up, constraint checks at
// verbose) to stderr. Used by simulate/test's --trace flag; the
// returned shutdown func must be called once the command is done emitting
// spans.
func setupTracing(ctx context.Context) (*audit.Tracer, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return audit.NewTracer(tp.Tracer("veto")), tp.Shutdown, nil
}
