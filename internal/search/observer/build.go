package observer

import (
	"context"
	"fmt"

	"tunecore/internal/config"
	"tunecore/internal/objectstore"
	"tunecore/internal/persistence/databases"
)

// Build assembles the default observation bus for a host run: a
// ProgressPrinter for human-readable progress, a Recorder backed by the
// sink selected via cfg.Trace.Format (csv, postgres, or s3), and an OTel
// sink whenever the process has OTel configured (NewOTelObserver works
// against a no-op provider when it isn't, so it's always safe to add).
// The returned Recorder is handed back separately so a caller can
// Suppress it around evaluations that must not produce a trace row.
func Build(ctx context.Context, cfg config.Config, strategyName string, inputNames, outputNames []string) (*Composite, *Recorder, error) {
	sink, err := buildSink(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("observer: build sink: %w", err)
	}

	rec := NewRecorder(sink, inputNames, outputNames)

	bus := New()
	bus.Add("progress", NewProgressPrinter(nil, 0, 1))
	bus.Add("recorder", rec)

	if otelObs, err := NewOTelObserver(strategyName); err == nil {
		bus.Add("otel", otelObs)
	}

	return bus, rec, nil
}

// buildSink resolves the pluggable record_search:io_format backend named
// by cfg.Trace.Format. This selector lives at the host-configuration
// level rather than as a strategy.Options key: it governs how the host
// shell records a run's trace, not how a strategy searches, so it is
// read once at host-build time instead of being threaded through
// opt:search.
func buildSink(ctx context.Context, cfg config.Config) (Sink, error) {
	switch cfg.Trace.Format {
	case "", "csv":
		path := cfg.Trace.Path
		if path == "" {
			path = "tunecore_trace.csv"
		}
		return NewCSVSink(path), nil
	case "postgres":
		pool, err := databases.OpenPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres sink: %w", err)
		}
		runID := cfg.Trace.RunID
		if runID == "" {
			runID = "default"
		}
		return NewPostgresSink(pool, runID), nil
	case "s3":
		store, err := objectstore.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		key := cfg.Trace.S3Key
		if key == "" {
			key = "tunecore_trace.csv"
		}
		return NewS3Sink(store, key), nil
	default:
		return nil, fmt.Errorf("unknown record_search:io_format %q", cfg.Trace.Format)
	}
}
