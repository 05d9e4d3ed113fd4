// Command tunecore is the host-shell CLI: it loads a search
// options file, builds the strategy tree and a compressor instance, runs
// the search, prints the result, and maps failures to the documented exit
// codes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	yaml "gopkg.in/yaml.v3"

	"tunecore/internal/compressor"
	"tunecore/internal/config"
	"tunecore/internal/host"
	"tunecore/internal/observability"
	"tunecore/internal/queue"
	"tunecore/internal/search/objective"
	"tunecore/internal/search/observer"
	"tunecore/internal/search/strategy"

	_ "tunecore/internal/search/strategies" // registers the built-in strategies
)

// Exit codes, informative at the CLI boundary only.
const (
	exitOK                = 0
	exitMissingOutputs    = 1
	exitSearchOrCompError = 2
	exitMissingInputs     = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("tunecore", flag.ContinueOnError)
	optionsPath := fs.String("options", "", "path to a YAML search-options file (opt:*, dist_gridsearch:*, fraz:*, random:*)")
	compressorName := fs.String("compressor", "mock", "compressor backend id (currently only \"mock\" is bundled; a real compression library is an external collaborator)")
	role := fs.String("role", "master", "process role for a distributed dist_gridsearch run: \"master\" drives the search, \"worker\" farms cells dispatched over Kafka")
	if err := fs.Parse(args); err != nil {
		return exitSearchOrCompError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "load config: %v\n", err)
		return exitSearchOrCompError
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	if *role == "worker" {
		opts, err := loadOptions(*optionsPath)
		if err != nil {
			fmt.Fprintf(out, "load options: %v\n", err)
			return exitSearchOrCompError
		}
		return runWorker(cfg, opts, *compressorName, out)
	}

	ctx := context.Background()
	if shutdown, err := observability.InitOTel(ctx, cfg.Obs); err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
	} else {
		defer func() { _ = shutdown(context.Background()) }()
		bridgeLoggerToOTel(cfg)
	}

	opts, err := loadOptions(*optionsPath)
	if err != nil {
		fmt.Fprintf(out, "load options: %v\n", err)
		return exitSearchOrCompError
	}

	if inputs, ok := opts.StringSlice("opt:inputs"); !ok || len(inputs) == 0 {
		fmt.Fprintln(out, "missing opt:inputs")
		return exitMissingInputs
	}
	if outputs, ok := opts.StringSlice("opt:output"); !ok || len(outputs) == 0 {
		fmt.Fprintln(out, "missing opt:output")
		return exitMissingOutputs
	}

	proto, err := buildCompressor(*compressorName)
	if err != nil {
		fmt.Fprintf(out, "build compressor: %v\n", err)
		return exitSearchOrCompError
	}

	searchID, _ := opts.String("opt:search")
	inputs, _ := opts.StringSlice("opt:inputs")
	outputs, _ := opts.StringSlice("opt:output")
	bus, _, err := observer.Build(ctx, cfg, searchID, inputs, outputs)
	if err != nil {
		fmt.Fprintf(out, "build observer bus: %v\n", err)
		return exitSearchOrCompError
	}
	opts["observer"] = bus

	if cfg.Search.Distributed {
		brokers := splitBrokers(cfg.Kafka.Brokers)
		// Topic left empty on the writer: messages set their own Topic
		// (cell tasks here, responses on the worker's writer), and
		// kafka-go rejects setting Topic on both Writer and Message.
		kt := &queue.KafkaTransport{
			Brokers:       brokers,
			TaskTopic:     cfg.Kafka.TaskTopic,
			ResponseTopic: cfg.Kafka.ResponseTopic,
			GroupID:       cfg.Kafka.GroupID,
			Producer:      kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Balancer: &kafka.LeastBytes{}}),
		}
		defer kt.Producer.Close()
		opts["distributed:transport"] = kt
		opts["dist_gridsearch:distributed"] = true
	}

	h, err := host.Build(opts, proto, strategy.Default(), objective.Default)
	if err != nil {
		fmt.Fprintf(out, "build search: %v\n", err)
		return exitSearchOrCompError
	}

	spanCtx, span := otel.Tracer("tunecore/cmd").Start(ctx, "tunecore.search")
	observability.LoggerWithTrace(spanCtx).Info().
		Str("compressor", *compressorName).
		Str("trace_format", cfg.Trace.Format).
		Msg("starting search")
	result := h.Run(spanCtx)
	span.End()
	if result.Status > 0 {
		fmt.Fprintf(out, "search failed: %s\n", result.Msg)
		return exitSearchOrCompError
	}

	fmt.Fprintf(out, "status=%d inputs=%v output=%v", result.Status, result.Inputs, result.Output)
	if result.Msg != "" {
		fmt.Fprintf(out, " msg=%q", result.Msg)
	}
	fmt.Fprintln(out)
	return exitOK
}

// bridgeLoggerToOTel adds an OTelWriter alongside the local writer (stdout,
// or cfg.LogPath's file). The OTelWriter emits through the global OTel
// logger provider; InitOTel installs none, so unless one is installed
// elsewhere those records are dropped and only the local output remains.
func bridgeLoggerToOTel(cfg config.Config) {
	var w io.Writer = os.Stdout
	if cfg.LogPath != "" {
		if f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}
	log.Logger = log.Logger.Output(zerolog.MultiLevelWriter(w, observability.NewOTelWriter(cfg.Obs.ServiceName)))
}

// loadOptions reads a YAML document into a strategy.Options bag. An empty
// path is not an error: an empty options set simply fails downstream
// validation with the documented exit codes.
func loadOptions(path string) (strategy.Options, error) {
	if path == "" {
		return strategy.New(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return strategy.Options(raw), nil
}

// buildCompressor resolves the CLI's bundled compressor backends. The real
// compression library is an out-of-scope external collaborator; the
// CLI bundles only the deterministic mock so the search engine can be
// exercised end-to-end without one.
func buildCompressor(name string) (compressor.Compressor, error) {
	switch name {
	case "mock", "":
		return compressor.NewMock("mock", func(settings map[string]any) compressor.Metrics {
			x, _ := settings["x"].(float64)
			return compressor.Metrics{"cr": 100 * x}
		}), nil
	default:
		return nil, fmt.Errorf("unknown compressor backend %q", name)
	}
}
