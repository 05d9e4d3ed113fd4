package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"tunecore/internal/config"
	"tunecore/internal/host"
	"tunecore/internal/queue"
	"tunecore/internal/search/objective"
	"tunecore/internal/search/strategies"
	"tunecore/internal/search/strategy"
)

// splitBrokers turns the config's comma-separated broker list into the
// slice kafka-go's Writer/Reader configs expect.
func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// runWorker farms dist_gridsearch cells dispatched over Kafka:
// it rebuilds its own evaluator from the same opt:* configuration the
// master used (the master's eval closure cannot cross the wire, since it
// closes over an in-process Compressor instance) and answers one
// strategies.GridCellTask at a time with a strategies.GridCellResult.
func runWorker(cfg config.Config, opts strategy.Options, compressorName string, out io.Writer) int {
	proto, err := buildCompressor(compressorName)
	if err != nil {
		fmt.Fprintf(out, "build compressor: %v\n", err)
		return exitSearchOrCompError
	}
	eval, err := host.BuildEvaluator(opts, proto, objective.Default)
	if err != nil {
		fmt.Fprintf(out, "build evaluator: %v\n", err)
		return exitSearchOrCompError
	}

	brokers := splitBrokers(cfg.Kafka.Brokers)
	// Topic left empty on the writer itself: individual messages set their
	// own Topic (task responses here, cell tasks on the master's writer),
	// and kafka-go rejects setting Topic on both Writer and Message.
	kt := &queue.KafkaTransport{
		Brokers:       brokers,
		TaskTopic:     cfg.Kafka.TaskTopic,
		ResponseTopic: cfg.Kafka.ResponseTopic,
		GroupID:       cfg.Kafka.GroupID,
		Producer:      kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Balancer: &kafka.LeastBytes{}}),
		DedupeTTL:     time.Duration(cfg.Redis.DedupeTTLSeconds) * time.Second,
	}
	defer kt.Producer.Close()

	if cfg.Redis.Addr != "" {
		dedupe, err := queue.NewRedisDedupeStore(cfg.Redis.Addr)
		if err != nil {
			log.Warn().Err(err).Msg("redis dedupe store unavailable, continuing without idempotency cache")
		} else {
			kt.Dedupe = dedupe
			defer dedupe.Close()
		}
	}

	workerFn := func(ctx context.Context, taskID string, payload json.RawMessage) (any, error) {
		var task strategies.GridCellTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return nil, fmt.Errorf("unmarshal grid cell task: %w", err)
		}
		cell, err := strategy.Default().Instantiate(task.InnerID)
		if err != nil {
			return nil, fmt.Errorf("instantiate inner strategy %q: %w", task.InnerID, err)
		}
		cellOpts := strategy.New()
		cellOpts["opt:lower_bound"] = task.Bounds.Lower
		cellOpts["opt:upper_bound"] = task.Bounds.Upper
		cellOpts["opt:objective_mode_name"] = task.ObjectiveMode
		cellOpts["opt:global_rel_tolerance"] = task.GlobalRelTolerance
		if task.Target != nil {
			cellOpts["opt:target"] = *task.Target
		}
		if err := cell.SetOptions(cellOpts); err != nil {
			return strategies.GridCellResult{Bounds: task.Bounds, Result: strategy.SearchResult{Status: 1, Msg: err.Error()}}, nil
		}
		res := cell.Search(eval, strategy.NewStopToken())
		return strategies.GridCellResult{Bounds: task.Bounds, Result: res}, nil
	}

	log.Info().Str("task_topic", cfg.Kafka.TaskTopic).Int("workers", cfg.Search.WorkerCount).Msg("starting dist_gridsearch worker")
	stop := strategy.NewStopToken()
	if err := kt.RunWorker(context.Background(), cfg.Search.WorkerCount, stop, workerFn); err != nil {
		fmt.Fprintf(out, "worker: %v\n", err)
		return exitSearchOrCompError
	}
	return exitOK
}
