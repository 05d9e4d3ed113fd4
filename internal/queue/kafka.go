package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"tunecore/internal/search/strategy"
)

// KafkaTransport farms Task/TaskResponse pairs across a Kafka topic pair
// instead of in-process channels, using a consumer worker-pool loop:
// a reader fetches messages into a channel, a fixed pool of goroutines
// handles them with bounded retries, and a task still failing after
// retries is answered on ResponseTopic with a response carrying the error
// instead of blocking the partition forever. Task/TaskResponse payloads must be JSON-serializable
// to cross the wire, unlike the in-process transport which carries native
// Go values.
type KafkaTransport struct {
	Brokers       []string
	TaskTopic     string
	ResponseTopic string
	GroupID       string
	Producer      *kafka.Writer
	Dedupe        DedupeStore
	DedupeTTL     time.Duration
}

type wireTask struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type wireResponse struct {
	TaskID  string          `json:"task_id"`
	Payload json.RawMessage `json:"payload"`
	Err     string          `json:"err,omitempty"`
}

// Produce marshals payload and writes it to the task topic keyed by a
// freshly minted task ID, returning that ID so the caller can correlate
// the eventual response.
func (kt *KafkaTransport) Produce(ctx context.Context, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kafka transport: marshal task payload: %w", err)
	}
	id := uuid.NewString()
	wt := wireTask{ID: id, Payload: raw}
	body, err := json.Marshal(wt)
	if err != nil {
		return "", err
	}
	if err := kt.Producer.WriteMessages(ctx, kafka.Message{
		Topic: kt.TaskTopic,
		Key:   []byte(id),
		Value: body,
	}); err != nil {
		return "", fmt.Errorf("kafka transport: produce task %s: %w", id, err)
	}
	return id, nil
}

// KafkaWorkerFunc mirrors WorkerFunc but works over the JSON payload
// already decoded from the wire.
type KafkaWorkerFunc func(ctx context.Context, taskID string, payload json.RawMessage) (any, error)

// RunWorker consumes tasks from TaskTopic until ctx is canceled or stop is
// requested, writing one TaskResponse to ResponseTopic per task. Each task
// ID is recorded in Dedupe after a successful response is published, so a
// redelivered message (Kafka's at-least-once guarantee) is answered again
// without re-running workerFn.
func (kt *KafkaTransport) RunWorker(ctx context.Context, workerCount int, stop *strategy.StopToken, workerFn KafkaWorkerFunc) error {
	if workerCount < 1 {
		workerCount = 1
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kt.Brokers,
		GroupID:  kt.GroupID,
		Topic:    kt.TaskTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	jobs := make(chan kafka.Message, workerCount*4)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for msg := range jobs {
				kt.handleOne(ctx, workerFn, msg)
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Printf("queue: kafka commit failed (partition=%d offset=%d): %v", msg.Partition, msg.Offset, err)
				}
			}
		}()
	}

	func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil || stop.StopRequested() {
				return
			}
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				log.Printf("queue: kafka fetch error: %v", err)
				continue
			}
			select {
			case jobs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return ctx.Err()
}

func (kt *KafkaTransport) handleOne(ctx context.Context, workerFn KafkaWorkerFunc, msg kafka.Message) {
	var wt wireTask
	if err := json.Unmarshal(msg.Value, &wt); err != nil {
		log.Printf("queue: kafka malformed task: %v", err)
		return
	}

	if kt.Dedupe != nil {
		if cached, err := kt.Dedupe.Get(ctx, wt.ID); err == nil && cached != "" {
			// Redelivery of a task this worker already finished: replay the
			// cached response instead of re-running a whole grid cell's
			// inner search (or, worse, dropping the redelivery and leaving
			// the master's cell count permanently short).
			if err := kt.Producer.WriteMessages(ctx, kafka.Message{
				Topic: kt.ResponseTopic,
				Key:   []byte(wt.ID),
				Value: []byte(cached),
			}); err != nil {
				log.Printf("queue: kafka replay cached response %s: %v", wt.ID, err)
			}
			return
		}
	}

	const maxAttempts = 3
	var (
		payload any
		workErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		payload, workErr = workerFn(ctx, wt.ID, wt.Payload)
		if workErr == nil {
			break
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	respBody, err := json.Marshal(payload)
	if err != nil {
		workErr = fmt.Errorf("marshal response payload: %w", err)
		respBody = nil
	}
	wr := wireResponse{TaskID: wt.ID, Payload: respBody}
	if workErr != nil {
		wr.Err = workErr.Error()
	}
	body, err := json.Marshal(wr)
	if err != nil {
		log.Printf("queue: kafka marshal response envelope: %v", err)
		return
	}
	if err := kt.Producer.WriteMessages(ctx, kafka.Message{
		Topic: kt.ResponseTopic,
		Key:   []byte(wt.ID),
		Value: body,
	}); err != nil {
		log.Printf("queue: kafka publish response %s: %v", wt.ID, err)
		return
	}

	if kt.Dedupe != nil {
		if err := kt.Dedupe.Set(ctx, wt.ID, string(body), kt.DedupeTTL); err != nil {
			log.Printf("queue: kafka dedupe record %s: %v", wt.ID, err)
		}
	}
}

// ConsumeResponses reads TaskResponse envelopes from ResponseTopic until
// ctx is canceled, folding each into masterFn on the calling goroutine.
func (kt *KafkaTransport) ConsumeResponses(ctx context.Context, masterFn func(TaskResponse)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kt.Brokers,
		GroupID:  kt.GroupID + ".responses",
		Topic:    kt.ResponseTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			log.Printf("queue: kafka response fetch error: %v", err)
			continue
		}
		var wr wireResponse
		if err := json.Unmarshal(m.Value, &wr); err != nil {
			log.Printf("queue: kafka malformed response: %v", err)
			reader.CommitMessages(ctx, m)
			continue
		}
		var respErr error
		if wr.Err != "" {
			respErr = errors.New(wr.Err)
		}
		masterFn(TaskResponse{TaskID: wr.TaskID, Payload: wr.Payload, Err: respErr})
		if err := reader.CommitMessages(ctx, m); err != nil {
			log.Printf("queue: kafka response commit failed: %v", err)
		}
	}
}
