// Package queue implements the distributed work queue: a
// 1-master/N-worker scheduler over a point-to-point message layer. Queue
// runs the master/worker loop over in-process channels (a single host
// process running simulated ranks). KafkaTransport (queue/kafka.go) is a
// separate type with its own worker loop, used when tasks are farmed to
// separate worker processes; there is no shared transport interface.
package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tunecore/internal/search/strategy"
)

// Task is a unit of work dispatched by the master and consumed by a
// worker.
type Task struct {
	ID      string
	Payload any
}

// TaskResponse is returned by a worker after running a task.
type TaskResponse struct {
	TaskID  string
	Payload any
	Err     error
}

// Handle is passed to master_fn so it can enqueue follow-on tasks mid-run
// or request the queue stop dispatching new tasks.
type Handle struct {
	q *Queue
}

// Push enqueues a new task for dispatch.
func (h Handle) Push(payload any) {
	h.q.push(Task{ID: uuid.NewString(), Payload: payload})
}

// RequestStop stops the queue from dispatching further pending tasks.
// In-flight workers still run to completion and their responses are
// still folded.
func (h Handle) RequestStop() { h.q.innerStop.RequestStop() }

// TaskHandle is passed to worker_fn so it can observe cooperative stop
// requests originating from either side of the queue.
type TaskHandle struct {
	outer *strategy.StopToken
	inner *strategy.StopToken
}

// StopRequested reports whether either the outer strategy token or the
// inner queue token has been set.
func (h TaskHandle) StopRequested() bool {
	return h.outer.StopRequested() || h.inner.StopRequested()
}

// WorkerFunc runs one task and returns its response payload.
type WorkerFunc func(task Task, handle TaskHandle) (any, error)

// MasterFunc folds one response into the running state. It may call
// handle.Push to enqueue more tasks or handle.RequestStop to stop
// dispatching.
type MasterFunc func(resp TaskResponse, handle Handle)

// Queue is an in-process master/worker scheduler: tasks are dispatched
// over buffered channels to a fixed pool of worker goroutines, mirroring
// the channel-based worker-pool pattern used by the Kafka consumer loop
// (queue/kafka.go) but without the network hop — useful for dist_gridsearch
// recursion and for tests that don't stand up a Kafka broker.
type Queue struct {
	workerCount int
	outerStop   *strategy.StopToken
	innerStop   *strategy.StopToken

	mu      sync.Mutex
	pending []Task
}

// New returns a queue with workerCount worker goroutines, sharing outer as
// the strategy-level StopToken, the "outer" token. The queue owns its
// own "inner" token.
func New(workerCount int, outer *strategy.StopToken) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	if outer == nil {
		outer = strategy.NewStopToken()
	}
	return &Queue{
		workerCount: workerCount,
		outerStop:   outer,
		innerStop:   strategy.NewStopToken(),
	}
}

func (q *Queue) push(t Task) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()
}

// Run starts the session: tasks are drained from initial, dispatched to
// workerCount workers, and each response is folded by masterFn on the
// calling goroutine (so masterFn need not be concurrency-safe). Run
// returns once all pending tasks (including any pushed by masterFn) have
// been dispatched-and-folded or the outer/inner stop has been requested
// and in-flight work has drained.
func (q *Queue) Run(ctx context.Context, initial []Task, workerFn WorkerFunc, masterFn MasterFunc) {
	q.mu.Lock()
	q.pending = append(q.pending, initial...)
	q.mu.Unlock()

	// taskCh is unbuffered: a send completes only when a worker actually
	// picks the task up, so a stop request folds in before any not-yet-
	// started pending task is handed out.
	taskCh := make(chan Task)
	respCh := make(chan TaskResponse, q.workerCount)

	var wg sync.WaitGroup
	wg.Add(q.workerCount)
	for i := 0; i < q.workerCount; i++ {
		go func() {
			defer wg.Done()
			for t := range taskCh {
				payload, err := workerFn(t, TaskHandle{outer: q.outerStop, inner: q.innerStop})
				select {
				case respCh <- TaskResponse{TaskID: t.ID, Payload: payload, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	inFlight := 0
	dispatching := true
	for dispatching {
		q.mu.Lock()
		stopped := q.innerStop.StopRequested() || q.outerStop.StopRequested()
		var next Task
		haveNext := false
		if !stopped && len(q.pending) > 0 {
			next = q.pending[0]
			haveNext = true
		}
		q.mu.Unlock()

		switch {
		case haveNext:
			// Fold any response that becomes ready while the dispatch
			// send is blocked, so masterFn's stop requests take effect
			// before the next hand-out.
			select {
			case taskCh <- next:
				q.mu.Lock()
				q.pending = q.pending[1:]
				q.mu.Unlock()
				inFlight++
			case resp := <-respCh:
				inFlight--
				masterFn(resp, Handle{q: q})
			case <-ctx.Done():
				dispatching = false
			}
		case inFlight > 0:
			select {
			case resp := <-respCh:
				inFlight--
				masterFn(resp, Handle{q: q})
			case <-ctx.Done():
				dispatching = false
			}
		default:
			// Nothing in flight and nothing dispatchable: stopped, or all
			// pending tasks (including any pushed mid-run) have drained.
			dispatching = false
		}
	}

	close(taskCh)
	wg.Wait()
	// Fold responses that landed between the loop's exit and the worker
	// pool winding down (only possible on ctx cancellation).
	for {
		select {
		case resp := <-respCh:
			masterFn(resp, Handle{q: q})
		default:
			return
		}
	}
}
