package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunecore/internal/search/strategy"
)

func TestQueue_DispatchesAndFoldsAllTasks(t *testing.T) {
	t.Parallel()
	q := New(3, strategy.NewStopToken())

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{ID: string(rune('a' + i)), Payload: i}
	}

	worker := func(task Task, h TaskHandle) (any, error) {
		return task.Payload.(int) * 2, nil
	}

	var mu sync.Mutex
	sum := 0
	count := 0
	master := func(resp TaskResponse, h Handle) {
		mu.Lock()
		defer mu.Unlock()
		sum += resp.Payload.(int)
		count++
	}

	q.Run(context.Background(), tasks, worker, master)

	assert.Equal(t, 10, count)
	assert.Equal(t, 90, sum) // 2*(0+1+...+9)
}

func TestQueue_HandlePush_EnqueuesMidRun(t *testing.T) {
	t.Parallel()
	q := New(1, strategy.NewStopToken())

	initial := []Task{{ID: "seed", Payload: 0}}
	worker := func(task Task, h TaskHandle) (any, error) {
		return task.Payload.(int), nil
	}

	var mu sync.Mutex
	seen := []int{}
	master := func(resp TaskResponse, h Handle) {
		mu.Lock()
		defer mu.Unlock()
		v := resp.Payload.(int)
		seen = append(seen, v)
		if v == 0 {
			h.Push(1)
		}
	}

	q.Run(context.Background(), initial, worker, master)

	assert.ElementsMatch(t, []int{0, 1}, seen)
}

func TestQueue_Handle_RequestStop_StopsDispatchingPending(t *testing.T) {
	t.Parallel()
	q := New(1, strategy.NewStopToken())

	tasks := []Task{{ID: "1", Payload: 1}, {ID: "2", Payload: 2}, {ID: "3", Payload: 3}}
	worker := func(task Task, h TaskHandle) (any, error) {
		return task.Payload, nil
	}

	var mu sync.Mutex
	folded := 0
	master := func(resp TaskResponse, h Handle) {
		mu.Lock()
		defer mu.Unlock()
		folded++
		h.RequestStop()
	}

	q.Run(context.Background(), tasks, worker, master)

	// At least the first task folds before stop is observed; not all three
	// pending tasks need run.
	assert.GreaterOrEqual(t, folded, 1)
	assert.Less(t, folded, 3)
}

func TestTaskHandle_StopRequested_ChecksBothTokens(t *testing.T) {
	t.Parallel()
	outer := strategy.NewStopToken()
	inner := strategy.NewStopToken()
	h := TaskHandle{outer: outer, inner: inner}
	assert.False(t, h.StopRequested())

	outer.RequestStop()
	assert.True(t, h.StopRequested())

	outer2 := strategy.NewStopToken()
	inner2 := strategy.NewStopToken()
	inner2.RequestStop()
	h2 := TaskHandle{outer: outer2, inner: inner2}
	assert.True(t, h2.StopRequested())
}

func TestQueue_OuterStopRequested_BeforeRun_NoWorkDispatched(t *testing.T) {
	t.Parallel()
	outer := strategy.NewStopToken()
	outer.RequestStop()
	q := New(2, outer)

	tasks := []Task{{ID: "1", Payload: 1}}
	called := false
	worker := func(task Task, h TaskHandle) (any, error) {
		called = true
		return nil, nil
	}
	master := func(resp TaskResponse, h Handle) {}

	q.Run(context.Background(), tasks, worker, master)
	assert.False(t, called)
}

func TestQueue_MinimumOneWorker(t *testing.T) {
	t.Parallel()
	q := New(0, nil)
	assert.Equal(t, 1, q.workerCount)
	require.NotNil(t, q.outerStop)
	require.NotNil(t, q.innerStop)
}

func TestQueue_InFlightCompletesAfterStop(t *testing.T) {
	t.Parallel()
	q := New(1, strategy.NewStopToken())

	tasks := []Task{{ID: "1", Payload: 1}, {ID: "2", Payload: 2}}
	worker := func(task Task, h TaskHandle) (any, error) {
		return task.Payload, nil
	}

	var mu sync.Mutex
	var results []int
	first := true
	master := func(resp TaskResponse, h Handle) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, resp.Payload.(int))
		if first {
			first = false
			h.RequestStop()
		}
	}

	q.Run(context.Background(), tasks, worker, master)
	// The in-flight first task's response is always folded even though
	// stop was requested during its own fold.
	assert.GreaterOrEqual(t, len(results), 1)
}
