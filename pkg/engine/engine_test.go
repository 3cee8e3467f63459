package engine_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/easydep-io/easydep/pkg/deployerr"
	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/eventbus"
)

func syncStage(name string, fn func(input any) (any, error)) *engine.Stage {
	return &engine.Stage{Name: name, Exec: func(ctx *engine.Context, input any) (any, error) {
		return fn(input)
	}}
}

func TestHappyPathEventOrder(t *testing.T) {
	chain := engine.Chain(
		syncStage("S1", func(input any) (any, error) { return "a", nil }),
		syncStage("S2", func(input any) (any, error) { return "b", nil }),
	)

	ctx := engine.New("t")
	var mu sync.Mutex
	var kinds []eventbus.Kind
	ctx.Events().SubscribeAll(0, func(e eventbus.Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})

	completion := ctx.Schedule(chain, "start")
	res := waitResult(t, completion)

	require.NoError(t, res.Err)
	require.Equal(t, "b", res.Output)
	require.Equal(t, []eventbus.Kind{
		eventbus.ChainStarted,
		eventbus.StageSucceeded,
		eventbus.StageSucceeded,
		eventbus.ChainFinished,
	}, kinds)
}

func TestStageErrorFailsChainAndRunsCompensation(t *testing.T) {
	var compensated bool

	ctx := engine.New("t")
	s1 := syncStage("S1", func(input any) (any, error) {
		ctx.RegisterCompensation(func() { compensated = true })
		return "x", nil
	})
	s2 := syncStage("S2", func(input any) (any, error) {
		return nil, errors.New("boom")
	})
	chain := engine.Chain(s1, s2)

	completion := ctx.Schedule(chain, "start")
	res := waitResult(t, completion)

	require.Error(t, res.Err)
	var stageErr *deployerr.StageError
	require.True(t, errors.As(res.Err, &stageErr))
	require.Equal(t, "S2", stageErr.Stage)
	require.True(t, compensated)
}

func TestEmptyStageOutputFailsChain(t *testing.T) {
	s1 := syncStage("S1", func(input any) (any, error) { return nil, nil })
	s2 := syncStage("S2", func(input any) (any, error) { return "unreachable", nil })
	chain := engine.Chain(s1, s2)

	ctx := engine.New("t")
	completion := ctx.Schedule(chain, "start")
	res := waitResult(t, completion)

	require.Error(t, res.Err)
	var empty *deployerr.EmptyStageOutput
	require.True(t, errors.As(res.Err, &empty))
}

func TestCancelDuringAwaitRunsCompensationsLIFO(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	fut := make(chan engine.AsyncResult)
	var aborted bool

	s1 := &engine.Stage{Name: "Suspend", Exec: func(ctx *engine.Context, input any) (any, error) {
		ctx.RegisterCompensation(record("first"))
		ctx.RegisterCompensation(record("second"))
		err := ctx.AwaitAsync(fut, func() { aborted = true }, nil)
		return nil, err
	}}
	chain := engine.Chain(s1)

	ctx := engine.New("t")
	completion := ctx.Schedule(chain, "start")

	require.Eventually(t, func() bool { return ctx.State() == engine.AwaitingAsync }, time.Second, time.Millisecond)

	ctx.Cancel()
	res := waitResult(t, completion)

	require.Error(t, res.Err)
	var cancelled *deployerr.Cancelled
	require.True(t, errors.As(res.Err, &cancelled))
	require.True(t, aborted)
	require.Equal(t, []string{"second", "first"}, order)
}

func TestCancelBeforeScheduleResolvesImmediately(t *testing.T) {
	ctx := engine.New("t")
	ctx.Cancel()

	chain := engine.Chain(syncStage("S1", func(input any) (any, error) { return "x", nil }))
	completion := ctx.Schedule(chain, "start")

	res := waitResult(t, completion)
	var cancelled *deployerr.Cancelled
	require.True(t, errors.As(res.Err, &cancelled))
}

func TestScheduleIsIdempotent(t *testing.T) {
	calls := 0
	s1 := syncStage("S1", func(input any) (any, error) {
		calls++
		return "x", nil
	})
	chain := engine.Chain(s1)

	ctx := engine.New("t")
	c1 := ctx.Schedule(chain, "start")
	c2 := ctx.Schedule(chain, "start")

	waitResult(t, c1)
	require.Equal(t, c1, c2)
	require.Equal(t, 1, calls)
}

func TestAwaitAsyncIllegalStateBeforeSchedule(t *testing.T) {
	ctx := engine.New("t")
	fut := make(chan engine.AsyncResult)
	err := ctx.AwaitAsync(fut, nil, nil)

	var illegal *deployerr.IllegalState
	require.True(t, errors.As(err, &illegal))
}

func waitResult(t *testing.T, c <-chan engine.Result) engine.Result {
	t.Helper()
	select {
	case r := <-c:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return engine.Result{}
	}
}
