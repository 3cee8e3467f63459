package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/easydep-io/easydep/pkg/release"
)

type nullLogger struct{}

func (nullLogger) Debug(string) {}
func (nullLogger) Info(string)  {}
func (nullLogger) Warn(string)  {}
func (nullLogger) Error(string) {}

type fakeSource struct {
	mu    sync.Mutex
	polls []func() (*release.Release, error)
	calls int
}

func (f *fakeSource) Poll(context.Context) (*release.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.polls) {
		return nil, nil
	}
	fn := f.polls[f.calls]
	f.calls++
	return fn()
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []release.Release
}

func (e *fakeEnqueuer) Enqueue(rel release.Release) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueued = append(e.enqueued, rel)
}

func (e *fakeEnqueuer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.enqueued)
}

func TestNewClampsPollIntervalToFloor(t *testing.T) {
	f := New(&fakeSource{}, &fakeEnqueuer{}, time.Millisecond, nullLogger{})
	require.Equal(t, minPollInterval, f.pollInterval)
}

func TestPollOnceEnqueuesDiscoveredRelease(t *testing.T) {
	rel := release.Release{ID: 1, TagName: "v1"}
	src := &fakeSource{polls: []func() (*release.Release, error){
		func() (*release.Release, error) { return &rel, nil },
	}}
	enq := &fakeEnqueuer{}
	f := New(src, enq, time.Millisecond, nullLogger{})

	f.pollOnce(context.Background())

	require.Equal(t, 1, enq.count())
	require.Equal(t, rel, enq.enqueued[0])
}

func TestPollOnceSwallowsErrorsWithoutEnqueueing(t *testing.T) {
	src := &fakeSource{polls: []func() (*release.Release, error){
		func() (*release.Release, error) { return nil, errors.New("boom") },
	}}
	enq := &fakeEnqueuer{}
	f := New(src, enq, time.Millisecond, nullLogger{})

	require.NotPanics(t, func() { f.pollOnce(context.Background()) })
	require.Equal(t, 0, enq.count())
}

func TestPollOnceIgnoresNilRelease(t *testing.T) {
	src := &fakeSource{polls: []func() (*release.Release, error){
		func() (*release.Release, error) { return nil, nil },
	}}
	enq := &fakeEnqueuer{}
	f := New(src, enq, time.Millisecond, nullLogger{})

	f.pollOnce(context.Background())
	require.Equal(t, 0, enq.count())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	src := &fakeSource{}
	enq := &fakeEnqueuer{}
	f := New(src, enq, minPollInterval, nullLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunPollsMultipleTimes(t *testing.T) {
	rel := release.Release{ID: 1}
	src := &fakeSource{polls: []func() (*release.Release, error){
		func() (*release.Release, error) { return &rel, nil },
		func() (*release.Release, error) { return &rel, nil },
		func() (*release.Release, error) { return &rel, nil },
	}}
	enq := &fakeEnqueuer{}
	f := New(src, enq, minPollInterval, nullLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	require.GreaterOrEqual(t, enq.count(), 2)
}
