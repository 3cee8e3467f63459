package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/easydep-io/easydep/pkg/deployerr"
	"github.com/easydep-io/easydep/pkg/eventbus"
	"github.com/easydep-io/easydep/pkg/log"
)

// Context is the per-deployment state a PipelineRunner advances. It is
// owned by exactly one scheduled chain run; a fresh Context is required
// for every deployment attempt (forward or rollback).
type Context struct {
	mu sync.Mutex

	state        State
	stageCursor  *Stage
	pendingAbort func()
	compensations []func()
	info         map[string]string

	bus        *eventbus.Bus
	completion chan Result
	scheduled  bool

	logger zerolog.Logger
}

// New creates a Ready context with its own event bus. label is used only
// for log correlation (the supervisor passes "release <tag>").
func New(label string) *Context {
	return &Context{
		state:      Ready,
		info:       make(map[string]string),
		bus:        eventbus.New(),
		completion: make(chan Result, 1),
		logger:     log.WithComponent("engine").With().Str("deployment", label).Logger(),
	}
}

// State returns the current state. Safe for concurrent use.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the per-context event bus handle.
func (c *Context) Events() *eventbus.Bus { return c.bus }

// Stage returns the stage currently executing or awaiting async
// completion, or nil before the chain starts / after it ends.
func (c *Context) Stage() *Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageCursor
}

// SetInfo records a stage-facing fact. The runner clears the map after
// publishing a stage's StageSucceeded and before the next stage runs, so
// values are visible to event subscribers fired for this stage's
// completion but not to the following stage's Exec.
func (c *Context) SetInfo(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info[key] = value
}

// Info returns a snapshot of the current stage-facing info map.
func (c *Context) Info() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.info))
	for k, v := range c.info {
		out[k] = v
	}
	return out
}

func (c *Context) clearInfo() {
	c.mu.Lock()
	c.info = make(map[string]string)
	c.mu.Unlock()
}

// RegisterCompensation pushes hook onto the LIFO compensation stack. It
// may be called at any time while the chain is live.
func (c *Context) RegisterCompensation(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compensations = append(c.compensations, hook)
}

// Schedule transitions Ready->Running and starts the chain on a
// dedicated worker goroutine. Repeated calls on a non-Ready context
// return the existing completion handle without rescheduling.
func (c *Context) Schedule(chain *Stage, input any) <-chan Result {
	c.mu.Lock()
	if c.scheduled {
		c.mu.Unlock()
		return c.completion
	}
	c.scheduled = true
	wasReady := c.state == Ready
	if wasReady {
		c.state = Running
	}
	c.mu.Unlock()

	if !wasReady {
		// Cancelled before ever starting: finish immediately, nothing to
		// compensate.
		go c.finishCancelled()
		return c.completion
	}

	c.bus.Publish(eventbus.Event{Kind: eventbus.ChainStarted})
	go resumeAt(c, chain, input)
	return c.completion
}

// AwaitAsync is called from inside a stage's Exec to suspend on fut.
// abort is invoked if the context is cancelled while awaiting, or
// immediately if the context is already cancelled when AwaitAsync is
// called. decorator, when non-nil, post-processes the awaited value
// without losing cancellation visibility (e.g. streaming a log file
// before checking an exit code).
func (c *Context) AwaitAsync(fut <-chan AsyncResult, abort func(), decorator func(any) (any, error)) error {
	c.mu.Lock()
	switch c.state {
	case Cancelled:
		c.mu.Unlock()
		if abort != nil {
			abort()
		}
		return &deployerr.Cancelled{}
	case Running:
		c.state = AwaitingAsync
		c.pendingAbort = abort
		stage := c.stageCursor
		c.mu.Unlock()

		go c.awaitContinuation(stage, fut, decorator)
		return nil
	default:
		c.mu.Unlock()
		return &deployerr.IllegalState{Operation: "AwaitAsync", State: c.state.String()}
	}
}

func (c *Context) awaitContinuation(stage *Stage, fut <-chan AsyncResult, decorator func(any) (any, error)) {
	res, ok := <-fut

	c.mu.Lock()
	cancelled := c.state == Cancelled
	if !cancelled {
		c.state = Running
		c.pendingAbort = nil
	}
	c.mu.Unlock()

	if cancelled {
		c.finishCancelled()
		return
	}

	var out any
	var err error
	switch {
	case !ok:
		err = &deployerr.StageError{Stage: stage.Name, Cause: errAsyncAborted}
	case res.Err != nil:
		err = res.Err
	case decorator != nil:
		out, err = decorator(res.Value)
	default:
		out = res.Value
	}

	if err != nil {
		failStage(c, stage, err)
		return
	}
	resumeAt(c, stage.Next, out)
}

// Cancel transitions the context to Cancelled and schedules compensation
// to run. Idempotent and safe to call from any goroutine.
func (c *Context) Cancel() {
	c.mu.Lock()
	if c.state == Cancelled || c.state == Done {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = Cancelled
	abort := c.pendingAbort
	c.mu.Unlock()

	if abort != nil {
		abort()
	}

	if prev == Ready && !c.everScheduled() {
		// Never scheduled at all: nothing will ever call resumeAt for
		// this context, so finish right away.
		go c.finishCancelled()
	}
	// prev == Running: the in-flight Exec call will observe Cancelled
	// once it returns, at the next stage boundary.
	// prev == AwaitingAsync: awaitContinuation will observe Cancelled
	// once the aborted future resolves.
}

func (c *Context) everScheduled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduled
}

func (c *Context) runCompensations() {
	c.mu.Lock()
	hooks := c.compensations
	c.compensations = nil
	c.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		c.runOneCompensation(hooks[i])
	}
}

func (c *Context) runOneCompensation(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("compensation hook panicked, continuing unwind")
		}
	}()
	hook()
}

// finishCancelled implements the Cancelled branch of resumeAt: unwind
// compensations first, then fail the completion handle, then publish
// ChainFailed — so every compensation registered before the cancel has
// run by the time the completion handle resolves.
func (c *Context) finishCancelled() {
	c.runCompensations()
	c.resolve(Result{Err: &deployerr.Cancelled{}})
	c.bus.Publish(eventbus.Event{Kind: eventbus.ChainFailed, Err: &deployerr.Cancelled{}})
}

func (c *Context) resolve(r Result) {
	select {
	case c.completion <- r:
	default:
		// already resolved; completion is single-shot.
	}
}

func (c *Context) setStageCursor(s *Stage) {
	c.mu.Lock()
	c.stageCursor = s
	c.mu.Unlock()
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
