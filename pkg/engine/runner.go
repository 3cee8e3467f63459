package engine

import (
	"errors"

	"github.com/easydep-io/easydep/pkg/deployerr"
	"github.com/easydep-io/easydep/pkg/eventbus"
	"github.com/easydep-io/easydep/pkg/metrics"
)

var errAsyncAborted = errors.New("async operation aborted")

// resumeAt is the PipelineRunner algorithm (§4.4): it advances stage with
// input, recursing synchronously for stages that complete without
// suspending, and returning control to whichever goroutine called it
// once a stage suspends via AwaitAsync — that goroutine (the async
// continuation) re-enters resumeAt when the future resolves. Because a
// context only ever has one resumeAt call active at a time, this
// recursion is the "single worker" the design calls for without a
// separate dispatch loop.
func resumeAt(ctx *Context, stage *Stage, input any) {
	if ctx.State() == Cancelled {
		ctx.finishCancelled()
		return
	}

	isFirst := ctx.Stage() == nil
	if input == nil && !isFirst {
		name := ""
		if stage != nil {
			name = stage.Name
		} else if prev := ctx.Stage(); prev != nil {
			name = prev.Name
		}
		failChain(ctx, &deployerr.EmptyStageOutput{Stage: name})
		return
	}

	// A completed stage's success is only observable at the next
	// resumeAt call (with that stage's output as input) — this holds
	// whether the next call runs another stage or ends the chain, so
	// the predecessor's StageSucceeded always precedes ChainFinished.
	if prev := ctx.Stage(); prev != nil {
		ctx.Events().Publish(eventbus.Event{Kind: eventbus.StageSucceeded, Stage: prev.Name, Output: input})
	}

	if stage == nil {
		ctx.setState(Done)
		ctx.Events().Publish(eventbus.Event{Kind: eventbus.ChainFinished, Output: input})
		ctx.resolve(Result{Output: input})
		return
	}

	ctx.clearInfo()
	ctx.setStageCursor(stage)

	timer := metrics.NewTimer()
	output, err := stage.Exec(ctx, input)

	switch ctx.State() {
	case AwaitingAsync:
		// Resumption is owned by the async continuation. This stage's
		// duration is not recorded in StageDuration: the continuation
		// times only the stages it runs next.
		return
	case Cancelled:
		ctx.finishCancelled()
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	timer.ObserveDurationVec(metrics.StageDuration, stage.Name, outcome)

	if err != nil {
		failStage(ctx, stage, err)
		return
	}
	resumeAt(ctx, stage.Next, output)
}

// failStage handles a stage error: publish StageFailed then ChainFailed,
// unwind compensations, then fail the completion handle, so a caller that
// observes the failure also observes the unwound side effects.
func failStage(ctx *Context, stage *Stage, err error) {
	wrapped := err
	var stageErr *deployerr.StageError
	if !errors.As(err, &stageErr) {
		wrapped = &deployerr.StageError{Stage: stage.Name, Cause: err}
	}
	ctx.Events().Publish(eventbus.Event{Kind: eventbus.StageFailed, Stage: stage.Name, Err: wrapped})
	ctx.Events().Publish(eventbus.Event{Kind: eventbus.ChainFailed, Err: wrapped})
	ctx.setState(Done)
	ctx.runCompensations()
	ctx.resolve(Result{Err: wrapped})
}

// failChain fails the chain for a contract violation that isn't a single
// stage's error (EmptyStageOutput): publish ChainFailed, fail the
// completion handle, then unwind compensations.
func failChain(ctx *Context, err error) {
	ctx.Events().Publish(eventbus.Event{Kind: eventbus.ChainFailed, Err: err})
	ctx.setState(Done)
	ctx.resolve(Result{Err: err})
	ctx.runCompensations()
}
