// Package deployerr declares the error kinds the deployment engine
// surfaces to callers and observers, per the core's error handling design.
package deployerr

import "fmt"

// ConfigError indicates a missing required environment variable or a
// malformed path. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// SourceUnavailable indicates the release feed failed to reach its
// external source. It is logged and retried by ReleaseFeed.
type SourceUnavailable struct {
	Cause error
}

func (e *SourceUnavailable) Error() string {
	return fmt.Sprintf("release source unavailable: %v", e.Cause)
}

func (e *SourceUnavailable) Unwrap() error { return e.Cause }

// StageError wraps any stage-level failure (I/O, VCS, script exit).
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// ScriptExit indicates a user deploy/lifecycle script exited non-zero.
type ScriptExit struct {
	Code int
}

func (e *ScriptExit) Error() string {
	return fmt.Sprintf("script exited with code %d", e.Code)
}

// Cancelled indicates a completion handle resolved after ctx.Cancel().
type Cancelled struct{}

func (e *Cancelled) Error() string { return "deployment cancelled" }

// EmptyStageOutput indicates a stage returned a nil/absent value without
// suspending — a programming contract violation. Stage names the stage
// that was to receive the value, or the last stage of the chain when that
// stage is the one that returned nothing.
type EmptyStageOutput struct {
	Stage string
}

func (e *EmptyStageOutput) Error() string {
	return fmt.Sprintf("empty stage output at stage %q", e.Stage)
}

// IllegalState indicates AwaitAsync (or another state-gated operation)
// was invoked from a state that forbids it.
type IllegalState struct {
	Operation string
	State     string
}

func (e *IllegalState) Error() string {
	return fmt.Sprintf("illegal state for %s: %s", e.Operation, e.State)
}
