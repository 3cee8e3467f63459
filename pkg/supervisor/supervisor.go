// Package supervisor implements the ReleaseSupervisor (C6): the
// single-writer component that serializes incoming releases into at most
// one active deployment, choosing between the forward chain, the
// rollback chain, and doing nothing.
package supervisor

import (
	"os"
	"sync"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/metrics"
	"github.com/easydep-io/easydep/pkg/release"
	"github.com/easydep-io/easydep/pkg/stages"
)

// scheduled pairs an in-flight execution context with the release that
// started it.
type scheduled struct {
	release release.Release
	ctx     *engine.Context
}

// Supervisor holds last_executed_id and last_scheduled, guarded by a
// single deployment_lock, and decides forward vs rollback vs no-op for
// every enqueued release.
type Supervisor struct {
	layout    *layout.Layout
	chainDeps stages.Deps
	logger    log.Logger

	mu             sync.Mutex
	lastExecutedID int64
	lastScheduled  *scheduled
}

// New constructs a Supervisor, initializing last_executed_id from the
// current-link's target (or -1 if absent/unparseable).
func New(lay *layout.Layout, chainDeps stages.Deps, logger log.Logger) *Supervisor {
	currentID := lay.CurrentReleaseID()
	metrics.CurrentReleaseID.Set(float64(currentID))
	return &Supervisor{
		layout:         lay,
		chainDeps:      chainDeps,
		logger:         logger,
		lastExecutedID: currentID,
	}
}

// Enqueue implements §4.6's enqueue(release) algorithm under the
// deployment lock.
func (s *Supervisor) Enqueue(rel release.Release) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case rel.ID > s.lastExecutedID:
		s.lastExecutedID = rel.ID
		s.cancelCurrentLocked()
		s.startForwardLocked(rel)
	case rel.ID < s.lastExecutedID:
		s.lastExecutedID = rel.ID
		s.cancelCurrentLocked()
		dir := s.layout.ReleaseDir(rel.ID)
		if dirExists(dir) {
			s.startRollbackLocked(rel, dir)
		} else {
			s.startForwardLocked(rel)
		}
	default:
		// equal id: no-op.
	}
}

// CancelCurrent cancels whatever chain is in flight, if any. Exported so
// the agent can cancel outstanding work on shutdown.
func (s *Supervisor) CancelCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCurrentLocked()
}

func (s *Supervisor) cancelCurrentLocked() {
	if s.lastScheduled == nil {
		return
	}
	s.lastScheduled.ctx.Cancel()
	s.lastScheduled = nil
}

func (s *Supervisor) startForwardLocked(rel release.Release) {
	ctx := engine.New(releaseLabel(rel))
	s.lastScheduled = &scheduled{release: rel, ctx: ctx}

	chain := stages.ForwardChain(s.chainDeps)
	completion := ctx.Schedule(chain, rel)
	s.observeCompletion(rel, completion)
}

func (s *Supervisor) startRollbackLocked(rel release.Release, dir string) {
	ctx := engine.New(releaseLabel(rel))
	s.lastScheduled = &scheduled{release: rel, ctx: ctx}

	chain := stages.RollbackChain(s.chainDeps)
	completion := ctx.Schedule(chain, stages.ReleasePath{Release: rel, Path: dir})
	s.observeCompletion(rel, completion)
}

func (s *Supervisor) observeCompletion(rel release.Release, completion <-chan engine.Result) {
	timer := metrics.NewTimer()
	go func() {
		res := <-completion
		timer.ObserveDuration(metrics.DeploymentDuration)

		outcome := "success"
		if res.Err != nil {
			outcome = "failure"
			s.logger.Warn("deployment did not complete successfully: " + res.Err.Error())
		}
		metrics.DeploymentsTotal.WithLabelValues(outcome).Inc()
		if res.Err == nil {
			metrics.CurrentReleaseID.Set(float64(rel.ID))
		}
	}()
}

func releaseLabel(rel release.Release) string {
	return "release " + rel.TagName
}

func dirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
