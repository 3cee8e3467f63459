package stages

import (
	"regexp"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/release"
)

// Deps bundles everything the stage constructors need, supplied once by
// the supervisor at startup and reused for every chain it builds.
type Deps struct {
	Layout             *layout.Layout
	Fetcher            release.RepoFetcher
	Logger             log.Logger
	BodyPattern        *regexp.Regexp
	Labels             map[string]string
	AdditionalSymlinks map[string]string
	MaxStoredReleases  int
}

// ForwardChain builds the full deploy chain (S8, S1-S7) for a new or
// preempting release.
func ForwardChain(d Deps) *engine.Stage {
	return engine.Chain(
		NewLifecycleScriptBridge(d.Layout, d.Logger),
		NewTagAcceptance(d.BodyPattern, d.Labels, d.Logger),
		NewRepoInit(d.Layout, d.Fetcher, d.Logger),
		NewCheckout(),
		NewWorkingCopyCleanup(),
		NewDeployScript(d.Logger),
		NewSymlinkFlip(d.Layout, d.AdditionalSymlinks),
		NewRetentionCleanup(d.Layout, d.MaxStoredReleases, d.Logger),
	)
}

// RollbackChain builds the rollback chain: just S6 SymlinkFlip, for a
// release whose directory is already present on disk.
func RollbackChain(d Deps) *engine.Stage {
	return engine.Chain(NewSymlinkFlip(d.Layout, d.AdditionalSymlinks))
}
