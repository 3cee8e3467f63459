package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/eventbus"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/release"
)

// NewLifecycleScriptBridge builds S8. It is inserted early in the chain
// (before a working copy necessarily exists) because what it needs from
// the release is only its id, from which release_dir(id) is computed the
// same way RepoInit will compute it — no mutable path state has to be
// threaded through later stages. It subscribes priority-0 handlers for
// StageSucceeded, StageFailed, ChainFinished and ChainFailed (not
// ChainStarted, which has already fired) and, fire-and-forget, runs a matching
// `.easydep/<name>.sh` script if present, without affecting pipeline
// state.
func NewLifecycleScriptBridge(lay *layout.Layout, logger log.Logger) *engine.Stage {
	return &engine.Stage{
		Name: "LifecycleScriptBridge",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rel := input.(release.Release)
			dir := lay.ReleaseDir(rel.ID)

			bridge := func(event eventbus.Event) {
				name := lifecycleScriptName(event)
				scriptPath := filepath.Join(dir, ".easydep", name+".sh")
				if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
					return
				}

				logDir := filepath.Join(dir, scriptLogDirName)
				proc, err := spawn(scriptPath, dir, logDir)
				if err != nil {
					logger.Warn("lifecycle script " + name + " failed to start: " + err.Error())
					return
				}

				go func() {
					res := <-proc.onExit()
					scope := scriptLogScope(rel.ID)
					streamLog(proc.logPath, func(line string) {
						logger.Info("[" + scope + "." + name + "] " + line)
					})
					if res.Err != nil {
						logger.Warn("lifecycle script " + name + " failed: " + res.Err.Error())
					}
				}()
			}

			for _, kind := range []eventbus.Kind{
				eventbus.StageSucceeded,
				eventbus.StageFailed,
				eventbus.ChainFinished,
				eventbus.ChainFailed,
			} {
				ctx.Events().Subscribe(kind, 0, bridge)
			}

			return rel, nil
		},
	}
}

// lifecycleScriptName computes the normalized script basename: the kind
// lowercased, with per-stage events suffixed by the stage name lowercased
// and underscored.
func lifecycleScriptName(event eventbus.Event) string {
	base := strings.ToLower(event.Kind.String())
	if event.Stage == "" {
		return base
	}
	stage := strings.ReplaceAll(strings.ToLower(event.Stage), " ", "_")
	return fmt.Sprintf("%s.%s", base, stage)
}
