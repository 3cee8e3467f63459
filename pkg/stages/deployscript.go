package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/easydep-io/easydep/pkg/deployerr"
	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/eventbus"
	"github.com/easydep-io/easydep/pkg/log"
)

const (
	deployScriptRelPath = ".easydep/execute.sh"
	scriptLogDirName    = ".scriptlog"
)

// NewDeployScript builds S5: spawn <path>/.easydep/execute.sh if present,
// capturing merged stdout/stderr to a log file, and suspend on its exit.
func NewDeployScript(logger log.Logger) *engine.Stage {
	return &engine.Stage{
		Name: "DeployScript",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rp := input.(ReleasePath)
			scriptPath := filepath.Join(rp.Path, deployScriptRelPath)

			if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
				logger.Info("no deploy script present at " + scriptPath + ", skipping")
				return rp, nil
			}

			logDir := filepath.Join(rp.Path, scriptLogDirName)
			proc, err := spawn(scriptPath, rp.Path, logDir)
			if err != nil {
				return nil, fmt.Errorf("spawning deploy script: %w", err)
			}

			ctx.RegisterCompensation(proc.kill)
			ctx.Events().Subscribe(eventbus.ChainFailed, eventbus.DefaultPriority, func(eventbus.Event) {
				proc.kill()
			})

			scope := scriptLogScope(rp.Release.ID)
			ctx.SetInfo(scriptLogInfoKey("execute"), proc.logPath)

			decorator := func(v any) (any, error) {
				streamLog(proc.logPath, func(line string) {
					logger.Info("[" + scope + "] " + line)
				})

				code, _ := v.(int)
				if code != 0 {
					return nil, &deployerr.ScriptExit{Code: code}
				}
				return rp, nil
			}

			if err := ctx.AwaitAsync(proc.onExit(), proc.kill, decorator); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}

func scriptLogScope(releaseID int64) string {
	return fmt.Sprintf("release-%d", releaseID)
}

func scriptLogInfoKey(scriptBaseName string) string {
	base := strings.TrimSuffix(filepath.Base(scriptBaseName), ".sh")
	return "easydep_" + base + "_log"
}
