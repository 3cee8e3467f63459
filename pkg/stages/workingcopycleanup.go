package stages

import (
	"os"
	"path/filepath"

	"github.com/easydep-io/easydep/pkg/engine"
)

// NewWorkingCopyCleanup builds S4: remove the repository's hidden VCS
// metadata directory so the deploy script cannot invoke VCS commands
// against it. Idempotent — a missing .git is not an error.
func NewWorkingCopyCleanup() *engine.Stage {
	return &engine.Stage{
		Name: "WorkingCopyCleanup",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rp := input.(ReleasePath)
			if err := removeAllForced(filepath.Join(rp.Path, ".git")); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
			return rp, nil
		},
	}
}
