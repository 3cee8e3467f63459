package stages

import (
	"fmt"
	"os"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
)

// NewSymlinkFlip builds S6: atomically repoint current_link at path, then
// create every configured auxiliary symlink inside path. additionalSymlinks
// maps a relative name (created inside the release directory) to its
// target path.
func NewSymlinkFlip(lay *layout.Layout, additionalSymlinks map[string]string) *engine.Stage {
	return &engine.Stage{
		Name: "SymlinkFlip",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rp := input.(ReleasePath)

			if err := replaceSymlink(lay.CurrentLink(), rp.Path); err != nil {
				return nil, fmt.Errorf("flipping current link: %w", err)
			}

			for name, target := range additionalSymlinks {
				linkPath := rp.Path + string(os.PathSeparator) + name
				if err := replaceSymlink(linkPath, target); err != nil {
					return nil, fmt.Errorf("creating auxiliary symlink %q: %w", name, err)
				}
			}

			return rp.Release, nil
		},
	}
}

func replaceSymlink(linkPath, target string) error {
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, linkPath)
}
