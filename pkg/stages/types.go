// Package stages implements the eight pipeline stages (S1-S8) that
// together form the deploy and rollback chains, plus the helpers they
// share: process spawning with log capture, and forceful recursive file
// operations that must succeed even over read-only trees.
package stages

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/easydep-io/easydep/pkg/release"
)

// ReleasePath is the (Release, working-copy path) tuple that flows
// from RepoInit's output to SymlinkFlip's input — the contiguous stage
// input/output type the design calls for in place of runtime-typed pipes.
type ReleasePath struct {
	Release release.Release
	Path    string
}

// removeAllForced recursively deletes root, clearing read-only bits
// along the way so a clone's file-mode-preserving copy doesn't block
// deletion.
func removeAllForced(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		return os.Chmod(path, 0o700)
	})
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.RemoveAll(root)
}

// copyTree recursively copies src to dst, preserving file modes. Used by
// RepoInit to materialize a release's working copy from the shared clone
// cache without re-cloning from origin each time.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
