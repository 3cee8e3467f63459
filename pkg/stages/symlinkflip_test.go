package stages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/release"
)

func TestSymlinkFlipRepointsCurrentLink(t *testing.T) {
	root := t.TempDir()
	lay, err := layout.New(root, "")
	require.NoError(t, err)

	oldRelease := filepath.Join(root, "1")
	newRelease := filepath.Join(root, "2")
	require.NoError(t, os.MkdirAll(oldRelease, 0o755))
	require.NoError(t, os.MkdirAll(newRelease, 0o755))
	require.NoError(t, os.Symlink(oldRelease, lay.CurrentLink()))

	stage := NewSymlinkFlip(lay, nil)
	ctx := engine.New("t")
	rp := ReleasePath{Release: release.Release{ID: 2}, Path: newRelease}

	out, err := stage.Exec(ctx, rp)
	require.NoError(t, err)
	require.Equal(t, release.Release{ID: 2}, out)

	resolved, err := os.Readlink(lay.CurrentLink())
	require.NoError(t, err)
	require.Equal(t, newRelease, resolved)
}

func TestSymlinkFlipCreatesAuxiliarySymlinks(t *testing.T) {
	root := t.TempDir()
	lay, err := layout.New(root, "")
	require.NoError(t, err)

	newRelease := filepath.Join(root, "2")
	require.NoError(t, os.MkdirAll(newRelease, 0o755))

	sharedTarget := filepath.Join(root, "shared")
	require.NoError(t, os.MkdirAll(sharedTarget, 0o755))

	stage := NewSymlinkFlip(lay, map[string]string{"shared": sharedTarget})
	ctx := engine.New("t")
	rp := ReleasePath{Release: release.Release{ID: 2}, Path: newRelease}

	_, err = stage.Exec(ctx, rp)
	require.NoError(t, err)

	resolved, err := os.Readlink(filepath.Join(newRelease, "shared"))
	require.NoError(t, err)
	require.Equal(t, sharedTarget, resolved)
}
