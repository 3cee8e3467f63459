package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsRelativeRoot(t *testing.T) {
	_, err := New("relative/path", "")
	require.Error(t, err)
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	_, err := New("", "")
	require.Error(t, err)
}

func TestNewDefaultsLinkName(t *testing.T) {
	l, err := New("/tmp/d", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/d", DefaultLinkName), l.CurrentLink())
}

func TestPathComputations(t *testing.T) {
	l, err := New("/tmp/d", "current")
	require.NoError(t, err)

	require.Equal(t, "/tmp/d", l.Root())
	require.Equal(t, filepath.Join("/tmp/d", ".cache_clone"), l.CloneCache())
	require.Equal(t, filepath.Join("/tmp/d", "42"), l.ReleaseDir(42))
	require.Equal(t, filepath.Join("/tmp/d", "current"), l.CurrentLink())
}

func TestParseReleaseID(t *testing.T) {
	cases := []struct {
		name   string
		wantOK bool
		wantID int64
	}{
		{"100", true, 100},
		{"0", false, 0},
		{"-5", false, 0},
		{"current", false, 0},
		{".cache_clone", false, 0},
		{"", false, 0},
	}
	for _, c := range cases {
		id, ok := ParseReleaseID(c.name)
		require.Equal(t, c.wantOK, ok, "name %q", c.name)
		if c.wantOK {
			require.Equal(t, c.wantID, id)
		}
	}
}

func TestCreateIfMissingDoesNotCreateCloneCache(t *testing.T) {
	root := t.TempDir()
	deployRoot := filepath.Join(root, "deployments")
	l, err := New(deployRoot, "")
	require.NoError(t, err)

	require.NoError(t, l.CreateIfMissing())

	_, err = os.Stat(deployRoot)
	require.NoError(t, err)
	_, err = os.Stat(l.CloneCache())
	require.True(t, os.IsNotExist(err))
}

func TestCurrentReleaseID(t *testing.T) {
	root := t.TempDir()
	l, err := New(root, "")
	require.NoError(t, err)

	require.Equal(t, int64(-1), l.CurrentReleaseID())

	releaseDir := filepath.Join(root, "7")
	require.NoError(t, os.MkdirAll(releaseDir, 0o755))
	require.NoError(t, os.Symlink(releaseDir, l.CurrentLink()))

	require.Equal(t, int64(7), l.CurrentReleaseID())
}
