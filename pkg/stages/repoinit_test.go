package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/release"
)

type staticFetcher struct {
	token string
	err   error
}

func (f staticFetcher) AccessToken(context.Context) (string, error) { return f.token, f.err }

func TestRepoInitPropagatesTokenMintingFailure(t *testing.T) {
	lay, err := layout.New(t.TempDir(), "")
	require.NoError(t, err)

	stage := NewRepoInit(lay, staticFetcher{err: errors.New("no installation access")}, nullLogger{})
	ctx := engine.New("t")

	_, err = stage.Exec(ctx, release.Release{ID: 1, Owner: "acme", RepoName: "widgets"})
	require.Error(t, err)
}

// TestRepoInitMaterializesFromExistingCache covers the re-point-remote
// branch, which is pure local git/file I/O (no clone from origin). The
// initial-clone branch requires reaching github.com and is not covered
// by unit tests.
func TestRepoInitMaterializesFromExistingCache(t *testing.T) {
	root := t.TempDir()
	lay, err := layout.New(root, "")
	require.NoError(t, err)

	cachePath := lay.CloneCache()
	repo, err := git.PlainInit(cachePath, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cachePath, "app.txt"), []byte("hello"), 0o644))
	_, err = wt.Add("app.txt")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	_, err = wt.Commit("seed", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	stage := NewRepoInit(lay, staticFetcher{token: "fake-token"}, nullLogger{})
	ctx := engine.New("t")

	rel := release.Release{ID: 7, Owner: "acme", RepoName: "widgets"}
	out, err := stage.Exec(ctx, rel)
	require.NoError(t, err)

	rp, ok := out.(ReleasePath)
	require.True(t, ok)
	require.Equal(t, lay.ReleaseDir(7), rp.Path)

	contents, err := os.ReadFile(filepath.Join(rp.Path, "app.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}

func TestRepoInitRegistersRemovalCompensation(t *testing.T) {
	root := t.TempDir()
	lay, err := layout.New(root, "")
	require.NoError(t, err)

	cachePath := lay.CloneCache()
	repo, err := git.PlainInit(cachePath, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cachePath, "app.txt"), []byte("hello"), 0o644))
	_, err = wt.Add("app.txt")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	_, err = wt.Commit("seed", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	stage := NewRepoInit(lay, staticFetcher{token: "fake-token"}, nullLogger{})
	ctx := engine.New("t")

	rel := release.Release{ID: 8, Owner: "acme", RepoName: "widgets"}
	_, err = stage.Exec(ctx, rel)
	require.NoError(t, err)

	_, statErr := os.Stat(lay.ReleaseDir(8))
	require.NoError(t, statErr)

	ctx.Cancel()
	require.Eventually(t, func() bool {
		_, statErr := os.Stat(lay.ReleaseDir(8))
		return os.IsNotExist(statErr)
	}, time.Second, time.Millisecond)
}
