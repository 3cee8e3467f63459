package stages

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/easydep-io/easydep/pkg/engine"
)

// NewCheckout builds S3: open the repo at path, fetch tags and prune
// deleted refs, then hard-reset the working tree to release.TagName.
func NewCheckout() *engine.Stage {
	return &engine.Stage{
		Name: "Checkout",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rp := input.(ReleasePath)

			repo, err := git.PlainOpen(rp.Path)
			if err != nil {
				return nil, fmt.Errorf("opening repository: %w", err)
			}

			err = repo.Fetch(&git.FetchOptions{
				RemoteName: originRemote,
				Tags:       git.AllTags,
				Prune:      true,
				RefSpecs:   []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
			})
			if err != nil && err != git.NoErrAlreadyUpToDate {
				return nil, fmt.Errorf("fetching tags: %w", err)
			}

			tagRef, err := repo.Tag(rp.Release.TagName)
			if err != nil {
				return nil, fmt.Errorf("resolving tag %q: %w", rp.Release.TagName, err)
			}
			commit, err := resolveTagCommit(repo, tagRef)
			if err != nil {
				return nil, fmt.Errorf("resolving tag %q commit: %w", rp.Release.TagName, err)
			}

			wt, err := repo.Worktree()
			if err != nil {
				return nil, fmt.Errorf("opening worktree: %w", err)
			}
			if err := wt.Reset(&git.ResetOptions{Commit: commit, Mode: git.HardReset}); err != nil {
				return nil, fmt.Errorf("hard-resetting to %q: %w", rp.Release.TagName, err)
			}

			return rp, nil
		},
	}
}

// resolveTagCommit dereferences tagRef to a commit hash, following
// annotated tag objects one level if necessary.
func resolveTagCommit(repo *git.Repository, tagRef *plumbing.Reference) (plumbing.Hash, error) {
	if obj, err := repo.TagObject(tagRef.Hash()); err == nil {
		return obj.Target, nil
	}
	return tagRef.Hash(), nil
}
