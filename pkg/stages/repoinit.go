package stages

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/release"
)

const originRemote = "origin"

// NewRepoInit builds S2: mint a fresh access token, clone-or-update the
// shared cache, materialize release_dir(id) from it, and register the
// compensation that removes release_dir(id) on cancel.
func NewRepoInit(lay *layout.Layout, fetcher release.RepoFetcher, logger log.Logger) *engine.Stage {
	return &engine.Stage{
		Name: "RepoInit",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rel := input.(release.Release)

			token, err := fetcher.AccessToken(context.Background())
			if err != nil {
				return nil, fmt.Errorf("minting access token: %w", err)
			}
			fetchURL := tokenizedURL(rel.Owner, rel.RepoName, token)

			cachePath := lay.CloneCache()
			if _, err := os.Stat(cachePath); os.IsNotExist(err) {
				logger.Info("clone cache absent, performing initial clone")
				if _, err := git.PlainClone(cachePath, false, &git.CloneOptions{URL: fetchURL, NoCheckout: true}); err != nil {
					return nil, fmt.Errorf("initial clone: %w", err)
				}
			} else {
				repo, err := git.PlainOpen(cachePath)
				if err != nil {
					return nil, fmt.Errorf("opening clone cache: %w", err)
				}
				if err := repo.DeleteRemote(originRemote); err != nil && err != git.ErrRemoteNotFound {
					return nil, fmt.Errorf("resetting cache remote: %w", err)
				}
				if _, err := repo.CreateRemote(&config.RemoteConfig{Name: originRemote, URLs: []string{fetchURL}}); err != nil {
					return nil, fmt.Errorf("re-pointing cache remote with fresh token: %w", err)
				}
			}

			dir := lay.ReleaseDir(rel.ID)
			ctx.RegisterCompensation(func() {
				if err := removeAllForced(dir); err != nil {
					logger.Warn("failed to remove release directory during compensation: " + err.Error())
				}
			})

			if err := copyTree(cachePath, dir); err != nil {
				return nil, fmt.Errorf("materializing release directory: %w", err)
			}

			return ReleasePath{Release: rel, Path: dir}, nil
		},
	}
}

func tokenizedURL(owner, repo, token string) string {
	return fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", token, owner, repo)
}
