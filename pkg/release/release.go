// Package release declares the Release data model and the two external
// collaborator interfaces the engine consumes to fetch releases and mint
// source-repository access tokens — the "out of scope" boundary named by
// the core's design (everything on the other side of ReleaseSource and
// RepoFetcher is a pluggable adapter, not core logic).
package release

import "context"

// Release is an externally supplied descriptor of a deployable revision.
// Two distinct releases never share an ID; ID is the canonical ordering
// key the supervisor uses to decide forward vs. rollback.
type Release struct {
	ID       int64
	TagName  string
	Owner    string
	RepoName string
	Body     string
}

// Source polls an external release feed (a code-hosting release API) for
// the latest release. A nil Release with a nil error means "no release
// yet" — not every poll produces one.
type Source interface {
	Poll(ctx context.Context) (*Release, error)
}

// RepoFetcher mints short-lived access tokens used to authenticate the
// source-repository fetch URL. Tokens are assumed to rotate between
// calls, so RepoInit always mints a fresh one rather than caching.
type RepoFetcher interface {
	AccessToken(ctx context.Context) (string, error)
}
