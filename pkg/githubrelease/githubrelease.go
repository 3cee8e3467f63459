// Package githubrelease provides the default, real-world
// implementations of release.Source and release.RepoFetcher: a GitHub
// Releases API poller and a GitHub App installation-token minter. Both
// are external collaborators in the core's design — nothing in
// pkg/engine or pkg/stages imports this package; it is wired together
// only in cmd/easydep.
package githubrelease

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v39/github"
	"golang.org/x/oauth2"

	"github.com/easydep-io/easydep/pkg/clock"
	"github.com/easydep-io/easydep/pkg/release"
)

const (
	jwtLifetime     = 9 * time.Minute // GitHub's cap is 10 minutes
	jwtClockSkew    = 60 * time.Second
	tokenRenewGuard = 30 * time.Second
)

// Source polls the GitHub Releases API for the latest release of one
// repository, translating it into a release.Release (the body is passed
// through verbatim for TagAcceptance to parse).
type Source struct {
	client   *github.Client
	owner    string
	repo     string
	lastSeen int64
}

// NewSource builds a Source authenticated via fetcher's minted tokens.
func NewSource(owner, repo string, fetcher release.RepoFetcher) *Source {
	return &Source{
		client: github.NewClient(oauth2.NewClient(context.Background(), tokenSourceAdapter(fetcher))),
		owner:  owner,
		repo:   repo,
	}
}

// Poll returns the latest release if it is newer than the last one Poll
// returned, or nil if there is nothing new.
func (s *Source) Poll(ctx context.Context) (*release.Release, error) {
	rel, _, err := s.client.Repositories.GetLatestRelease(ctx, s.owner, s.repo)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	if rel == nil || rel.GetID() == 0 {
		return nil, nil
	}
	if rel.GetID() == s.lastSeen {
		return nil, nil
	}
	s.lastSeen = rel.GetID()

	return &release.Release{
		ID:       rel.GetID(),
		TagName:  rel.GetTagName(),
		Owner:    s.owner,
		RepoName: s.repo,
		Body:     rel.GetBody(),
	}, nil
}

// tokenSourceFunc adapts a release.RepoFetcher to oauth2.TokenSource.
type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

func tokenSourceAdapter(fetcher release.RepoFetcher) tokenSourceFunc {
	return func() (*oauth2.Token, error) {
		tok, err := fetcher.AccessToken(context.Background())
		if err != nil {
			return nil, err
		}
		return &oauth2.Token{AccessToken: tok}, nil
	}
}

// AppTokenFetcher mints short-lived GitHub App installation tokens,
// signing the app-level JWT itself and caching the installation token
// until shortly before it expires.
type AppTokenFetcher struct {
	appID          string
	installationID int64
	privateKey     *rsa.PrivateKey
	client         *github.Client
	clock          clock.Clock

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

// NewAppTokenFetcher parses pemKey (a normalized, multi-line PEM RSA
// private key — see pkg/config's loadPrivateKey) and prepares a fetcher
// for the given app/installation pair.
func NewAppTokenFetcher(appID string, installationID int64, pemKey string, clk clock.Clock) (*AppTokenFetcher, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("private key is not valid PEM")
	}
	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA private key: %w", err)
	}

	return &AppTokenFetcher{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		client:         github.NewClient(nil),
		clock:          clk,
	}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PKCS8 key is not RSA")
	}
	return rsaKey, nil
}

// AccessToken returns a cached installation token, minting a fresh one
// (via a freshly signed app JWT) if the cache is empty or about to
// expire.
func (f *AppTokenFetcher) AccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	if f.cached != "" && now.Before(f.expiresAt.Add(-tokenRenewGuard)) {
		return f.cached, nil
	}

	appJWT, err := f.signAppJWT(now)
	if err != nil {
		return "", fmt.Errorf("signing app JWT: %w", err)
	}

	client := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: appJWT})))
	tok, _, err := client.Apps.CreateInstallationToken(ctx, f.installationID, nil)
	if err != nil {
		return "", fmt.Errorf("minting installation token: %w", err)
	}

	f.cached = tok.GetToken()
	f.expiresAt = tok.GetExpiresAt()
	return f.cached, nil
}

func (f *AppTokenFetcher) signAppJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
		Issuer:    f.appID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(f.privateKey)
}
