// Package layout owns the absolute filesystem paths the deployment agent
// reads and writes: the deployments root, per-release directories named
// by monotonic release id, the shared clone cache, and the current-
// release symlink.
package layout

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/easydep-io/easydep/pkg/deployerr"
)

const cloneCacheDirName = ".cache_clone"

// DefaultLinkName is used when EASYDEP_DEPLOY_LINK_DIRECTORY is unset.
const DefaultLinkName = "current"

// Layout is immutable after construction.
type Layout struct {
	root     string
	linkName string
}

// New normalizes root to an absolute path and validates it. linkName
// defaults to DefaultLinkName when empty.
func New(root, linkName string) (*Layout, error) {
	if root == "" {
		return nil, &deployerr.ConfigError{Field: "EASYDEP_DEPLOY_BASE_DIRECTORY", Reason: "must not be empty"}
	}
	if !filepath.IsAbs(root) {
		return nil, &deployerr.ConfigError{Field: "EASYDEP_DEPLOY_BASE_DIRECTORY", Reason: "must be an absolute path"}
	}
	if linkName == "" {
		linkName = DefaultLinkName
	}
	return &Layout{root: filepath.Clean(root), linkName: linkName}, nil
}

// Root returns the deployments root.
func (l *Layout) Root() string { return l.root }

// CloneCache returns the path of the persistent reusable clone.
func (l *Layout) CloneCache() string { return filepath.Join(l.root, cloneCacheDirName) }

// ReleaseDir returns the per-release working-copy path for id. Pure path
// computation, no I/O.
func (l *Layout) ReleaseDir(id int64) string {
	return filepath.Join(l.root, strconv.FormatInt(id, 10))
}

// CurrentLink returns the path of the current-release symlink.
func (l *Layout) CurrentLink() string { return filepath.Join(l.root, l.linkName) }

// CreateIfMissing creates root (and the parent directory the clone cache
// will live in) but never the clone-cache directory itself — that is
// RepoInit's job, so its absence can distinguish "never cloned" from "an
// existing, reusable cache".
func (l *Layout) CreateIfMissing() error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return &deployerr.ConfigError{Field: "EASYDEP_DEPLOY_BASE_DIRECTORY", Reason: err.Error()}
	}
	return nil
}

// ParseReleaseID parses a directory basename as a release id. It returns
// ok=false for names that are not a positive base-10 integer, so callers
// can distinguish release directories from the clone cache and the
// current-link name.
func ParseReleaseID(name string) (id int64, ok bool) {
	n, err := strconv.ParseInt(name, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CurrentReleaseID reads the target of CurrentLink and parses its
// basename as a release id. It returns -1 if the link is absent,
// unreadable, or its target does not parse.
func (l *Layout) CurrentReleaseID() int64 {
	target, err := os.Readlink(l.CurrentLink())
	if err != nil {
		return -1
	}
	id, ok := ParseReleaseID(filepath.Base(target))
	if !ok {
		return -1
	}
	return id
}
