// Package config loads easydep's configuration exclusively from
// EASYDEP_* environment variables, per the external-interfaces section
// of the design. A .env file in the working directory, if present, is
// loaded first (best-effort) the way codeready-toolchain/tarsy seeds its
// environment in development.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/easydep-io/easydep/pkg/deployerr"
	"github.com/easydep-io/easydep/pkg/tokenlist"
)

const (
	defaultLinkName          = "current"
	defaultPollInterval      = 10 * time.Second
	minPollInterval          = 100 * time.Millisecond
	defaultDiscarderMax      = 10
	minDiscarderMax          = 2
	defaultBodyParsePattern  = `(?s)(.*)`
)

// Config is the fully validated set of easydep settings.
type Config struct {
	GithubAppID         string
	GithubAppPrivateKey string // normalized PEM, always multi-line
	RepoOrg             string
	RepoName            string

	BaseDirectory string
	LinkName      string

	Labels             map[string]string
	AdditionalSymlinks map[string]string

	PollInterval time.Duration

	// DiscarderMax is the retention count. 0 disables retention.
	DiscarderMax int

	BodyParsePattern *regexp.Regexp
}

// Load reads and validates the environment. It loads a .env file from
// the working directory first, ignoring its absence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	var err error
	if cfg.GithubAppID, err = requireEnv("EASYDEP_GITHUB_APP_ID"); err != nil {
		return nil, err
	}
	rawKey, err := requireEnv("EASYDEP_GITHUB_APP_PRIVATE_KEY")
	if err != nil {
		return nil, err
	}
	if cfg.GithubAppPrivateKey, err = loadPrivateKey(rawKey); err != nil {
		return nil, err
	}
	if cfg.RepoOrg, err = requireEnv("EASYDEP_GITHUB_REPO_ORG"); err != nil {
		return nil, err
	}
	if cfg.RepoName, err = requireEnv("EASYDEP_GITHUB_REPO_NAME"); err != nil {
		return nil, err
	}
	if cfg.BaseDirectory, err = requireEnv("EASYDEP_DEPLOY_BASE_DIRECTORY"); err != nil {
		return nil, err
	}

	cfg.LinkName = envOr("EASYDEP_DEPLOY_LINK_DIRECTORY", defaultLinkName)

	cfg.Labels = tokenlist.Parse(os.Getenv("EASYDEP_DEPLOY_LABELS"), nil)
	cfg.AdditionalSymlinks = tokenlist.Parse(os.Getenv("EASYDEP_DEPLOY_ADDITIONAL_SYMLINKS"), nil)

	cfg.PollInterval, err = parsePollInterval(os.Getenv("EASYDEP_RELEASE_PULL_DELAY_MILLIS"))
	if err != nil {
		return nil, err
	}

	cfg.DiscarderMax, err = parseDiscarderMax(os.Getenv("EASYDEP_DEPLOY_DISCARDER_MAX"))
	if err != nil {
		return nil, err
	}

	pattern := envOr("EASYDEP_RELEASE_BODY_PARSE_PATTERN", defaultBodyParsePattern)
	cfg.BodyParsePattern, err = regexp.Compile(pattern)
	if err != nil {
		return nil, &deployerr.ConfigError{Field: "EASYDEP_RELEASE_BODY_PARSE_PATTERN", Reason: err.Error()}
	}

	return cfg, nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", &deployerr.ConfigError{Field: name, Reason: "required but not set"}
	}
	return v, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func parsePollInterval(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultPollInterval, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &deployerr.ConfigError{Field: "EASYDEP_RELEASE_PULL_DELAY_MILLIS", Reason: err.Error()}
	}
	d := time.Duration(ms) * time.Millisecond
	if d < minPollInterval {
		d = minPollInterval
	}
	return d, nil
}

func parseDiscarderMax(raw string) (int, error) {
	if raw == "" {
		return defaultDiscarderMax, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &deployerr.ConfigError{Field: "EASYDEP_DEPLOY_DISCARDER_MAX", Reason: err.Error()}
	}
	if n <= 0 {
		return 0, nil
	}
	if n < minDiscarderMax {
		n = minDiscarderMax
	}
	return n, nil
}

// loadPrivateKey accepts either a PEM blob or a filesystem path to one.
// The PEM may be the conventional multi-line form, or the single-line
// form (header/footer separated from the body by spaces instead of
// newlines) some CI systems require for single-line env vars; both are
// normalized to standard multi-line PEM.
func loadPrivateKey(raw string) (string, error) {
	content := raw
	if looksLikeFilePath(raw) {
		data, err := os.ReadFile(raw)
		if err != nil {
			return "", &deployerr.ConfigError{Field: "EASYDEP_GITHUB_APP_PRIVATE_KEY", Reason: err.Error()}
		}
		content = string(data)
	}
	return normalizePEM(content), nil
}

func looksLikeFilePath(raw string) bool {
	return !strings.Contains(raw, "BEGIN")
}

var pemHeader = regexp.MustCompile(`-----BEGIN ([A-Z ]+)-----`)
var pemFooter = regexp.MustCompile(`-----END ([A-Z ]+)-----`)

func normalizePEM(content string) string {
	if strings.Count(content, "\n") > 2 {
		// Already conventional multi-line PEM.
		return content
	}

	s := pemHeader.ReplaceAllString(content, "-----BEGIN $1-----\n")
	s = pemFooter.ReplaceAllString(s, "\n-----END $1-----\n")
	// Collapse the remaining space-separated base64 body onto its own line.
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var out strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-----BEGIN") || strings.HasPrefix(trimmed, "-----END") {
			out.WriteString(trimmed)
			out.WriteString("\n")
			continue
		}
		out.WriteString(strings.ReplaceAll(trimmed, " ", "\n"))
		out.WriteString("\n")
	}
	return out.String()
}

// LogFields returns a zerolog context with the non-secret configuration
// fields attached, for a one-time startup log line.
func (c *Config) LogFields(logger zerolog.Logger) zerolog.Logger {
	return logger.With().
		Str("repo", c.RepoOrg+"/"+c.RepoName).
		Str("base_directory", c.BaseDirectory).
		Dur("poll_interval", c.PollInterval).
		Int("discarder_max", c.DiscarderMax).
		Logger()
}
