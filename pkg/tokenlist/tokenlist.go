// Package tokenlist implements the ";;"-delimited "key:value" grammar
// used by several EASYDEP_* environment variables and by label value
// sets embedded in a release's TOML body.
package tokenlist

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var recordPattern = regexp.MustCompile(`^([A-Za-z0-9_./\- ]+):(.+)$`)

// Parse splits s on literal ";;" into key:value records matching
// `^([A-Za-z0-9_./\- ]+):(.+)$`. Blank records are ignored. A record
// that does not match the pattern, or a duplicate key, is logged as a
// warning on logger (if non-nil) and dropped / retains the first-seen
// value respectively.
func Parse(s string, logger *zerolog.Logger) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return out
	}

	for _, record := range strings.Split(s, ";;") {
		if strings.TrimSpace(record) == "" {
			continue
		}
		m := recordPattern.FindStringSubmatch(record)
		if m == nil {
			warn(logger, "dropping malformed token-list record", record)
			continue
		}
		key, value := m[1], m[2]
		if _, exists := out[key]; exists {
			warn(logger, "duplicate token-list key, keeping first-seen value", key)
			continue
		}
		out[key] = value
	}
	return out
}

// ParseSet splits s on literal ";;" and returns the whitespace-trimmed,
// non-blank tokens as a set — used for label value lists like
// "live1;;live2". Tokens are plain values, not key:value records.
func ParseSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, v := range strings.Split(s, ";;") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}

func warn(logger *zerolog.Logger, msg, detail string) {
	if logger == nil {
		return
	}
	logger.Warn().Str("record", detail).Msg(msg)
}
