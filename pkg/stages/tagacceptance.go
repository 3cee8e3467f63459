package stages

import (
	"regexp"

	"github.com/pelletier/go-toml/v2"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/release"
	"github.com/easydep-io/easydep/pkg/tokenlist"
)

// labelMarkup is the single recognized section of the body's extracted
// capture: `labels = { key = "v1;;v2", "optional_key?" = "v" }`.
type labelMarkup struct {
	Labels map[string]string `toml:"labels"`
}

// NewTagAcceptance builds S1: it parses release.Body through
// bodyPattern's single capture group, reads that capture as TOML label
// markup, and cancels the context if the release's labels disagree with
// localLabels. A release-side label name suffixed "?" is optional;
// localLabels maps a plain label name to the server's single local value.
func NewTagAcceptance(bodyPattern *regexp.Regexp, localLabels map[string]string, logger log.Logger) *engine.Stage {
	return &engine.Stage{
		Name: "TagAcceptance",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rel := input.(release.Release)

			if rel.Body == "" {
				return rel, nil
			}

			m := bodyPattern.FindStringSubmatch(rel.Body)
			if m == nil || len(m) < 2 {
				logger.Warn("release body did not match the configured extraction pattern, cancelling")
				ctx.Cancel()
				return nil, nil
			}

			var parsed labelMarkup
			if err := toml.Unmarshal([]byte(m[1]), &parsed); err != nil {
				logger.Warn("release body capture is not valid label markup, cancelling: " + err.Error())
				ctx.Cancel()
				return nil, nil
			}

			if !labelsAccepted(parsed.Labels, localLabels, logger) {
				ctx.Cancel()
				return nil, nil
			}

			return rel, nil
		},
	}
}

// labelsAccepted implements property 6: cancels (returns false) iff some
// release-side label k is required-but-absent locally, or present locally
// with a value outside k's permitted set.
func labelsAccepted(releaseLabels, localLabels map[string]string, logger log.Logger) bool {
	for name, valueList := range releaseLabels {
		key, optional := normalizeLabelName(name)

		localValue, known := localLabels[key]
		if !known {
			if optional {
				continue
			}
			logger.Info("required label " + key + " has no local value, rejecting release")
			return false
		}

		allowed := tokenlist.ParseSet(valueList)
		if len(allowed) == 0 {
			continue
		}
		if _, ok := allowed[localValue]; !ok {
			logger.Info("local value for label " + key + " is not in the release's permitted set, rejecting release")
			return false
		}
	}
	return true
}

func normalizeLabelName(name string) (key string, optional bool) {
	if len(name) > 0 && name[len(name)-1] == '?' {
		return name[:len(name)-1], true
	}
	return name, false
}
