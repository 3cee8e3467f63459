package stages

import (
	"os"
	"sort"

	"github.com/easydep-io/easydep/pkg/engine"
	"github.com/easydep-io/easydep/pkg/layout"
	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/metrics"
	"github.com/easydep-io/easydep/pkg/release"
)

// NewRetentionCleanup builds S7. maxStoredReleases<=0 disables retention
// entirely (the stage becomes a no-op pass-through). Failures are logged
// and swallowed — retention must never fail an otherwise successful
// deploy (invariant 8).
func NewRetentionCleanup(lay *layout.Layout, maxStoredReleases int, logger log.Logger) *engine.Stage {
	return &engine.Stage{
		Name: "RetentionCleanup",
		Exec: func(ctx *engine.Context, input any) (any, error) {
			rel := input.(release.Release)

			if maxStoredReleases <= 0 {
				return rel, nil
			}

			entries, err := os.ReadDir(lay.Root())
			if err != nil {
				logger.Warn("retention cleanup: failed to list deployments root: " + err.Error())
				return rel, nil
			}

			var ids []int64
			for _, e := range entries {
				if id, ok := layout.ParseReleaseID(e.Name()); ok {
					ids = append(ids, id)
				}
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

			if len(ids) <= maxStoredReleases {
				return rel, nil
			}

			for _, id := range ids[maxStoredReleases:] {
				if err := removeAllForced(lay.ReleaseDir(id)); err != nil {
					logger.Warn("retention cleanup: failed to remove old release directory: " + err.Error())
					continue
				}
				metrics.RetentionDeletionsTotal.Inc()
			}

			return rel, nil
		},
	}
}
