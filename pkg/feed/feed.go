// Package feed implements the ReleaseFeed (C7): a periodic poll loop
// against the external release source, handing each new release to the
// supervisor.
package feed

import (
	"context"
	"time"

	"github.com/easydep-io/easydep/pkg/log"
	"github.com/easydep-io/easydep/pkg/metrics"
	"github.com/easydep-io/easydep/pkg/release"
)

const minPollInterval = 100 * time.Millisecond

// Enqueuer receives releases the feed discovers. Implemented by
// *supervisor.Supervisor.
type Enqueuer interface {
	Enqueue(rel release.Release)
}

// Feed polls source at a floor-clamped interval and enqueues whatever it
// returns.
type Feed struct {
	source       release.Source
	enqueuer     Enqueuer
	pollInterval time.Duration
	logger       log.Logger
}

// New constructs a Feed. pollInterval is floor-clamped to minPollInterval.
func New(source release.Source, enqueuer Enqueuer, pollInterval time.Duration, logger log.Logger) *Feed {
	if pollInterval < minPollInterval {
		pollInterval = minPollInterval
	}
	return &Feed{source: source, enqueuer: enqueuer, pollInterval: pollInterval, logger: logger}
}

// Run loops until ctx is cancelled. I/O errors from source.Poll are
// logged and swallowed; the loop retries on the next tick.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		f.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (f *Feed) pollOnce(ctx context.Context) {
	rel, err := f.source.Poll(ctx)
	if err != nil {
		metrics.PollErrorsTotal.Inc()
		f.logger.Warn("release feed poll failed: " + err.Error())
		return
	}
	if rel == nil {
		return
	}
	f.enqueuer.Enqueue(*rel)
}
