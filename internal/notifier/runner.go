// Package notifier runs the feed-to-mailbox pipeline once: fetch,
// partition, send, persist.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jarmeli1/reddit-rss-alerts/internal/engine"
	"github.com/jarmeli1/reddit-rss-alerts/internal/filter"
	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
	"github.com/jarmeli1/reddit-rss-alerts/internal/notify"
	"github.com/jarmeli1/reddit-rss-alerts/internal/state"
)

// FeedSource fetches the current batch of entries for a subreddit.
type FeedSource interface {
	Fetch(ctx context.Context, subreddit string) ([]model.Entry, error)
}

// Stats counts the outcomes of one run.
type Stats struct {
	Sent   int
	Silent int
}

// Runner executes one single-pass run of the notification pipeline.
type Runner struct {
	source    FeedSource
	store     state.Store
	transport notify.Transport
	subreddit string
	spec      filter.Spec
	lookback  time.Duration
	log       *slog.Logger

	now func() time.Time
}

// New creates a Runner.
func New(source FeedSource, store state.Store, transport notify.Transport, subreddit string, spec filter.Spec, lookback time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		source:    source,
		store:     store,
		transport: transport,
		subreddit: subreddit,
		spec:      spec,
		lookback:  lookback,
		log:       log,
		now:       time.Now,
	}
}

// Run executes the pipeline once. The seen-set write is strictly the
// last action: a crash between sending and persisting redelivers on
// the next run instead of losing entries. When a send fails, the run
// stops sending, persists only what succeeded (plus the silent ids),
// and reports the send error — the unsent ids stay out of the store so
// the next run picks them up again.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	entries, err := r.source.Fetch(ctx, r.subreddit)
	if err != nil {
		return stats, err
	}
	r.log.Debug("fetched feed", "subreddit", r.subreddit, "entries", len(entries))

	seen, err := r.store.Load(ctx)
	if err != nil {
		return stats, err
	}

	plan := engine.Partition(entries, seen, r.spec, r.lookback, r.now())
	r.log.Debug("partitioned batch",
		"notify", len(plan.Notify), "silent", len(plan.Silent), "already_seen", len(entries)-len(plan.Delta))

	delta := model.NewSeenSet()
	for _, entry := range plan.Silent {
		delta.Add(entry.ID)
	}
	stats.Silent = len(plan.Silent)

	var sendErr error
	for _, entry := range plan.Notify {
		n := notify.Compose(r.subreddit, entry)
		if err := r.transport.Send(ctx, n); err != nil {
			// The failed entry's id must not be persisted, or it is
			// lost forever.
			sendErr = fmt.Errorf("entry %s: %w", entry.ID, err)
			break
		}
		delta.Add(entry.ID)
		stats.Sent++
		r.log.Info("notification sent", "entry_id", entry.ID, "subject", n.Subject)
	}

	if len(delta) > 0 {
		if err := r.store.Save(ctx, seen.Union(delta)); err != nil {
			if sendErr != nil {
				r.log.Error("send failure preceded persist failure", "error", sendErr)
			}
			return stats, err
		}
	}

	if sendErr != nil {
		return stats, sendErr
	}
	return stats, nil
}
