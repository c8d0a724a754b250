package actioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jarmeli1/reddit-rss-alerts/internal/mailbox"
	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
	"github.com/jarmeli1/reddit-rss-alerts/internal/reddit"
)

// Mode selects which pipeline the dispatcher runs.
type Mode string

// Dispatcher modes.
const (
	ModePost  Mode = "post"
	ModeReply Mode = "reply"
)

// Poster is the slice of the reddit client the dispatcher needs.
type Poster interface {
	Submit(ctx context.Context, subreddit, title, body string) (string, error)
	Comment(ctx context.Context, permalink, text string) error
}

// Stats counts terminal outcomes of one run.
type Stats struct {
	Submitted int
	Skipped   int
	Deferred  int
	Failed    int
}

// Dispatcher walks the unread mailbox once and drives each candidate
// through the state machine. Candidates are independent: a submission
// failure on one never blocks the rest, with the single exception of a
// credential rejection, which aborts the run because every remaining
// submission would fail the same way.
type Dispatcher struct {
	reader    mailbox.Reader
	poster    Poster
	subreddit string
	rules     Rules
	mode      Mode
	log       *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(reader mailbox.Reader, poster Poster, subreddit string, rules Rules, mode Mode, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		reader:    reader,
		poster:    poster,
		subreddit: subreddit,
		rules:     rules,
		mode:      mode,
		log:       log,
	}
}

// Run processes every unread candidate and returns outcome counts.
func (d *Dispatcher) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	candidates, err := d.reader.ListUnread(ctx)
	if err != nil {
		return stats, fmt.Errorf("list unread: %w", err)
	}
	if len(candidates) == 0 {
		d.log.Info("no unread candidates")
		return stats, nil
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		decision := d.evaluate(c)
		switch decision.State {
		case StateMatched:
			if err := d.submit(ctx, c, decision); err != nil {
				var authErr *reddit.AuthError
				if errors.As(err, &authErr) {
					return stats, err
				}
				// Candidate stays unread; the next scheduled run retries.
				d.log.Error("submit failed, leaving unread",
					"uid", c.UID, "subject", c.Subject, "error", err)
				stats.Failed++
				continue
			}
			d.markRead(ctx, c)
			stats.Submitted++

		case StateSkipped:
			// Terminal regardless of reason, or the same dead candidate
			// would be reprocessed forever.
			d.log.Info("skipping candidate",
				"uid", c.UID, "from", c.From, "reason", decision.Reason)
			d.markRead(ctx, c)
			stats.Skipped++

		case StateDeferred:
			d.log.Debug("deferring candidate to other pipeline",
				"uid", c.UID, "reason", decision.Reason)
			stats.Deferred++
		}
	}
	return stats, nil
}

func (d *Dispatcher) evaluate(c model.MailCandidate) Decision {
	if d.mode == ModeReply {
		return EvaluateReply(c, d.rules)
	}
	return EvaluatePost(c, d.rules)
}

func (d *Dispatcher) submit(ctx context.Context, c model.MailCandidate, decision Decision) error {
	switch {
	case decision.Post != nil:
		url, err := d.poster.Submit(ctx, d.subreddit, decision.Post.Title, decision.Post.Body)
		if err != nil {
			return err
		}
		d.log.Info("posted", "uid", c.UID, "title", decision.Post.Title, "url", url)
		return nil
	case decision.Comment != nil:
		if err := d.poster.Comment(ctx, decision.Comment.Permalink, decision.Comment.Text); err != nil {
			return err
		}
		d.log.Info("commented", "uid", c.UID, "permalink", decision.Comment.Permalink)
		return nil
	default:
		return fmt.Errorf("matched candidate %d has no submission", c.UID)
	}
}

// markRead flips the terminal flag. A failure here is logged but not
// fatal: the worst case is one duplicate submission next run, which is
// the documented consistency level of the whole system.
func (d *Dispatcher) markRead(ctx context.Context, c model.MailCandidate) {
	if err := d.reader.MarkRead(ctx, c.UID); err != nil {
		d.log.Error("mark read", "uid", c.UID, "error", err)
	}
}
