// Package actioner turns unread mailbox messages into reddit posts or
// comments.
package actioner

import (
	"fmt"
	"strings"

	"github.com/jarmeli1/reddit-rss-alerts/internal/mailbox"
	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
	"github.com/jarmeli1/reddit-rss-alerts/internal/reddit"
)

// State is the lifecycle of one candidate within a run.
//
//	Unread -> Matched  -> Read   (submitted successfully)
//	Unread -> Matched  -> Unread (submission failed, retried next run)
//	Unread -> Skipped  -> Read   (always terminal, whatever the reason)
//	Unread -> Deferred -> Unread (belongs to the other pipeline, untouched)
type State int

// Candidate states.
const (
	StateUnread State = iota
	StateMatched
	StateSkipped
	StateDeferred
	StateRead
)

func (s State) String() string {
	switch s {
	case StateUnread:
		return "unread"
	case StateMatched:
		return "matched"
	case StateSkipped:
		return "skipped"
	case StateDeferred:
		return "deferred"
	case StateRead:
		return "read"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// untitledPlaceholder replaces a post title that is empty after prefix
// stripping.
const untitledPlaceholder = "(untitled email)"

// Rules hold the subject prefixes that route a candidate. The post
// prefix claims new submissions; the reply prefix claims comment
// replies to alert mails. An empty prefix matches every subject.
type Rules struct {
	PostPrefix  string
	ReplyPrefix string
}

// Decision is the pure evaluation outcome for one candidate. Exactly
// one of Post or Comment is set when State is StateMatched.
type Decision struct {
	State   State
	Reason  string
	Post    *model.PostSubmission
	Comment *model.CommentSubmission
}

// EvaluatePost decides what the post pipeline does with a candidate.
// Matched requires the post prefix (exact, case-sensitive, leading) and
// a non-empty plain-text body. A subject carrying the reply prefix
// instead is deferred untouched for the reply pipeline.
func EvaluatePost(c model.MailCandidate, rules Rules) Decision {
	if !strings.HasPrefix(c.Subject, rules.PostPrefix) {
		if rules.ReplyPrefix != "" && strings.HasPrefix(c.Subject, rules.ReplyPrefix) {
			return Decision{State: StateDeferred, Reason: "subject matches reply prefix"}
		}
		return Decision{State: StateSkipped, Reason: fmt.Sprintf("subject missing prefix %q", rules.PostPrefix)}
	}

	if c.Body == "" {
		return Decision{State: StateSkipped, Reason: "no text/plain body"}
	}

	title := strings.TrimSpace(strings.TrimPrefix(c.Subject, rules.PostPrefix))
	if title == "" {
		title = untitledPlaceholder
	}
	if r := []rune(title); len(r) > reddit.MaxTitleLen {
		title = string(r[:reddit.MaxTitleLen])
	}

	return Decision{
		State: StateMatched,
		Post:  &model.PostSubmission{Title: title, Body: c.Body},
	}
}

// EvaluateReply decides what the reply pipeline does with a candidate.
// Matched requires the reply prefix, a non-empty body after quote
// trimming, and a reddit comments permalink somewhere in the body.
func EvaluateReply(c model.MailCandidate, rules Rules) Decision {
	if !strings.HasPrefix(c.Subject, rules.ReplyPrefix) {
		if rules.PostPrefix != "" && strings.HasPrefix(c.Subject, rules.PostPrefix) {
			return Decision{State: StateDeferred, Reason: "subject matches post prefix"}
		}
		return Decision{State: StateSkipped, Reason: fmt.Sprintf("subject missing reply prefix %q", rules.ReplyPrefix)}
	}

	permalink := reddit.FindPermalink(c.Body)
	text := mailbox.TrimReplyQuotes(c.Body)
	if text == "" {
		return Decision{State: StateSkipped, Reason: "no comment body after quote trimming"}
	}
	if permalink == "" {
		return Decision{State: StateSkipped, Reason: "no reddit permalink found"}
	}
	if r := []rune(text); len(r) > reddit.MaxCommentLen {
		text = string(r[:reddit.MaxCommentLen])
	}

	return Decision{
		State:   StateMatched,
		Comment: &model.CommentSubmission{Permalink: permalink, Text: text},
	}
}
