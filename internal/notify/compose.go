// Package notify composes and delivers entry notifications.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// maxSubjectTitleLen caps the entry title inside the mail subject.
// Some mail providers silently mangle longer subject lines.
const maxSubjectTitleLen = 180

// Notification is a composed, channel-agnostic message for one entry.
// HTML feeds the mail transport, Text feeds plain-text channels.
type Notification struct {
	Subject string
	HTML    string
	Text    string
}

// SendError wraps a transport failure for one notification.
type SendError struct {
	Subject string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send notification %q: %v", e.Subject, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Transport delivers a composed notification. Implementations must not
// retry internally: the external scheduler re-triggers the whole job
// and the dedup layer makes redelivery safe.
type Transport interface {
	Send(ctx context.Context, n Notification) error
}

// Compose renders an entry into a notification. Pure: no network, no
// clock.
func Compose(subreddit string, entry model.Entry) Notification {
	return Notification{
		Subject: composeSubject(subreddit, entry),
		HTML:    composeHTML(subreddit, entry),
		Text:    composeText(subreddit, entry),
	}
}

func composeSubject(subreddit string, entry model.Entry) string {
	title := entry.Title
	if title == "" {
		title = "(no title)"
	}
	if r := []rune(title); len(r) > maxSubjectTitleLen {
		title = string(r[:maxSubjectTitleLen])
	}
	return fmt.Sprintf("[r/%s] %s", subreddit, title)
}

func composeHTML(subreddit string, entry model.Entry) string {
	title := entry.Title
	if title == "" {
		title = "(no title)"
	}
	author := entry.Author
	if author == "" {
		author = "unknown"
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family: -apple-system, Segoe UI, Roboto, Arial, sans-serif; line-height:1.5">` + "\n")
	fmt.Fprintf(&b, `<h2 style="margin:0 0 6px 0">[r/%s] %s</h2>`+"\n", html.EscapeString(subreddit), html.EscapeString(title))

	fmt.Fprintf(&b, `<p style="margin:0 0 10px 0"><b>Author:</b> %s`, html.EscapeString(author))
	if entry.Published != nil {
		fmt.Fprintf(&b, ` | <b>Published:</b> %s`, html.EscapeString(formatPublished(*entry.Published)))
	}
	b.WriteString("</p>\n")

	fmt.Fprintf(&b, `<p style="margin:0 0 10px 0"><b>Reddit Link:</b> <a href="%s">%s</a></p>`+"\n",
		html.EscapeString(entry.Permalink), html.EscapeString(entry.Permalink))

	if entry.MediaLink != "" {
		fmt.Fprintf(&b, `<p style="margin:0 0 10px 0"><b>Media Link:</b> <a href="%s">%s</a></p>`+"\n",
			html.EscapeString(entry.MediaLink), html.EscapeString(entry.MediaLink))
	}

	b.WriteString(`<hr style="border:none;border-top:1px solid #ddd;margin:10px 0"/>` + "\n")
	// The summary is reddit-rendered HTML and is embedded as-is.
	fmt.Fprintf(&b, "<div>%s</div>\n", entry.Summary)
	b.WriteString("</div>")
	return b.String()
}

func composeText(subreddit string, entry model.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[r/%s] %s\n", subreddit, entry.Title)
	if entry.Author != "" {
		fmt.Fprintf(&b, "\nAuthor: %s", entry.Author)
	}
	if entry.Published != nil {
		fmt.Fprintf(&b, "\nPublished: %s", formatPublished(*entry.Published))
	}
	if entry.Permalink != "" {
		fmt.Fprintf(&b, "\n\n%s", entry.Permalink)
	}
	if entry.MediaLink != "" {
		fmt.Fprintf(&b, "\nMedia: %s", entry.MediaLink)
	}
	return b.String()
}

func formatPublished(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 MST")
}
