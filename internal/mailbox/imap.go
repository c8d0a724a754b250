// Package mailbox lists and mutates unread messages over IMAP.
package mailbox

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// Reader is the mailbox surface the action dispatcher needs: list the
// unread candidates, and flip the read flag once a candidate reaches a
// terminal state.
type Reader interface {
	ListUnread(ctx context.Context) ([]model.MailCandidate, error)
	MarkRead(ctx context.Context, uid uint32) error
}

// IMAPReader implements Reader against a live IMAP connection.
type IMAPReader struct {
	c *client.Client
}

// Dial connects, authenticates, and selects the mailbox. The returned
// reader owns the connection; call Close when done.
func Dial(host string, port int, username, password, mailboxName string) (*IMAPReader, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}
	if err := c.Login(username, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(mailboxName, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("select mailbox %q: %w", mailboxName, err)
	}
	return &IMAPReader{c: c}, nil
}

// Close logs out and drops the connection.
func (r *IMAPReader) Close() error {
	return r.c.Logout()
}

// ListUnread fetches every message without the \Seen flag. Bodies are
// fetched with BODY.PEEK so the flag stays untouched until the
// dispatcher reaches a terminal decision. A message that fails to parse
// is returned with an empty body rather than dropped, so the dispatcher
// can still mark it read as unmatchable.
func (r *IMAPReader) ListUnread(ctx context.Context) ([]model.MailCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := r.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- r.c.UidFetch(seqset, items, messages)
	}()

	var candidates []model.MailCandidate
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			candidates = append(candidates, model.MailCandidate{UID: msg.Uid})
			continue
		}
		candidate, err := ParseCandidate(msg.Uid, body)
		if err != nil {
			candidates = append(candidates, model.MailCandidate{UID: msg.Uid})
			continue
		}
		candidates = append(candidates, candidate)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch unseen: %w", err)
	}
	return candidates, nil
}

// MarkRead adds the \Seen flag to one message.
func (r *IMAPReader) MarkRead(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := r.c.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("store \\Seen on uid %d: %w", uid, err)
	}
	return nil
}
