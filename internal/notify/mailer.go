package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Mailer sends notifications over SMTP with STARTTLS and plain auth,
// the path Gmail app passwords expect.
type Mailer struct {
	host       string
	port       int
	username   string
	password   string
	senderName string
	to         string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewMailer creates a Mailer. The sender address is the SMTP username.
func NewMailer(host string, port int, username, password, senderName, to string) *Mailer {
	return &Mailer{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		senderName: senderName,
		to:         to,
		send:       smtp.SendMail,
		now:        time.Now,
	}
}

// Send delivers one notification as an HTML mail. smtp.SendMail does
// not take a context, so cancellation is only honored between sends.
func (m *Mailer) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Subject: n.Subject, Err: err}
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	msg := m.buildMessage(n)

	if err := m.send(addr, auth, m.username, []string{m.to}, msg); err != nil {
		return &SendError{Subject: n.Subject, Err: fmt.Errorf("smtp send: %w", err)}
	}
	return nil
}

func (m *Mailer) buildMessage(n Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", m.senderName), m.username)
	fmt.Fprintf(&b, "To: %s\r\n", m.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}
