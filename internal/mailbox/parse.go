package mailbox

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// ParseCandidate reads one raw RFC 5322 message and extracts the fields
// the dispatcher evaluates. Body holds the first text/plain part that
// is not an attachment; it stays empty when none exists.
func ParseCandidate(uid uint32, r io.Reader) (model.MailCandidate, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return model.MailCandidate{}, fmt.Errorf("read message: %w", err)
	}
	return model.MailCandidate{
		UID:     uid,
		Subject: DecodeHeader(msg.Header.Get("Subject")),
		From:    DecodeHeader(msg.Header.Get("From")),
		Body:    strings.TrimSpace(extractPlainText(msg.Header, msg.Body)),
	}, nil
}

// DecodeHeader decodes MIME encoded-words (RFC 2047), falling back to
// the raw value when decoding fails.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	dec := &mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

type headerGetter interface {
	Get(key string) string
}

// extractPlainText walks the MIME tree and returns the first
// text/plain part that is not marked as an attachment.
func extractPlainText(header headerGetter, body io.Reader) string {
	ctype, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		ctype = "text/plain"
	}

	if strings.HasPrefix(ctype, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				return ""
			}
			if text := extractPlainText(p.Header, p); text != "" {
				return text
			}
		}
	}

	if ctype != "text/plain" {
		return ""
	}
	if disp, _, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && disp == "attachment" {
		return ""
	}

	reader := body
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		reader = quotedprintable.NewReader(body)
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return decodeCharset(raw, params["charset"])
}

func decodeCharset(raw []byte, charset string) string {
	if charset == "" {
		return string(raw)
	}
	enc, err := ianaindex.IANA.Encoding(strings.ToLower(charset))
	if err != nil || enc == nil {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(strings.ToLower(charset))
	if err != nil || enc == nil {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}

// TrimReplyQuotes drops the quoted original message from a reply body,
// best effort: everything from the first quote marker onward goes.
func TrimReplyQuotes(body string) string {
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasPrefix(trimmed, ">") {
			break
		}
		if strings.HasPrefix(trimmed, "On ") && strings.Contains(trimmed, " wrote:") {
			break
		}
		if strings.HasPrefix(trimmed, "From: ") {
			break
		}
		kept = append(kept, trimmed)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
