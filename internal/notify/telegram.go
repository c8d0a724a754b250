package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers notifications to a chat instead of a mailbox, for
// operators who'd rather get pinged than mailed.
type Telegram struct {
	api    telegramAPI
	chatID int64
}

// NewTelegram creates a Telegram transport for the given bot token and
// chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Send delivers the plain-text form of the notification.
func (t *Telegram) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Subject: n.Subject, Err: err}
	}

	msg := tgbotapi.NewMessage(t.chatID, n.Text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return &SendError{Subject: n.Subject, Err: fmt.Errorf("telegram send: %w", err)}
	}
	return nil
}
