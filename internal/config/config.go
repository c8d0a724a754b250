// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults mirror the production deployment.
const (
	DefaultSMTPHost      = "smtp.gmail.com"
	DefaultSMTPPort      = 587
	DefaultIMAPHost      = "imap.gmail.com"
	DefaultIMAPPort      = 993
	DefaultIMAPMailbox   = "INBOX"
	DefaultSenderName    = "EquipCore Alerts"
	DefaultLookback      = 60 * time.Minute
	DefaultPostPrefix    = "[Reddit] "
	DefaultReplyPrefix   = "Re: [r/"
	DefaultFeedUserAgent = "github.com/jarmeli1/reddit-rss-alerts (RSS Gmail Alerts)"
)

// Config holds the configuration for both jobs. Load reads everything
// available; ValidateNotifier and ValidateActioner enforce the subset
// each job actually needs.
type Config struct {
	LogLevel string

	// Notifier: feed side.
	Subreddit       string
	Lookback        time.Duration
	IncludeKeywords []string
	ExcludeKeywords []string
	FeedUserAgent   string

	// Notifier: delivery channel.
	NotifyChannel  string // "email" or "telegram"
	SMTPHost       string
	SMTPPort       int
	GmailUser      string
	GmailPassword  string
	ToEmail        string
	SenderName     string
	TelegramToken  string
	TelegramChatID int64

	// Seen-set backend.
	StateBackend string // "gist" or "sqlite"
	GistToken    string
	GistID       string
	DatabasePath string

	// Actioner: mailbox side.
	IMAPHost    string
	IMAPPort    int
	IMAPMailbox string
	PostPrefix  string
	ReplyPrefix string

	// Actioner: reddit side.
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string
	PostSubreddit      string
	ActionerMode       string // "post" or "reply"
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over file entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:        envOr("LOG_LEVEL", "info"),
		Subreddit:       os.Getenv("SUBREDDIT"),
		IncludeKeywords: splitList(os.Getenv("INCLUDE_KEYWORDS")),
		ExcludeKeywords: splitList(os.Getenv("EXCLUDE_KEYWORDS")),
		FeedUserAgent:   envOr("FEED_USER_AGENT", DefaultFeedUserAgent),

		NotifyChannel: envOr("NOTIFY_CHANNEL", "email"),
		SMTPHost:      envOr("SMTP_HOST", DefaultSMTPHost),
		GmailUser:     os.Getenv("GMAIL_USER"),
		GmailPassword: os.Getenv("GMAIL_APP_PASSWORD"),
		ToEmail:       os.Getenv("TO_EMAIL"),
		SenderName:    envOr("SENDER_NAME", DefaultSenderName),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		StateBackend: envOr("STATE_BACKEND", "gist"),
		GistToken:    os.Getenv("GIST_TOKEN"),
		GistID:       os.Getenv("GIST_ID"),
		DatabasePath: envOr("DATABASE_PATH", "./data/alerts.db"),

		IMAPHost:    envOr("GMAIL_IMAP_HOST", DefaultIMAPHost),
		IMAPMailbox: envOr("GMAIL_IMAP_MAILBOX", DefaultIMAPMailbox),
		PostPrefix:  envOr("EMAIL_SUBJECT_PREFIX", DefaultPostPrefix),
		ReplyPrefix: envOr("EMAIL_REPLY_SUBJECT_PREFIX", DefaultReplyPrefix),

		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUsername:     os.Getenv("REDDIT_USERNAME"),
		RedditPassword:     os.Getenv("REDDIT_PASSWORD"),
		RedditUserAgent:    envOr("REDDIT_USER_AGENT", "github.com/jarmeli1/reddit-rss-alerts (Email to Reddit)"),
		PostSubreddit:      os.Getenv("POST_SUBREDDIT"),
		ActionerMode:       envOr("ACTIONER_MODE", "post"),
	}

	var err error
	if cfg.SMTPPort, err = envInt("SMTP_PORT", DefaultSMTPPort); err != nil {
		return nil, err
	}
	if cfg.IMAPPort, err = envInt("GMAIL_IMAP_PORT", DefaultIMAPPort); err != nil {
		return nil, err
	}

	minutes, err := envInt("POLL_LOOKBACK_MINUTES", int(DefaultLookback/time.Minute))
	if err != nil {
		return nil, err
	}
	cfg.Lookback = time.Duration(minutes) * time.Minute

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
	}

	return cfg, nil
}

// ValidateNotifier checks the variables the notifier job needs.
func (c *Config) ValidateNotifier() error {
	required := []envVar{{"SUBREDDIT", c.Subreddit}}

	switch c.NotifyChannel {
	case "email":
		required = append(required,
			envVar{"GMAIL_USER", c.GmailUser},
			envVar{"GMAIL_APP_PASSWORD", c.GmailPassword},
			envVar{"TO_EMAIL", c.ToEmail},
		)
	case "telegram":
		required = append(required, envVar{"TELEGRAM_BOT_TOKEN", c.TelegramToken})
		if c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required")
		}
	default:
		return fmt.Errorf("invalid NOTIFY_CHANNEL %q (want email or telegram)", c.NotifyChannel)
	}

	if err := c.validateStateBackend(&required); err != nil {
		return err
	}
	return requireAll(required)
}

// ValidateActioner checks the variables the actioner job needs.
func (c *Config) ValidateActioner() error {
	if c.ActionerMode != "post" && c.ActionerMode != "reply" {
		return fmt.Errorf("invalid ACTIONER_MODE %q (want post or reply)", c.ActionerMode)
	}
	return requireAll([]envVar{
		{"GMAIL_USER", c.GmailUser},
		{"GMAIL_APP_PASSWORD", c.GmailPassword},
		{"REDDIT_CLIENT_ID", c.RedditClientID},
		{"REDDIT_CLIENT_SECRET", c.RedditClientSecret},
		{"REDDIT_USERNAME", c.RedditUsername},
		{"REDDIT_PASSWORD", c.RedditPassword},
		{"POST_SUBREDDIT", c.PostSubreddit},
	})
}

func (c *Config) validateStateBackend(required *[]envVar) error {
	switch c.StateBackend {
	case "gist":
		*required = append(*required,
			envVar{"GIST_TOKEN", c.GistToken},
			envVar{"GIST_ID", c.GistID},
		)
	case "sqlite":
		*required = append(*required, envVar{"DATABASE_PATH", c.DatabasePath})
	default:
		return fmt.Errorf("invalid STATE_BACKEND %q (want gist or sqlite)", c.StateBackend)
	}
	return nil
}

type envVar struct {
	name  string
	value string
}

func requireAll(vars []envVar) error {
	for _, v := range vars {
		if v.value == "" {
			return fmt.Errorf("%s is required", v.name)
		}
	}
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", name, raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
