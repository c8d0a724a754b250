package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jarmeli1/reddit-rss-alerts/internal/actioner"
	"github.com/jarmeli1/reddit-rss-alerts/internal/config"
	"github.com/jarmeli1/reddit-rss-alerts/internal/mailbox"
	"github.com/jarmeli1/reddit-rss-alerts/internal/reddit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := cfg.ValidateActioner(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	reader, err := mailbox.Dial(cfg.IMAPHost, cfg.IMAPPort, cfg.GmailUser, cfg.GmailPassword, cfg.IMAPMailbox)
	if err != nil {
		log.Error("connect mailbox", "host", cfg.IMAPHost, "error", err)
		os.Exit(1)
	}
	defer func() { _ = reader.Close() }()

	poster := reddit.NewClient(
		&http.Client{Timeout: 30 * time.Second},
		cfg.RedditClientID,
		cfg.RedditClientSecret,
		cfg.RedditUsername,
		cfg.RedditPassword,
		cfg.RedditUserAgent,
	)

	rules := actioner.Rules{
		PostPrefix:  cfg.PostPrefix,
		ReplyPrefix: cfg.ReplyPrefix,
	}

	mode := actioner.ModePost
	if cfg.ActionerMode == "reply" {
		mode = actioner.ModeReply
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d := actioner.NewDispatcher(reader, poster, cfg.PostSubreddit, rules, mode, log)

	stats, err := d.Run(ctx)
	if err != nil {
		log.Error("run failed",
			"submitted", stats.Submitted, "failed", stats.Failed, "error", err)
		os.Exit(1)
	}

	log.Info("run complete",
		"mode", cfg.ActionerMode,
		"submitted", stats.Submitted,
		"skipped", stats.Skipped,
		"deferred", stats.Deferred,
		"failed", stats.Failed,
	)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
