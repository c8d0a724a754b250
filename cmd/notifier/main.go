package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jarmeli1/reddit-rss-alerts/internal/config"
	"github.com/jarmeli1/reddit-rss-alerts/internal/fetcher"
	"github.com/jarmeli1/reddit-rss-alerts/internal/filter"
	"github.com/jarmeli1/reddit-rss-alerts/internal/notifier"
	"github.com/jarmeli1/reddit-rss-alerts/internal/notify"
	"github.com/jarmeli1/reddit-rss-alerts/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := cfg.ValidateNotifier(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	spec, err := filter.ParseSpec(cfg.IncludeKeywords, cfg.ExcludeKeywords)
	if err != nil {
		log.Error("parse keyword filters", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	source := fetcher.New(httpClient)
	source.SetUserAgent(cfg.FeedUserAgent)

	store, closeStore, err := newStore(cfg, httpClient)
	if err != nil {
		log.Error("open state store", "backend", cfg.StateBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	transport, err := newTransport(cfg)
	if err != nil {
		log.Error("create notification channel", "channel", cfg.NotifyChannel, "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := notifier.New(source, store, transport, cfg.Subreddit, spec, cfg.Lookback, log)

	stats, err := runner.Run(ctx)
	if err != nil {
		log.Error("run failed", "sent", stats.Sent, "error", err)
		os.Exit(1)
	}

	log.Info("run complete", "subreddit", cfg.Subreddit, "sent", stats.Sent, "silent", stats.Silent)
}

func newStore(cfg *config.Config, client *http.Client) (state.Store, func(), error) {
	if cfg.StateBackend == "sqlite" {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, err
			}
		}
		s, err := state.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return state.NewGistStore(client, cfg.GistToken, cfg.GistID), func() {}, nil
}

func newTransport(cfg *config.Config) (notify.Transport, error) {
	if cfg.NotifyChannel == "telegram" {
		return notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	}
	return notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.GmailUser, cfg.GmailPassword, cfg.SenderName, cfg.ToEmail), nil
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
