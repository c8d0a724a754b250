// Package fetcher downloads the subreddit RSS feed and converts it into
// domain entries.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// DefaultUserAgent identifies the poller to reddit. Reddit throttles
// generic library user agents aggressively.
const DefaultUserAgent = "github.com/jarmeli1/reddit-rss-alerts (RSS Gmail Alerts)"

const maxBodyBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError wraps any failure to download or parse the feed. It is
// fatal for the run: no state is mutated after it.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads and parses subreddit feeds.
type Fetcher struct {
	client    HTTPClient
	userAgent string
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: DefaultUserAgent,
	}
}

// SetUserAgent overrides the default feed user agent.
func (f *Fetcher) SetUserAgent(ua string) {
	f.userAgent = ua
}

// FeedURL returns the /new RSS endpoint for a subreddit.
func FeedURL(subreddit string) string {
	return fmt.Sprintf("https://www.reddit.com/r/%s/new/.rss", subreddit)
}

// Fetch downloads the subreddit feed and returns its entries in feed
// order. Any network, HTTP, or parse failure is returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, subreddit string) ([]model.Entry, error) {
	url := FeedURL(subreddit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("http get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("parse feed: %w", err)}
	}

	entries := make([]model.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, toEntry(item))
	}
	return entries, nil
}

// EntryID returns the stable identifier for a feed item: GUID, then
// link, then a SHA-256 hash of title+link. The id must survive content
// edits, so it never derives from title or summary when a GUID or link
// exists.
func EntryID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func toEntry(item *gofeed.Item) model.Entry {
	return model.Entry{
		ID:        EntryID(item),
		Title:     item.Title,
		Author:    itemAuthor(item),
		Published: itemPublished(item),
		Permalink: item.Link,
		MediaLink: mediaLink(item),
		Summary:   itemSummary(item),
	}
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

func itemPublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

// mediaLink extracts an attached media URL: media:content extension
// first, then the first enclosure. Empty when the entry has no media.
func mediaLink(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if url := ext.Attrs["url"]; url != "" {
				return url
			}
		}
		for _, ext := range media["thumbnail"] {
			if url := ext.Attrs["url"]; url != "" {
				return url
			}
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func itemSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
