// Package reddit implements the small slice of the reddit API the
// actioner needs: submit a self-post and reply to a submission.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Field limits enforced by reddit.
const (
	MaxTitleLen   = 300
	MaxCommentLen = 9900
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthError means the credentials were rejected. Retrying will not
// help, so callers treat it as fatal rather than leaving candidates
// unread forever.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("reddit auth: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError means reddit asked us to slow down. The candidate
// stays unread and the next scheduled run retries.
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string { return "reddit rate limit: " + e.Detail }

// Client talks to the reddit API with script-app password-grant
// credentials.
type Client struct {
	client    HTTPClient
	clientID  string
	secret    string
	username  string
	password  string
	userAgent string

	tokenURL string
	apiBase  string
	token    string
}

// NewClient creates a Client. No network access happens until the
// first call; the OAuth token is fetched lazily and cached for the
// lifetime of the client (one job run).
func NewClient(client HTTPClient, clientID, secret, username, password, userAgent string) *Client {
	return &Client{
		client:    client,
		clientID:  clientID,
		secret:    secret,
		username:  username,
		password:  password,
		userAgent: userAgent,
		tokenURL:  tokenURL,
		apiBase:   apiBase,
	}
}

// SetEndpoints overrides the API endpoints (useful for testing).
func (c *Client) SetEndpoints(tokenURL, apiBase string) {
	c.tokenURL = tokenURL
	c.apiBase = apiBase
}

// Submit creates a self-post and returns its URL when the API reports
// one.
func (c *Client) Submit(ctx context.Context, subreddit, title, body string) (string, error) {
	if r := []rune(title); len(r) > MaxTitleLen {
		title = string(r[:MaxTitleLen])
	}

	form := url.Values{
		"api_type": {"json"},
		"kind":     {"self"},
		"sr":       {subreddit},
		"title":    {title},
		"text":     {body},
	}
	resp, err := c.postForm(ctx, "/api/submit", form)
	if err != nil {
		return "", fmt.Errorf("submit to r/%s: %w", subreddit, err)
	}
	return resp.JSON.Data.URL, nil
}

// Comment replies to the submission behind a comments permalink.
func (c *Client) Comment(ctx context.Context, permalink, text string) error {
	thingID, err := ThingID(permalink)
	if err != nil {
		return err
	}
	if r := []rune(text); len(r) > MaxCommentLen {
		text = string(r[:MaxCommentLen])
	}

	form := url.Values{
		"api_type": {"json"},
		"thing_id": {thingID},
		"text":     {text},
	}
	if _, err := c.postForm(ctx, "/api/comment", form); err != nil {
		return fmt.Errorf("comment on %s: %w", permalink, err)
	}
	return nil
}

var permalinkRe = regexp.MustCompile(`(?i)https?://www\.reddit\.com/r/[A-Za-z0-9_]+/comments/([0-9a-z]+)`)

// FindPermalink returns the first reddit comments permalink in text,
// or "" when none is present.
func FindPermalink(text string) string {
	return permalinkRe.FindString(text)
}

// ThingID extracts the t3_* fullname from a comments permalink.
func ThingID(permalink string) (string, error) {
	m := permalinkRe.FindStringSubmatch(permalink)
	if m == nil {
		return "", fmt.Errorf("no submission id in permalink %q", permalink)
	}
	return "t3_" + strings.ToLower(m[1]), nil
}

type apiResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"json"`
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*apiResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Err: fmt.Errorf("%s: status %d", path, resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Detail: fmt.Sprintf("%s: status 429", path)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	for _, apiErr := range parsed.JSON.Errors {
		if len(apiErr) > 0 && apiErr[0] == "RATELIMIT" {
			return nil, &RateLimitError{Detail: strings.Join(apiErr, ": ")}
		}
	}
	if len(parsed.JSON.Errors) > 0 {
		return nil, fmt.Errorf("%s: api error %v", path, parsed.JSON.Errors[0])
	}
	return &parsed, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Err: fmt.Errorf("token endpoint: status %d", resp.StatusCode)}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if parsed.Error != "" || parsed.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token endpoint: %q", parsed.Error)}
	}

	c.token = parsed.AccessToken
	return c.token, nil
}
