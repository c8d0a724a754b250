package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// StateFilename is the file inside the gist that holds the seen set,
// serialized as a sorted JSON array of entry IDs.
const StateFilename = "seen.json"

const gistAPIBase = "https://api.github.com"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GistStore keeps the seen set in a file of a private GitHub gist.
// The original deployment runs from CI where a gist is the only durable
// storage available without provisioning anything.
type GistStore struct {
	client  HTTPClient
	token   string
	gistID  string
	baseURL string
}

// NewGistStore creates a store for the given gist.
func NewGistStore(client HTTPClient, token, gistID string) *GistStore {
	return &GistStore{
		client:  client,
		token:   token,
		gistID:  gistID,
		baseURL: gistAPIBase,
	}
}

// SetBaseURL overrides the GitHub API endpoint (useful for testing).
func (g *GistStore) SetBaseURL(url string) {
	g.baseURL = url
}

type gistFile struct {
	Content *string `json:"content"`
}

type gistPayload struct {
	Files map[string]gistFile `json:"files"`
}

// Load fetches and parses the stored seen set. A gist without the state
// file yet is an empty set (first run); anything else that goes wrong
// is a *LoadError, because an accidentally empty set would replay the
// entire backlog.
func (g *GistStore) Load(ctx context.Context) (model.SeenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gistURL(), nil)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("create request: %w", err)}
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("get gist: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Err: fmt.Errorf("get gist: unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read gist body: %w", err)}
	}

	var payload gistPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode gist response: %w", err)}
	}

	file, ok := payload.Files[StateFilename]
	if !ok || file.Content == nil {
		return model.NewSeenSet(), nil
	}

	var seen model.SeenSet
	if err := json.Unmarshal([]byte(*file.Content), &seen); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode %s: %w", StateFilename, err)}
	}
	return seen, nil
}

// Save writes the full set back as a single gist PATCH. Last writer
// wins when runs overlap.
func (g *GistStore) Save(ctx context.Context, seen model.SeenSet) error {
	content, err := json.Marshal(seen)
	if err != nil {
		return &PersistError{Err: fmt.Errorf("encode %s: %w", StateFilename, err)}
	}
	text := string(content)

	body, err := json.Marshal(gistPayload{
		Files: map[string]gistFile{
			StateFilename: {Content: &text},
		},
	})
	if err != nil {
		return &PersistError{Err: fmt.Errorf("encode gist payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, g.gistURL(), bytes.NewReader(body))
	if err != nil {
		return &PersistError{Err: fmt.Errorf("create request: %w", err)}
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return &PersistError{Err: fmt.Errorf("patch gist: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &PersistError{Err: fmt.Errorf("patch gist: unexpected status %d", resp.StatusCode)}
	}
	return nil
}

func (g *GistStore) gistURL() string {
	return fmt.Sprintf("%s/gists/%s", g.baseURL, g.gistID)
}

func (g *GistStore) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
}
