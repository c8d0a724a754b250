// Package model defines the domain types shared by both pipelines.
package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Entry is one item from the polled subreddit feed. Entries are immutable
// once fetched; all cross-run memory lives in the SeenSet.
type Entry struct {
	ID        string
	Title     string
	Author    string
	Published *time.Time
	Permalink string
	MediaLink string
	Summary   string
}

// SeenSet is the durable record of entry IDs that have already been
// evaluated. It only ever grows; membership is the dedup oracle.
type SeenSet map[string]struct{}

// NewSeenSet builds a set from the given IDs.
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s SeenSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s SeenSet) Add(id string) {
	s[id] = struct{}{}
}

// Union returns a new set containing the IDs of both sets.
func (s SeenSet) Union(other SeenSet) SeenSet {
	out := make(SeenSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the member IDs in sorted order.
func (s SeenSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarshalJSON serializes the set as a sorted JSON array of ID strings,
// the wire format of the remote state store.
func (s SeenSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON parses a JSON array of ID strings.
func (s *SeenSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSeenSet(ids...)
	return nil
}

// MailCandidate is one unread mailbox message under evaluation.
// Body holds the decoded text/plain part; empty means no plain-text
// part exists.
type MailCandidate struct {
	UID     uint32
	Subject string
	From    string
	Body    string
}

// PostSubmission is a reddit self-post derived from a matched candidate.
type PostSubmission struct {
	Title string
	Body  string
}

// CommentSubmission is a reddit comment derived from a matched reply.
type CommentSubmission struct {
	Permalink string
	Text      string
}
