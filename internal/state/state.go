// Package state persists the seen-entry set between runs.
package state

import (
	"context"
	"fmt"

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// Store is the durable home of the SeenSet. Load returns a snapshot
// copy valid for one run; Save replaces the stored set wholesale.
// There is no compare-and-swap: overlapping runs resolve last-writer-
// wins, which at worst re-delivers a notification and never loses one.
type Store interface {
	Load(ctx context.Context) (model.SeenSet, error)
	Save(ctx context.Context, seen model.SeenSet) error
}

// LoadError is fatal: proceeding with an empty set would replay the
// whole backlog as new, so there is no safe default.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load seen state: %v", e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// PersistError is fatal even when every notification already went out:
// a stale store reintroduces duplicate delivery risk on the next run
// and the operator must be alerted.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist seen state: %v", e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }
