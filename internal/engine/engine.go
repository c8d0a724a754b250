// Package engine partitions a fetched batch of entries against the
// seen set, the filter spec, and the lookback window.
package engine

import (
	"time"

	"github.com/jarmeli1/reddit-rss-alerts/internal/filter"
	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

// Plan is the outcome of partitioning one batch. Notify and Silent
// preserve feed order; Delta holds every ID that was not already seen,
// regardless of filter outcome. Filters gate notification, not dedup
// membership.
type Plan struct {
	// Notify holds unseen entries that passed the filter and lookback
	// tests, in feed order.
	Notify []model.Entry
	// Silent holds unseen entries that failed the filter or lookback
	// test. They are marked seen so they are never evaluated again, but
	// no notification fires.
	Silent []model.Entry
	// Delta is the set of IDs to merge into the persisted seen set.
	Delta model.SeenSet
}

// Partition splits entries into notify / mark-seen-silent / already-seen
// outcomes. It is a pure function: seen is not mutated.
//
// An entry is eligible to notify when its ID is unseen, it passes spec,
// and its publication time is within lookback of now (inclusive).
// Entries without a timestamp always pass the lookback test; a lookback
// of zero or less disables the window entirely. When the batch contains
// duplicate IDs only the first occurrence is evaluated.
func Partition(entries []model.Entry, seen model.SeenSet, spec filter.Spec, lookback time.Duration, now time.Time) Plan {
	plan := Plan{Delta: model.SeenSet{}}

	var cutoff time.Time
	if lookback > 0 {
		cutoff = now.Add(-lookback)
	}

	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		if seen.Contains(entry.ID) || plan.Delta.Contains(entry.ID) {
			continue
		}
		plan.Delta.Add(entry.ID)

		if !inWindow(entry.Published, cutoff) || !spec.Match(entry.Title+" "+entry.Summary) {
			plan.Silent = append(plan.Silent, entry)
			continue
		}
		plan.Notify = append(plan.Notify, entry)
	}
	return plan
}

// inWindow reports whether published is at or after cutoff. A nil
// timestamp is always in-window: the lookback guard exists to stop
// backlog floods, not to drop entries the feed forgot to date.
func inWindow(published *time.Time, cutoff time.Time) bool {
	if published == nil || cutoff.IsZero() {
		return true
	}
	return !published.Before(cutoff)
}
