package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jarmeli1/reddit-rss-alerts/internal/filter"
	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
)

var now = time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)

func entry(id, title string, published *time.Time) model.Entry {
	return model.Entry{ID: id, Title: title, Published: published}
}

func ts(t time.Time) *time.Time { return &t }

func mustSpec(t *testing.T, include, exclude []string) filter.Spec {
	t.Helper()
	spec, err := filter.ParseSpec(include, exclude)
	if err != nil {
		t.Fatalf("parse spec: %v", err)
	}
	return spec
}

func notifyIDs(p Plan) []string {
	ids := []string{}
	for _, e := range p.Notify {
		ids = append(ids, e.ID)
	}
	return ids
}

func silentIDs(p Plan) []string {
	ids := []string{}
	for _, e := range p.Silent {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestPartition(t *testing.T) {
	window := time.Hour

	tests := []struct {
		name       string
		entries    []model.Entry
		seen       model.SeenSet
		include    []string
		exclude    []string
		wantNotify []string
		wantSilent []string
		wantDelta  []string
	}{
		{
			name: "unseen matching entry notifies",
			entries: []model.Entry{
				entry("a", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
			},
			seen:       model.NewSeenSet(),
			include:    []string{"knee"},
			wantNotify: []string{"a"},
			wantSilent: []string{},
			wantDelta:  []string{"a"},
		},
		{
			name: "already seen entry is untouched",
			entries: []model.Entry{
				entry("a", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
			},
			seen:       model.NewSeenSet("a"),
			include:    []string{"knee"},
			wantNotify: []string{},
			wantSilent: []string{},
			wantDelta:  []string{},
		},
		{
			name: "filter miss is marked seen silently",
			entries: []model.Entry{
				entry("a", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
			},
			seen:       model.NewSeenSet(),
			include:    []string{"hip"},
			wantNotify: []string{},
			wantSilent: []string{"a"},
			wantDelta:  []string{"a"},
		},
		{
			name: "exclude wins over include",
			entries: []model.Entry{
				entry("a", "Sponsored knee brace promo", ts(now.Add(-10*time.Minute))),
			},
			seen:       model.NewSeenSet(),
			include:    []string{"knee"},
			exclude:    []string{"sponsored"},
			wantNotify: []string{},
			wantSilent: []string{"a"},
			wantDelta:  []string{"a"},
		},
		{
			name: "lookback boundary is inclusive",
			entries: []model.Entry{
				entry("exact", "on the boundary", ts(now.Add(-window))),
				entry("stale", "one second older", ts(now.Add(-window-time.Second))),
			},
			seen:       model.NewSeenSet(),
			wantNotify: []string{"exact"},
			wantSilent: []string{"stale"},
			wantDelta:  []string{"exact", "stale"},
		},
		{
			name: "missing timestamp always passes lookback",
			entries: []model.Entry{
				entry("undated", "no timestamp at all", nil),
			},
			seen:       model.NewSeenSet(),
			wantNotify: []string{"undated"},
			wantSilent: []string{},
			wantDelta:  []string{"undated"},
		},
		{
			name: "stale entry still joins delta",
			entries: []model.Entry{
				entry("old", "Knee surgery tips", ts(now.Add(-48*time.Hour))),
			},
			seen:       model.NewSeenSet(),
			include:    []string{"knee"},
			wantNotify: []string{},
			wantSilent: []string{"old"},
			wantDelta:  []string{"old"},
		},
		{
			name: "duplicate ids fold into one outcome",
			entries: []model.Entry{
				entry("dup", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
				entry("dup", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
				entry("dup", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
			},
			seen:       model.NewSeenSet(),
			include:    []string{"knee"},
			wantNotify: []string{"dup"},
			wantSilent: []string{},
			wantDelta:  []string{"dup"},
		},
		{
			name: "feed order preserved",
			entries: []model.Entry{
				entry("c", "knee one", ts(now.Add(-5*time.Minute))),
				entry("a", "knee two", ts(now.Add(-4*time.Minute))),
				entry("b", "knee three", ts(now.Add(-3*time.Minute))),
			},
			seen:       model.NewSeenSet(),
			include:    []string{"knee"},
			wantNotify: []string{"c", "a", "b"},
			wantSilent: []string{},
			wantDelta:  []string{"a", "b", "c"},
		},
		{
			name: "blank id is skipped entirely",
			entries: []model.Entry{
				entry("", "no id", ts(now.Add(-5*time.Minute))),
				entry("a", "knee ok", ts(now.Add(-5*time.Minute))),
			},
			seen:       model.NewSeenSet(),
			wantNotify: []string{"a"},
			wantSilent: []string{},
			wantDelta:  []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := mustSpec(t, tt.include, tt.exclude)
			plan := Partition(tt.entries, tt.seen, spec, window, now)

			if diff := cmp.Diff(tt.wantNotify, notifyIDs(plan)); diff != "" {
				t.Errorf("notify mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSilent, silentIDs(plan)); diff != "" {
				t.Errorf("silent mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDelta, plan.Delta.IDs()); diff != "" {
				t.Errorf("delta mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPartitionIdempotence(t *testing.T) {
	entries := []model.Entry{
		entry("a", "Knee surgery tips", ts(now.Add(-10*time.Minute))),
		entry("b", "Hip replacement story", ts(now.Add(-20*time.Minute))),
		entry("c", "Knee rehab plan", ts(now.Add(-30*time.Minute))),
	}
	spec := mustSpec(t, []string{"knee"}, nil)
	seen := model.NewSeenSet()

	first := Partition(entries, seen, spec, time.Hour, now)
	if len(first.Notify) != 2 {
		t.Fatalf("first run notify = %d, want 2", len(first.Notify))
	}

	updated := seen.Union(first.Delta)
	second := Partition(entries, updated, spec, time.Hour, now)

	if diff := cmp.Diff([]string{}, notifyIDs(second)); diff != "" {
		t.Errorf("second run notify mismatch (-want +got):\n%s", diff)
	}
	if len(second.Delta) != 0 {
		t.Errorf("second run delta = %v, want empty", second.Delta.IDs())
	}
}

func TestPartitionDoesNotMutateSeen(t *testing.T) {
	entries := []model.Entry{entry("a", "knee", ts(now))}
	seen := model.NewSeenSet("other")

	Partition(entries, seen, filter.Spec{}, time.Hour, now)

	if diff := cmp.Diff([]string{"other"}, seen.IDs()); diff != "" {
		t.Errorf("seen set mutated (-want +got):\n%s", diff)
	}
}

func TestPartitionUnlimitedLookback(t *testing.T) {
	entries := []model.Entry{
		entry("ancient", "knee pain from 2009", ts(now.Add(-24*365*time.Hour))),
	}
	plan := Partition(entries, model.NewSeenSet(), filter.Spec{}, 0, now)

	if diff := cmp.Diff([]string{"ancient"}, notifyIDs(plan)); diff != "" {
		t.Errorf("notify mismatch (-want +got):\n%s", diff)
	}
}
