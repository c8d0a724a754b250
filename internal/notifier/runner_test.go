package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jarmeli1/reddit-rss-alerts/internal/filter"
	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
	"github.com/jarmeli1/reddit-rss-alerts/internal/notify"
	"github.com/jarmeli1/reddit-rss-alerts/internal/state"
)

var now = time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)

type fakeSource struct {
	entries []model.Entry
	err     error
}

func (f *fakeSource) Fetch(_ context.Context, _ string) ([]model.Entry, error) {
	return f.entries, f.err
}

// memStore simulates the remote store: a full-set overwrite with no
// compare-and-swap, exactly like the gist.
type memStore struct {
	set     model.SeenSet
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func newMemStore(ids ...string) *memStore {
	return &memStore{set: model.NewSeenSet(ids...)}
}

func (m *memStore) Load(_ context.Context) (model.SeenSet, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	// Snapshot copy, as the real store returns decoded JSON.
	return model.NewSeenSet(m.set.IDs()...), nil
}

func (m *memStore) Save(_ context.Context, seen model.SeenSet) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.set = model.NewSeenSet(seen.IDs()...)
	return nil
}

type fakeTransport struct {
	sent   []notify.Notification
	failOn string // subject substring that triggers a failure
}

func (f *fakeTransport) Send(_ context.Context, n notify.Notification) error {
	if f.failOn != "" && strings.Contains(n.Subject, f.failOn) {
		return &notify.SendError{Subject: n.Subject, Err: errors.New("smtp refused")}
	}
	f.sent = append(f.sent, n)
	return nil
}

func ts(t time.Time) *time.Time { return &t }

func entries(ids ...string) []model.Entry {
	out := make([]model.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Entry{
			ID:        id,
			Title:     "knee post " + id,
			Published: ts(now.Add(-10 * time.Minute)),
		})
	}
	return out
}

func newRunner(source *fakeSource, store state.Store, transport *fakeTransport) *Runner {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(source, store, transport, "kneesurgery", filter.Spec{}, time.Hour, log)
	r.now = func() time.Time { return now }
	return r
}

func TestRunHappyPath(t *testing.T) {
	source := &fakeSource{entries: entries("a", "b", "c")}
	store := newMemStore("a")
	transport := &fakeTransport{}

	stats, err := newRunner(source, store, transport).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if diff := cmp.Diff(Stats{Sent: 2}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, store.set.IDs()); diff != "" {
		t.Errorf("persisted set mismatch (-want +got):\n%s", diff)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestRunNothingNewSkipsPersist(t *testing.T) {
	source := &fakeSource{entries: entries("a", "b")}
	store := newMemStore("a", "b")
	transport := &fakeTransport{}

	stats, err := newRunner(source, store, transport).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff(Stats{}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0 when nothing changed", store.saves)
	}
	if len(transport.sent) != 0 {
		t.Errorf("sent %d notifications, want 0", len(transport.sent))
	}
}

func TestRunFetchFailureTouchesNothing(t *testing.T) {
	source := &fakeSource{err: errors.New("reddit unreachable")}
	store := newMemStore()
	transport := &fakeTransport{}

	_, err := newRunner(source, store, transport).Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if store.loads != 0 || store.saves != 0 {
		t.Errorf("store touched on fetch failure: loads=%d saves=%d", store.loads, store.saves)
	}
	if len(transport.sent) != 0 {
		t.Errorf("notifications sent on fetch failure: %d", len(transport.sent))
	}
}

func TestRunLoadFailureAbortsBeforeSending(t *testing.T) {
	source := &fakeSource{entries: entries("a")}
	store := newMemStore()
	store.loadErr = &state.LoadError{Err: errors.New("gist unreachable")}
	transport := &fakeTransport{}

	_, err := newRunner(source, store, transport).Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var le *state.LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected *state.LoadError, got %T", err)
	}
	if len(transport.sent) != 0 {
		t.Errorf("notifications sent despite load failure: %d", len(transport.sent))
	}
}

func TestRunSendFailureKeepsIDOutOfStore(t *testing.T) {
	source := &fakeSource{entries: entries("a", "b", "c")}
	store := newMemStore()
	transport := &fakeTransport{failOn: "knee post b"}

	stats, err := newRunner(source, store, transport).Run(context.Background())
	if err == nil {
		t.Fatal("expected send error, got nil")
	}
	var se *notify.SendError
	if !errors.As(err, &se) {
		t.Errorf("expected *notify.SendError, got %T", err)
	}

	if diff := cmp.Diff(Stats{Sent: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	// Only the successful send's id is persisted; b and the never-
	// attempted c stay out, so the next run retries both.
	if diff := cmp.Diff([]string{"a"}, store.set.IDs()); diff != "" {
		t.Errorf("persisted set mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSilentIDsPersistedOnSendFailure(t *testing.T) {
	batch := entries("a", "b")
	batch[0].Title = "hip only content" // fails the include filter
	source := &fakeSource{entries: batch}
	store := newMemStore()
	transport := &fakeTransport{failOn: "knee post b"}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	spec, err := filter.ParseSpec([]string{"knee"}, nil)
	if err != nil {
		t.Fatalf("parse spec: %v", err)
	}
	r := New(source, store, transport, "kneesurgery", spec, time.Hour, log)
	r.now = func() time.Time { return now }

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected send error, got nil")
	}
	// The filtered-out entry is still marked seen even though the
	// notify path failed.
	if diff := cmp.Diff([]string{"a"}, store.set.IDs()); diff != "" {
		t.Errorf("persisted set mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPersistFailureAfterSendReplaysNextRun(t *testing.T) {
	source := &fakeSource{entries: entries("a")}
	store := newMemStore()
	store.saveErr = &state.PersistError{Err: errors.New("gist write forbidden")}
	transport := &fakeTransport{}

	runner := newRunner(source, store, transport)
	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected persist error, got nil")
	}
	var pe *state.PersistError
	if !errors.As(err, &pe) {
		t.Errorf("expected *state.PersistError, got %T", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(transport.sent))
	}

	// Next run against the stale store: the entry is evaluated as new
	// again — a duplicate notification, never a lost one.
	store.saveErr = nil
	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if diff := cmp.Diff(Stats{Sent: 1}, stats); diff != "" {
		t.Errorf("second run stats mismatch (-want +got):\n%s", diff)
	}
	if len(transport.sent) != 2 {
		t.Errorf("total sent = %d, want duplicate delivery (2)", len(transport.sent))
	}
}

// Two runs started from the same snapshot race on the save. The last
// writer wins; the loser's ids disappear from the store, which causes
// a duplicate notification on a later run — but nothing is ever lost
// and nothing crashes.
func TestRunOverlappingRunsDuplicateAtWorst(t *testing.T) {
	store := newMemStore()
	transportA := &fakeTransport{}
	transportB := &fakeTransport{}

	// Both runs load the same empty snapshot before either saves.
	snapshot, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	runA := newRunner(&fakeSource{entries: entries("a")}, &fixedSnapshotStore{inner: store, snapshot: snapshot}, transportA)
	runB := newRunner(&fakeSource{entries: entries("b")}, &fixedSnapshotStore{inner: store, snapshot: snapshot}, transportB)

	if _, err := runA.Run(context.Background()); err != nil {
		t.Fatalf("run A: %v", err)
	}
	if _, err := runB.Run(context.Background()); err != nil {
		t.Fatalf("run B: %v", err)
	}

	// B overwrote A's save: "a" is gone from the store.
	if diff := cmp.Diff([]string{"b"}, store.set.IDs()); diff != "" {
		t.Errorf("store after race (-want +got):\n%s", diff)
	}

	// A later run sees "a" as new again and re-delivers it: duplicate,
	// not loss.
	transportC := &fakeTransport{}
	runC := newRunner(&fakeSource{entries: entries("a", "b")}, store, transportC)
	stats, err := runC.Run(context.Background())
	if err != nil {
		t.Fatalf("run C: %v", err)
	}
	if diff := cmp.Diff(Stats{Sent: 1}, stats); diff != "" {
		t.Errorf("run C stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, store.set.IDs()); diff != "" {
		t.Errorf("final store mismatch (-want +got):\n%s", diff)
	}
}

// fixedSnapshotStore returns a pre-loaded snapshot but writes through,
// simulating two jobs that both loaded before either saved.
type fixedSnapshotStore struct {
	inner    *memStore
	snapshot model.SeenSet
}

func (f *fixedSnapshotStore) Load(_ context.Context) (model.SeenSet, error) {
	return model.NewSeenSet(f.snapshot.IDs()...), nil
}

func (f *fixedSnapshotStore) Save(ctx context.Context, seen model.SeenSet) error {
	return f.inner.Save(ctx, seen)
}
