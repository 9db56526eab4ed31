// CLAUDE:SUMMARY Scheduler tests: attempt-based retry cadence, heartbeat counters, marker exclusivity.
package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ingest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// scriptedIngest returns the scripted errors in call order, then succeeds.
type scriptedIngest struct {
	calls int
	errs  []error
}

func (s *scriptedIngest) Ingest(_ context.Context, _ string) ([]ingest.Document, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return nil, nil
}

type noopSync struct{}

func (noopSync) Sync() error { return nil }

type countingSync struct{ calls int }

func (c *countingSync) Sync() error { c.calls++; return nil }

func newTestScheduler(t *testing.T, ing Ingester) (*Scheduler, *chanstore.Store, *fakeClock) {
	t.Helper()
	root := t.TempDir()
	store := chanstore.NewStore(root, chanstore.Defaults{}, nil)
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := New(store, ing, noopSync{}, nil, Config{}, nil)
	s.SetClock(clock.now)
	s.status = &Status{Running: true, PID: os.Getpid(), Sources: map[string]*SourceStatus{}}
	return s, store, clock
}

// WHAT: a source with a 1s interval but a 10s rate limit fails its first
// fetch.
// WHY: the retry cadence follows the last attempt and the rate limit floors
// the interval, so a failing source must not be retried before 10s elapse,
// and a later success must clear the recorded error.
func TestRetryCadenceFollowsAttempts(t *testing.T) {
	ing := &scriptedIngest{errs: []error{errors.New("upstream 503")}}
	s, store, clock := newTestScheduler(t, ing)

	src := &chanstore.Source{Name: "Slow Feed", Type: "feed",
		Params: map[string]string{"url": "http://example.test/feed"},
		FetchIntervalMs: 1_000, RateLimitMs: 10_000}
	if err := store.Create(src); err != nil {
		t.Fatal(err)
	}

	s.tick(context.Background())
	if ing.calls != 1 {
		t.Fatalf("calls after first tick = %d, want 1", ing.calls)
	}
	ss := s.status.Sources[src.ID]
	if ss == nil || ss.LastError == "" {
		t.Fatalf("expected recorded error, got %+v", ss)
	}

	// 5s in: past the fetch interval but under the rate-limit floor.
	clock.advance(5 * time.Second)
	s.tick(context.Background())
	if ing.calls != 1 {
		t.Fatalf("retried before rate limit elapsed: calls = %d", ing.calls)
	}

	clock.advance(5 * time.Second)
	s.tick(context.Background())
	if ing.calls != 2 {
		t.Fatalf("calls after rate limit elapsed = %d, want 2", ing.calls)
	}
	if ss.LastError != "" {
		t.Fatalf("success did not clear error: %q", ss.LastError)
	}
	if ss.Attempts != 2 || ss.Successes != 1 {
		t.Fatalf("attempts/successes = %d/%d, want 2/1", ss.Attempts, ss.Successes)
	}
}

// WHAT: two ticks against one healthy source, then ReadStatus.
// WHY: every tick rewrites the heartbeat document; counters must survive the
// round trip and Running must reflect marker liveness, not the stored flag.
func TestHeartbeatDocument(t *testing.T) {
	ing := &scriptedIngest{}
	s, store, clock := newTestScheduler(t, ing)

	src := &chanstore.Source{Name: "Feed", Type: "feed",
		Params: map[string]string{"url": "http://example.test/feed"}}
	if err := store.Create(src); err != nil {
		t.Fatal(err)
	}

	s.tick(context.Background())
	clock.advance(2 * time.Hour)
	s.tick(context.Background())

	st, err := ReadStatus(store.Root())
	if err != nil {
		t.Fatal(err)
	}
	if st.Running {
		t.Fatal("no marker on disk, status must not report running")
	}
	ss := st.Sources[src.ID]
	if ss == nil || ss.Attempts != 2 || ss.Successes != 2 {
		t.Fatalf("round-tripped counters = %+v, want 2 attempts, 2 successes", ss)
	}
	if ss.LastAttempt != clock.t.UnixMilli() {
		t.Fatalf("last_attempt = %d, want %d", ss.LastAttempt, clock.t.UnixMilli())
	}
}

// WHAT: start a real scheduler loop, try to start a second, then cancel.
// WHY: the process marker allows exactly one scheduler per reservoir and must
// disappear on graceful shutdown.
func TestMarkerExclusivity(t *testing.T) {
	root := t.TempDir()
	store := chanstore.NewStore(root, chanstore.Defaults{}, nil)

	first := New(store, &scriptedIngest{}, noopSync{}, nil,
		Config{TickInterval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()

	marker := filepath.Join(root, markerFile)
	waitFor(t, func() bool { _, err := os.Stat(marker); return err == nil })

	second := New(store, &scriptedIngest{}, noopSync{}, nil, Config{}, nil)
	if err := second.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancel", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("marker survived graceful shutdown")
	}
	st, err := ReadStatus(root)
	if err != nil {
		t.Fatal(err)
	}
	if st.Running {
		t.Fatal("status still reports running after shutdown")
	}
}

// WHAT: quiet ticks, a flagged external change, and the periodic floor.
// WHY: the full reconcile is gated on the filesystem watcher so a quiet
// reservoir is not re-walked every second; an observed change reconciles on
// the very next tick and the floor catches anything the watcher missed.
func TestReconcileGatedOnWatcher(t *testing.T) {
	rec := &countingSync{}
	store := chanstore.NewStore(t.TempDir(), chanstore.Defaults{}, nil)
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := New(store, &scriptedIngest{}, rec, nil, Config{}, nil)
	s.SetClock(clock.now)
	s.status = &Status{Running: true, PID: os.Getpid(), Sources: map[string]*SourceStatus{}}

	s.tick(context.Background())
	if rec.calls != 1 {
		t.Fatalf("first tick: %d reconciles, want 1", rec.calls)
	}

	clock.advance(time.Second)
	s.tick(context.Background())
	if rec.calls != 1 {
		t.Fatalf("quiet tick reconciled: %d calls", rec.calls)
	}

	s.dirty <- struct{}{}
	clock.advance(time.Second)
	s.tick(context.Background())
	if rec.calls != 2 {
		t.Fatalf("external change not reconciled: %d calls", rec.calls)
	}

	clock.advance(time.Minute)
	s.tick(context.Background())
	if rec.calls != 3 {
		t.Fatalf("periodic floor missed: %d calls", rec.calls)
	}
}

// WHAT: a marker left by a crashed daemon, then a fresh Run.
// WHY: stale markers are broken through the serializing mutex file, which
// must itself be cleaned up afterwards.
func TestStaleMarkerReplaced(t *testing.T) {
	root := t.TempDir()
	store := chanstore.NewStore(root, chanstore.Defaults{}, nil)
	marker := filepath.Join(root, markerFile)
	if err := os.WriteFile(marker, []byte("999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(store, &scriptedIngest{}, noopSync{}, nil,
		Config{TickInterval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { pid, ok := markerPID(root); return ok && pid == os.Getpid() })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run with stale marker: %v", err)
	}
	if _, err := os.Stat(marker + ".breaking"); !os.IsNotExist(err) {
		t.Fatal("break mutex left behind")
	}
}

// WHAT: a marker left behind by a dead pid, then Stop.
// WHY: stopping a crashed reservoir must report not-running and clean up the
// stale marker and status instead of signalling a recycled pid.
func TestStopCleansStaleMarker(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, markerFile)
	if err := os.WriteFile(marker, []byte("999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Stop(root); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop = %v, want ErrNotRunning", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("stale marker not removed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}
