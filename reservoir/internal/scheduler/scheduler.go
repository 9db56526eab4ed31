// CLAUDE:SUMMARY Cooperative polling loop: per-source due check on max(interval, rate limit), attempt-based retry.
// Package scheduler drives periodic fetches for every source of a reservoir.
//
// One scheduler runs per reservoir, enforced by an exclusive process marker.
// The loop is single-goroutine and cooperative: each tick checks every
// source in turn and fetches the due ones sequentially, reconciling first
// when the filesystem watcher saw an external change or the periodic floor
// elapsed. A source is
// due when the time since its last attempt — success or failure — reaches
// max(fetch interval, rate limit), so failing sources retry at the same
// cadence as healthy ones, never faster.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/reservoir/idgen"
	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ingest"
)

// Ingester runs one source fetch. *ingest.Orchestrator is the production
// implementation.
type Ingester interface {
	Ingest(ctx context.Context, sourceID string) ([]ingest.Document, error)
}

// Syncer runs one reconciliation pass.
type Syncer interface {
	Sync() error
}

// Config configures the scheduler loop.
type Config struct {
	// TickInterval is the fixed short tick. Default: 1s.
	TickInterval time.Duration

	// ReconcileInterval bounds how long the loop runs without a full
	// reconcile pass when the watcher observed no external change.
	// Default: 1m.
	ReconcileInterval time.Duration
}

func (c *Config) defaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = time.Minute
	}
}

// Scheduler polls sources and records per-source fetch state.
type Scheduler struct {
	store  *chanstore.Store
	orch   Ingester
	rec    Syncer
	evict  func() error // optional post-tick eviction hook
	config Config
	logger *slog.Logger
	now    func() time.Time

	attempts map[string]time.Time // per-process last attempt
	lastSync time.Time
	status   *Status
	dirty    chan struct{} // fsnotify observed an external change
}

// New creates a Scheduler.
func New(store *chanstore.Store, orch Ingester, rec Syncer, evict func() error,
	cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		orch:     orch,
		rec:      rec,
		evict:    evict,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		attempts: map[string]time.Time{},
		dirty:    make(chan struct{}, 1),
	}
}

// SetClock overrides the time source. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Run claims the process marker and polls until ctx is cancelled, then
// flushes final status and releases the marker.
func (s *Scheduler) Run(ctx context.Context) error {
	release, err := acquireMarker(s.store.Root())
	if err != nil {
		return err
	}
	defer release()

	s.status = &Status{
		Running:   true,
		PID:       os.Getpid(),
		RunID:     idgen.UUIDv7()(),
		StartedAt: s.now().UnixMilli(),
		Sources:   map[string]*SourceStatus{},
	}

	watcher := s.startWatcher(ctx)
	if watcher != nil {
		defer watcher.Close()
	}

	s.logger.Info("scheduler: started", "run_id", s.status.RunID, "tick", s.config.TickInterval)
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.status.Running = false
			s.status.UpdatedAt = s.now().UnixMilli()
			if err := writeStatus(s.store.Root(), s.status); err != nil {
				s.logger.Warn("scheduler: final status flush", "error", err)
			}
			s.logger.Info("scheduler: stopped", "run_id", s.status.RunID)
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one scheduling pass: reconcile when due, fetch the due sources,
// heartbeat. A full reconcile runs on the first tick, whenever the watcher
// observed an external change, and at least every ReconcileInterval;
// in-between fetches are still covered by the sync each ingest runs itself.
func (s *Scheduler) tick(ctx context.Context) {
	dirty := false
	select {
	case <-s.dirty:
		dirty = true
		s.logger.Debug("scheduler: external change observed")
	default:
	}
	if dirty || s.lastSync.IsZero() || s.now().Sub(s.lastSync) >= s.config.ReconcileInterval {
		if err := s.rec.Sync(); err != nil {
			s.logger.Warn("scheduler: sync", "error", err)
		} else {
			s.lastSync = s.now()
		}
	}

	sources, err := s.store.List()
	if err != nil {
		s.logger.Warn("scheduler: list sources", "error", err)
		return
	}

	fetched := 0
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		if !s.due(src) {
			continue
		}
		s.attempt(ctx, src)
		fetched++
	}

	if fetched > 0 && s.evict != nil {
		if err := s.evict(); err != nil {
			s.logger.Warn("scheduler: evict", "error", err)
		}
	}

	s.status.UpdatedAt = s.now().UnixMilli()
	if err := writeStatus(s.store.Root(), s.status); err != nil {
		s.logger.Warn("scheduler: heartbeat", "error", err)
	}
}

// due reports whether src's poll interval has elapsed since its last attempt.
// The rate limit acts as a floor on the effective interval.
func (s *Scheduler) due(src *chanstore.Source) bool {
	pollMs := src.FetchIntervalMs
	if src.RateLimitMs > pollMs {
		pollMs = src.RateLimitMs
	}
	last, ok := s.attempts[src.ID]
	if !ok {
		return true
	}
	return s.now().Sub(last) >= time.Duration(pollMs)*time.Millisecond
}

// attempt records the attempt time first, then fetches; retry cadence is tied
// to attempts, not successes.
func (s *Scheduler) attempt(ctx context.Context, src *chanstore.Source) {
	now := s.now()
	s.attempts[src.ID] = now
	ss := s.status.source(src.ID)
	ss.LastAttempt = now.UnixMilli()
	ss.Attempts++

	docs, err := s.orch.Ingest(ctx, src.ID)
	if err != nil {
		ss.LastError = err.Error()
		s.logger.Warn("scheduler: fetch failed", "source_id", src.ID, "error", err)
		return
	}
	ss.LastSuccess = s.now().UnixMilli()
	ss.LastError = ""
	ss.Successes++
	s.logger.Info("scheduler: fetched", "source_id", src.ID, "documents", len(docs))
}

// startWatcher watches the reservoir tree so externally made changes trigger
// reconciliation on the next tick. Failure to watch is non-fatal: the
// periodic Sync still covers it.
func (s *Scheduler) startWatcher(ctx context.Context) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("scheduler: fsnotify unavailable", "error", err)
		return nil
	}
	root := s.store.Root()
	if err := watcher.Add(root); err != nil {
		s.logger.Warn("scheduler: watch root", "error", err)
	}
	if sources, err := s.store.List(); err == nil {
		for _, src := range sources {
			watcher.Add(s.store.Dir(src.ID))
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Our own atomic writes land as renames of *.tmp files;
				// everything else is an external change.
				if strings.HasSuffix(ev.Name, ".tmp") {
					continue
				}
				if ev.Op.Has(fsnotify.Create) {
					// New source directories need their own watch.
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						watcher.Add(ev.Name)
					}
				}
				select {
				case s.dirty <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("scheduler: watcher error", "error", err)
			}
		}
	}()
	return watcher
}
