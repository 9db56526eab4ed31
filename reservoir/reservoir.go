// CLAUDE:SUMMARY Main Service facade: source CRUD, fetch, daemon lifecycle, adapter registration.
// Package reservoir manages a directory-backed content archive.
//
// A reservoir is a root directory holding one subtree per source, a global
// identifier ledger, and a small set of control files. Content is pulled in
// by per-source adapters on a polling schedule, deduplicated, and protected
// from eviction by named retention locks. The filesystem is the only system
// of record: every operation re-reads what it needs, and a reconciliation
// pass repairs tracked state against what is actually on disk.
package reservoir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/reservoir/reservoir/internal/adapter"
	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ingest"
	"github.com/hazyhaar/reservoir/reservoir/internal/ledger"
	"github.com/hazyhaar/reservoir/reservoir/internal/reconcile"
	"github.com/hazyhaar/reservoir/reservoir/internal/scheduler"
)

// Re-exported domain types. The internal packages own the definitions; the
// facade is the public surface.
type (
	Source       = chanstore.Source
	SourceUpdate = chanstore.Update
	Item         = chanstore.Item
	Document     = ingest.Document
	Status       = scheduler.Status
	SourceStatus = scheduler.SourceStatus
)

// DefaultLock is the lock name used when an operation leaves it unset.
const DefaultLock = chanstore.DefaultLock

// Service is the main reservoir orchestrator. One Service per root
// directory; safe for sequential use from short-lived command invocations
// while a daemon runs, since every mutation round-trips through disk.
type Service struct {
	root     string
	config   *Config
	ledger   *ledger.Ledger
	store    *chanstore.Store
	rec      *reconcile.Reconciler
	registry *adapter.Registry
	resolver *resolver
	orch     *ingest.Orchestrator
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithClock overrides the time source used for fetch timestamps and
// scheduling decisions. Test hook.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithAdapter overrides the adapter for a source type, shadowing built-ins
// and registered executables. Test hook.
func WithAdapter(sourceType string, a adapter.Adapter) ServiceOption {
	return func(s *Service) { s.resolver.overrides[sourceType] = a }
}

// Open creates a Service rooted at dir, creating the directory and loading
// reservoir.yaml when present.
func Open(dir string, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reservoir: create root: %w", err)
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}

	led := ledger.New(dir, ledger.Config{})
	store := chanstore.NewStore(dir, cfg.storeDefaults(), logger)
	rec := reconcile.New(led, store, logger)
	registry := adapter.NewRegistry(dir, cfg.fetchConfig(), logger)
	res := &resolver{registry: registry, overrides: map[string]adapter.Adapter{}}

	svc := &Service{
		root:     dir,
		config:   cfg,
		ledger:   led,
		store:    store,
		rec:      rec,
		registry: registry,
		resolver: res,
		orch:     ingest.New(led, store, rec, res, logger),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.now != nil {
		svc.store.SetClock(svc.now)
		svc.orch.SetClock(svc.now)
	}
	return svc, nil
}

// Root returns the reservoir root directory.
func (s *Service) Root() string { return s.root }

// resolver checks test overrides before the registry.
type resolver struct {
	registry  *adapter.Registry
	overrides map[string]adapter.Adapter
}

func (r *resolver) Lookup(sourceType string) (adapter.Adapter, error) {
	if a, ok := r.overrides[sourceType]; ok {
		return a, nil
	}
	return r.registry.Lookup(sourceType)
}

// --- Sources ---

// CreateSource slugifies the name into a unique id, applies configured
// defaults, and initializes the source subtree. The source's ID field is
// filled in on return.
func (s *Service) CreateSource(src *Source) error {
	return s.store.Create(src)
}

// UpdateSource merges a partial update into an existing source.
func (s *Service) UpdateSource(sourceID string, u *SourceUpdate) (*Source, error) {
	return s.store.ApplyUpdate(sourceID, u)
}

// DeleteSource removes a source and everything under it: documents,
// auxiliary directories, metadata, and the ledger bindings of its items.
func (s *Service) DeleteSource(sourceID string) error {
	items, err := s.store.LoadItems(sourceID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := s.ledger.Unbind(it.ID); err != nil {
			return err
		}
	}
	return s.store.Delete(sourceID)
}

// GetSource loads one source's configuration.
func (s *Service) GetSource(sourceID string) (*Source, error) {
	return s.store.Get(sourceID)
}

// ListSources returns all sources ordered by id.
func (s *Service) ListSources() ([]*Source, error) {
	return s.store.List()
}

// --- Fetching ---

// FetchNow runs one fetch for the source immediately, outside the schedule.
func (s *Service) FetchNow(ctx context.Context, sourceID string) ([]Document, error) {
	return s.orch.Ingest(ctx, sourceID)
}

// Sync runs one reconciliation pass against the filesystem.
func (s *Service) Sync() error {
	return s.rec.Sync()
}

// --- Adapters ---

// RegisterAdapter registers an external executable as a source type.
func (s *Service) RegisterAdapter(name, path string) error {
	return s.registry.Register(name, path)
}

// AdapterTypes lists the available source types, built-ins first.
func (s *Service) AdapterTypes() ([]string, error) {
	return s.registry.Types()
}

// --- Daemon lifecycle ---

// Run starts the polling scheduler and blocks until ctx is cancelled.
// Exactly one scheduler may run per reservoir; a second call returns
// ErrAlreadyRunning.
func (s *Service) Run(ctx context.Context) error {
	sched := scheduler.New(s.store, s.orch, s.rec, s.Evict,
		s.config.schedulerConfig(), s.logger)
	if s.now != nil {
		sched.SetClock(s.now)
	}
	return sched.Run(ctx)
}

// Stop signals the running scheduler to terminate gracefully.
func (s *Service) Stop() error {
	return scheduler.Stop(s.root)
}

// Status reads the daemon's heartbeat, reconciled with actual process
// liveness.
func (s *Service) Status() (*Status, error) {
	return scheduler.ReadStatus(s.root)
}

// sourceOf extracts the owning source id from a document location.
func sourceOf(location string) string {
	if i := strings.IndexByte(location, '/'); i > 0 {
		return location[:i]
	}
	return ""
}
