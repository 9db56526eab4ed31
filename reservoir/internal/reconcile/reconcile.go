// CLAUDE:SUMMARY Idempotent repair pass: drop stale ledger/metadata entries, adopt untracked files, fix drift.
// Package reconcile repairs the ledger and item metadata against what
// actually exists on disk.
//
// Sync is the crash-recovery mechanism for the whole reservoir: partial
// writes, killed processes and manual filesystem edits all resolve to a
// consistent state on the next pass. Repairs are logged, never surfaced as
// errors. A pass that changes nothing writes nothing.
package reconcile

import (
	"log/slog"
	"os"
	"strings"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ledger"
)

// Reconciler reconciles tracked state with the filesystem.
type Reconciler struct {
	ledger *ledger.Ledger
	store  *chanstore.Store
	logger *slog.Logger
}

// New creates a Reconciler.
func New(led *ledger.Ledger, store *chanstore.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{ledger: led, store: store, logger: logger}
}

// Sync runs one full reconciliation pass. Idempotent: a second call with no
// intervening filesystem change performs no writes.
func (r *Reconciler) Sync() error {
	if err := r.dropDanglingBindings(); err != nil {
		return err
	}
	sources, err := r.store.List()
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := r.syncSource(src); err != nil {
			return err
		}
	}
	return nil
}

// dropDanglingBindings removes ledger entries whose bound location no longer
// exists on disk.
func (r *Reconciler) dropDanglingBindings() error {
	all, err := r.ledger.All()
	if err != nil {
		return err
	}
	for id, loc := range all {
		if fileExists(r.store.AbsPath(loc)) {
			continue
		}
		if err := r.ledger.Unbind(id); err != nil {
			return err
		}
		r.logger.Info("reconcile: dropped dangling binding", "id", id, "location", loc)
	}
	return nil
}

// syncSource reconciles one source's item metadata: stale records dropped,
// drifted locations repaired, untracked files adopted. At most one metadata
// write happens, and only when something changed.
func (r *Reconciler) syncSource(src *chanstore.Source) error {
	items, err := r.store.LoadItems(src.ID)
	if err != nil {
		return err
	}

	changed := false
	kept := make([]*chanstore.Item, 0, len(items))
	tracked := make(map[string]bool, len(items))

	for _, it := range items {
		loc, bound, err := r.ledger.LocationOf(it.ID)
		if err != nil {
			return err
		}
		if !bound {
			loc = it.Location
		}

		if loc == "" || !strings.HasPrefix(loc, src.ID+"/") || !fileExists(r.store.AbsPath(loc)) {
			changed = true
			r.logger.Info("reconcile: dropped stale item", "source_id", src.ID, "id", it.ID, "location", loc)
			continue
		}

		if !bound {
			// The file is present but the ledger lost the binding. The
			// ledger stays authoritative: adopt its id if the location is
			// already bound elsewhere, otherwise restore this one.
			ownerID, ownerBound, err := r.ledger.IDOf(loc)
			if err != nil {
				return err
			}
			switch {
			case ownerBound && ownerID != it.ID:
				r.logger.Info("reconcile: repaired item id", "source_id", src.ID, "old", it.ID, "new", ownerID)
				it.ID = ownerID
				changed = true
			case !ownerBound:
				if err := r.ledger.Bind(it.ID, loc); err != nil {
					return err
				}
				r.logger.Info("reconcile: restored binding", "id", it.ID, "location", loc)
			}
		}

		if it.Location != loc {
			r.logger.Info("reconcile: repaired location", "source_id", src.ID, "id", it.ID,
				"old", it.Location, "new", loc)
			it.Location = loc
			changed = true
		}

		kept = append(kept, it)
		tracked[loc] = true
	}

	// Adopt untracked document files.
	files, err := r.store.DocumentFiles(src.ID)
	if err != nil {
		return err
	}
	for _, name := range files {
		loc := src.ID + "/" + name
		if tracked[loc] {
			continue
		}
		id, err := r.ledger.Assign(loc)
		if err != nil {
			return err
		}
		info, err := os.Stat(r.store.AbsPath(loc))
		if err != nil {
			continue // vanished between listing and stat
		}
		it := &chanstore.Item{
			ID:        id,
			Locks:     append([]string{}, src.AutoLocks...),
			FetchedAt: info.ModTime().UnixMilli(),
			Location:  loc,
		}
		kept = append(kept, it)
		tracked[loc] = true
		changed = true
		r.logger.Info("reconcile: adopted untracked file", "source_id", src.ID, "id", id, "location", loc)
	}

	if !changed {
		return nil
	}
	return r.store.SaveItems(src.ID, kept)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
