// CLAUDE:SUMMARY Ingestion orchestrator: adapter fetch, dedup by content key or filename, persist + metadata.
// Package ingest consumes a source adapter's output and persists it.
//
// Each fetched item resolves to a dedup key — the source's configured
// content-key field when the item exposes it, else the suggested filename
// stem, else a generated stem. Under the "overwrite" policy a key match
// reuses the existing identifier and file; otherwise a fresh suffixed
// filename and identifier are allocated.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/reservoir/idgen"
	"github.com/hazyhaar/reservoir/reservoir/internal/adapter"
	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ledger"
	"github.com/hazyhaar/reservoir/reservoir/internal/reconcile"
)

// Document is one persisted result of an ingest pass.
type Document struct {
	Item    *chanstore.Item
	Content string
}

// Resolver resolves a source type to its adapter. *adapter.Registry is the
// production implementation.
type Resolver interface {
	Lookup(sourceType string) (adapter.Adapter, error)
}

// Orchestrator runs the fetch → dedup → persist path for one source at a time.
type Orchestrator struct {
	ledger   *ledger.Ledger
	store    *chanstore.Store
	rec      *reconcile.Reconciler
	registry Resolver
	logger   *slog.Logger
	now      func() time.Time
	newStem  idgen.Generator
}

// New creates an Orchestrator.
func New(led *ledger.Ledger, store *chanstore.Store, rec *reconcile.Reconciler,
	registry Resolver, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		ledger:   led,
		store:    store,
		rec:      rec,
		registry: registry,
		logger:   logger,
		now:      time.Now,
		newStem:  idgen.Stem(),
	}
}

// SetClock overrides the time source. Test hook.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Ingest fetches a source and persists its items. The item metadata file is
// written once, and only when at least one item was persisted.
func (o *Orchestrator) Ingest(ctx context.Context, sourceID string) ([]Document, error) {
	if err := o.rec.Sync(); err != nil {
		return nil, err
	}

	src, err := o.store.Get(sourceID)
	if err != nil {
		return nil, err
	}
	ad, err := o.registry.Lookup(src.Type)
	if err != nil {
		return nil, err
	}
	fetched, err := ad.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", sourceID, err)
	}

	items, err := o.store.LoadItems(sourceID)
	if err != nil {
		return nil, err
	}

	var persisted []Document
	for i := range fetched {
		doc, err := o.persist(src, &items, &fetched[i])
		if err != nil {
			return nil, err
		}
		persisted = append(persisted, *doc)
	}

	if len(persisted) > 0 {
		if err := o.store.SaveItems(sourceID, items); err != nil {
			return nil, err
		}
	}
	o.logger.Debug("ingest: done", "source_id", sourceID, "fetched", len(fetched), "persisted", len(persisted))
	return persisted, nil
}

// persist stores one fetched item, appending to or updating *items in place.
func (o *Orchestrator) persist(src *chanstore.Source, items *[]*chanstore.Item, fi *adapter.Item) (*Document, error) {
	stem, ext := o.dedupStem(src, fi)

	match := findByStem(*items, src.ID, stem)
	if match != nil && src.DuplicatePolicy == chanstore.PolicyOverwrite {
		// Same logical item fetched again: same identifier, same file,
		// fresh content and timestamp, lock set untouched.
		if err := o.store.WriteDocument(match.Location, []byte(fi.Content)); err != nil {
			return nil, err
		}
		if err := o.store.ReplaceAux(match.Location, auxMap(fi.Aux)); err != nil {
			return nil, err
		}
		match.FetchedAt = o.now().UnixMilli()
		return &Document{Item: match, Content: fi.Content}, nil
	}

	filename := o.uniqueFilename(src.ID, stem, ext, *items)
	loc := src.ID + "/" + filename
	if err := o.store.WriteDocument(loc, []byte(fi.Content)); err != nil {
		return nil, err
	}
	if len(fi.Aux) > 0 {
		if err := o.store.ReplaceAux(loc, auxMap(fi.Aux)); err != nil {
			return nil, err
		}
	}
	id, err := o.ledger.Assign(loc)
	if err != nil {
		return nil, err
	}
	it := &chanstore.Item{
		ID:        id,
		Locks:     append([]string{}, src.AutoLocks...),
		FetchedAt: o.now().UnixMilli(),
		Location:  loc,
	}
	*items = append(*items, it)
	return &Document{Item: it, Content: fi.Content}, nil
}

// dedupStem computes the sanitized filename stem for an item plus the
// extension to use for new files.
func (o *Orchestrator) dedupStem(src *chanstore.Source, fi *adapter.Item) (stem, ext string) {
	ext = ".md"
	if fi.SuggestedFilename != "" {
		base := chanstore.SanitizeStem(fi.SuggestedFilename)
		if s := chanstore.Stem(base); s != base {
			ext = base[len(s):]
			base = s
		}
		stem = base
	}
	if src.ContentKey != "" {
		if v := fi.Field(src.ContentKey); v != "" {
			stem = chanstore.SanitizeStem(v)
		}
	}
	if stem == "" {
		stem = o.newStem()
	}
	return stem, ext
}

// findByStem returns the tracked item whose filename stem equals stem.
func findByStem(items []*chanstore.Item, sourceID, stem string) *chanstore.Item {
	want := sourceID + "/" + stem
	for _, it := range items {
		if chanstore.Stem(it.Location) == want {
			return it
		}
	}
	return nil
}

// uniqueFilename picks stem+ext, or the smallest numeric suffix that is
// neither on disk nor tracked in metadata.
func (o *Orchestrator) uniqueFilename(sourceID, stem, ext string, items []*chanstore.Item) string {
	taken := func(name string) bool {
		if _, err := os.Stat(o.store.AbsPath(sourceID + "/" + name)); err == nil {
			return true
		}
		for _, it := range items {
			if it.Location == sourceID+"/"+name {
				return true
			}
		}
		return false
	}
	name := stem + ext
	for n := 1; taken(name); n++ {
		name = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	return name
}

func auxMap(aux []adapter.AuxFile) map[string][]byte {
	if len(aux) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(aux))
	for _, a := range aux {
		out[a.RelativePath] = a.Data
	}
	return out
}
