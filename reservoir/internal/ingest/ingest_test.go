package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/reservoir/reservoir/internal/adapter"
	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ledger"
	"github.com/hazyhaar/reservoir/reservoir/internal/reconcile"
)

// scriptedAdapter returns a fixed batch per Fetch call.
type scriptedAdapter struct {
	batches [][]adapter.Item
	calls   int
	err     error
}

func (a *scriptedAdapter) Fetch(ctx context.Context, src *chanstore.Source) ([]adapter.Item, error) {
	if a.err != nil {
		return nil, a.err
	}
	batch := a.batches[a.calls%len(a.batches)]
	a.calls++
	return batch, nil
}

func (a *scriptedAdapter) Lookup(sourceType string) (adapter.Adapter, error) { return a, nil }

type fixture struct {
	store *chanstore.Store
	led   *ledger.Ledger
	orch  *Orchestrator
	ad    *scriptedAdapter
}

func newFixture(t *testing.T, batches ...[]adapter.Item) *fixture {
	t.Helper()
	root := t.TempDir()
	led := ledger.New(root, ledger.Config{})
	store := chanstore.NewStore(root, chanstore.Defaults{}, nil)
	rec := reconcile.New(led, store, nil)
	ad := &scriptedAdapter{batches: batches}
	return &fixture{store: store, led: led, ad: ad, orch: New(led, store, rec, ad, nil)}
}

func (f *fixture) addSource(t *testing.T, src *chanstore.Source) *chanstore.Source {
	t.Helper()
	if err := f.store.Create(src); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestOverwriteCycleKeepsIdentifier(t *testing.T) {
	// WHAT: Fetching the same content key twice under "overwrite" yields one
	// document, same id both times, content from the second fetch.
	f := newFixture(t,
		[]adapter.Item{{Content: "v1", Fields: map[string]string{"externalId": "abc"}}},
		[]adapter.Item{{Content: "v2", Fields: map[string]string{"externalId": "abc"}}},
	)
	src := f.addSource(t, &chanstore.Source{Name: "api", Type: "x",
		ContentKey: "externalId", DuplicatePolicy: chanstore.PolicyOverwrite})

	first, err := f.orch.Ingest(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := f.orch.Ingest(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("persisted: %d then %d", len(first), len(second))
	}
	if first[0].Item.ID != second[0].Item.ID {
		t.Fatalf("identifier changed: %s → %s", first[0].Item.ID, second[0].Item.ID)
	}
	items, _ := f.store.LoadItems(src.ID)
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	content, _ := f.store.ReadDocument(items[0].Location)
	if content != "v2" {
		t.Fatalf("content: %q, want v2", content)
	}
}

func TestKeepBothAllocatesSuffixedFilenames(t *testing.T) {
	f := newFixture(t,
		[]adapter.Item{{Content: "a", SuggestedFilename: "post.md"}},
		[]adapter.Item{{Content: "b", SuggestedFilename: "post.md"}},
	)
	src := f.addSource(t, &chanstore.Source{Name: "dup", Type: "x",
		DuplicatePolicy: chanstore.PolicyKeepBoth})

	f.orch.Ingest(context.Background(), src.ID)
	if _, err := f.orch.Ingest(context.Background(), src.ID); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	items, _ := f.store.LoadItems(src.ID)
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2", len(items))
	}
	locs := map[string]bool{}
	for _, it := range items {
		locs[it.Location] = true
	}
	if !locs[src.ID+"/post.md"] || !locs[src.ID+"/post-1.md"] {
		t.Fatalf("locations: %v", locs)
	}
	if items[0].ID == items[1].ID {
		t.Fatal("identifiers not distinct")
	}
}

func TestOverwritePreservesLockSetAndReplacesAux(t *testing.T) {
	f := newFixture(t,
		[]adapter.Item{{Content: "v1", SuggestedFilename: "doc.md",
			Aux: []adapter.AuxFile{{RelativePath: "old.png", Data: []byte("o")}}}},
		[]adapter.Item{{Content: "v2", SuggestedFilename: "doc.md",
			Aux: []adapter.AuxFile{{RelativePath: "new.png", Data: []byte("n")}}}},
	)
	src := f.addSource(t, &chanstore.Source{Name: "locked", Type: "x",
		DuplicatePolicy: chanstore.PolicyOverwrite})

	f.orch.Ingest(context.Background(), src.ID)

	// A lock applied between fetches must survive the overwrite.
	items, _ := f.store.LoadItems(src.ID)
	items[0].AddLock("important")
	f.store.SaveItems(src.ID, items)

	f.orch.Ingest(context.Background(), src.ID)
	items, _ = f.store.LoadItems(src.ID)
	if len(items) != 1 || !items[0].HasLock("important") {
		t.Fatalf("lock set not preserved: %+v", items)
	}

	aux := f.store.AuxDir(items[0].Location)
	if _, err := os.Stat(filepath.Join(aux, "old.png")); !os.IsNotExist(err) {
		t.Fatal("old aux file survived replacement")
	}
	if _, err := os.Stat(filepath.Join(aux, "new.png")); err != nil {
		t.Fatalf("new aux file missing: %v", err)
	}
}

func TestAutoLocksAppliedToNewDocuments(t *testing.T) {
	f := newFixture(t, []adapter.Item{{Content: "x", SuggestedFilename: "n.md"}})
	src := f.addSource(t, &chanstore.Source{Name: "auto", Type: "x", AutoLocks: []string{"inbox"}})

	docs, err := f.orch.Ingest(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(docs) != 1 || !docs[0].Item.HasLock("inbox") {
		t.Fatalf("auto-lock missing: %+v", docs)
	}
}

func TestEmptyFetchWritesNoMetadata(t *testing.T) {
	f := newFixture(t, []adapter.Item{})
	src := f.addSource(t, &chanstore.Source{Name: "quiet", Type: "x"})

	itemsPath := filepath.Join(f.store.Dir(src.ID), "items.json")
	before, err := os.Stat(itemsPath)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := f.orch.Ingest(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("docs: %+v", docs)
	}
	after, _ := os.Stat(itemsPath)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("metadata rewritten on empty fetch")
	}
}

func TestGeneratedStemWhenNoKeyOrFilename(t *testing.T) {
	f := newFixture(t, []adapter.Item{{Content: "anonymous"}})
	src := f.addSource(t, &chanstore.Source{Name: "anon", Type: "x"})

	docs, err := f.orch.Ingest(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	loc := docs[0].Item.Location
	if filepath.Ext(loc) != ".md" {
		t.Fatalf("generated location: %q", loc)
	}
	if content, _ := f.store.ReadDocument(loc); content != "anonymous" {
		t.Fatalf("content: %q", content)
	}
}

func TestAdapterFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.ad.err = errors.New("upstream down")
	src := f.addSource(t, &chanstore.Source{Name: "broken", Type: "x"})

	if _, err := f.orch.Ingest(context.Background(), src.ID); err == nil {
		t.Fatal("want error")
	}
	if _, err := f.orch.Ingest(context.Background(), "missing"); !errors.Is(err, chanstore.ErrNotFound) {
		t.Fatalf("unknown source: got %v", err)
	}
}
