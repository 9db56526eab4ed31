// CLAUDE:SUMMARY Adapter contract and registry: built-in feed/page types plus named external executables.
// Package adapter acquires content for one source and hands it to the
// ingestion orchestrator in a uniform shape.
//
// Two adapters are built in: "feed" (RSS/Atom) and "page" (single HTML page).
// Arbitrary executables can be registered under a type name; they run in an
// ephemeral working directory and every text file they drop in the output
// folder becomes one fetched item.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/fetch"
)

// registryFile at the reservoir root records external adapter executables.
const registryFile = "adapters.json"

// Item is one fetched unit produced by an adapter.
type Item struct {
	Content           string
	SuggestedFilename string
	Fields            map[string]string // structured fields exposed for content-key dedup
	Aux               []AuxFile
}

// AuxFile is an auxiliary resource accompanying an item.
type AuxFile struct {
	RelativePath string
	Data         []byte
}

// Field returns a structured field value, or "" when absent.
func (it *Item) Field(name string) string {
	if it.Fields == nil {
		return ""
	}
	return it.Fields[name]
}

// Adapter fetches the current items of a source.
type Adapter interface {
	Fetch(ctx context.Context, src *chanstore.Source) ([]Item, error)
}

// Registry resolves source type names to adapters.
type Registry struct {
	root    string
	logger  *slog.Logger
	builtin map[string]Adapter
}

// NewRegistry creates a Registry with the built-in adapters wired to one
// shared fetcher.
func NewRegistry(root string, fcfg fetch.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	f := fetch.New(fcfg)
	md := newMarkdown()
	return &Registry{
		root:   root,
		logger: logger,
		builtin: map[string]Adapter{
			"feed": &FeedAdapter{fetcher: f, md: md},
			"page": &PageAdapter{fetcher: f, md: md},
		},
	}
}

// Lookup resolves a source type to its adapter: built-ins first, then the
// external registrations.
func (r *Registry) Lookup(sourceType string) (Adapter, error) {
	if a, ok := r.builtin[sourceType]; ok {
		return a, nil
	}
	ext, err := r.external()
	if err != nil {
		return nil, err
	}
	if path, ok := ext[sourceType]; ok {
		return &ExecAdapter{Name: sourceType, Path: path, logger: r.logger}, nil
	}
	return nil, fmt.Errorf("%w: unknown source type %q", chanstore.ErrNotFound, sourceType)
}

// Types returns every resolvable source type name, sorted.
func (r *Registry) Types() ([]string, error) {
	ext, err := r.external()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(r.builtin)+len(ext))
	for name := range r.builtin {
		out = append(out, name)
	}
	for name := range ext {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Register records an external adapter executable under a type name.
func (r *Registry) Register(name, path string) error {
	if name == "" || name != chanstore.Slugify(name) {
		return fmt.Errorf("%w: adapter name %q must be a slug", chanstore.ErrInvalidInput, name)
	}
	if _, ok := r.builtin[name]; ok {
		return fmt.Errorf("%w: adapter name %q is built in", chanstore.ErrInvalidInput, name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: adapter path %q: %v", chanstore.ErrInvalidInput, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return fmt.Errorf("%w: %q is not an executable file", chanstore.ErrInvalidInput, path)
	}

	ext, err := r.external()
	if err != nil {
		return err
	}
	ext[name] = abs
	data, err := json.MarshalIndent(ext, "", "  ")
	if err != nil {
		return fmt.Errorf("reservoir: encode adapter registry: %w", err)
	}
	target := filepath.Join(r.root, registryFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("reservoir: write adapter registry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("reservoir: rename adapter registry: %w", err)
	}
	r.logger.Info("adapter: registered", "name", name, "path", abs)
	return nil
}

func (r *Registry) external() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, registryFile))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reservoir: read adapter registry: %w", err)
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("reservoir: corrupt adapter registry: %w", err)
	}
	return out, nil
}

// paramInt reads an integer source parameter with a default.
func paramInt(src *chanstore.Source, key string, def int) int {
	v, ok := src.Params[key]
	if !ok {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}
