// CLAUDE:SUMMARY Durable source store: create with slug collision handling, merge updates, cascading delete.
package chanstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Defaults are applied to new sources when the caller leaves fields unset.
type Defaults struct {
	FetchIntervalMs int64
	DuplicatePolicy string
}

func (d *Defaults) fill() {
	if d.FetchIntervalMs <= 0 {
		d.FetchIntervalMs = 3_600_000 // 1 hour
	}
	if d.DuplicatePolicy == "" {
		d.DuplicatePolicy = PolicyKeepBoth
	}
}

// Store reads and writes source configuration and item metadata under the
// reservoir root. One subtree per source; the store never caches — every
// accessor re-reads from disk.
type Store struct {
	root     string
	defaults Defaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a Store rooted at the reservoir directory.
func NewStore(root string, defaults Defaults, logger *slog.Logger) *Store {
	defaults.fill()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, defaults: defaults, logger: logger, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Root returns the reservoir root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the absolute directory of a source.
func (s *Store) Dir(sourceID string) string {
	return filepath.Join(s.root, sourceID)
}

// AbsPath resolves a slash-relative document location under the root.
func (s *Store) AbsPath(location string) string {
	return filepath.Join(s.root, filepath.FromSlash(location))
}

// AuxDir returns the auxiliary-resource directory for a document location:
// a sibling directory named after the document's file stem.
func (s *Store) AuxDir(location string) string {
	abs := s.AbsPath(location)
	return filepath.Join(filepath.Dir(abs), Stem(filepath.Base(abs)))
}

// Create slugifies the source name into a unique id, applies configured
// defaults, and initializes the subtree with empty item metadata.
func (s *Store) Create(src *Source) error {
	if src.FetchIntervalMs == 0 {
		src.FetchIntervalMs = s.defaults.FetchIntervalMs
	}
	if src.DuplicatePolicy == "" {
		src.DuplicatePolicy = s.defaults.DuplicatePolicy
	}
	if err := validateSource(src); err != nil {
		return err
	}

	base := Slugify(src.Name)
	id := base
	for n := 2; ; n++ {
		if _, err := os.Stat(s.Dir(id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	src.ID = id
	if src.CreatedAt == 0 {
		src.CreatedAt = s.now().UnixMilli()
	}

	if err := os.MkdirAll(s.Dir(id), 0o755); err != nil {
		return fmt.Errorf("reservoir: create source dir: %w", err)
	}
	if err := s.writeSource(src); err != nil {
		return err
	}
	return s.SaveItems(id, nil)
}

// Update is a partial source update: nil pointer fields keep their value.
type Update struct {
	Name            *string
	Type            *string
	Params          map[string]string
	FetchIntervalMs *int64
	RateLimitMs     *int64
	ContentKey      *string
	DuplicatePolicy *string
	AutoLocks       []string // replaces the whole set when non-nil
}

// ApplyUpdate merges the partial update into the stored source, re-validating
// the merged result before any write. The source id never changes, even when
// the name does.
func (s *Store) ApplyUpdate(sourceID string, u *Update) (*Source, error) {
	src, err := s.Get(sourceID)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		src.Name = *u.Name
	}
	if u.Type != nil {
		src.Type = *u.Type
	}
	if u.Params != nil {
		src.Params = u.Params
	}
	if u.FetchIntervalMs != nil {
		src.FetchIntervalMs = *u.FetchIntervalMs
	}
	if u.RateLimitMs != nil {
		src.RateLimitMs = *u.RateLimitMs
	}
	if u.ContentKey != nil {
		src.ContentKey = *u.ContentKey
	}
	if u.DuplicatePolicy != nil {
		src.DuplicatePolicy = *u.DuplicatePolicy
	}
	if u.AutoLocks != nil {
		src.AutoLocks = u.AutoLocks
	}
	if err := validateSource(src); err != nil {
		return nil, err
	}
	if err := s.writeSource(src); err != nil {
		return nil, err
	}
	return src, nil
}

// SaveSource rewrites an already existing source's configuration.
func (s *Store) SaveSource(src *Source) error {
	if _, err := s.Get(src.ID); err != nil {
		return err
	}
	if err := validateSource(src); err != nil {
		return err
	}
	return s.writeSource(src)
}

// Delete removes the source's entire subtree, documents included.
func (s *Store) Delete(sourceID string) error {
	if _, err := s.Get(sourceID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(sourceID)); err != nil {
		return fmt.Errorf("reservoir: delete source %s: %w", sourceID, err)
	}
	return nil
}

// Get loads one source's configuration.
func (s *Store) Get(sourceID string) (*Source, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(sourceID), sourceFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: source %q", ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("reservoir: read source %s: %w", sourceID, err)
	}
	var src Source
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("reservoir: corrupt source config %s: %w", sourceID, err)
	}
	src.ID = sourceID // the directory name is authoritative
	return &src, nil
}

// List returns all sources, ordered by id.
func (s *Store) List() ([]*Source, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reservoir: read root: %w", err)
	}
	var out []*Source
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		src, err := s.Get(e.Name())
		if err != nil {
			// Directories without a source.json are not sources.
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DocumentFiles lists the document filenames inside a source directory:
// regular files that are not metadata, dotfiles, or in-flight temp files.
func (s *Store) DocumentFiles(sourceID string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(sourceID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: source %q", ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("reservoir: read source dir %s: %w", sourceID, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || IsReservedName(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// IsReservedName reports whether a filename inside a source directory is
// metadata or scratch rather than a document.
func IsReservedName(name string) bool {
	return name == sourceFile || name == itemsFile ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}

func (s *Store) writeSource(src *Source) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("reservoir: encode source %s: %w", src.ID, err)
	}
	return writeAtomic(filepath.Join(s.Dir(src.ID), sourceFile), data)
}

// writeAtomic writes via tmp + rename so readers never see a torn file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("reservoir: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("reservoir: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
