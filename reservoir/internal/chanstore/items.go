// CLAUDE:SUMMARY Item metadata load/save with migration-on-read from the legacy boolean-read shape.
package chanstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// rawItem is the tagged-variant on-disk shape. Older reservoirs persisted a
// boolean "read" flag where the current shape carries a lock set; the parse
// produces one canonical Item either way and reports whether anything was
// upgraded so LoadItems can rewrite exactly once.
type rawItem struct {
	ID        string   `json:"id"`
	Locks     []string `json:"locks"`
	Read      *bool    `json:"read,omitempty"`
	FetchedAt int64    `json:"fetched_at"`
	Location  string   `json:"location"`
}

// canonical upgrades one raw record. An unread legacy item was protected from
// cleanup; that protection maps onto the default lock.
func (r *rawItem) canonical() (*Item, bool) {
	it := &Item{
		ID:        r.ID,
		Locks:     r.Locks,
		FetchedAt: r.FetchedAt,
		Location:  r.Location,
	}
	migrated := false
	if it.Locks == nil {
		it.Locks = []string{}
		if r.Read != nil {
			migrated = true
			if !*r.Read {
				it.Locks = []string{DefaultLock}
			}
		}
	}
	return it, migrated
}

// LoadItems reads a source's item metadata, upgrading legacy records in
// place. Returns ErrNotFound for unknown sources.
func (s *Store) LoadItems(sourceID string) ([]*Item, error) {
	if _, err := s.Get(sourceID); err != nil {
		return nil, err
	}

	path := filepath.Join(s.Dir(sourceID), itemsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reservoir: read items %s: %w", sourceID, err)
	}

	var raw []rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("reservoir: corrupt item metadata %s: %w", sourceID, err)
	}

	items := make([]*Item, 0, len(raw))
	anyMigrated := false
	for i := range raw {
		it, migrated := raw[i].canonical()
		anyMigrated = anyMigrated || migrated
		items = append(items, it)
	}

	if anyMigrated {
		s.logger.Info("chanstore: migrated legacy item metadata", "source_id", sourceID, "items", len(items))
		if err := s.SaveItems(sourceID, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SaveItems rewrites a source's item metadata atomically.
func (s *Store) SaveItems(sourceID string, items []*Item) error {
	if items == nil {
		items = []*Item{}
	}
	for _, it := range items {
		if it.Locks == nil {
			it.Locks = []string{}
		}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("reservoir: encode items %s: %w", sourceID, err)
	}
	return writeAtomic(filepath.Join(s.Dir(sourceID), itemsFile), data)
}
