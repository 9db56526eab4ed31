// CLAUDE:SUMMARY Document listing: source/retained/lock filters with newest-first pagination.
package reservoir

import (
	"fmt"
	"sort"
	"strconv"
)

// ListFilter narrows ListDocuments results. The zero value lists everything.
type ListFilter struct {
	SourceID string   // restrict to one source
	Retained *bool    // true: locked only; false: unlocked only
	Locks    []string // documents carrying any of these lock names
	Offset   int
	Limit    int // 0 means no limit
}

// DocumentInfo is one listing row: the item's metadata plus its owner.
type DocumentInfo struct {
	Item     *Item
	SourceID string
	Size     int64
}

// ListDocuments returns tracked documents, newest first, filtered and
// paginated.
func (s *Service) ListDocuments(f ListFilter) ([]DocumentInfo, error) {
	var sources []*Source
	if f.SourceID != "" {
		src, err := s.store.Get(f.SourceID)
		if err != nil {
			return nil, err
		}
		sources = []*Source{src}
	} else {
		var err error
		if sources, err = s.store.List(); err != nil {
			return nil, err
		}
	}

	var out []DocumentInfo
	for _, src := range sources {
		items, err := s.store.LoadItems(src.ID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if f.Retained != nil && it.Retained() != *f.Retained {
				continue
			}
			if len(f.Locks) > 0 && !hasAnyLock(it, f.Locks) {
				continue
			}
			out = append(out, DocumentInfo{
				Item:     it,
				SourceID: src.ID,
				Size:     s.store.DocumentSize(it.Location),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Item, out[j].Item
		if a.FetchedAt != b.FetchedAt {
			return a.FetchedAt > b.FetchedAt
		}
		na, _ := strconv.ParseUint(a.ID, 10, 64)
		nb, _ := strconv.ParseUint(b.ID, 10, 64)
		return na > nb
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// ReadDocument returns a document's text content by identifier.
func (s *Service) ReadDocument(id string) (string, error) {
	sourceID, err := s.sourceOfDocument(id)
	if err != nil {
		return "", err
	}
	items, err := s.store.LoadItems(sourceID)
	if err != nil {
		return "", err
	}
	for _, it := range items {
		if it.ID == id {
			return s.store.ReadDocument(it.Location)
		}
	}
	return "", fmt.Errorf("%w: document %q", ErrNotFound, id)
}

func hasAnyLock(it *Item, names []string) bool {
	for _, name := range names {
		if it.HasLock(name) {
			return true
		}
	}
	return false
}
