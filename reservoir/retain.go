// CLAUDE:SUMMARY Retention lock engine: per-document, identifier-range, and source-level lock management.
package reservoir

import (
	"fmt"
	"strconv"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
)

// --- Single documents ---

// RetainDocument adds a named lock to one document. An empty lock name means
// DefaultLock. Reapplying an already present lock is a no-op.
func (s *Service) RetainDocument(id, lock string) error {
	return s.mutateDocument(id, lock, (*Item).AddLock)
}

// ReleaseDocument removes a named lock from one document. Removing an absent
// lock is a no-op.
func (s *Service) ReleaseDocument(id, lock string) error {
	return s.mutateDocument(id, lock, (*Item).RemoveLock)
}

func (s *Service) mutateDocument(id, lock string, op func(*Item, string) bool) error {
	lock, err := resolveLock(lock)
	if err != nil {
		return err
	}
	sourceID, err := s.sourceOfDocument(id)
	if err != nil {
		return err
	}
	items, err := s.store.LoadItems(sourceID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.ID != id {
			continue
		}
		if !op(it, lock) {
			return nil // set semantics: nothing to write
		}
		return s.store.SaveItems(sourceID, items)
	}
	return fmt.Errorf("%w: document %q", ErrNotFound, id)
}

// sourceOfDocument resolves the source owning a document id, via the ledger
// first and a metadata scan as fallback.
func (s *Service) sourceOfDocument(id string) (string, error) {
	if loc, ok, err := s.ledger.LocationOf(id); err != nil {
		return "", err
	} else if ok {
		if src := sourceOf(loc); src != "" {
			return src, nil
		}
	}
	sources, err := s.store.List()
	if err != nil {
		return "", err
	}
	for _, src := range sources {
		items, err := s.store.LoadItems(src.ID)
		if err != nil {
			return "", err
		}
		for _, it := range items {
			if it.ID == id {
				return src.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: document %q", ErrNotFound, id)
}

// --- Identifier ranges ---

// RangeSpec selects documents by contiguous numeric identifier range.
// Either bound may be empty (open); a non-empty bound must name an existing
// candidate document. SourceID, when set, restricts candidates to one source.
type RangeSpec struct {
	From     string
	To       string
	SourceID string
	Lock     string
}

// RetainRange adds a lock to every document whose identifier falls in the
// range. Validation happens before any mutation: an invalid or unmatched
// boundary locks nothing.
func (s *Service) RetainRange(spec RangeSpec) error {
	return s.mutateRange(spec, (*Item).AddLock)
}

// ReleaseRange removes a lock from every document in the range.
func (s *Service) ReleaseRange(spec RangeSpec) error {
	return s.mutateRange(spec, (*Item).RemoveLock)
}

func (s *Service) mutateRange(spec RangeSpec, op func(*Item, string) bool) error {
	lock, err := resolveLock(spec.Lock)
	if err != nil {
		return err
	}
	from, to, err := parseRange(spec.From, spec.To)
	if err != nil {
		return err
	}

	var sources []*Source
	if spec.SourceID != "" {
		src, err := s.store.Get(spec.SourceID)
		if err != nil {
			return err
		}
		sources = []*Source{src}
	} else {
		if sources, err = s.store.List(); err != nil {
			return err
		}
	}

	perSource := make(map[string][]*Item, len(sources))
	fromSeen, toSeen := spec.From == "", spec.To == ""
	for _, src := range sources {
		items, err := s.store.LoadItems(src.ID)
		if err != nil {
			return err
		}
		perSource[src.ID] = items
		for _, it := range items {
			fromSeen = fromSeen || it.ID == spec.From
			toSeen = toSeen || it.ID == spec.To
		}
	}
	if !fromSeen {
		return fmt.Errorf("%w: range boundary %q", ErrNotFound, spec.From)
	}
	if !toSeen {
		return fmt.Errorf("%w: range boundary %q", ErrNotFound, spec.To)
	}

	for sourceID, items := range perSource {
		changed := false
		for _, it := range items {
			n, err := strconv.ParseUint(it.ID, 10, 64)
			if err != nil || n < from || n > to {
				continue
			}
			if op(it, lock) {
				changed = true
			}
		}
		if changed {
			if err := s.store.SaveItems(sourceID, items); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseRange validates the bounds. Empty bounds are open; math extremes
// stand in for them.
func parseRange(fromStr, toStr string) (from, to uint64, err error) {
	from, to = 0, ^uint64(0)
	if fromStr != "" {
		if from, err = strconv.ParseUint(fromStr, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("%w: non-numeric range boundary %q", ErrInvalidInput, fromStr)
		}
	}
	if toStr != "" {
		if to, err = strconv.ParseUint(toStr, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("%w: non-numeric range boundary %q", ErrInvalidInput, toStr)
		}
	}
	if from > to {
		return 0, 0, fmt.Errorf("%w: inverted range %q..%q", ErrInvalidInput, fromStr, toStr)
	}
	return from, to, nil
}

// --- Whole sources ---

// RetainSource adds a lock to a source's auto-apply set. Only future
// fetches are affected; existing documents keep their lock sets.
func (s *Service) RetainSource(sourceID, lock string) error {
	return s.mutateSourceLocks(sourceID, lock, true)
}

// ReleaseSource removes a lock from a source's auto-apply set.
func (s *Service) ReleaseSource(sourceID, lock string) error {
	return s.mutateSourceLocks(sourceID, lock, false)
}

func (s *Service) mutateSourceLocks(sourceID, lock string, add bool) error {
	lock, err := resolveLock(lock)
	if err != nil {
		return err
	}
	src, err := s.store.Get(sourceID)
	if err != nil {
		return err
	}
	locks := src.AutoLocks
	idx := -1
	for i, name := range locks {
		if name == lock {
			idx = i
			break
		}
	}
	switch {
	case add && idx < 0:
		src.AutoLocks = append(locks, lock)
	case !add && idx >= 0:
		src.AutoLocks = append(locks[:idx], locks[idx+1:]...)
	default:
		return nil // already in the desired state
	}
	return s.store.SaveSource(src)
}

func resolveLock(lock string) (string, error) {
	if lock == "" {
		return chanstore.DefaultLock, nil
	}
	if err := chanstore.ValidateLockName(lock); err != nil {
		return "", err
	}
	return lock, nil
}
