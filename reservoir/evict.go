// CLAUDE:SUMMARY Eviction engine: oldest-unlocked-first deletion until the size budget is met.
package reservoir

import (
	"fmt"
	"sort"
	"strconv"
)

// Evict deletes the oldest unlocked documents until total stored size fits
// the configured budget. A zero budget or a reservoir already within budget
// is a no-op. Locked documents are never candidates; when only locked
// documents remain, the reservoir may stay over budget.
func (s *Service) Evict() error {
	// reservoir.yaml is authoritative for the budget; another process may
	// have changed it since Open.
	cfg, err := loadConfig(s.root)
	if err != nil {
		return err
	}
	s.config.SizeBudgetBytes = cfg.SizeBudgetBytes
	budget := cfg.SizeBudgetBytes
	if budget <= 0 {
		return nil
	}

	// Adopt untracked files first so the accounting reflects actual
	// on-disk size, not just what metadata already knows about.
	if err := s.rec.Sync(); err != nil {
		return err
	}

	sources, err := s.store.List()
	if err != nil {
		return err
	}

	type candidate struct {
		item     *Item
		sourceID string
		size     int64
	}
	var total int64
	var candidates []candidate
	perSource := make(map[string][]*Item, len(sources))
	for _, src := range sources {
		items, err := s.store.LoadItems(src.ID)
		if err != nil {
			return err
		}
		perSource[src.ID] = items
		for _, it := range items {
			size := s.store.DocumentSize(it.Location)
			total += size
			if !it.Retained() {
				candidates = append(candidates, candidate{it, src.ID, size})
			}
		}
	}
	if total <= budget {
		return nil
	}

	// Oldest first; numeric id order breaks fetch-time ties deterministically.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].item, candidates[j].item
		if a.FetchedAt != b.FetchedAt {
			return a.FetchedAt < b.FetchedAt
		}
		na, _ := strconv.ParseUint(a.ID, 10, 64)
		nb, _ := strconv.ParseUint(b.ID, 10, 64)
		return na < nb
	})

	changed := map[string]bool{}
	evicted := 0
	for _, c := range candidates {
		if total <= budget {
			break
		}
		if err := s.store.RemoveDocument(c.item.Location); err != nil {
			return err
		}
		if err := s.ledger.Unbind(c.item.ID); err != nil {
			return err
		}
		items := perSource[c.sourceID]
		for i, it := range items {
			if it.ID == c.item.ID {
				perSource[c.sourceID] = append(items[:i], items[i+1:]...)
				break
			}
		}
		changed[c.sourceID] = true
		total -= c.size
		evicted++
		s.logger.Info("evicted document", "id", c.item.ID, "location", c.item.Location, "size", c.size)
	}

	for sourceID := range changed {
		if err := s.store.SaveItems(sourceID, perSource[sourceID]); err != nil {
			return err
		}
	}
	if total > budget {
		s.logger.Warn("still over budget, remaining documents are locked",
			"total", total, "budget", budget, "evicted", evicted)
	}
	return nil
}

// SetSizeBudget persists a new size budget. Lowering the budget (including
// introducing one) triggers a synchronous eviction pass.
func (s *Service) SetSizeBudget(bytes int64) error {
	if bytes < 0 {
		return fmt.Errorf("%w: negative size budget", ErrInvalidInput)
	}
	old := s.config.SizeBudgetBytes
	s.config.SizeBudgetBytes = bytes
	if err := saveConfig(s.root, s.config); err != nil {
		s.config.SizeBudgetBytes = old
		return err
	}
	if bytes > 0 && (old == 0 || bytes < old) {
		return s.Evict()
	}
	return nil
}

// SizeBudget returns the configured budget in bytes; 0 means unlimited.
func (s *Service) SizeBudget() int64 { return s.config.SizeBudgetBytes }

// Usage returns the total on-disk size of all tracked documents.
func (s *Service) Usage() (int64, error) {
	sources, err := s.store.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, src := range sources {
		items, err := s.store.LoadItems(src.ID)
		if err != nil {
			return 0, err
		}
		for _, it := range items {
			total += s.store.DocumentSize(it.Location)
		}
	}
	return total, nil
}
