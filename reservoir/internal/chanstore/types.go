// CLAUDE:SUMMARY Source and Item data shapes, lock/policy constants, field validation.
// Package chanstore persists per-source configuration and per-item metadata
// as JSON documents inside each source's subtree of the reservoir.
package chanstore

import (
	"errors"
	"fmt"
	"strings"
)

// Duplicate policies decide what happens when a fetched item's dedup key
// matches an already tracked document.
const (
	PolicyOverwrite = "overwrite"
	PolicyKeepBoth  = "keep-both"
)

// DefaultLock is the reserved global lock name applied when a retain or
// release call names no lock.
const DefaultLock = "keep"

// LockSeparator is reserved for joined lock-set renderings (CLI output,
// legacy metadata). Lock names containing it are rejected.
const LockSeparator = ","

// Reserved filenames inside a source directory that are never documents.
const (
	sourceFile = "source.json"
	itemsFile  = "items.json"
)

// Sentinel errors. The reservoir facade re-exports these.
var (
	ErrNotFound     = errors.New("reservoir: not found")
	ErrInvalidInput = errors.New("reservoir: invalid input")
)

// Source is a configured content origin.
type Source struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Params          map[string]string `json:"params,omitempty"`
	CreatedAt       int64             `json:"created_at"` // unix ms
	FetchIntervalMs int64             `json:"fetch_interval_ms"`
	RateLimitMs     int64             `json:"rate_limit_ms,omitempty"`
	ContentKey      string            `json:"content_key,omitempty"`
	DuplicatePolicy string            `json:"duplicate_policy"`
	AutoLocks       []string          `json:"auto_locks,omitempty"`
}

// Item is the metadata record for one persisted document.
type Item struct {
	ID        string   `json:"id"`
	Locks     []string `json:"locks"`
	FetchedAt int64    `json:"fetched_at"` // unix ms
	Location  string   `json:"location"`   // relative to the reservoir root
}

// Retained reports whether the item's lock set is non-empty.
func (it *Item) Retained() bool { return len(it.Locks) > 0 }

// HasLock reports whether the named lock is in the item's lock set.
func (it *Item) HasLock(name string) bool {
	for _, l := range it.Locks {
		if l == name {
			return true
		}
	}
	return false
}

// AddLock adds name to the lock set. Set semantics: reapplying is a no-op.
// Reports whether the set changed.
func (it *Item) AddLock(name string) bool {
	if it.HasLock(name) {
		return false
	}
	it.Locks = append(it.Locks, name)
	return true
}

// RemoveLock removes name from the lock set. Reports whether the set changed.
func (it *Item) RemoveLock(name string) bool {
	for i, l := range it.Locks {
		if l == name {
			it.Locks = append(it.Locks[:i], it.Locks[i+1:]...)
			return true
		}
	}
	return false
}

// ValidateLockName rejects empty names and names containing the reserved
// separator character.
func ValidateLockName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: lock name is empty", ErrInvalidInput)
	}
	if strings.Contains(name, LockSeparator) {
		return fmt.Errorf("%w: lock name %q contains reserved separator %q", ErrInvalidInput, name, LockSeparator)
	}
	return nil
}

// ValidatePolicy rejects duplicate-policy values other than the two known ones.
func ValidatePolicy(policy string) error {
	if policy != PolicyOverwrite && policy != PolicyKeepBoth {
		return fmt.Errorf("%w: unknown duplicate policy %q", ErrInvalidInput, policy)
	}
	return nil
}

// validateSource checks the fields of a merged source before any write.
func validateSource(s *Source) error {
	if s.Name == "" {
		return fmt.Errorf("%w: source name is required", ErrInvalidInput)
	}
	if s.Type == "" {
		return fmt.Errorf("%w: source type is required", ErrInvalidInput)
	}
	if s.FetchIntervalMs <= 0 {
		return fmt.Errorf("%w: fetch interval must be positive", ErrInvalidInput)
	}
	if s.RateLimitMs < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidInput)
	}
	if err := ValidatePolicy(s.DuplicatePolicy); err != nil {
		return err
	}
	for _, lock := range s.AutoLocks {
		if err := ValidateLockName(lock); err != nil {
			return err
		}
	}
	return nil
}
