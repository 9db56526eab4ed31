// CLAUDE:SUMMARY Reservoir-wide identifier ledger: monotonic counter + id→location map, file-lock guarded.
// Package ledger tracks the reservoir-wide identifier sequence and the
// bidirectional map between identifiers and document file locations.
//
// The ledger is the one piece of state shared by independent processes (the
// background daemon plus any number of short-lived CLI invocations), so every
// mutation runs under an exclusive filesystem lock with a bounded wait. State
// lives in two files at the reservoir root: "counter" holds the decimal
// high-water mark, "locations.json" holds the id→location map. Both are
// rewritten atomically (tmp + rename) so a crash never leaves a torn file.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	counterFile   = "counter"
	locationsFile = "locations.json"
)

// ErrLockTimeout is returned when the exclusive ledger lock cannot be
// acquired within the configured wait. Callers should abort and retry later
// rather than proceed unsafely.
var ErrLockTimeout = errors.New("reservoir: ledger lock acquisition timed out")

// Config configures lock acquisition behaviour.
type Config struct {
	// LockTimeout bounds the total wait for the ledger lock. Default: 10s.
	LockTimeout time.Duration
	// RetrySleep is the pause between acquisition attempts. Default: 25ms.
	RetrySleep time.Duration
}

func (c *Config) defaults() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = 10 * time.Second
	}
	if c.RetrySleep <= 0 {
		c.RetrySleep = 25 * time.Millisecond
	}
}

// Ledger allocates identifiers and binds them to file locations.
type Ledger struct {
	root   string
	config Config
}

// New creates a Ledger rooted at the given reservoir directory.
func New(root string, cfg Config) *Ledger {
	cfg.defaults()
	return &Ledger{root: root, config: cfg}
}

// state is the in-memory shape of the two ledger files.
type state struct {
	counter   uint64
	locations map[string]string // id → relative location
}

// Next allocates and returns a fresh identifier, strictly greater than any
// previously allocated value.
func (l *Ledger) Next() (string, error) {
	var id string
	err := l.withLock(func(st *state) (bool, error) {
		st.counter++
		id = strconv.FormatUint(st.counter, 10)
		return true, nil
	})
	return id, err
}

// Assign returns the identifier already bound to location, or allocates a
// fresh one and binds it.
func (l *Ledger) Assign(location string) (string, error) {
	location = filepath.ToSlash(location)
	var id string
	err := l.withLock(func(st *state) (bool, error) {
		for existing, loc := range st.locations {
			if loc == location {
				id = existing
				return false, nil
			}
		}
		st.counter++
		id = strconv.FormatUint(st.counter, 10)
		st.locations[id] = location
		return true, nil
	})
	return id, err
}

// Bind points id at location, replacing any previous binding for that id.
// The counter floor is raised to at least id so externally numbered imports
// never collide with future allocations.
func (l *Ledger) Bind(id, location string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	location = filepath.ToSlash(location)
	return l.withLock(func(st *state) (bool, error) {
		if st.counter < n {
			st.counter = n
		}
		st.locations[id] = location
		return true, nil
	})
}

// Unbind removes the binding for id. Identifiers are never reused after
// Unbind: the counter is left untouched. Unbinding an unknown id is a no-op.
func (l *Ledger) Unbind(id string) error {
	return l.withLock(func(st *state) (bool, error) {
		if _, ok := st.locations[id]; !ok {
			return false, nil
		}
		delete(st.locations, id)
		return true, nil
	})
}

// LocationOf returns the location bound to id, if any.
func (l *Ledger) LocationOf(id string) (string, bool, error) {
	st, err := l.load()
	if err != nil {
		return "", false, err
	}
	loc, ok := st.locations[id]
	return loc, ok, nil
}

// IDOf returns the identifier bound to location, if any.
func (l *Ledger) IDOf(location string) (string, bool, error) {
	location = filepath.ToSlash(location)
	st, err := l.load()
	if err != nil {
		return "", false, err
	}
	for id, loc := range st.locations {
		if loc == location {
			return id, true, nil
		}
	}
	return "", false, nil
}

// All returns a snapshot of the full id→location map.
func (l *Ledger) All() (map[string]string, error) {
	st, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(st.locations))
	for id, loc := range st.locations {
		out[id] = loc
	}
	return out, nil
}

// withLock runs fn on the loaded state under the exclusive file lock and
// persists the state when fn reports a change. The lock is released on every
// exit path.
func (l *Ledger) withLock(fn func(st *state) (bool, error)) error {
	release, err := acquire(filepath.Join(l.root, lockFile), l.config.LockTimeout, l.config.RetrySleep)
	if err != nil {
		return err
	}
	defer release()

	st, err := l.load()
	if err != nil {
		return err
	}
	changed, err := fn(st)
	if err != nil || !changed {
		return err
	}
	return l.store(st)
}

func (l *Ledger) load() (*state, error) {
	st := &state{locations: map[string]string{}}

	data, err := os.ReadFile(filepath.Join(l.root, counterFile))
	switch {
	case err == nil:
		n, perr := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("reservoir: corrupt counter file: %w", perr)
		}
		st.counter = n
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reservoir: read counter: %w", err)
	}

	data, err = os.ReadFile(filepath.Join(l.root, locationsFile))
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &st.locations); jerr != nil {
			return nil, fmt.Errorf("reservoir: corrupt locations file: %w", jerr)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reservoir: read locations: %w", err)
	}
	return st, nil
}

func (l *Ledger) store(st *state) error {
	data, err := json.MarshalIndent(st.locations, "", "  ")
	if err != nil {
		return fmt.Errorf("reservoir: encode locations: %w", err)
	}
	if err := writeAtomic(filepath.Join(l.root, locationsFile), data); err != nil {
		return err
	}
	counter := []byte(strconv.FormatUint(st.counter, 10) + "\n")
	return writeAtomic(filepath.Join(l.root, counterFile), counter)
}

// writeAtomic writes data to path via a temp file and rename so readers
// never observe a partial write.
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

func parseID(id string) (uint64, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reservoir: invalid identifier %q: %w", id, err)
	}
	return n, nil
}
