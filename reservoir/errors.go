// CLAUDE:SUMMARY Error taxonomy re-exports: not-found, validation, lock timeout, process lifecycle.
package reservoir

import (
	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/ledger"
	"github.com/hazyhaar/reservoir/reservoir/internal/scheduler"
)

// Errors by class. Callers match with errors.Is.
var (
	// ErrNotFound covers unknown source ids, unknown document ids, and
	// range boundaries absent among candidates.
	ErrNotFound = chanstore.ErrNotFound

	// ErrInvalidInput covers malformed lock names, invalid duplicate
	// policies, non-numeric or inverted range boundaries. Rejected before
	// any mutation.
	ErrInvalidInput = chanstore.ErrInvalidInput

	// ErrLockTimeout means the ledger's cross-process lock could not be
	// acquired in time. Retryable.
	ErrLockTimeout = ledger.ErrLockTimeout

	// ErrAlreadyRunning and ErrNotRunning report daemon lifecycle state.
	ErrAlreadyRunning = scheduler.ErrAlreadyRunning
	ErrNotRunning     = scheduler.ErrNotRunning
)
