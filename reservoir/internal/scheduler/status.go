// CLAUDE:SUMMARY Heartbeat/status document: per-source attempt, success, and error state.
package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SourceStatus is the recorded fetch state of one source.
type SourceStatus struct {
	LastAttempt int64  `json:"last_attempt,omitempty"` // unix ms
	LastSuccess int64  `json:"last_success,omitempty"` // unix ms
	LastError   string `json:"last_error,omitempty"`
	Attempts    int64  `json:"attempts,omitempty"`
	Successes   int64  `json:"successes,omitempty"`
}

// Status is the heartbeat document the scheduler rewrites every tick.
type Status struct {
	Running   bool                     `json:"running"`
	PID       int                      `json:"pid"`
	RunID     string                   `json:"run_id"`
	StartedAt int64                    `json:"started_at"` // unix ms
	UpdatedAt int64                    `json:"updated_at"` // unix ms
	Sources   map[string]*SourceStatus `json:"sources"`
}

func (st *Status) source(id string) *SourceStatus {
	if st.Sources == nil {
		st.Sources = map[string]*SourceStatus{}
	}
	ss, ok := st.Sources[id]
	if !ok {
		ss = &SourceStatus{}
		st.Sources[id] = ss
	}
	return ss
}

func writeStatus(root string, st *Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("reservoir: encode status: %w", err)
	}
	target := filepath.Join(root, statusFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("reservoir: write status: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("reservoir: rename status: %w", err)
	}
	return nil
}

// ReadStatus reads the status document and reconciles its Running flag with
// the process marker's actual liveness. Returns an empty non-running status
// when no scheduler has ever run.
func ReadStatus(root string) (*Status, error) {
	var st Status
	data, err := os.ReadFile(filepath.Join(root, statusFile))
	switch {
	case os.IsNotExist(err):
		// fall through with the zero status
	case err != nil:
		return nil, fmt.Errorf("reservoir: read status: %w", err)
	default:
		if jerr := json.Unmarshal(data, &st); jerr != nil {
			return nil, fmt.Errorf("reservoir: corrupt status document: %w", jerr)
		}
	}

	pid, ok := markerPID(root)
	st.Running = ok && processAlive(pid)
	if !st.Running && ok && !processAlive(pid) {
		// Crashed run: clean the marker up on behalf of the dead process.
		os.Remove(filepath.Join(root, markerFile))
	}
	return &st, nil
}
