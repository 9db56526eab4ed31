// CLAUDE:SUMMARY Spin-and-retry exclusive file lock with bounded wait and stale-holder detection.
package ledger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const lockFile = "ledger.lock"

// acquire takes the exclusive lock marker at path, spinning until either the
// marker is created atomically or the deadline passes. The marker records the
// holder's pid; a marker whose pid is no longer alive is from a crashed
// process and is broken before retrying.
func acquire(path string, timeout, retry time.Duration) (release func(), err error) {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("reservoir: create lock marker: %w", err)
		}

		if pid, ok := holderPID(path); ok && !processAlive(pid) {
			breakStaleMarker(path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w (waited %s)", ErrLockTimeout, timeout)
		}
		time.Sleep(retry)
	}
}

// breakStaleMarker removes a crashed holder's marker. Breaking is serialized
// through a companion mutex file so the dead-pid check and the removal are
// atomic with respect to other waiters. A plain remove here could race a
// second breaker and delete a marker a live holder just re-created, giving
// two processes the lock at once.
func breakStaleMarker(path string) {
	mutex := path + ".breaking"
	f, err := os.OpenFile(mutex, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// Another breaker is at work. If it crashed mid-break, clear
			// the abandoned mutex so the next round can proceed.
			if pid, ok := holderPID(mutex); ok && !processAlive(pid) {
				os.Remove(mutex)
			}
		}
		return
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	defer os.Remove(mutex)

	// Re-check under the mutex. Only breakers remove dead holders' markers
	// and a dead holder never releases, so the recorded pid cannot flip
	// from dead to live while the mutex is held.
	if pid, ok := holderPID(path); ok && !processAlive(pid) {
		os.Remove(path)
	}
}

// holderPID reads the pid recorded in the lock marker.
func holderPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything; EPERM still means
// the process is there.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
