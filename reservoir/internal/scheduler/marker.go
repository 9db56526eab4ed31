// CLAUDE:SUMMARY Exclusive process marker: one scheduler per reservoir, stale-pid cleanup, stop via SIGTERM.
package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	markerFile = "reservoir.pid"
	statusFile = "status.json"
)

// ErrAlreadyRunning is returned when another live scheduler owns the marker.
var ErrAlreadyRunning = errors.New("reservoir: scheduler already running")

// ErrNotRunning is returned by Stop when no live scheduler owns the marker.
var ErrNotRunning = errors.New("reservoir: scheduler not running")

// acquireMarker claims the per-reservoir process marker. A marker whose pid
// is dead was left by a crashed run and is replaced.
func acquireMarker(root string) (release func(), err error) {
	path := filepath.Join(root, markerFile)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("reservoir: create process marker: %w", err)
		}
		pid, ok := markerPID(root)
		if ok && processAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		breakStaleMarker(path)
	}
}

// breakStaleMarker removes a dead or unreadable marker. Breaking is
// serialized through a companion mutex file: a plain remove could race a
// second breaker and delete a marker a live daemon just re-created, letting
// two schedulers run at once.
func breakStaleMarker(path string) {
	mutex := path + ".breaking"
	f, err := os.OpenFile(mutex, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if pid, ok := pidIn(mutex); ok && !processAlive(pid) {
				os.Remove(mutex)
			}
		}
		return
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	defer os.Remove(mutex)

	if pid, ok := pidIn(path); !ok || !processAlive(pid) {
		os.Remove(path)
	}
}

// markerPID reads the pid recorded in the process marker.
func markerPID(root string) (int, bool) {
	return pidIn(filepath.Join(root, markerFile))
}

func pidIn(path string) (int, bool) {
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

// Stop signals the running scheduler to terminate gracefully. When the
// marker's process turns out to be dead, the marker is cleaned up instead.
func Stop(root string) error {
	pid, ok := markerPID(root)
	if !ok {
		return ErrNotRunning
	}
	if !processAlive(pid) {
		os.Remove(filepath.Join(root, markerFile))
		os.Remove(filepath.Join(root, statusFile))
		return ErrNotRunning
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return ErrNotRunning
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("reservoir: signal scheduler (pid %d): %w", pid, err)
	}
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
