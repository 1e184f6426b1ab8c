// Package lockfile keeps two PigeonMail processes from sharing one data directory.
//
// The lock is a flock on <data_dir>/pigeonmail.lock; the kernel drops it when the process
// exits, so a crashed instance never blocks the next start.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the data directory
const LockFileName = "pigeonmail.lock"

// Owner describes the process holding a lock.
type Owner struct {
	PID       int
	Transport string
	Started   string
}

func (o Owner) String() string {
	if o.PID == 0 {
		return "unknown process"
	}
	state := "not running, stale lock"
	if isProcessRunning(o.PID) {
		state = "running"
	}
	s := fmt.Sprintf("PID %d (%s)", o.PID, state)
	if o.Transport != "" {
		s += ", transport " + o.Transport
	}
	if o.Started != "" {
		s += ", started " + o.Started
	}
	return s
}

// Lock is a held data directory lock
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on dataDir, creating it if needed. transport is recorded
// in the lock file so a conflicting start can report which bot already runs there.
func Acquire(dataDir, transport string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	path := filepath.Join(dataDir, LockFileName)

	// O_TRUNC would wipe the holder's info before we know whether we won.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		owner := ReadOwner(path)
		slog.Error("Lockfile Acquire: data directory in use", "lock_path", path, "owner", owner.String(), "error", err)
		return nil, &LockError{LockPath: path, Owner: owner, Cause: err}
	}

	info := fmt.Sprintf("pid=%d\ntransport=%s\nstarted=%s\n", os.Getpid(), transport, time.Now().UTC().Format(time.RFC3339))
	if err := writeInfo(file, info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", path, err)
	}

	slog.Info("Lockfile Acquire: data directory locked", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

func writeInfo(file *os.File, info string) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(info), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Lockfile writeInfo: sync failed", "error", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before unlocking so a waiting instance never sees our stale info.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lockfile Release: failed to remove lock file", "lock_path", l.path, "error", err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lockfile Release: unlock failed", "lock_path", l.path, "error", err)
	}
	err := l.file.Close()
	l.file = nil
	slog.Info("Lockfile Release: data directory unlocked", "lock_path", l.path)
	return err
}

// LockError is returned when another process holds the lock.
type LockError struct {
	LockPath string
	Owner    Owner
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another PigeonMail instance is using this data directory (lock %s held by %s); "+
		"two instances must not poll the same bot or append to the same logs. "+
		"If no other instance is running, remove %s", e.LockPath, e.Owner, e.LockPath)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// ReadOwner parses the key=value lines of a lock file. Unknown or missing keys are left empty.
func ReadOwner(path string) Owner {
	f, err := os.Open(path)
	if err != nil {
		return Owner{}
	}
	defer f.Close()

	var o Owner
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "transport":
			o.Transport = value
		case "started":
			o.Started = value
		}
	}
	return o
}

// isProcessRunning reports whether pid exists, using signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
