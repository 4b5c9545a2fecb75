// Package daemonlock guards the daemon-state directory's single-writer
// invariant (§5): a PID file acquired under an exclusive flock at startup
// and released on clean shutdown. No third-party file-locking library
// appears anywhere in the corpus, so this uses syscall.Flock directly, the
// same package the teacher reaches for around process/signal handling.
package daemonlock

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// Lock holds an acquired exclusive lock on a PID file.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if needed) path and takes an exclusive,
// non-blocking flock, writing the current PID into it on success.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("acquire pid file lock (daemon already running?): %w", err)
	}

	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &Lock{file: file}, nil
}

// Release unlocks and closes the PID file. Safe to call once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("release pid file lock: %w", err)
	}
	return l.file.Close()
}
