package store

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when the store is held by another handle in a
// conflicting mode.
var ErrLocked = errors.New("store is locked")

// fileLock is an advisory flock(2) on a sidecar file. flock locks belong to
// the open file description, so two handles in the same process exclude each
// other just like two processes do.
type fileLock struct {
	path string
	file *os.File
}

func newFileLock(storePath string) *fileLock {
	return &fileLock{path: storePath + ".lock"}
}

// tryLock makes one non-blocking attempt. Contention is reported as ErrLocked.
func (l *fileLock) tryLock(exclusive bool) error {
	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open lock file: %w", err)
		}
		l.file = f
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}

	if err := unix.Flock(int(l.file.Fd()), how|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return fmt.Errorf("failed to lock %s: %w", l.path, err)
	}
	return nil
}

// unlock releases the lock and closes the lock file. Safe to call when the
// lock was never taken.
func (l *fileLock) unlock() error {
	if l.file == nil {
		return nil
	}

	f := l.file
	l.file = nil

	err := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return nil
}
