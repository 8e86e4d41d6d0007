package ingest

import (
	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = eris.New("ingest: another run is in progress")

// RunLock is a cross-process lock file that keeps scheduled runs of one
// deployment from stacking up.
type RunLock struct {
	fl *flock.Flock
}

// NewRunLock creates a lock on path. The file is created on first use.
func NewRunLock(path string) *RunLock {
	return &RunLock{fl: flock.New(path)}
}

// TryLock acquires the lock without blocking. It returns ErrRunInProgress
// when the lock is held elsewhere.
func (l *RunLock) TryLock() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return eris.Wrapf(err, "ingest: lock %s", l.fl.Path())
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return eris.Wrapf(err, "ingest: unlock %s", l.fl.Path())
	}
	return nil
}
