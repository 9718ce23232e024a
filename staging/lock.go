package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLockHeld is returned when an object's staging lock is held by another
// process.
var ErrLockHeld = errors.New("the object is locked by another process")

// objectLock is an advisory file lock protecting an object's staged version
// from concurrent modification by other processes on the same host. It does
// not protect against concurrent commits from other hosts.
type objectLock struct {
	flock *flock.Flock
}

// lockObject acquires the lock for id without blocking. If another process
// holds the lock, the returned error wraps [ErrLockHeld].
func (s *Store) lockObject(id string) (*objectLock, error) {
	sum := sha256.Sum256([]byte(id))
	name := filepath.Join(s.locks, hex.EncodeToString(sum[:]))
	fl := flock.New(name)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for %q: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrLockHeld)
	}
	return &objectLock{flock: fl}, nil
}

// close releases the lock. It is safe to call more than once.
func (l *objectLock) close() error {
	if l == nil || l.flock == nil {
		return nil
	}
	err := l.flock.Unlock()
	l.flock = nil
	return err
}
