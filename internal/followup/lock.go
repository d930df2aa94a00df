package followup

import (
	"context"
	"errors"
	"sync"
)

// ErrLockHeld is returned by a Locker when another dispatcher owns the key.
var ErrLockHeld = errors.New("dispatch lock held")

// Locker serializes dispatch of a single job across workers.
type Locker interface {
	TryLock(ctx context.Context, key string) (Unlocker, error)
}

type Unlocker interface {
	Unlock(ctx context.Context) error
}

// LocalLocker is an in-process Locker, used when no shared store is configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (Unlocker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLockHeld
	}
	l.held[key] = struct{}{}
	return localUnlock{l: l, key: key}, nil
}

type localUnlock struct {
	l   *LocalLocker
	key string
}

func (u localUnlock) Unlock(context.Context) error {
	u.l.mu.Lock()
	defer u.l.mu.Unlock()
	delete(u.l.held, u.key)
	return nil
}
