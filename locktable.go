package fat16

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/aligator/fat16/checkpoint"
)

// LockTable hands out exclusive locks keyed by the identity of directory
// entries. Entries for a key only exist while the key is held or awaited.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*tableLock
}

type tableLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*tableLock)}
}

// Guard is a held lock of a LockTable.
type Guard struct {
	table *LockTable
	lock  *tableLock
	key   string
	once  sync.Once
}

// Acquire blocks until the lock for key is free or ctx is done.
func (t *LockTable) Acquire(ctx context.Context, key string) (*Guard, error) {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &tableLock{sem: semaphore.NewWeighted(1)}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		t.unref(key, l)
		return nil, checkpoint.From(err)
	}

	return &Guard{table: t, lock: l, key: key}, nil
}

func (t *LockTable) unref(key string, l *tableLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// Release unlocks the guarded key. Releasing twice is a no-op.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.lock.sem.Release(1)
		g.table.unref(g.key, g.lock)
	})
}

// Key returns the identity the guard holds.
func (g *Guard) Key() string {
	return g.key
}
