package fat16

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/aligator/fat16/checkpoint"
)

// Quota limits the number of live nodes (mounted filesystems and directory
// entries). Allocating a node beyond the limit fails with ErrMemoryExhausted
// instead of growing without bound. A nil *Quota never runs out.
type Quota struct {
	sem   *semaphore.Weighted
	limit int64
	used  atomic.Int64
}

// NewQuota creates a quota for at most limit live nodes.
func NewQuota(limit int64) *Quota {
	return &Quota{
		sem:   semaphore.NewWeighted(limit),
		limit: limit,
	}
}

func (q *Quota) acquire() error {
	if q == nil {
		return nil
	}
	if !q.sem.TryAcquire(1) {
		return checkpoint.New(ErrMemoryExhausted, "node quota of %d used up", q.limit)
	}
	q.used.Add(1)
	return nil
}

func (q *Quota) release() {
	if q == nil {
		return
	}
	q.used.Add(-1)
	q.sem.Release(1)
}

// InUse returns the number of currently allocated nodes.
func (q *Quota) InUse() int64 {
	if q == nil {
		return 0
	}
	return q.used.Load()
}

// Limit returns the maximum number of live nodes.
func (q *Quota) Limit() int64 {
	if q == nil {
		return 0
	}
	return q.limit
}
