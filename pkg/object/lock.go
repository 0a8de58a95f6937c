package object

import (
	"context"
	"time"

	"github.com/matzehuels/modgraph/pkg/observability"
)

// RWLocker is the reader/writer lock held by a graph root.
// *sync.RWMutex satisfies it.
type RWLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// Lock modes reported to [observability.GraphHooks.OnLockWait].
const (
	LockModeRead  = "read"
	LockModeWrite = "write"
)

// InstrumentedLock wraps an RWLocker and reports how long each acquisition
// waited to the registered graph hooks.
type InstrumentedLock struct {
	inner RWLocker
}

// Instrument wraps l so acquisitions are reported to observability hooks.
func Instrument(l RWLocker) *InstrumentedLock {
	return &InstrumentedLock{inner: l}
}

// Lock acquires the write lock.
func (l *InstrumentedLock) Lock() {
	start := time.Now()
	l.inner.Lock()
	observability.Graph().OnLockWait(context.Background(), LockModeWrite, time.Since(start))
}

// Unlock releases the write lock.
func (l *InstrumentedLock) Unlock() { l.inner.Unlock() }

// RLock acquires the read lock.
func (l *InstrumentedLock) RLock() {
	start := time.Now()
	l.inner.RLock()
	observability.Graph().OnLockWait(context.Background(), LockModeRead, time.Since(start))
}

// RUnlock releases the read lock.
func (l *InstrumentedLock) RUnlock() { l.inner.RUnlock() }

var _ RWLocker = (*InstrumentedLock)(nil)
