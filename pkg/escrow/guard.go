package escrow

import "sync"

// settlementGuard is the single global critical section covering complete and
// withdraw, validation through final transfer. Acquisition fails fast instead
// of blocking: a concurrent or reentrant settlement must observe ErrLocked,
// never queue behind the one in flight.
type settlementGuard struct {
	mu sync.Mutex
}

func (g *settlementGuard) tryAcquire() bool {
	return g.mu.TryLock()
}

func (g *settlementGuard) release() {
	g.mu.Unlock()
}
