package order

import "sync"

// Gate serializes ordering runs. The remote session tolerates only one
// driver at a time, so a second caller is rejected instead of queued.
type Gate struct {
	mu sync.Mutex
}

// TryAcquire reports whether the caller now holds the gate.
func (g *Gate) TryAcquire() bool { return g.mu.TryLock() }

// Release frees the gate for the next run. It must only be called by
// the holder.
func (g *Gate) Release() { g.mu.Unlock() }
