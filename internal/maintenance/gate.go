package maintenance

import (
	"sync"
	"sync/atomic"
)

// Gate lets many votes run together while keeping them out for the duration
// of a bulk operation. Votes never queue behind a bulk operation: they are
// turned away so the caller can retry.
type Gate struct {
	mu     sync.RWMutex
	active atomic.Int32
}

func New() *Gate {
	return &Gate{}
}

// Enter admits a vote. It returns false while a bulk operation holds the
// gate; the returned leave func is nil in that case.
func (g *Gate) Enter() (leave func(), ok bool) {
	if !g.mu.TryRLock() {
		return nil, false
	}
	return g.mu.RUnlock, true
}

// Close waits for in-flight votes to drain and holds the gate until the
// returned reopen func is called.
func (g *Gate) Close() (reopen func()) {
	g.active.Add(1)
	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		g.active.Add(-1)
	}
}

// InMaintenance reports whether a bulk operation holds or awaits the gate.
func (g *Gate) InMaintenance() bool {
	return g.active.Load() > 0
}
