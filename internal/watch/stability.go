package watch

import (
	"sync"
	"time"

	"mfo/pkg/types"
)

// StabilityGate holds each new file back for a quiet period before handing
// it on, so downloads in progress are not grabbed at their first byte.
//
// It does not look at size or mtime: a download that takes longer than
// the quiet period can still be moved while incomplete. A second event for
// a path that is already waiting does not restart its timer.
type StabilityGate struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   func(types.FileEvent)
}

// NewStabilityGate returns a gate that calls ready, on its own goroutine,
// once a path's quiet period has passed.
func NewStabilityGate(ready func(types.FileEvent)) *StabilityGate {
	return &StabilityGate{pending: make(map[string]*time.Timer), ready: ready}
}

// Observe starts the quiet period for ev.Path. It returns false when the
// path is already waiting.
func (g *StabilityGate) Observe(ev types.FileEvent, quiet time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, waiting := g.pending[ev.Path]; waiting {
		return false
	}
	g.pending[ev.Path] = time.AfterFunc(quiet, func() { g.fire(ev) })
	return true
}

func (g *StabilityGate) fire(ev types.FileEvent) {
	g.mu.Lock()
	_, still := g.pending[ev.Path]
	delete(g.pending, ev.Path)
	g.mu.Unlock()
	if still {
		g.ready(ev)
	}
}

// Cancel drops a waiting path. It reports whether one was waiting.
func (g *StabilityGate) Cancel(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.pending[path]
	if ok {
		t.Stop()
		delete(g.pending, path)
	}
	return ok
}

// CancelAll drops every waiting path and returns how many there were.
func (g *StabilityGate) CancelAll() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.pending)
	for path, t := range g.pending {
		t.Stop()
		delete(g.pending, path)
	}
	return n
}

// Pending returns the number of paths waiting.
func (g *StabilityGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
