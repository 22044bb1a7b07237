package services

import "sync"

// turnGate enforces the at-most-one-in-flight-turn invariant per session.
// The original widget relied on disabling its input field while a turn was
// awaited; here the guard is a first-class single-slot acquisition so the
// invariant holds regardless of what the client does.
type turnGate struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func newTurnGate() *turnGate {
	return &turnGate{inflight: make(map[string]struct{})}
}

// tryAcquire claims the slot for sessionID. It never blocks: a second caller
// gets false and must surface ErrTurnInFlight.
func (g *turnGate) tryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[sessionID]; busy {
		return false
	}
	g.inflight[sessionID] = struct{}{}
	return true
}

// release frees the slot. Safe to call for a session that holds no slot.
func (g *turnGate) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, sessionID)
}
