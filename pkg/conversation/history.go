package conversation

import "sync"

// History is the ordered list of turns. Only the controller appends to it or
// updates the in-flight turn; any goroutine may read snapshots.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns a history seeded with restored turns. A restored turn
// still marked pending was cut off by an earlier exit and becomes incomplete.
func NewHistory(turns ...Turn) *History {
	h := &History{turns: make([]Turn, len(turns))}
	copy(h.turns, turns)
	for i := range h.turns {
		if h.turns[i].Status == StatusPending {
			h.turns[i].Status = StatusIncomplete
		}
	}
	return h
}

// Turns returns a snapshot of every turn.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// At returns the turn at index i.
func (h *History) At(i int) (Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.turns) {
		return Turn{}, false
	}
	return h.turns[i], true
}

// append adds turns to the tail and returns the index of the first one.
func (h *History) append(turns ...Turn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := len(h.turns)
	h.turns = append(h.turns, turns...)
	return i
}

// update is the single mutation path for an existing turn. Final turns are
// left untouched.
func (h *History) update(i int, fn func(*Turn)) Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := &h.turns[i]
	if !t.Final() {
		fn(t)
	}
	return *t
}
