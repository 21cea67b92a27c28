// Package ident produces unique, time-ordered task identifiers.
package ident

import (
	"sync"
	"time"
)

// Generator combines coarse wall-clock time with a process-local counter.
// Identifiers are unique within a process and near-time-ordered across
// processes; they are opaque keys, never a sequencing authority.
type Generator struct {
	mu      sync.Mutex
	counter int64
	now     func() time.Time
}

// New creates a Generator using the system clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a Generator with an injected clock (for testing).
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns the next identifier: unix seconds scaled by 1000 plus the
// monotonic counter. The counter never resets, so identifiers issued within
// the same second still differ.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.now().Unix()*1000 + g.counter
}
