// Package requestid issues the ids used to correlate asynchronous engine
// requests with their completions.
package requestid

import (
	"math"
	"sync"
)

// A Generator issues strictly increasing positive ids. After math.MaxInt the
// counter starts over at 1; ids are not checked for reuse.
type Generator struct {
	mu   sync.Mutex
	last int
}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// Next returns the next id.
func (g *Generator) Next() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last == math.MaxInt {
		g.last = 0
	}
	g.last++
	return g.last
}
