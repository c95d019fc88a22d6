package peer

import "sync"

// A Cond is a one-shot event. C is closed once the event fires.
type Cond struct {
	C    chan struct{}
	once sync.Once
}

// NewCond creates a Cond that has not fired.
func NewCond() *Cond {
	return &Cond{C: make(chan struct{})}
}

// Signal fires the event.
func (c *Cond) Signal() {
	c.Do(func() {})
}

// Do runs fn and fires the event, unless it already fired.
func (c *Cond) Do(fn func()) {
	c.once.Do(func() {
		fn()
		close(c.C)
	})
}

// Fired reports whether the event fired.
func (c *Cond) Fired() bool {
	select {
	case <-c.C:
		return true
	default:
		return false
	}
}
