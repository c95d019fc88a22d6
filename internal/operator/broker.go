// Package operator implements the rendezvous server behind the operator://
// channel. A publish waits until a subscriber takes the message, and a
// subscribe waits until a message is published, each bounded by its context.
package operator

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a closed Broker.
var ErrClosed = errors.New("operator: closed")

type publication struct {
	data  string
	taken chan struct{}
}

// A Broker pairs publishers and subscribers by address.
type Broker struct {
	mu     sync.Mutex
	pubs   map[string][]*publication
	subs   map[string][]chan string
	closed bool
	closer chan struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		pubs:   make(map[string][]*publication),
		subs:   make(map[string][]chan string),
		closer: make(chan struct{}),
	}
}

// Close wakes every waiting call with ErrClosed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.closer)
	}
	return nil
}

// Pub hands data to a subscriber of addr.
func (b *Broker) Pub(ctx context.Context, addr, data string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if subs := b.subs[addr]; len(subs) > 0 {
		sub := subs[0]
		b.setSubs(addr, subs[1:])
		b.mu.Unlock()
		sub <- data
		return nil
	}
	p := &publication{data: data, taken: make(chan struct{})}
	b.pubs[addr] = append(b.pubs[addr], p)
	b.mu.Unlock()

	select {
	case <-p.taken:
		return nil
	case <-ctx.Done():
		if b.removePub(addr, p) {
			return ctx.Err()
		}
		return nil
	case <-b.closer:
		return ErrClosed
	}
}

// Sub waits for the next message published to addr.
func (b *Broker) Sub(ctx context.Context, addr string) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrClosed
	}
	if pubs := b.pubs[addr]; len(pubs) > 0 {
		p := pubs[0]
		b.setPubs(addr, pubs[1:])
		b.mu.Unlock()
		close(p.taken)
		return p.data, nil
	}
	sub := make(chan string, 1)
	b.subs[addr] = append(b.subs[addr], sub)
	b.mu.Unlock()

	select {
	case data := <-sub:
		return data, nil
	case <-ctx.Done():
		if b.removeSub(addr, sub) {
			return "", ctx.Err()
		}
		// a publisher claimed us concurrently
		return <-sub, nil
	case <-b.closer:
		return "", ErrClosed
	}
}

// Pending returns the number of waiting publishers and subscribers.
func (b *Broker) Pending() (pubs, subs int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ps := range b.pubs {
		pubs += len(ps)
	}
	for _, ss := range b.subs {
		subs += len(ss)
	}
	return pubs, subs
}

func (b *Broker) removePub(addr string, p *publication) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pubs := b.pubs[addr]
	for i, other := range pubs {
		if other == p {
			b.setPubs(addr, append(pubs[:i:i], pubs[i+1:]...))
			return true
		}
	}
	return false
}

func (b *Broker) removeSub(addr string, sub chan string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[addr]
	for i, other := range subs {
		if other == sub {
			b.setSubs(addr, append(subs[:i:i], subs[i+1:]...))
			return true
		}
	}
	return false
}

func (b *Broker) setPubs(addr string, pubs []*publication) {
	if len(pubs) == 0 {
		delete(b.pubs, addr)
		return
	}
	b.pubs[addr] = pubs
}

func (b *Broker) setSubs(addr string, subs []chan string) {
	if len(subs) == 0 {
		delete(b.subs, addr)
		return
	}
	b.subs[addr] = subs
}
