// Package channels provides the rendezvous transports used to exchange
// signaling messages. A channel delivers opaque strings addressed by key.
package channels

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// A Channel facilitates signaling.
type Channel interface {
	// Send delivers data to whoever receives on key.
	Send(ctx context.Context, key, data string) error
	// Recv waits for the next message on key.
	Recv(ctx context.Context, key string) (data string, err error)
}

// A Factory returns a Channel from an address
type Factory = func(addr string) (Channel, error)

var channelFactories = struct {
	sync.Mutex
	m map[string]Factory
}{
	m: make(map[string]Factory),
}

// RegisterFactory registers a new Factory
func RegisterFactory(scheme string, factory Factory) {
	channelFactories.Lock()
	channelFactories.m[scheme] = factory
	channelFactories.Unlock()
}

// Get returns a channel for the given address
func Get(addr string) (Channel, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid channel address: %w", err)
	}

	channelFactories.Lock()
	factory, ok := channelFactories.m[u.Scheme]
	channelFactories.Unlock()
	if !ok {
		return nil, fmt.Errorf("no channel factory registered for %q", u.Scheme)
	}

	return factory(addr)
}

// Must panics if there's an error
func Must(ch Channel, err error) Channel {
	if err != nil {
		panic(err)
	}
	return ch
}
