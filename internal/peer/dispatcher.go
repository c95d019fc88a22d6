package peer

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// A Dispatcher accepts the peer's data channels and routes them to listeners
// by label.
type Dispatcher struct {
	conn   *Conn
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[string]*dispatchListener
}

// NewDispatcher starts accepting on conn. It runs until conn or the
// dispatcher is closed.
func NewDispatcher(conn *Conn) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		conn:      conn,
		cancel:    cancel,
		listeners: make(map[string]*dispatchListener),
	}
	go d.run(ctx)
	return d
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		dc, err := d.conn.Accept(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("dispatcher stopped")
			return
		}

		d.mu.Lock()
		li, ok := d.listeners[dc.Label()]
		if ok {
			select {
			case li.pending <- dc:
			default:
				ok = false
			}
		}
		d.mu.Unlock()

		if !ok {
			log.Warn().Str("label", dc.Label()).Msg("closing data channel because no listener accepted it")
			dc.Close()
		}
	}
}

// Listen returns a listener for data channels with the given label. A later
// Listen on the same label replaces the earlier listener.
func (d *Dispatcher) Listen(label string) net.Listener {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.listeners[label]; ok {
		old.closed.Signal()
	}
	dl := &dispatchListener{
		dispatcher: d,
		label:      label,
		pending:    make(chan *DataChannel, 16),
		closed:     NewCond(),
	}
	d.listeners[label] = dl
	return dl
}

// Close stops dispatching. Open listeners are closed.
func (d *Dispatcher) Close() error {
	d.cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	for label, dl := range d.listeners {
		dl.closed.Signal()
		delete(d.listeners, label)
	}
	return nil
}

type dispatchListener struct {
	dispatcher *Dispatcher
	label      string
	pending    chan *DataChannel
	closed     *Cond
}

func (dl *dispatchListener) Accept() (net.Conn, error) {
	select {
	case dc := <-dl.pending:
		return dc, nil
	case <-dl.closed.C:
		return nil, net.ErrClosed
	case <-dl.dispatcher.conn.Done():
		return nil, errors.Join(net.ErrClosed, dl.dispatcher.conn.Err())
	}
}

func (dl *dispatchListener) Addr() net.Addr {
	return addr(dl.label)
}

func (dl *dispatchListener) Close() error {
	dl.dispatcher.mu.Lock()
	if dl.dispatcher.listeners[dl.label] == dl {
		delete(dl.dispatcher.listeners, dl.label)
	}
	dl.dispatcher.mu.Unlock()
	dl.closed.Signal()
	return nil
}
