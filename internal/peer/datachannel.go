package peer

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/internal/backend"
)

// maxMessageSize bounds each message written to a data channel.
const maxMessageSize = 16 * 1024

// A DataChannel is a net.Conn backed by a data channel. Messages are
// concatenated into one byte stream.
type DataChannel struct {
	session *Session
	h       *backend.DataChannelHandler
	label   string

	open   *Cond
	closed *Cond

	mu            sync.Mutex
	pending       bytes.Buffer
	readErr       error
	wake          chan struct{}
	readDeadline  time.Time
	writeDeadline time.Time
}

var (
	_ net.Conn                  = (*DataChannel)(nil)
	_ backend.DataChannelClient = (*DataChannel)(nil)
)

// WrapDataChannel registers a DataChannel as the client of h.
func WrapDataChannel(ctx context.Context, session *Session, h *backend.DataChannelHandler) (*DataChannel, error) {
	dc := &DataChannel{
		session: session,
		h:       h,
		open:    NewCond(),
		closed:  NewCond(),
		wake:    make(chan struct{}),
	}
	err := session.do(ctx, func() {
		dc.label = h.Label()
		h.SetClient(dc)
		dc.ReadyStateChanged(h.ReadyState())
	})
	if err != nil {
		return nil, err
	}
	return dc, nil
}

// Label returns the data channel label.
func (dc *DataChannel) Label() string {
	return dc.label
}

// WaitOpen blocks until the data channel is open.
func (dc *DataChannel) WaitOpen(ctx context.Context) error {
	select {
	case <-dc.open.C:
		return nil
	case <-dc.closed.C:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (dc *DataChannel) ReadyStateChanged(state backend.DataChannelState) {
	log.Debug().Str("label", dc.label).Str("state", state.String()).Msg("data channel state changed")
	switch state {
	case backend.DataChannelOpen:
		dc.open.Signal()
	case backend.DataChannelClosed:
		dc.fail(io.EOF)
	}
}

func (dc *DataChannel) TextReceived(text string) {
	dc.receive([]byte(text))
}

func (dc *DataChannel) BinaryReceived(data []byte) {
	dc.receive(data)
}

func (dc *DataChannel) receive(data []byte) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.readErr != nil {
		return
	}
	dc.pending.Write(data)
	dc.broadcast()
}

func (dc *DataChannel) fail(err error) {
	dc.mu.Lock()
	if dc.readErr == nil {
		dc.readErr = err
		dc.broadcast()
	}
	dc.mu.Unlock()
	dc.closed.Signal()
}

// broadcast wakes blocked readers. dc.mu must be held.
func (dc *DataChannel) broadcast() {
	close(dc.wake)
	dc.wake = make(chan struct{})
}

func (dc *DataChannel) Read(b []byte) (int, error) {
	for {
		dc.mu.Lock()
		if dc.pending.Len() > 0 {
			n, _ := dc.pending.Read(b)
			dc.mu.Unlock()
			return n, nil
		}
		if dc.readErr != nil {
			err := dc.readErr
			dc.mu.Unlock()
			return 0, err
		}
		deadline, wake := dc.readDeadline, dc.wake
		dc.mu.Unlock()

		if deadline.IsZero() {
			<-wake
			continue
		}
		d := time.Until(deadline)
		if d <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		t := time.NewTimer(d)
		select {
		case <-wake:
			t.Stop()
		case <-t.C:
			return 0, os.ErrDeadlineExceeded
		}
	}
}

// Write sends b in messages of at most maxMessageSize bytes. A message counts
// as written once it is queued on the session loop, so a write that times out
// may report part of b as written.
func (dc *DataChannel) Write(b []byte) (int, error) {
	dc.mu.Lock()
	deadline := dc.writeDeadline
	dc.mu.Unlock()

	ctx := context.Background()
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	written := 0
	for written < len(b) {
		if dc.closed.Fired() {
			return written, io.ErrClosedPipe
		}
		if ctx.Err() != nil {
			return written, os.ErrDeadlineExceeded
		}
		end := written + maxMessageSize
		if end > len(b) {
			end = len(b)
		}
		// copied, the send may outlive this call
		chunk := append([]byte(nil), b[written:end]...)

		errc := make(chan error, 1)
		dc.session.loop.Post(func(context.Context) {
			errc <- dc.h.SendBinary(chunk)
		})
		select {
		case err := <-errc:
			if err != nil {
				return written, err
			}
		case <-ctx.Done():
			// already queued, it is still sent
			return end, os.ErrDeadlineExceeded
		case <-dc.session.loop.Done():
			return written, net.ErrClosed
		}
		written = end
	}
	return written, nil
}

// Close closes the data channel. Pending reads fail with net.ErrClosed.
func (dc *DataChannel) Close() error {
	dc.fail(net.ErrClosed)

	var err error
	serr := dc.session.do(context.Background(), func() {
		err = dc.h.Close()
	})
	if serr != nil {
		return serr
	}
	return err
}

func (dc *DataChannel) LocalAddr() net.Addr {
	return addr(dc.label)
}

func (dc *DataChannel) RemoteAddr() net.Addr {
	return addr(dc.label)
}

func (dc *DataChannel) SetDeadline(t time.Time) error {
	dc.SetReadDeadline(t)
	dc.SetWriteDeadline(t)
	return nil
}

func (dc *DataChannel) SetReadDeadline(t time.Time) error {
	dc.mu.Lock()
	dc.readDeadline = t
	dc.broadcast()
	dc.mu.Unlock()
	return nil
}

func (dc *DataChannel) SetWriteDeadline(t time.Time) error {
	dc.mu.Lock()
	dc.writeDeadline = t
	dc.mu.Unlock()
	return nil
}

type addr string

func (a addr) Network() string { return "webrtc" }
func (a addr) String() string  { return string(a) }
