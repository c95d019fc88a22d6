package backend

import (
	"reflect"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// A DataChannelClient receives the events of one data channel.
type DataChannelClient interface {
	ReadyStateChanged(state DataChannelState)
	TextReceived(text string)
	BinaryReceived(data []byte)
}

// A DataChannelHandler wraps one engine data channel.
type DataChannelHandler struct {
	dc      rtc.DataChannel
	client  DataChannelClient
	closed  bool
	release func()
}

func newDataChannelHandler(dc rtc.DataChannel) *DataChannelHandler {
	return &DataChannelHandler{dc: dc}
}

// SetClient registers client for events. Setting the current client again
// does nothing; setting nil unregisters.
func (h *DataChannelHandler) SetClient(client DataChannelClient) {
	if sameClient(client, h.client) {
		return
	}
	if client == nil {
		h.dc.UnregisterObserver()
		h.client = nil
		return
	}
	if h.client == nil && !h.closed {
		h.dc.RegisterObserver(dataChannelObserver{h: h})
	}
	h.client = client
}

// sameClient compares clients without panicking on uncomparable dynamic
// types, which are never the same.
func sameClient(a, b DataChannelClient) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

func (h *DataChannelHandler) Label() string { return h.dc.Label() }
func (h *DataChannelHandler) Ordered() bool { return h.dc.Ordered() }
func (h *DataChannelHandler) MaxRetransmitTime() *uint16 { return h.dc.MaxRetransmitTime() }
func (h *DataChannelHandler) MaxRetransmits() *uint16 { return h.dc.MaxRetransmits() }
func (h *DataChannelHandler) Protocol() string { return h.dc.Protocol() }
func (h *DataChannelHandler) Negotiated() bool { return h.dc.Negotiated() }
func (h *DataChannelHandler) ID() *uint16 { return h.dc.ID() }
func (h *DataChannelHandler) BufferedAmount() uint64 { return h.dc.BufferedAmount() }

// ReadyState returns the channel's ready state.
func (h *DataChannelHandler) ReadyState() DataChannelState {
	if h.closed {
		return DataChannelClosed
	}
	state, ok := dataChannelStateFromEngine(h.dc.State())
	if !ok {
		return DataChannelClosed
	}
	return state
}

// SendText sends a text message.
func (h *DataChannelHandler) SendText(text string) error {
	if h.closed {
		return ErrClosed
	}
	return h.dc.SendText(text)
}

// SendBinary sends a binary message.
func (h *DataChannelHandler) SendBinary(data []byte) error {
	if h.closed {
		return ErrClosed
	}
	return h.dc.Send(data)
}

// Close unregisters from the engine channel, closes it and reports the
// closed state to the client.
func (h *DataChannelHandler) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	h.dc.UnregisterObserver()
	err := h.dc.Close()

	if h.release != nil {
		h.release()
		h.release = nil
	}

	if client := h.client; client != nil {
		h.client = nil
		client.ReadyStateChanged(DataChannelClosed)
	}
	return err
}

type dataChannelObserver struct {
	h *DataChannelHandler
}

func (o dataChannelObserver) StateChanged() {
	h := o.h
	if h.client == nil || h.closed {
		return
	}
	engineState := h.dc.State()
	state, ok := dataChannelStateFromEngine(engineState)
	if !ok {
		log.Debug().Int("state", int(engineState)).Msg("dropping unknown data channel state")
		return
	}
	h.client.ReadyStateChanged(state)
}

func (o dataChannelObserver) MessageReceived(data []byte, binary bool) {
	h := o.h
	if h.client == nil || h.closed {
		return
	}
	if binary {
		h.client.BinaryReceived(data)
		return
	}
	h.client.TextReceived(string(data))
}
