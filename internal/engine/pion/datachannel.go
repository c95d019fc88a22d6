package pion

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

type dataChannelEvent = func(rtc.DataChannelObserver)

// dataChannel wraps a pion data channel. Events that arrive before an
// observer is registered are held and replayed in order once one is.
type dataChannel struct {
	engine *Engine
	dc     *webrtc.DataChannel

	mu       sync.Mutex
	observer rtc.DataChannelObserver
	pending  []dataChannelEvent
}

var _ rtc.DataChannel = (*dataChannel)(nil)

func newDataChannel(e *Engine, dc *webrtc.DataChannel) *dataChannel {
	d := &dataChannel{engine: e, dc: dc}
	stateChanged := func(o rtc.DataChannelObserver) { o.StateChanged() }
	dc.OnOpen(func() { d.post(stateChanged) })
	dc.OnClose(func() { d.post(stateChanged) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data, binary := msg.Data, !msg.IsString
		d.post(func(o rtc.DataChannelObserver) { o.MessageReceived(data, binary) })
	})
	return d
}

func (d *dataChannel) post(ev dataChannelEvent) {
	d.engine.signaling.Post(func(ctx context.Context) {
		d.deliver(ev)
	})
}

// deliver runs on the signaling loop. A nil ev only flushes.
func (d *dataChannel) deliver(ev dataChannelEvent) {
	d.mu.Lock()
	observer := d.observer
	if observer == nil {
		if ev != nil {
			d.pending = append(d.pending, ev)
		}
		d.mu.Unlock()
		return
	}
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, p := range pending {
		p(observer)
	}
	if ev != nil {
		ev(observer)
	}
}

func (d *dataChannel) Label() string              { return d.dc.Label() }
func (d *dataChannel) Ordered() bool              { return d.dc.Ordered() }
func (d *dataChannel) MaxRetransmitTime() *uint16 { return d.dc.MaxPacketLifeTime() }
func (d *dataChannel) MaxRetransmits() *uint16    { return d.dc.MaxRetransmits() }
func (d *dataChannel) Protocol() string           { return d.dc.Protocol() }
func (d *dataChannel) Negotiated() bool           { return d.dc.Negotiated() }
func (d *dataChannel) ID() *uint16                { return d.dc.ID() }
func (d *dataChannel) BufferedAmount() uint64     { return d.dc.BufferedAmount() }

func (d *dataChannel) State() rtc.DataChannelState {
	switch d.dc.ReadyState() {
	case webrtc.DataChannelStateConnecting:
		return rtc.DataChannelConnecting
	case webrtc.DataChannelStateOpen:
		return rtc.DataChannelOpen
	case webrtc.DataChannelStateClosing:
		return rtc.DataChannelClosing
	case webrtc.DataChannelStateClosed:
		return rtc.DataChannelClosed
	}
	return rtc.DataChannelState(-1)
}

func (d *dataChannel) SendText(text string) error {
	return d.dc.SendText(text)
}

func (d *dataChannel) Send(data []byte) error {
	return d.dc.Send(data)
}

func (d *dataChannel) Close() error {
	return d.dc.Close()
}

// RegisterObserver sets the observer and schedules delivery of any held
// events.
func (d *dataChannel) RegisterObserver(observer rtc.DataChannelObserver) {
	d.mu.Lock()
	d.observer = observer
	d.mu.Unlock()
	d.post(nil)
}

func (d *dataChannel) UnregisterObserver() {
	d.mu.Lock()
	d.observer = nil
	d.pending = nil
	d.mu.Unlock()
}
