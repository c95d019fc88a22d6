package fake

import (
	"errors"
	"sync"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// ErrNotOpen is returned when sending on a channel that is not open.
var ErrNotOpen = errors.New("fake: data channel is not open")

// A DataChannel is a fake rtc.DataChannel. Events records the observer and
// close calls in order.
type DataChannel struct {
	label string
	init  rtc.DataChannelInit

	mu       sync.Mutex
	state    rtc.DataChannelState
	observer rtc.DataChannelObserver
	sent     [][]byte
	events   []string
}

var _ rtc.DataChannel = (*DataChannel)(nil)

// NewDataChannel creates a connecting data channel.
func NewDataChannel(label string, init rtc.DataChannelInit) *DataChannel {
	return &DataChannel{label: label, init: init}
}

func (dc *DataChannel) Label() string { return dc.label }
func (dc *DataChannel) Ordered() bool { return dc.init.Ordered }
func (dc *DataChannel) MaxRetransmitTime() *uint16 { return dc.init.MaxRetransmitTime }
func (dc *DataChannel) MaxRetransmits() *uint16 { return dc.init.MaxRetransmits }
func (dc *DataChannel) Protocol() string { return dc.init.Protocol }
func (dc *DataChannel) Negotiated() bool { return dc.init.Negotiated }
func (dc *DataChannel) ID() *uint16 { return dc.init.ID }

// Init returns the init the channel was created with.
func (dc *DataChannel) Init() rtc.DataChannelInit {
	return dc.init
}

func (dc *DataChannel) State() rtc.DataChannelState {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.state
}

func (dc *DataChannel) BufferedAmount() uint64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	var n uint64
	for _, msg := range dc.sent {
		n += uint64(len(msg))
	}
	return n
}

func (dc *DataChannel) SendText(text string) error {
	return dc.Send([]byte(text))
}

func (dc *DataChannel) Send(data []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.state != rtc.DataChannelOpen {
		return ErrNotOpen
	}
	dc.sent = append(dc.sent, append([]byte(nil), data...))
	return nil
}

// Sent returns the messages sent so far.
func (dc *DataChannel) Sent() [][]byte {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return append([][]byte(nil), dc.sent...)
}

func (dc *DataChannel) Close() error {
	dc.mu.Lock()
	dc.state = rtc.DataChannelClosed
	dc.events = append(dc.events, "close")
	dc.mu.Unlock()
	return nil
}

func (dc *DataChannel) RegisterObserver(observer rtc.DataChannelObserver) {
	dc.mu.Lock()
	dc.observer = observer
	dc.events = append(dc.events, "register")
	dc.mu.Unlock()
}

func (dc *DataChannel) UnregisterObserver() {
	dc.mu.Lock()
	dc.observer = nil
	dc.events = append(dc.events, "unregister")
	dc.mu.Unlock()
}

// Events returns the recorded observer and close calls.
func (dc *DataChannel) Events() []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return append([]string(nil), dc.events...)
}

// SetState changes the state and notifies the observer.
func (dc *DataChannel) SetState(state rtc.DataChannelState) {
	dc.mu.Lock()
	dc.state = state
	observer := dc.observer
	dc.mu.Unlock()
	if observer != nil {
		observer.StateChanged()
	}
}

// Receive delivers a message to the observer.
func (dc *DataChannel) Receive(data []byte, binary bool) {
	dc.mu.Lock()
	observer := dc.observer
	dc.mu.Unlock()
	if observer != nil {
		observer.MessageReceived(data, binary)
	}
}
