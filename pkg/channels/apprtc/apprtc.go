// Package apprtc implements the apprtc:// channel over the public apprtc
// websocket collider. The key is used as the room id.
package apprtc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/channels"
)

// DefaultURL is the collider used by apprtc:// addresses without a host.
const DefaultURL = "wss://apprtc-ws.webrtc.org/ws"

func init() {
	channels.RegisterFactory("apprtc", func(addr string) (channels.Channel, error) {
		host := strings.TrimPrefix(addr, "apprtc://")
		if host == "" {
			return New(DefaultURL), nil
		}
		return New("wss://" + host), nil
	})
}

// An apprtcChannel signals over apprtc.
type apprtcChannel struct {
	url string
}

// New creates a channel talking to the collider at url.
func New(url string) channels.Channel {
	return &apprtcChannel{url: url}
}

type packet struct {
	Message string `json:"msg"`
	Error   string `json:"error"`
}

// Recv receives a message at the given key.
func (c *apprtcChannel) Recv(ctx context.Context, key string) (string, error) {
	conn, err := c.connect(ctx, key, "recv")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	stop := closeOnDone(ctx, conn)
	defer stop()

	var p packet
	if err := conn.ReadJSON(&p); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("error receiving packet: %w", err)
	}
	if p.Error != "" {
		return "", fmt.Errorf("apprtc returned an error: %s", p.Error)
	}

	log.Debug().Str("key", key).Str("data", p.Message).Msg("[apprtc] received")
	return p.Message, nil
}

// Send sends a message to the given key with the given data.
func (c *apprtcChannel) Send(ctx context.Context, key, data string) error {
	conn, err := c.connect(ctx, key, "send")
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := closeOnDone(ctx, conn)
	defer stop()

	err = conn.WriteJSON(map[string]interface{}{
		"cmd": "send",
		"msg": data,
	})
	if err != nil {
		return fmt.Errorf("error sending over websocket: %w", err)
	}

	log.Debug().Str("key", key).Str("data", data).Msg("[apprtc] sent")
	return nil
}

func (c *apprtcChannel) connect(ctx context.Context, roomID, clientID string) (*websocket.Conn, error) {
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, c.url, http.Header{
		"Origin": {"https://appr.tc"},
	})
	if err != nil {
		var msg string
		if res != nil && res.Body != nil {
			bs, _ := io.ReadAll(res.Body)
			res.Body.Close()
			msg = string(bs)
		}
		return nil, fmt.Errorf("error connecting to apprtc (msg=%s): %w", msg, err)
	}

	err = conn.WriteJSON(map[string]interface{}{
		"cmd":      "register",
		"roomid":   roomID,
		"clientid": clientID,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error registering %s client: %w", clientID, err)
	}

	return conn, nil
}

// closeOnDone closes conn when ctx ends, unblocking pending reads and writes.
func closeOnDone(ctx context.Context, conn *websocket.Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
