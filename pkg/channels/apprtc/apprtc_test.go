package apprtc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// collider relays "send" commands to the "recv" client registered in the
// same room.
type collider struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	receivers map[string]*websocket.Conn
	waiting   map[string][]string
}

func newCollider() *collider {
	return &collider{
		receivers: map[string]*websocket.Conn{},
		waiting:   map[string][]string{},
	}
}

func (c *collider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var reg struct {
		Cmd      string `json:"cmd"`
		RoomID   string `json:"roomid"`
		ClientID string `json:"clientid"`
	}
	if err := conn.ReadJSON(&reg); err != nil || reg.Cmd != "register" {
		return
	}

	if reg.ClientID == "recv" {
		c.mu.Lock()
		if msgs := c.waiting[reg.RoomID]; len(msgs) > 0 {
			c.waiting[reg.RoomID] = msgs[1:]
			c.mu.Unlock()
			conn.WriteJSON(packet{Message: msgs[0]})
			return
		}
		c.receivers[reg.RoomID] = conn
		c.mu.Unlock()
		// hold the connection until the client goes away
		conn.ReadMessage()
		return
	}

	var cmd struct {
		Cmd string `json:"cmd"`
		Msg string `json:"msg"`
	}
	if err := conn.ReadJSON(&cmd); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if recv, ok := c.receivers[reg.RoomID]; ok {
		delete(c.receivers, reg.RoomID)
		recv.WriteJSON(packet{Message: cmd.Msg})
		return
	}
	c.waiting[reg.RoomID] = append(c.waiting[reg.RoomID], cmd.Msg)
}

func TestApprtcChannel(t *testing.T) {
	srv := httptest.NewServer(newCollider())
	defer srv.Close()
	ch := New("ws" + strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var eg errgroup.Group
	result := make(chan string, 1)
	eg.Go(func() error {
		data, err := ch.Recv(ctx, "room-1")
		result <- data
		return err
	})
	eg.Go(func() error {
		time.Sleep(50 * time.Millisecond)
		return ch.Send(ctx, "room-1", "hello")
	})
	require.NoError(t, eg.Wait())
	assert.Equal(t, "hello", <-result)
}

func TestApprtcChannelCancel(t *testing.T) {
	srv := httptest.NewServer(newCollider())
	defer srv.Close()
	ch := New("ws" + strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := ch.Recv(ctx, "empty-room")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestApprtcChannelDialError(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws")
	err := ch.Send(context.Background(), "room", "x")
	assert.Error(t, err)
}
