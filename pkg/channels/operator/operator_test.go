package operator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	server "github.com/rtctunnel/rtcbackend/internal/operator"
	"github.com/rtctunnel/rtcbackend/pkg/channels"
)

func TestOperatorChannel(t *testing.T) {
	broker := server.NewBroker()
	defer broker.Close()
	srv := httptest.NewServer(server.NewServer(broker, zap.NewNop(), 100*time.Millisecond).Handler())
	defer srv.Close()

	ch := New(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		// outlives several server-side waits
		time.Sleep(300 * time.Millisecond)
		return ch.Send(ctx, "peer-a/peer-b", "100% signal")
	})

	data, err := ch.Recv(ctx, "peer-a/peer-b")
	require.NoError(t, err)
	assert.Equal(t, "100% signal", data)
	require.NoError(t, eg.Wait())
}

func TestOperatorChannelCancel(t *testing.T) {
	broker := server.NewBroker()
	defer broker.Close()
	srv := httptest.NewServer(server.NewServer(broker, zap.NewNop(), 50*time.Millisecond).Handler())
	defer srv.Close()

	ch := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := ch.Recv(ctx, "nobody")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOperatorFactory(t *testing.T) {
	ch, err := channels.Get("operator://operator.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://operator.example.com", ch.(*operatorChannel).url)
}
