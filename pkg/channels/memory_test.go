package channels

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	os.Exit(m.Run())
}

func TestMemoryChannel(t *testing.T) {
	a, err := Get("memory://test-memory")
	require.NoError(t, err)
	b, err := Get("memory://test-memory")
	require.NoError(t, err)
	other := Must(Get("memory://elsewhere"))

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, "k", "one"))
	require.NoError(t, a.Send(ctx, "k", "two"))

	data, err := b.Recv(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "one", data)
	data, err = b.Recv(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", data)

	require.NoError(t, a.Send(ctx, "k", "three"))
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = other.Recv(short, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetUnknownScheme(t *testing.T) {
	_, err := Get("carrier-pigeon://coop")
	assert.Error(t, err)
	assert.Panics(t, func() { Must(Get("carrier-pigeon://coop")) })
}
