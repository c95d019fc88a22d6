package operator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func TestBrokerPubThenSub(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	var eg errgroup.Group
	eg.Go(func() error {
		return b.Pub(context.Background(), "a/b", "hello")
	})

	require.Eventually(t, func() bool {
		pubs, _ := b.Pending()
		return pubs == 1
	}, time.Second, time.Millisecond)

	data, err := b.Sub(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "hello", data)
	assert.NoError(t, eg.Wait())

	pubs, subs := b.Pending()
	assert.Zero(t, pubs)
	assert.Zero(t, subs)
}

func TestBrokerSubThenPub(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	result := make(chan string, 1)
	go func() {
		data, _ := b.Sub(context.Background(), "a/b")
		result <- data
	}()

	require.Eventually(t, func() bool {
		_, subs := b.Pending()
		return subs == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, b.Pub(context.Background(), "a/b", "hello"))
	assert.Equal(t, "hello", <-result)
}

func TestBrokerTimeout(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Pub(ctx, "x", "lost"), context.DeadlineExceeded)
	_, err := b.Sub(ctx, "y")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pubs, subs := b.Pending()
	assert.Zero(t, pubs)
	assert.Zero(t, subs)
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker()

	errc := make(chan error, 1)
	go func() {
		_, err := b.Sub(context.Background(), "x")
		errc <- err
	}()
	require.Eventually(t, func() bool {
		_, subs := b.Pending()
		return subs == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, <-errc, ErrClosed)
	assert.ErrorIs(t, b.Pub(context.Background(), "x", "late"), ErrClosed)
}

func TestServer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	srv := httptest.NewServer(NewServer(b, zap.NewNop(), 50*time.Millisecond).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/sub?address=nobody")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, res.StatusCode)

	res, err = http.PostForm(srv.URL+"/pub", url.Values{"data": {"x"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.PostForm(srv.URL+"/pub", url.Values{
		"address": {"big"},
		"data":    {strings.Repeat("x", MaxMessageSize+1)},
	})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
