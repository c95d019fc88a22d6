package runloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostFIFO(t *testing.T) {
	l := New("test")
	defer l.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func(ctx context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, l.Send(context.Background(), func(ctx context.Context) {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSendBlocksUntilExecuted(t *testing.T) {
	l := New("test")
	defer l.Close()

	ran := false
	err := l.Send(context.Background(), func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSendInline(t *testing.T) {
	l := New("test")
	defer l.Close()

	var order []string
	err := l.Send(context.Background(), func(ctx context.Context) {
		assert.True(t, l.IsCurrent(ctx))
		order = append(order, "outer")
		// would deadlock if not run inline
		err := l.Send(ctx, func(ctx context.Context) {
			order = append(order, "inner")
		})
		assert.NoError(t, err)
		order = append(order, "after")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "after"}, order)
}

func TestSendFromOtherLoopIsNotInline(t *testing.T) {
	l1 := New("one")
	defer l1.Close()
	l2 := New("two")
	defer l2.Close()

	err := l1.Send(context.Background(), func(ctx context.Context) {
		assert.False(t, l2.IsCurrent(ctx))
		var ranOn bool
		assert.NoError(t, l2.Send(ctx, func(ctx2 context.Context) {
			ranOn = l2.IsCurrent(ctx2)
		}))
		assert.True(t, ranOn)
	})
	require.NoError(t, err)
}

func TestSendContextCanceled(t *testing.T) {
	l := New("test")
	defer l.Close()

	block := make(chan struct{})
	l.Post(func(ctx context.Context) { <-block })
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Send(ctx, func(ctx context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendAfterClose(t *testing.T) {
	l := New("test")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	<-l.Done()

	err := l.Send(context.Background(), func(ctx context.Context) {
		t.Fatal("task should not run")
	})
	assert.ErrorIs(t, err, ErrClosed)
	l.Post(func(ctx context.Context) {
		t.Fatal("task should not run")
	})
}

func TestPostDelayed(t *testing.T) {
	l := New("test")
	defer l.Close()

	fired := make(chan struct{})
	l.PostDelayed(10*time.Millisecond, func(ctx context.Context) {
		close(fired)
	})
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("delayed task did not run")
	}
}

func TestPostDelayedCancel(t *testing.T) {
	l := New("test")
	defer l.Close()

	cancel := l.PostDelayed(50*time.Millisecond, func(ctx context.Context) {
		t.Error("canceled task ran")
	})
	assert.True(t, cancel())
	time.Sleep(100 * time.Millisecond)
}

func TestTaskPanicDoesNotStopLoop(t *testing.T) {
	l := New("test")
	defer l.Close()

	l.Post(func(ctx context.Context) { panic("boom") })
	ran := false
	require.NoError(t, l.Send(context.Background(), func(ctx context.Context) { ran = true }))
	assert.True(t, ran)
}
