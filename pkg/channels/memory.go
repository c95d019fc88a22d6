package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// memoryQueueSize bounds the messages waiting on one key.
const memoryQueueSize = 64

func init() {
	RegisterFactory("memory", func(addr string) (Channel, error) {
		return &memoryChannel{prefix: strings.TrimPrefix(addr, "memory://")}, nil
	})
}

var memoryQueues = struct {
	sync.Mutex
	m map[string]chan string
}{
	m: map[string]chan string{},
}

// memoryChannel delivers messages within the process. Channels created with
// the same prefix share keys.
type memoryChannel struct {
	prefix string
}

func (mch *memoryChannel) Send(ctx context.Context, key, data string) error {
	log.Debug().Str("key", key).Str("data", data).Msg("[memory] send")
	select {
	case mch.queue(key) <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mch *memoryChannel) Recv(ctx context.Context, key string) (string, error) {
	log.Debug().Str("key", key).Msg("[memory] receive")
	select {
	case data := <-mch.queue(key):
		return data, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (mch *memoryChannel) queue(key string) chan string {
	key = mch.prefix + "/" + key
	memoryQueues.Lock()
	defer memoryQueues.Unlock()
	q, ok := memoryQueues.m[key]
	if !ok {
		q = make(chan string, memoryQueueSize)
		memoryQueues.m[key] = q
	}
	return q
}
