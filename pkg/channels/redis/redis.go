// Package redis implements the redis:// channel. Messages are pushed onto a
// list per key and popped with BLPOP, so either side may arrive first.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/channels"
)

const (
	keyPrefix = "rtcbackend:signal:"
	// messageTTL expires lists nobody consumed.
	messageTTL = 5 * time.Minute
	// pollInterval bounds each BLPOP so cancellation is noticed.
	pollInterval = 5 * time.Second
)

func init() {
	channels.RegisterFactory("redis", func(addr string) (channels.Channel, error) {
		opts, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis address: %w", err)
		}
		return New(goredis.NewClient(opts)), nil
	})
}

type redisChannel struct {
	client *goredis.Client
}

// New creates a channel using client.
func New(client *goredis.Client) channels.Channel {
	return &redisChannel{client: client}
}

func (c *redisChannel) Send(ctx context.Context, key, data string) error {
	log.Debug().Str("key", key).Str("data", data).Msg("[redis] send")
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, keyPrefix+key, data)
		pipe.Expire(ctx, keyPrefix+key, messageTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push signal message: %w", err)
	}
	return nil
}

func (c *redisChannel) Recv(ctx context.Context, key string) (string, error) {
	log.Debug().Str("key", key).Msg("[redis] receive")
	for {
		res, err := c.client.BLPop(ctx, pollInterval, keyPrefix+key).Result()
		switch {
		case errors.Is(err, goredis.Nil):
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("failed to pop signal message: %w", err)
		}
		// BLPOP answers [key, value]
		if len(res) != 2 {
			return "", fmt.Errorf("unexpected BLPOP reply of length %d", len(res))
		}
		log.Debug().Str("key", key).Str("data", res[1]).Msg("[redis] received")
		return res[1], nil
	}
}
