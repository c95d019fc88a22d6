// Package operator implements the operator:// channel, a long-polling client
// for the rendezvous server in cmd/operator.
package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/channels"
)

func init() {
	channels.RegisterFactory("operator", func(addr string) (channels.Channel, error) {
		return New(strings.Replace(addr, "operator://", "https://", 1)), nil
	})
}

// DefaultClient is the client to use for making http requests
var DefaultClient = &http.Client{
	Timeout: 40 * time.Second,
}

// An operatorChannel signals over a custom http server.
type operatorChannel struct {
	mu  sync.Mutex
	url string
}

// New creates a channel talking to the operator at url.
func New(url string) channels.Channel {
	return &operatorChannel{url: strings.TrimSuffix(url, "/")}
}

// Recv receives a message at the given key.
func (c *operatorChannel) Recv(ctx context.Context, key string) (string, error) {
	log.Debug().Str("key", key).Msg("[operator] receive")

	uv := url.Values{
		"address": {key},
	}
	for {
		res, err := c.do(ctx, http.MethodGet, "/sub?"+uv.Encode(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				log.Warn().Msg("[operator] timed-out, retrying")
				continue
			}
			return "", err
		}
		if res.StatusCode == http.StatusGatewayTimeout {
			res.Body.Close()
			log.Debug().Msg("[operator] nothing published yet, retrying")
			continue
		}

		bs, err := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return "", fmt.Errorf("operator: unexpected status %s", res.Status)
		}
		if err != nil {
			return "", err
		}

		log.Debug().Str("key", key).Str("data", string(bs)).Msg("[operator] received")
		return string(bs), nil
	}
}

// Send sends a message to the given key with the given data.
func (c *operatorChannel) Send(ctx context.Context, key, data string) error {
	log.Debug().Str("key", key).Str("data", data).Msg("[operator] send")

	uv := url.Values{
		"address": {key},
		"data":    {data},
	}
	for {
		res, err := c.do(ctx, http.MethodPost, "/pub", strings.NewReader(uv.Encode()))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		io.Copy(io.Discard, res.Body)
		res.Body.Close()

		switch res.StatusCode {
		case http.StatusOK:
			log.Debug().Int("status_code", res.StatusCode).Msg("[operator] sent")
			return nil
		case http.StatusGatewayTimeout:
			log.Debug().Msg("[operator] no subscriber yet, retrying")
			continue
		}
		return fmt.Errorf("operator: unexpected status %s", res.Status)
	}
}

func (c *operatorChannel) do(ctx context.Context, method, path string, body *strings.Reader) (*http.Response, error) {
	for {
		c.mu.Lock()
		base := c.url
		c.mu.Unlock()

		var req *http.Request
		var err error
		if body != nil {
			body.Seek(0, io.SeekStart)
			req, err = http.NewRequestWithContext(ctx, method, base+path, body)
		} else {
			req, err = http.NewRequestWithContext(ctx, method, base+path, nil)
		}
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		res, err := DefaultClient.Do(req)
		if err != nil && strings.HasPrefix(base, "https://") && strings.Contains(err.Error(), "server gave HTTP response") {
			c.mu.Lock()
			c.url = "http://" + strings.TrimPrefix(base, "https://")
			c.mu.Unlock()
			continue
		}
		return res, err
	}
}
