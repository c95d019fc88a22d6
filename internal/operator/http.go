package operator

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// MaxMessageSize bounds a published message.
	MaxMessageSize = 10 * 1024
	// DefaultWait is how long a pub or sub request waits for its counterpart.
	DefaultWait = 30 * time.Second
)

// A Server exposes a Broker over HTTP.
type Server struct {
	broker *Broker
	log    *zap.Logger
	wait   time.Duration
}

// NewServer creates a Server. A zero wait uses DefaultWait.
func NewServer(broker *Broker, log *zap.Logger, wait time.Duration) *Server {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Server{broker: broker, log: log, wait: wait}
}

// Handler returns the gin engine serving the operator routes.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.Register(r)
	return r
}

// Register registers the routes with the given router
func (s *Server) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "rtcbackend operator")
	})
	r.GET("/pub", s.pub)
	r.POST("/pub", s.pub)
	r.GET("/sub", s.sub)
}

func (s *Server) pub(c *gin.Context) {
	addr := c.PostForm("address")
	if addr == "" {
		addr = c.Query("address")
	}
	data := c.PostForm("data")
	if data == "" {
		data = c.Query("data")
	}
	if addr == "" {
		c.String(http.StatusBadRequest, "address is required")
		return
	}
	if len(data) > MaxMessageSize {
		s.log.Warn("data too large",
			zap.String("remote_addr", c.ClientIP()),
			zap.String("addr", addr),
			zap.Int("size", len(data)))
		c.String(http.StatusBadRequest, "data too large")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.wait)
	defer cancel()

	if err := s.broker.Pub(ctx, addr, data); err != nil {
		c.Status(http.StatusGatewayTimeout)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) sub(c *gin.Context) {
	addr := c.Query("address")
	if addr == "" {
		c.String(http.StatusBadRequest, "address is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.wait)
	defer cancel()

	data, err := s.broker.Sub(ctx, addr)
	if err != nil {
		c.Status(http.StatusGatewayTimeout)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(data))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status_code", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
