// Command operator runs the rendezvous server behind operator:// signal
// channels.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rtctunnel/rtcbackend/internal/operator"
)

var options struct {
	addr string
	wait time.Duration
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "operator",
		Short: "Runs the rtcbackend signaling operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Sync()
			return run(cmd.Context(), log)
		},
	}
	rootCmd.Flags().StringVar(&options.addr, "addr", "127.0.0.1:9451", "the address to listen on")
	rootCmd.Flags().DurationVar(&options.wait, "wait", operator.DefaultWait, "how long a request waits for its counterpart")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	broker := operator.NewBroker()
	defer broker.Close()

	srv := &http.Server{
		Addr:    options.addr,
		Handler: operator.NewServer(broker, log, options.wait).Handler(),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("local-addr", options.addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	broker.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
