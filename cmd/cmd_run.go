package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rtctunnel/rtcbackend/internal/app"
	"github.com/rtctunnel/rtcbackend/internal/backend"
	"github.com/rtctunnel/rtcbackend/internal/crypt"
	"github.com/rtctunnel/rtcbackend/internal/peer"
	"github.com/rtctunnel/rtcbackend/internal/runloop"
	rtcsignal "github.com/rtctunnel/rtcbackend/internal/signal"
	"github.com/rtctunnel/rtcbackend/pkg/channels"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
	_ "github.com/rtctunnel/rtcbackend/pkg/channels/apprtc"
	_ "github.com/rtctunnel/rtcbackend/pkg/channels/operator"
	_ "github.com/rtctunnel/rtcbackend/pkg/channels/redis"
)

var runOptions struct {
	engine string
	peer   string
	label  string
	audio  string
	video  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connects to a peer and pipes stdin and stdout over a data channel",
	Long: `Connects to the peer given by --peer over the configured signal channel,
opens a data channel and copies stdin to it and its data to stdout.

--audio and --video send a local stream captured from the named sources,
as listed by the devices command.

With --engine=fake no network is used: two local sessions negotiate with
each other and the resulting states are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runOptions.engine)
		if err != nil {
			return err
		}
		engine := runOptions.engine
		if engine == "" {
			engine = cfg.EngineName()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if engine == app.EngineFake {
			return runDry(ctx, cmd, cfg)
		}
		return runPeer(ctx, cfg, engine)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOptions.engine, "engine", "", "the engine to use (pion or fake)")
	runCmd.Flags().StringVar(&runOptions.peer, "peer", "", "the public key of the peer")
	runCmd.Flags().StringVar(&runOptions.label, "label", "", "the data channel label, defaults to the configured label")
	runCmd.Flags().StringVar(&runOptions.audio, "audio", "", "the audio source to send")
	runCmd.Flags().StringVar(&runOptions.video, "video", "", "the video source to send")
}

func runPeer(ctx context.Context, cfg *app.Config, engine string) error {
	if !cfg.KeyPair.Private.Valid() {
		return errors.New("invalid config file, missing private key")
	}
	if runOptions.peer == "" {
		return errors.New("--peer is required")
	}
	peerKey, err := crypt.ParseKey(runOptions.peer)
	if err != nil {
		return fmt.Errorf("invalid peer key: %w", err)
	}
	ch, err := channels.Get(cfg.Channel())
	if err != nil {
		return fmt.Errorf("invalid signal channel: %w", err)
	}
	label := runOptions.label
	if label == "" {
		label = cfg.Label()
	}

	log.Info().
		Str("config-file", options.configFile).
		Str("public-key", cfg.KeyPair.Public.String()).
		Str("signal-channel", cfg.Channel()).
		Str("engine", engine).
		Msg("using config")

	loop := runloop.New("signaling")
	defer loop.Close()
	factory, err := newFactory(cfg, engine, loop)
	if err != nil {
		return err
	}
	defer factory.Close()

	opts := []peer.Option{peer.WithConfiguration(cfg.Configuration())}
	stream, err := localStream(factory)
	if err != nil {
		return err
	}
	if stream != nil {
		opts = append(opts, peer.WithLocalStream(stream))
	}

	sig := rtcsignal.New(ch, cfg.KeyPair, peerKey)
	conn, err := peer.Open(ctx, factory, loop, sig, opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	var remote net.Conn
	if sig.Offerer() {
		remote, err = conn.Open(ctx, label)
	} else {
		d := peer.NewDispatcher(conn)
		defer d.Close()
		li := d.Listen(label)
		defer li.Close()
		remote, err = acceptContext(ctx, li)
	}
	if err != nil {
		return err
	}

	return joinStdio(ctx, remote)
}

// localStream creates the stream selected by --audio and --video. It returns
// nil when neither is set.
func localStream(factory *backend.Factory) (rtc.MediaStream, error) {
	if runOptions.audio == "" && runOptions.video == "" {
		return nil, nil
	}
	return factory.CreateLocalStream(runOptions.audio, runOptions.video)
}

func acceptContext(ctx context.Context, li net.Listener) (net.Conn, error) {
	go func() {
		<-ctx.Done()
		li.Close()
	}()
	conn, err := li.Accept()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return conn, err
}

func joinStdio(ctx context.Context, remote net.Conn) error {
	defer remote.Close()

	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(remote, os.Stdin)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, remote)
		errc <- err
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("error copying data: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// runDry negotiates two local sessions with each other.
func runDry(ctx context.Context, cmd *cobra.Command, cfg *app.Config) error {
	loop := runloop.New("fake")
	defer loop.Close()
	factory, err := newFactory(cfg, app.EngineFake, loop)
	if err != nil {
		return err
	}
	defer factory.Close()

	offerer, err := peer.NewSession(ctx, factory, loop, cfg.Configuration())
	if err != nil {
		return err
	}
	defer offerer.Close()
	answerer, err := peer.NewSession(ctx, factory, loop, cfg.Configuration())
	if err != nil {
		return err
	}
	defer answerer.Close()

	out := cmd.OutOrStdout()
	stream, err := localStream(factory)
	if err != nil {
		return err
	}
	if stream != nil {
		if err := offerer.AddStream(ctx, stream); err != nil {
			return fmt.Errorf("error adding local stream: %w", err)
		}
		fmt.Fprintf(out, "offerer: sending stream %s\n", stream.ID())
	}

	offer, err := offerer.CreateOffer(ctx, &backend.OfferOptions{OfferToReceiveAudio: true, OfferToReceiveVideo: true})
	if err != nil {
		return fmt.Errorf("error creating offer: %w", err)
	}
	if err := offerer.SetLocalDescription(ctx, *offer); err != nil {
		return fmt.Errorf("error setting offer: %w", err)
	}
	if err := answerer.SetRemoteDescription(ctx, *offer); err != nil {
		return fmt.Errorf("error setting remote offer: %w", err)
	}
	answer, err := answerer.CreateAnswer(ctx, nil)
	if err != nil {
		return fmt.Errorf("error creating answer: %w", err)
	}
	if err := answerer.SetLocalDescription(ctx, *answer); err != nil {
		return fmt.Errorf("error setting answer: %w", err)
	}
	if err := offerer.SetRemoteDescription(ctx, *answer); err != nil {
		return fmt.Errorf("error setting remote answer: %w", err)
	}

	for _, s := range []struct {
		name    string
		session *peer.Session
	}{{"offerer", offerer}, {"answerer", answerer}} {
		state, err := s.session.SignalingState(ctx)
		if err != nil {
			return err
		}
		stats, err := s.session.GetStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: signaling=%s reports=%d\n", s.name, state, len(stats.Reports))
	}
	return nil
}
