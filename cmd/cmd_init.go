package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rtctunnel/rtcbackend/internal/app"
	"github.com/rtctunnel/rtcbackend/internal/crypt"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a new rtcbackend config and stores it to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := app.LoadConfig(options.configFile); err == nil {
			return fmt.Errorf("config file %s already exists, remove it if you want to re-initialize", options.configFile)
		}

		kp, err := crypt.GenerateKeyPair()
		if err != nil {
			return err
		}
		cfg := &app.Config{
			KeyPair:       kp,
			SignalChannel: app.DefaultSignalChannel,
			ICEServers: []app.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		}

		log.Info().
			Str("public-key", cfg.KeyPair.Public.String()).
			Str("config-file", options.configFile).
			Msg("saving config file")

		return cfg.Save(options.configFile)
	},
}
