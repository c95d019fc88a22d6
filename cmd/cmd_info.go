package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtctunnel/rtcbackend/internal/app"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Prints information about the rtcbackend config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(options.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "public-key: %s\n", cfg.KeyPair.Public)
		fmt.Fprintf(out, "signal-channel: %s\n", cfg.Channel())
		fmt.Fprintf(out, "engine: %s\n", cfg.EngineName())
		fmt.Fprintf(out, "label: %s\n", cfg.Label())
		fmt.Fprintf(out, "ice-servers:\n")
		for _, server := range cfg.ICEServers {
			fmt.Fprintf(out, "  %s\n", strings.Join(server.URLs, ", "))
		}
		return nil
	},
}
