// Package cmd implements the rtcbackend command line.
package cmd

import (
	"path/filepath"

	"github.com/kirsle/configdir"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	options struct {
		configFile string
		logLevel   string
	}
	RootCmd = &cobra.Command{
		Use:   "rtcbackend",
		Short: "rtcbackend negotiates WebRTC sessions and data channels",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(options.logLevel)
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(lvl)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(devicesCmd)
	RootCmd.AddCommand(runCmd)

	RootCmd.PersistentFlags().StringVar(&options.configFile, "config-file", defaultConfigFile(), "the config file")
	RootCmd.PersistentFlags().StringVar(&options.logLevel, "log-level", "info", "the log level to use")
}

func defaultConfigFile() string {
	dir := configdir.LocalConfig("rtcbackend")
	if err := configdir.MakePath(dir); err != nil {
		log.Fatal().Msg("failed to create config folder")
	}

	return filepath.Join(dir, "rtcbackend.yaml")
}
