package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtctunnel/rtcbackend/internal/runloop"
	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Lists the capture sources of the engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _ := cmd.Flags().GetString("engine")
		cfg, err := loadConfig(engine)
		if err != nil {
			return err
		}
		if engine == "" {
			engine = cfg.EngineName()
		}

		loop := runloop.New("devices")
		defer loop.Close()
		factory, err := newFactory(cfg, engine, loop)
		if err != nil {
			return err
		}
		defer factory.Close()

		out := cmd.OutOrStdout()
		for _, kind := range []rtc.DeviceType{rtc.DeviceAudio, rtc.DeviceVideo} {
			labels, err := factory.SourceLabels(kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s:\n", kind)
			for _, label := range labels {
				fmt.Fprintf(out, "  %s\n", label)
			}
		}
		return nil
	},
}

func init() {
	devicesCmd.Flags().String("engine", "", "the engine to use (pion or fake)")
}
