// root.go viper root command code
package cmd

import (
	"fmt"

	"github.com/ChangeCaps/musix/internal/conf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "musix",
		Short: "Multitrack audio workstation engine CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		RunCommand(settings),
		DevicesCommand(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// setupFlags bound each flag to the viper key Load reads, so Load
		// returns the defaults overlaid with every flag the user set, the
		// way the teacher's initialize() resolves configuration after flag
		// parsing but before a subcommand runs. No config file or
		// environment variable is registered with viper.
		loaded, err := conf.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		*settings = *loaded
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Audio.InputDevice, "input-device", viper.GetString("audio.inputdevice"), "Input device ID (not used: the system default input device is always opened)")
	rootCmd.PersistentFlags().StringVar(&settings.Audio.OutputDevice, "output-device", viper.GetString("audio.outputdevice"), "Output device ID (not used: the system default output device is always opened)")
	rootCmd.PersistentFlags().Uint32Var(&settings.Audio.SampleRate, "sample-rate", uint32(viper.GetUint("audio.samplerate")), "Device sample rate")
	rootCmd.PersistentFlags().Uint32Var(&settings.Audio.Channels, "channels", uint32(viper.GetUint("audio.channels")), "Device channel count")
	rootCmd.PersistentFlags().Uint32Var(&settings.Audio.LatencyMS, "latency-ms", uint32(viper.GetUint("audio.latencyms")), "Target device latency in milliseconds")
	rootCmd.PersistentFlags().Float64Var(&settings.Engine.InitialBPS, "tempo", viper.GetFloat64("engine.initialbps"), "Initial tempo in beats per second")

	// Bind each flag to the viper key conf.Load reads it back from
	flags := rootCmd.PersistentFlags()
	for key, name := range map[string]string{
		"debug":              "debug",
		"audio.inputdevice":  "input-device",
		"audio.outputdevice": "output-device",
		"audio.samplerate":   "sample-rate",
		"audio.channels":     "channels",
		"audio.latencyms":    "latency-ms",
		"engine.initialbps":  "tempo",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}

	return nil
}
