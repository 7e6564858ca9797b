package cmd

import (
	"fmt"

	"github.com/ChangeCaps/musix/internal/conf"
	"github.com/ChangeCaps/musix/internal/device"
	"github.com/spf13/cobra"
)

// DevicesCommand lists the capture and playback devices the configured
// backend can see, for the control surface to populate its device pickers.
func DevicesCommand(_ *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio capture and playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			captures, err := device.EnumerateCaptureDevices()
			if err != nil {
				return fmt.Errorf("enumerating capture devices: %w", err)
			}
			playbacks, err := device.EnumeratePlaybackDevices()
			if err != nil {
				return fmt.Errorf("enumerating playback devices: %w", err)
			}

			fmt.Println("Input devices:")
			for _, d := range captures {
				fmt.Printf("  %s (%s)\n", d.Name, d.ID)
			}
			fmt.Println("Output devices:")
			for _, d := range playbacks {
				fmt.Printf("  %s (%s)\n", d.Name, d.ID)
			}
			return nil
		},
	}
}
