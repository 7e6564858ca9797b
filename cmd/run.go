package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChangeCaps/musix/internal/command"
	"github.com/ChangeCaps/musix/internal/conf"
	"github.com/ChangeCaps/musix/internal/device"
	"github.com/ChangeCaps/musix/internal/engine"
	"github.com/ChangeCaps/musix/internal/logging"
	"github.com/ChangeCaps/musix/internal/transport"
	"github.com/spf13/cobra"
)

// RunCommand starts the audio engine against the configured devices and
// blocks until interrupted or the engine reports EngineFailed.
func RunCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the audio engine against the configured input/output devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(settings)
		},
	}
}

func runEngine(settings *conf.Settings) error {
	logging.Init()

	audio := settings.Audio
	eng := settings.Engine

	ring := transport.New(audio.LatencyMS, audio.SampleRate, audio.Channels)
	channel := command.NewChannel(eng.CommandBufferSize, eng.ResponseBufferSize, eng.EventBufferSize)

	e := engineFromSettings(settings, ring, channel)

	streams, err := device.Open(device.Config{
		InputDeviceID:  audio.InputDevice,
		OutputDeviceID: audio.OutputDevice,
		SampleRate:     audio.SampleRate,
		Channels:       audio.Channels,
		LatencyMS:      audio.LatencyMS,
	}, ring, e)
	if err != nil {
		return fmt.Errorf("starting audio streams: %w", err)
	}
	defer streams.Close()

	logging.Info("audio engine running",
		"sample_rate", audio.SampleRate,
		"channels", audio.Channels,
		"latency_ms", audio.LatencyMS,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			return nil
		case ev := <-channel.Events():
			switch v := ev.(type) {
			case command.PlayLine:
				logging.Debug("play-line", "seconds", v.Seconds)
			case command.EngineFailed:
				return fmt.Errorf("engine failed: %w", v.Err)
			}
		}
	}
}

func engineFromSettings(settings *conf.Settings, ring *transport.RingTransport, channel *command.Channel) *engine.Engine {
	cfg := engine.Config{
		SampleRate:              settings.Audio.SampleRate,
		Channels:                settings.Audio.Channels,
		InitialBeatsPerSecond:   settings.Engine.InitialBPS,
		InitialVolume:           settings.Engine.InitialVolume,
		RecordingCapacityFrames: int(settings.Engine.RecordingCapacitySec) * int(settings.Audio.SampleRate),
	}
	return engine.New(cfg, ring, channel)
}
