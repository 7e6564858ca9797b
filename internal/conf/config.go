// Package conf holds process-wide settings for the studio binary, loaded
// through viper the way the teacher's internal/conf loads BirdNET-Go's.
package conf

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Settings is the root configuration struct. Subcommands receive a pointer
// to one instance created at process start and bind their flags onto it.
type Settings struct {
	Debug bool // true to enable debug logging

	Audio struct {
		InputDevice  string // capture device ID; not used, the system default is always opened
		OutputDevice string // playback device ID; not used, the system default is always opened
		SampleRate   uint32 // device sample rate in Hz
		Channels     uint32 // device channel count, shared by input and output
		LatencyMS    uint32 // target round-trip latency in milliseconds
	}

	Engine struct {
		InitialBPS           float64 // starting tempo in beats per second
		InitialVolume        float64 // starting feedback volume, 0.0-1.0
		RecordingCapacitySec uint32  // seconds of audio to pre-reserve per recording clip
		CommandBufferSize    int     // capacity of the control->engine command channel
		ResponseBufferSize   int     // capacity of the engine->control response channel
		EventBufferSize      int     // capacity of the engine->control event channel
	}

	Log struct {
		Path     string // path to the JSON log file
		MaxSizeMB int   // lumberjack rotation size in megabytes
		MaxBackups int  // lumberjack rotation backup count
		MaxAgeDays int  // lumberjack rotation max age in days
	}
}

// Default returns Settings populated with the values the engine assumes when
// nothing else is configured.
func Default() *Settings {
	s := &Settings{}
	s.Audio.SampleRate = 48000
	s.Audio.Channels = 2
	s.Audio.LatencyMS = 20
	s.Engine.InitialBPS = 120.0 / 60.0
	s.Engine.InitialVolume = 0.5
	s.Engine.RecordingCapacitySec = 600
	s.Engine.CommandBufferSize = 64
	s.Engine.ResponseBufferSize = 16
	s.Engine.EventBufferSize = 256
	s.Log.Path = "logs/studio.log"
	s.Log.MaxSizeMB = 100
	s.Log.MaxBackups = 3
	s.Log.MaxAgeDays = 28
	return s
}

var (
	current     *Settings
	currentOnce sync.Once
	currentMu   sync.RWMutex
)

// Load builds a fresh Settings from Default, overriding the audio device and
// format fields, the initial tempo and the debug flag with any value set in
// viper, and stores it as the process-wide current settings. The Engine and
// Log fields always keep their defaults.
func Load() (*Settings, error) {
	s := Default()

	if viper.IsSet("audio.inputdevice") {
		s.Audio.InputDevice = viper.GetString("audio.inputdevice")
	}
	if viper.IsSet("audio.outputdevice") {
		s.Audio.OutputDevice = viper.GetString("audio.outputdevice")
	}
	if viper.IsSet("audio.samplerate") {
		s.Audio.SampleRate = uint32(viper.GetUint("audio.samplerate"))
	}
	if viper.IsSet("audio.channels") {
		s.Audio.Channels = uint32(viper.GetUint("audio.channels"))
	}
	if viper.IsSet("audio.latencyms") {
		s.Audio.LatencyMS = uint32(viper.GetUint("audio.latencyms"))
	}
	if viper.IsSet("engine.initialbps") {
		s.Engine.InitialBPS = viper.GetFloat64("engine.initialbps")
	}
	if viper.IsSet("debug") {
		s.Debug = viper.GetBool("debug")
	}

	if s.Audio.Channels == 0 {
		return nil, fmt.Errorf("conf: audio.channels must be non-zero")
	}

	currentMu.Lock()
	current = s
	currentMu.Unlock()

	return s, nil
}

// Setting returns the process-wide current settings, defaulting if Load was
// never called (mirrors the teacher's lazily-initialized conf.Setting()).
func Setting() *Settings {
	currentMu.RLock()
	s := current
	currentMu.RUnlock()
	if s != nil {
		return s
	}

	currentOnce.Do(func() {
		currentMu.Lock()
		if current == nil {
			current = Default()
		}
		currentMu.Unlock()
	})

	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}
