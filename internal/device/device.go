// Package device wires the engine's Ring Transport and output callback to
// real audio hardware via malgo. It supplies a default input device and a
// default output device, each a single 32-bit float interleaved stream, and
// is the only package in this repository that talks to the OS audio
// subsystem directly.
package device

import (
	"runtime"

	"github.com/ChangeCaps/musix/internal/engine"
	"github.com/ChangeCaps/musix/internal/errors"
	"github.com/ChangeCaps/musix/internal/logging"
	"github.com/ChangeCaps/musix/internal/transport"
	"github.com/gen2brain/malgo"
)

// DefaultLatencyMS is the 20 ms latency target. Nothing in this package
// reads it: Open does not set a device period size.
const DefaultLatencyMS = 20

// Config names the devices and format to open. Open uses only SampleRate
// and Channels: both streams always open the platform default device, so
// InputDeviceID and OutputDeviceID are ignored, and LatencyMS is not
// applied to the devices.
type Config struct {
	InputDeviceID  string
	OutputDeviceID string
	SampleRate     uint32
	Channels       uint32
	LatencyMS      uint32
}

// Info describes one enumerated device, independent of direction.
type Info struct {
	Name string
	ID   string
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.New(nil).
			Component("device").
			Category(errors.CategoryAudio).
			Context("os", runtime.GOOS).
			Context("error", "unsupported operating system").
			Build()
	}
}

// Streams owns the malgo context and the two independent device streams
// (capture, playback) bridged by a Ring Transport and an Engine.
type Streams struct {
	ctx      *malgo.AllocatedContext
	capture  *malgo.Device
	playback *malgo.Device
}

// Open starts the capture device (pushing into ring) and the playback
// device (driving eng.ProcessSample), per spec section 6: two independent
// streams sharing one format, f32 interleaved, each with malgo's default
// period size.
// On any failure to start, eng.Fail is invoked and a non-nil error is
// returned; the caller owns calling Close either way.
func Open(cfg Config, ring *transport.RingTransport, eng *engine.Engine) (*Streams, error) {
	backend, err := backendForPlatform()
	if err != nil {
		eng.Fail(err)
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		wrapped := errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Build()
		eng.Fail(wrapped)
		return nil, wrapped
	}

	s := &Streams{ctx: ctx}

	capture, err := openCapture(ctx, cfg, ring)
	if err != nil {
		_ = ctx.Uninit()
		eng.Fail(err)
		return nil, err
	}
	s.capture = capture

	playback, err := openPlayback(ctx, cfg, eng)
	if err != nil {
		capture.Uninit()
		_ = ctx.Uninit()
		eng.Fail(err)
		return nil, err
	}
	s.playback = playback

	return s, nil
}

func openCapture(ctx *malgo.AllocatedContext, cfg Config, ring *transport.RingTransport) (*malgo.Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, framecount uint32) {
			pushFloats(ring, input)
		},
		Stop: func() {
			logging.Warn("capture device stopped unexpectedly")
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "init_capture_device").
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "start_capture_device").
			Build()
	}
	return device, nil
}

func openPlayback(ctx *malgo.AllocatedContext, cfg Config, eng *engine.Engine) (*malgo.Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, framecount uint32) {
			fillFloats(eng, output)
		},
		Stop: func() {
			logging.Warn("playback device stopped unexpectedly")
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "init_playback_device").
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "start_playback_device").
			Build()
	}
	return device, nil
}

// Close stops and tears down both device streams and the malgo context.
func (s *Streams) Close() {
	if s.playback != nil {
		_ = s.playback.Stop()
		s.playback.Uninit()
	}
	if s.capture != nil {
		_ = s.capture.Stop()
		s.capture.Uninit()
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
	}
}
