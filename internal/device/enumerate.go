package device

import (
	"github.com/ChangeCaps/musix/internal/errors"
	"github.com/gen2brain/malgo"
)

// EnumerateCaptureDevices lists the input devices available on this
// platform's backend, for the control surface to present to the user.
func EnumerateCaptureDevices() ([]Info, error) {
	return enumerate(malgo.Capture)
}

// EnumeratePlaybackDevices lists the output devices available on this
// platform's backend.
func EnumeratePlaybackDevices() ([]Info, error) {
	return enumerate(malgo.Playback)
}

func enumerate(kind malgo.DeviceType) ([]Info, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]Info, 0, len(infos))
	for i := range infos {
		devices = append(devices, Info{
			Name: infos[i].Name(),
			ID:   infos[i].ID.String(),
		})
	}
	return devices, nil
}
