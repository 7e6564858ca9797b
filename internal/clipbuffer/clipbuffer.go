// Package clipbuffer implements the Clip Buffer: the owner of one recorded
// take's interleaved PCM samples, grown one sample at a time from inside the
// audio callback and read back through a tempo-aware nearest-neighbour
// resampler.
package clipbuffer

import (
	"math"

	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/ChangeCaps/musix/internal/errors"
)

// ClipBuffer owns one clip's samples. Outside a record session no mutator is
// invoked on a clip the engine is concurrently reading; that invariant is the
// caller's (the Audio Engine's) responsibility, not this package's.
type ClipBuffer struct {
	samples   []float32
	format    audiofmt.Format
	finalized bool
}

// Empty creates a new, empty ClipBuffer with capacityFrames worth of backing
// storage pre-reserved so Append never allocates on the audio thread.
func Empty(format audiofmt.Format, capacityFrames int) *ClipBuffer {
	if capacityFrames < 0 {
		capacityFrames = 0
	}
	return &ClipBuffer{
		samples: make([]float32, 0, capacityFrames*int(format.Channels)),
		format:  format,
	}
}

// FromSamples wraps an already-recorded, already-finalized set of interleaved
// samples (used by tests; CloneSource's deep copy goes through Clone).
func FromSamples(format audiofmt.Format, samples []float32) *ClipBuffer {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	format.LenFrames = uint32(len(cp)) / max1(format.Channels)
	return &ClipBuffer{samples: cp, format: format, finalized: true}
}

func max1(c uint32) uint32 {
	if c == 0 {
		return 1
	}
	return c
}

// Format returns the clip's format, including the live LenFrames.
func (c *ClipBuffer) Format() audiofmt.Format {
	return c.format
}

// Len returns the number of interleaved samples currently held.
func (c *ClipBuffer) Len() int {
	return len(c.samples)
}

// Append pushes one interleaved sample, as called once per channel per frame
// from inside the recording tap of the output callback. It never reallocates:
// once the pre-reserved capacity is exhausted it returns an Overflow error.
func (c *ClipBuffer) Append(sample float32) error {
	if len(c.samples) == cap(c.samples) {
		return errors.New(nil).
			Component("clipbuffer").
			Category(errors.CategoryResource).
			Context("capacity", cap(c.samples)).
			Context("error", "clip buffer overflow").
			Build()
	}
	c.samples = append(c.samples, sample)
	if c.format.Channels > 0 {
		c.format.LenFrames = uint32(len(c.samples)) / c.format.Channels
	}
	return nil
}

// Finalize truncates the buffer to a whole frame and applies a short linear
// fade-in/fade-out (sample_rate/100 samples per channel at each end) to
// suppress record-start/stop clicks. After Finalize the clip is immutable.
func (c *ClipBuffer) Finalize() {
	if c.finalized {
		return
	}
	channels := int(c.format.Channels)
	if channels == 0 {
		channels = 1
	}

	whole := len(c.samples) - len(c.samples)%channels
	c.samples = c.samples[:whole]
	c.format.LenFrames = uint32(whole / channels)

	fadeFrames := int(c.format.SampleRate) / 100
	totalFrames := whole / channels
	if fadeFrames > totalFrames/2 {
		fadeFrames = totalFrames / 2
	}

	for frame := 0; frame < fadeFrames; frame++ {
		gain := float32(frame) / float32(max(fadeFrames, 1))
		for ch := 0; ch < channels; ch++ {
			idx := frame*channels + ch
			c.samples[idx] *= gain
		}
	}
	for frame := 0; frame < fadeFrames; frame++ {
		gain := float32(frame) / float32(max(fadeFrames, 1))
		frameIdx := totalFrames - 1 - frame
		if frameIdx < 0 {
			break
		}
		for ch := 0; ch < channels; ch++ {
			idx := frameIdx*channels + ch
			c.samples[idx] *= gain
		}
	}

	c.finalized = true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Read returns the sample at the resampled position
//
//	index = round( (frame*channels + channel) * (recorded_bps / playback_bps) )
//
// or false if that index is past the end of the clip. The ratio is
// recorded_bps/playback_bps, not the inverse: the original implementation
// vacillated between the two, and the reference source (AudioClip::get_sample)
// resolves to recorded_bps/playback_bps. Playing slower than the recorded
// tempo therefore gives an index stride above 1.
func (c *ClipBuffer) Read(frame, channel uint32, playbackBPS float64) (float32, bool) {
	if playbackBPS == 0 {
		return 0, false
	}
	raw := float64(frame)*float64(c.format.Channels) + float64(channel)
	ratio := c.format.BeatsPerSecond / playbackBPS
	index := int(math.Round(raw * ratio))
	if index < 0 || index >= len(c.samples) {
		return 0, false
	}
	return c.samples[index], true
}

// Clone returns a deep, independent copy of the clip for handing to the
// control surface (CloneSource), so the engine keeps exclusive mutation rights.
func (c *ClipBuffer) Clone() *ClipBuffer {
	samples := make([]float32, len(c.samples))
	copy(samples, c.samples)
	return &ClipBuffer{samples: samples, format: c.format, finalized: c.finalized}
}
