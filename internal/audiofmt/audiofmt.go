// Package audiofmt holds the leaf types shared by every layer of the audio
// engine: the dense source identifier and the format each recorded clip
// carries with it.
package audiofmt

// SourceID is a dense, monotonically issued key identifying a Clip Buffer
// owned by the engine.
type SourceID uint64

// Format describes the shape of one clip's interleaved PCM samples and the
// tempo it was recorded at.
type Format struct {
	SampleRate     uint32  // samples per second
	Channels       uint32  // interleaved channel count
	LenFrames      uint32  // samples.len() / Channels
	BeatsPerSecond float64 // tempo the clip was recorded at; anchors resampling
}

// FramesToSeconds converts a frame count to seconds at this format's sample rate.
func (f Format) FramesToSeconds(frames uint32) float64 {
	if f.SampleRate == 0 {
		return 0
	}
	return float64(frames) / float64(f.SampleRate)
}
