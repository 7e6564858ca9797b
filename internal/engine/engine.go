// Package engine implements the Audio Engine: the output callback that
// drains commands, mixes feedback with arrangement and metronome audio,
// drives recording, and emits play-line events. All of its state lives
// inside the object returned by New and is owned exclusively by whichever
// goroutine drives ProcessSample, ordinarily the device's output thread.
package engine

import (
	"math"

	"github.com/ChangeCaps/musix/internal/arrangement"
	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/ChangeCaps/musix/internal/clipbuffer"
	"github.com/ChangeCaps/musix/internal/command"
	"github.com/ChangeCaps/musix/internal/logging"
	"github.com/ChangeCaps/musix/internal/transport"
)

// Config fixes the device format the engine runs at; it is not mutated
// after New, matching the spec rule that the engine does not resample to
// match device rate.
type Config struct {
	SampleRate              uint32
	Channels                uint32
	InitialBeatsPerSecond   float64
	InitialVolume           float64
	RecordingCapacityFrames int
}

// Engine is the engine state from the data model, plus the bookkeeping the
// per-sample loop needs (current output channel, click/play-line cadence).
type Engine struct {
	cfg Config

	ring    *transport.RingTransport
	channel *command.Channel

	playSample uint32
	playing    bool
	recording  bool
	feedback   bool
	metronome  bool

	volume         float64
	beatsPerSecond float64

	recordingClip *clipbuffer.ClipBuffer

	sources          map[audiofmt.SourceID]*clipbuffer.ClipBuffer
	arrangementIndex *arrangement.Index
	nextAudioID      audiofmt.SourceID

	noiseLevel      float32
	waitingForInput bool
	waitForInput    bool
	noiseCalSamples uint32

	outChannel         uint32 // current output channel cursor, 0..Channels-1
	lastClickBeat      int64
	haveClickedOnBeat  bool
	framesSincePlayLine uint32

	failed bool
}

// New returns an Engine wired to ring (the Ring Transport feeding it from
// the input callback) and channel (the Command Channel to the control
// surface).
func New(cfg Config, ring *transport.RingTransport, channel *command.Channel) *Engine {
	return &Engine{
		cfg:            cfg,
		ring:           ring,
		channel:        channel,
		volume:         cfg.InitialVolume,
		beatsPerSecond: cfg.InitialBeatsPerSecond,
		sources:        make(map[audiofmt.SourceID]*clipbuffer.ClipBuffer),
	}
}

// Failed reports whether the engine has parked after an EngineFailed event.
func (e *Engine) Failed() bool {
	return e.failed
}

// Fail posts an EngineFailed event and parks the engine; called by the
// device layer when the output stream could not be started. No further
// ProcessSample calls are expected once this returns.
func (e *Engine) Fail(err error) {
	e.failed = true
	e.channel.PostEvent(command.EngineFailed{Err: err})
	logging.Error("audio engine failed to start", "error", err)
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

// ProcessSample runs one iteration of the per-device-output-sample loop and
// returns the mixed sample to write to the device buffer. It must not
// allocate once the engine's initial configuration (sources map,
// recordingClip capacity) is in place.
func (e *Engine) ProcessSample() float32 {
	e.drainOneCommand()

	in := e.ring.Pop()
	var out float32
	if e.feedback {
		out = in * float32(e.volume)
	}

	e.outChannel = (e.outChannel + 1) % max1(e.cfg.Channels)

	if e.noiseCalSamples > 0 {
		if sample := float32(math.Abs(float64(out))); sample > e.noiseLevel {
			e.noiseLevel = sample
		}
		e.noiseCalSamples--
	}

	if e.recordingClip != nil {
		e.tapRecording(out)
	}

	if e.playing {
		out = e.advanceTransport(out)
	}

	return out
}

// tapRecording appends the post-volume, post-feedback output sample to the
// in-progress recording clip, honouring the input-gated record-start
// (waiting_for_input) rule: while armed-but-not-yet-triggered, samples are
// dropped until the signal crosses noise_level*1.2 on a frame boundary,
// at which point the gate clears permanently and capture proceeds as if
// ungated (the resolved reading of the "it should clear on first appended
// sample" open question).
func (e *Engine) tapRecording(out float32) {
	if e.waitingForInput {
		onFrameBoundary := e.outChannel == 0
		if !onFrameBoundary || float32(math.Abs(float64(out))) <= e.noiseLevel*1.2 {
			return
		}
		e.waitingForInput = false
	}

	if err := e.recordingClip.Append(out); err != nil {
		logging.Warn("recording clip overflow, dropping sample", "error", err)
	}
}

// advanceTransport implements step 6 of the per-sample loop: metronome
// click, transport position advance, arrangement mixing, and play-line
// event cadence. It returns out with the metronome click and any
// arrangement-scheduled clip samples added in.
func (e *Engine) advanceTransport(out float32) float32 {
	sampleRate := float64(max1(e.cfg.SampleRate))
	bps := e.beatsPerSecond
	if bps <= 0 {
		bps = e.cfg.InitialBeatsPerSecond
	}

	playFrameBefore := float64(e.playSample) / float64(max1(e.cfg.Channels))
	if e.recording && e.metronome && bps > 0 {
		beatPeriod := 1.0 / bps
		phase := math.Mod(playFrameBefore/sampleRate, beatPeriod)
		beatNow := int64(math.Floor(playFrameBefore / sampleRate * bps))
		if phase < 0.01 && (!e.haveClickedOnBeat || beatNow != e.lastClickBeat) {
			out += 0.3
			e.lastClickBeat = beatNow
			e.haveClickedOnBeat = true
		}
	}

	e.playSample++
	playFrame := float64(e.playSample) / float64(max1(e.cfg.Channels))

	beat := int64(math.Floor(playFrame / sampleRate * bps))

	var beatFrame int64
	if bps > 0 {
		framesPerBeat := math.Floor(sampleRate / bps)
		if framesPerBeat > 0 {
			beatFrame = int64(math.Mod(playFrame, framesPerBeat))
		}
	}

	if entries, ok := e.arrangementIndex.EntriesAt(beat); ok {
		for _, entry := range entries {
			offsetFrames := int64(math.Floor(float64(entry.BeatsOffset) * sampleRate / bps))
			frame := beatFrame + offsetFrames
			if frame < 0 {
				continue
			}
			clip, ok := e.sources[entry.AudioID]
			if !ok {
				continue // MissingSource: silent, per error handling design
			}
			if sample, ok := clip.Read(uint32(frame), e.outChannel, bps); ok {
				out += sample
			}
		}
	}

	playLinePeriod := max1(e.cfg.SampleRate) / 30
	if playLinePeriod == 0 {
		playLinePeriod = 1
	}
	if e.outChannel == 0 { // count frames, not interleaved samples
		e.framesSincePlayLine++
	}
	if e.framesSincePlayLine >= playLinePeriod {
		e.framesSincePlayLine = 0
		e.channel.PostEvent(command.PlayLine{Seconds: playFrame / sampleRate})
	}

	return out
}
