package engine

import (
	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/ChangeCaps/musix/internal/clipbuffer"
	"github.com/ChangeCaps/musix/internal/command"
)

// drainOneCommand applies at most one pending command per output sample,
// the bound the spec requires to keep the audio thread's deadline.
func (e *Engine) drainOneCommand() {
	cmd, ok := e.channel.TryRecv()
	if !ok {
		return
	}

	switch c := cmd.(type) {
	case command.SetPlaying:
		e.playing = c.Playing
		if !c.Playing {
			e.recording = false
		}

	case command.SetRecording:
		if c.Recording {
			e.startRecording()
		} else {
			e.stopRecording()
		}

	case command.SetPlayTime:
		e.playSample = uint32(c.Seconds * float64(e.cfg.SampleRate) * float64(max1(e.cfg.Channels)))

	case command.SetTempo:
		e.beatsPerSecond = c.BeatsPerSecond

	case command.SetVolume:
		e.volume = c.Volume

	case command.SetFeedback:
		e.feedback = c.Feedback

	case command.SetMetronome:
		e.metronome = c.Metronome

	case command.RemoveSource:
		delete(e.sources, c.ID)

	case command.SetArrangementIndex:
		e.arrangementIndex = c.Index

	case command.CloneSource:
		e.cloneSource(c.ID)

	case command.CalibrateNoise:
		e.noiseLevel = 0
		e.noiseCalSamples = c.SampleCount

	case command.SetWaitForInput:
		e.waitForInput = c.Wait
	}
}

func (e *Engine) startRecording() {
	format := audiofmt.Format{
		SampleRate:     e.cfg.SampleRate,
		Channels:       e.cfg.Channels,
		BeatsPerSecond: e.beatsPerSecond,
	}
	e.recordingClip = clipbuffer.Empty(format, e.cfg.RecordingCapacityFrames)
	e.playing = true
	e.recording = true
	if e.waitForInput {
		e.waitingForInput = true
	}
}

func (e *Engine) stopRecording() {
	if e.recordingClip == nil {
		e.channel.Reply(command.Recorded{Source: nil})
		return
	}

	clip := e.recordingClip
	e.recordingClip = nil
	clip.Finalize()

	id := e.nextAudioID
	e.nextAudioID++
	e.sources[id] = clip

	e.channel.Reply(command.Recorded{
		Source: &command.RecordedSource{ID: id, Format: clip.Format()},
	})
}

func (e *Engine) cloneSource(id audiofmt.SourceID) {
	clip, ok := e.sources[id]
	if !ok {
		e.channel.Reply(command.SourceResponse{Clip: nil})
		return
	}
	e.channel.Reply(command.SourceResponse{Clip: clip.Clone()})
}
