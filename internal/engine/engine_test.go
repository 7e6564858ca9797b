package engine

import (
	"testing"

	"github.com/ChangeCaps/musix/internal/arrangement"
	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/ChangeCaps/musix/internal/command"
	"github.com/ChangeCaps/musix/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, sampleRate, channels uint32, bps float64) (*Engine, *command.Channel, *transport.RingTransport) {
	t.Helper()
	ring := transport.New(0, sampleRate, channels)
	ch := command.NewChannel(16, 16, 64)
	e := New(Config{
		SampleRate:              sampleRate,
		Channels:                channels,
		InitialBeatsPerSecond:   bps,
		InitialVolume:           1,
		RecordingCapacityFrames: int(sampleRate) * 10,
	}, ring, ch)
	return e, ch, ring
}

// TestRecordThenPlay pins scenario S1: recording then playing back a block
// referencing the recorded source.
func TestRecordThenPlay(t *testing.T) {
	const sampleRate = 44100
	e, ch, ring := newTestEngine(t, sampleRate, 1, 2.0)

	ch.Send(command.SetRecording{Recording: true})
	for i := 0; i < sampleRate; i++ {
		ring.Push(0.5)
		e.ProcessSample()
	}
	ch.Send(command.SetRecording{Recording: false})
	e.ProcessSample() // drains the stop command

	resp := ch.RecvResponse()
	recorded, ok := resp.(command.Recorded)
	require.True(t, ok)
	require.NotNil(t, recorded.Source)
	assert.InDelta(t, sampleRate, recorded.Source.Format.LenFrames, 10)

	a := arrangement.New()
	a.AddTrack()
	_, err := a.Tracks[0].AddBlock(arrangement.Block{
		Bounds:       arrangement.Bounds{Start: 0, End: 2},
		AudioBlockID: 1,
	})
	require.NoError(t, err)
	audioBlocks := map[uint64]arrangement.AudioBlock{
		1: {
			AudioID:      recorded.Source.ID,
			Format:       recorded.Source.Format,
			LenBeats:     2,
			TrueLenBeats: 2,
		},
	}
	index := arrangement.Compile(a, audioBlocks)
	ch.Send(command.SetArrangementIndex{Index: index})
	ch.Send(command.SetPlaying{Playing: true})

	var lastSeconds float64 = -1
	increasing := true
	for i := 0; i < sampleRate; i++ {
		ring.Push(0)
		e.ProcessSample()
		select {
		case ev := <-ch.Events():
			if pl, ok := ev.(command.PlayLine); ok {
				if pl.Seconds <= lastSeconds {
					increasing = false
				}
				lastSeconds = pl.Seconds
			}
		default:
		}
	}
	assert.True(t, increasing, "PlayLine seconds must be strictly increasing")
	assert.Greater(t, lastSeconds, 0.0)
}

// TestMetronomeClicksOnceEvenIfWindowSpansSamples pins the resolved open
// question: the < 0.01s click window can span multiple samples near a
// beat, but only one click must be emitted per beat.
func TestMetronomeClicksOnceEvenIfWindowSpansSamples(t *testing.T) {
	const sampleRate = 1000 // 0.01s window == 10 samples, easy to span
	e, ch, ring := newTestEngine(t, sampleRate, 1, 1.0)

	ch.Send(command.SetMetronome{Metronome: true})
	ch.Send(command.SetRecording{Recording: true})
	ch.Send(command.SetPlaying{Playing: true})

	clicks := 0
	for i := 0; i < sampleRate; i++ {
		ring.Push(0)
		out := e.ProcessSample()
		if out >= 0.3 {
			clicks++
		}
	}
	// At 1 beat/sec and 1000 samples, exactly one beat boundary (beat 0) is
	// crossed at the very start; it must click no more than once.
	assert.LessOrEqual(t, clicks, 1)
}

// TestMissingSourceIsSilentNotFatal pins scenario S5: removing a source
// still referenced by the arrangement index yields silence, not a crash.
func TestMissingSourceIsSilentNotFatal(t *testing.T) {
	e, ch, ring := newTestEngine(t, 1000, 1, 2.0)

	a := arrangement.New()
	a.AddTrack()
	_, err := a.Tracks[0].AddBlock(arrangement.Block{
		Bounds:       arrangement.Bounds{Start: 0, End: 4},
		AudioBlockID: 1,
	})
	require.NoError(t, err)
	audioBlocks := map[uint64]arrangement.AudioBlock{
		1: {AudioID: audiofmt.SourceID(0), LenBeats: 2, TrueLenBeats: 2, Format: audiofmt.Format{SampleRate: 1000, Channels: 1, BeatsPerSecond: 2}},
	}
	index := arrangement.Compile(a, audioBlocks)
	ch.Send(command.SetArrangementIndex{Index: index})
	ch.Send(command.RemoveSource{ID: 0})
	ch.Send(command.SetPlaying{Playing: true})

	assert.NotPanics(t, func() {
		for i := 0; i < 1000; i++ {
			ring.Push(0)
			e.ProcessSample()
		}
	})
}

// TestWaitingForInputClearsOnFirstCapturedSample pins the resolved open
// question: the input gate clears permanently on the first sample that
// crosses the noise threshold, instead of never clearing.
func TestWaitingForInputClearsOnFirstCapturedSample(t *testing.T) {
	e, ch, ring := newTestEngine(t, 1000, 1, 2.0)

	ch.Send(command.SetWaitForInput{Wait: true})
	ch.Send(command.SetFeedback{Feedback: true})
	ch.Send(command.SetRecording{Recording: true})

	for i := 0; i < 5; i++ {
		ring.Push(0) // below threshold, must not be appended
		e.ProcessSample()
	}
	assert.True(t, e.waitingForInput)
	assert.Equal(t, 0, e.recordingClip.Len())

	ring.Push(1.0) // crosses noise_level*1.2 (noise_level starts at 0)
	e.ProcessSample()
	assert.False(t, e.waitingForInput)
	assert.Equal(t, 1, e.recordingClip.Len())

	ring.Push(0)
	e.ProcessSample()
	assert.Equal(t, 2, e.recordingClip.Len())
}

// TestNoRecordingRepliesWithNilSource pins the *NoRecording* error kind:
// SetRecording(false) without a prior SetRecording(true) replies
// Recorded(None) rather than erroring.
func TestNoRecordingRepliesWithNilSource(t *testing.T) {
	e, ch, _ := newTestEngine(t, 1000, 1, 2.0)

	ch.Send(command.SetRecording{Recording: false})
	e.ProcessSample()

	resp := ch.RecvResponse()
	recorded, ok := resp.(command.Recorded)
	require.True(t, ok)
	assert.Nil(t, recorded.Source)
}
