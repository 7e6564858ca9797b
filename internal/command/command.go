// Package command implements the Command Channel: the non-blocking
// control → engine command stream, the engine → control response stream
// for request/response operations, and the engine → control event sink.
//
// Commands, responses and events are a closed sum of concrete types rather
// than a dynamically dispatched interface: new variants extend the sum,
// they do not reintroduce runtime trait objects.
package command

import (
	"github.com/ChangeCaps/musix/internal/arrangement"
	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/ChangeCaps/musix/internal/clipbuffer"
)

// Command is the sealed set of control-thread-to-engine messages. The
// unexported marker method keeps the sum closed to this package.
type Command interface {
	isCommand()
}

type SetPlaying struct{ Playing bool }
type SetRecording struct{ Recording bool }
type SetPlayTime struct{ Seconds float64 }
type SetTempo struct{ BeatsPerSecond float64 }
type SetVolume struct{ Volume float64 }
type SetFeedback struct{ Feedback bool }
type SetMetronome struct{ Metronome bool }
type RemoveSource struct{ ID audiofmt.SourceID }
type SetArrangementIndex struct{ Index *arrangement.Index }
type CloneSource struct{ ID audiofmt.SourceID }

// CalibrateNoise and SetWaitForInput close the gap spec.md leaves open
// between the noise-gate state it names (noise_level, waiting_for_input)
// and the command table, which never says what starts a calibration pass
// or arms the gate. Both are fire-and-forget, like every other command
// that carries no response.
type CalibrateNoise struct{ SampleCount uint32 }
type SetWaitForInput struct{ Wait bool }

func (SetPlaying) isCommand()          {}
func (SetRecording) isCommand()        {}
func (SetPlayTime) isCommand()         {}
func (SetTempo) isCommand()            {}
func (SetVolume) isCommand()           {}
func (SetFeedback) isCommand()         {}
func (SetMetronome) isCommand()        {}
func (RemoveSource) isCommand()        {}
func (SetArrangementIndex) isCommand() {}
func (CloneSource) isCommand()         {}
func (CalibrateNoise) isCommand()      {}
func (SetWaitForInput) isCommand()     {}

// Response is the sealed set of engine-to-control replies for
// request/response commands.
type Response interface {
	isResponse()
}

// Recorded replies to SetRecording(false). Source is nil when there was no
// in-progress recording clip (the *NoRecording* error kind).
type Recorded struct {
	Source *RecordedSource
}

// RecordedSource names the newly finalized clip and its format.
type RecordedSource struct {
	ID     audiofmt.SourceID
	Format audiofmt.Format
}

// SourceResponse replies to CloneSource with a deep copy of the clip.
type SourceResponse struct {
	Clip *clipbuffer.ClipBuffer
}

func (Recorded) isResponse()       {}
func (SourceResponse) isResponse() {}

// Event is the sealed set of engine-to-control notifications posted
// outside the request/response protocol.
type Event interface {
	isEvent()
}

// PlayLine is posted at approximately 30Hz while playing.
type PlayLine struct{ Seconds float64 }

// EngineFailed is posted once, when the device stream fails to start; the
// engine parks after emitting it.
type EngineFailed struct{ Err error }

func (PlayLine) isEvent()     {}
func (EngineFailed) isEvent() {}

// Channel bundles the two single-direction FIFOs (commands, responses) and
// the event sink, all single-producer single-consumer in their respective
// direction.
type Channel struct {
	commands  chan Command
	responses chan Response
	events    chan Event
}

// NewChannel returns a Channel with the given buffer depths for each
// direction.
func NewChannel(commandBuffer, responseBuffer, eventBuffer int) *Channel {
	return &Channel{
		commands:  make(chan Command, commandBuffer),
		responses: make(chan Response, responseBuffer),
		events:    make(chan Event, eventBuffer),
	}
}

// Send enqueues a command from the control thread. It never blocks: a full
// command queue silently drops the command, matching the Ring Transport's
// own never-block-the-producer discipline.
func (c *Channel) Send(cmd Command) {
	select {
	case c.commands <- cmd:
	default:
	}
}

// TryRecv is the engine-side non-blocking receive, draining at most one
// command per call as the output callback's per-sample budget requires.
func (c *Channel) TryRecv() (Command, bool) {
	select {
	case cmd := <-c.commands:
		return cmd, true
	default:
		return nil, false
	}
}

// Reply is the engine-side send of a response to a request/response
// command.
func (c *Channel) Reply(r Response) {
	c.responses <- r
}

// RecvResponse is the control-thread blocking receive used only for
// request/response operations (SetRecording(false), CloneSource).
func (c *Channel) RecvResponse() Response {
	return <-c.responses
}

// PostEvent is the engine-side non-blocking event post; a full event queue
// drops the event rather than blocking the audio thread.
func (c *Channel) PostEvent(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

// Events returns the receive-only event channel for the control surface to
// range over.
func (c *Channel) Events() <-chan Event {
	return c.events
}
