// Package transport implements the Ring Transport: the lock-free
// single-producer single-consumer sample buffer bridging the input and
// output device callbacks.
package transport

import (
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"
)

const bytesPerSample = 4

// RingTransport is a bounded ring of f32 samples built on top of
// smallnest/ringbuffer's byte ring. Push runs on the input callback, Pop on
// the output callback; after construction neither allocates. Push and Pop
// each use their own stack-local byte buffer: the two callbacks run on
// separate threads, so no buffer may be shared between them.
type RingTransport struct {
	ring *ringbuffer.RingBuffer
}

// New returns a RingTransport sized to 2*latencyMS*sampleRate*channels/1000
// samples (at least 2) and pre-filled with latencySamples zeros, decoupling the start of
// the input and output callbacks the way the spec requires.
func New(latencyMS, sampleRate, channels uint32) *RingTransport {
	latencySamples := int(latencyMS) * int(sampleRate) * int(channels) / 1000
	capacitySamples := 2 * latencySamples
	if capacitySamples <= 0 {
		capacitySamples = 2
	}

	t := &RingTransport{
		ring: ringbuffer.New(capacitySamples * bytesPerSample),
	}

	zero := make([]byte, bytesPerSample)
	for i := 0; i < latencySamples; i++ {
		_, _ = t.ring.Write(zero)
	}
	return t
}

// Push writes one sample into the ring. Push failure (the ring is full) is
// silently dropped: back-pressuring a device callback is worse than
// dropping one period of input.
func (t *RingTransport) Push(sample float32) {
	var buf [bytesPerSample]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(sample))
	_, _ = t.ring.Write(buf[:])
}

// Pop reads one sample from the ring, returning silence if the ring is
// empty (an underrun).
func (t *RingTransport) Pop() float32 {
	var buf [bytesPerSample]byte
	n, err := t.ring.Read(buf[:])
	if err != nil || n < bytesPerSample {
		return 0
	}
	bits := binary.LittleEndian.Uint32(buf[:])
	return math.Float32frombits(bits)
}

// Len reports the number of whole samples currently buffered.
func (t *RingTransport) Len() int {
	return t.ring.Length() / bytesPerSample
}
