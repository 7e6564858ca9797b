package device

import (
	"encoding/binary"
	"math"

	"github.com/ChangeCaps/musix/internal/engine"
	"github.com/ChangeCaps/musix/internal/transport"
)

const bytesPerFloat = 4

// pushFloats decodes an f32-interleaved capture buffer and pushes each
// sample into the Ring Transport, matching the input callback's sole job:
// push, nothing else.
func pushFloats(ring *transport.RingTransport, buf []byte) {
	for i := 0; i+bytesPerFloat <= len(buf); i += bytesPerFloat {
		bits := binary.LittleEndian.Uint32(buf[i : i+bytesPerFloat])
		ring.Push(math.Float32frombits(bits))
	}
}

// fillFloats drives one engine.ProcessSample call per output sample and
// encodes the result into an f32-interleaved playback buffer.
func fillFloats(eng *engine.Engine, buf []byte) {
	for i := 0; i+bytesPerFloat <= len(buf); i += bytesPerFloat {
		sample := eng.ProcessSample()
		binary.LittleEndian.PutUint32(buf[i:i+bytesPerFloat], math.Float32bits(sample))
	}
}
