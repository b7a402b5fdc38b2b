package oto

import (
	"encoding/binary"
	"math"

	"tapedeck"
)

// floatBufferToBytes encodes the stereo buffer as interleaved little-endian
// float32, the sample format the context is opened with. The encoded bytes
// are appended to out, so the caller can reuse its backing array.
func floatBufferToBytes(buffer tapedeck.AudioBuffer, out []byte) []byte {
	var b [8]byte
	for _, frame := range buffer {
		binary.LittleEndian.PutUint32(b[0:], math.Float32bits(frame[0]))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(frame[1]))
		out = append(out, b[:]...)
	}
	return out
}
