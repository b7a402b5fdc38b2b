// Package tapedeck contains the data model for the multitrack timeline
// engine: tracks, clips, sample buffers, effect settings and the transport
// state. The model is pure data; the real-time behavior lives in the engine
// package and the signal processing in the fx package.
package tapedeck

// AudioBuffer is a buffer of stereo audio samples of the form
// buffer[sample][channel].
type AudioBuffer [][2]float32

// Fill sets every frame of the buffer to the given value.
func (buf AudioBuffer) Fill(v [2]float32) {
	for i := range buf {
		buf[i] = v
	}
}

// Zero silences the buffer.
func (buf AudioBuffer) Zero() {
	for i := range buf {
		buf[i] = [2]float32{}
	}
}

// Add mixes src into buf, frame by frame. The buffers have to be of same
// length.
func (buf AudioBuffer) Add(src AudioBuffer) {
	for i := range buf {
		buf[i][0] += src[i][0]
		buf[i][1] += src[i][1]
	}
}

// AudioSink is the destination for rendered audio e.g. a real-time audio
// output or a file.
type AudioSink interface {
	WriteAudio(buffer AudioBuffer) error
	Close() error
}

// AudioContext represents the low-level audio drivers. There should be at
// most one AudioContext alive at a time.
type AudioContext interface {
	Output() AudioSink
	Close() error
}

// Loop is the loop region of the transport. Start and End are in timeline
// seconds; Start < End whenever Active is true.
type Loop struct {
	Active bool    `yaml:"active"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
}

// Contains reports whether the position is inside the loop region.
func (l Loop) Contains(pos float64) bool {
	return l.Active && pos >= l.Start && pos < l.End
}
