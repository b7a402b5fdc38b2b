package tapedeck

import "github.com/chewxy/math32"

// SampleBuffer is a block of decoded source audio. Once constructed it is
// never mutated: a buffer may be shared by any number of clips and read by
// the audio thread mid-playback, so the destructive edits (Fade, Normalize,
// Reverse) all return a new buffer which the model then swaps into the clip
// record.
type SampleBuffer struct {
	samples    AudioBuffer
	sampleRate int
}

// NewSampleBuffer wraps decoded samples into a buffer. The caller must not
// retain or modify the slice afterwards.
func NewSampleBuffer(samples AudioBuffer, sampleRate int) *SampleBuffer {
	return &SampleBuffer{samples: samples, sampleRate: sampleRate}
}

func (b *SampleBuffer) SampleRate() int { return b.sampleRate }
func (b *SampleBuffer) NumFrames() int  { return len(b.samples) }

// Duration returns the buffer length in seconds.
func (b *SampleBuffer) Duration() float64 {
	if b.sampleRate == 0 {
		return 0
	}
	return float64(len(b.samples)) / float64(b.sampleRate)
}

// At returns the frame at the given index, or silence outside the buffer.
func (b *SampleBuffer) At(i int) [2]float32 {
	if i < 0 || i >= len(b.samples) {
		return [2]float32{}
	}
	return b.samples[i]
}

// Read copies frames [from, from+len(dst)) into dst, zero-padding past
// either end of the buffer.
func (b *SampleBuffer) Read(dst AudioBuffer, from int) {
	for i := range dst {
		dst[i] = b.At(from + i)
	}
}

func (b *SampleBuffer) clone() AudioBuffer {
	out := make(AudioBuffer, len(b.samples))
	copy(out, b.samples)
	return out
}

// Faded returns a copy with linear fade-in and fade-out ramps of the given
// lengths, in seconds.
func (b *SampleBuffer) Faded(fadeIn, fadeOut float64) *SampleBuffer {
	out := b.clone()
	in := int(fadeIn * float64(b.sampleRate))
	for i := 0; i < in && i < len(out); i++ {
		g := float32(i) / float32(in)
		out[i][0] *= g
		out[i][1] *= g
	}
	n := int(fadeOut * float64(b.sampleRate))
	for i := 0; i < n && i < len(out); i++ {
		g := float32(i) / float32(n)
		j := len(out) - 1 - i
		out[j][0] *= g
		out[j][1] *= g
	}
	return NewSampleBuffer(out, b.sampleRate)
}

// Normalized returns a copy scaled so that the sample of largest magnitude
// hits the given peak (0..1). A silent buffer is returned unchanged.
func (b *SampleBuffer) Normalized(peak float32) *SampleBuffer {
	var max float32
	for _, frame := range b.samples {
		max = math32.Max(max, math32.Max(math32.Abs(frame[0]), math32.Abs(frame[1])))
	}
	if max == 0 {
		return b
	}
	g := peak / max
	out := b.clone()
	for i := range out {
		out[i][0] *= g
		out[i][1] *= g
	}
	return NewSampleBuffer(out, b.sampleRate)
}

// Reversed returns a copy with the frames in reverse order.
func (b *SampleBuffer) Reversed() *SampleBuffer {
	out := make(AudioBuffer, len(b.samples))
	for i, frame := range b.samples {
		out[len(out)-1-i] = frame
	}
	return NewSampleBuffer(out, b.sampleRate)
}
