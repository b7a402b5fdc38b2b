package engine

import (
	"github.com/viterin/vek/vek32"

	"tapedeck"
)

// peakDecay is the per-block falloff of the held peak value, giving the
// meters a quick rise and a roughly 300 ms release at typical block sizes.
const peakDecay = 0.86

// measure updates the track's held stereo peak from the rendered block.
// The channel scratch slices are preallocated on the control thread so
// this never allocates.
func (tu *trackUnit) measure(buf tapedeck.AudioBuffer) {
	l := tu.meterL[:len(buf)]
	r := tu.meterR[:len(buf)]
	for i, f := range buf {
		l[i] = f[0]
		r[i] = f[1]
	}
	vek32.Abs_Inplace(l)
	vek32.Abs_Inplace(r)
	tu.peak[0] = heldPeak(tu.peak[0], vek32.Max(l))
	tu.peak[1] = heldPeak(tu.peak[1], vek32.Max(r))
}

func heldPeak(prev, cur float32) float32 {
	decayed := prev * peakDecay
	if cur > decayed {
		return cur
	}
	return decayed
}
