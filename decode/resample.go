package decode

import (
	"github.com/cwbudde/algo-dsp/dsp/resample"

	"tapedeck"
)

// resampleBuffer converts the buffer between sample rates through a polyphase
// anti-aliased converter, one per channel. Imports are a one-time cost so
// there is no need to stay realtime here; the best quality profile keeps
// aliasing out of upward conversions.
func resampleBuffer(in tapedeck.AudioBuffer, from, to int) (tapedeck.AudioBuffer, error) {
	if from == to || len(in) == 0 {
		return in, nil
	}
	left, err := resample.NewForRates(float64(from), float64(to), resample.WithQuality(resample.QualityBest))
	if err != nil {
		return nil, err
	}
	right, err := resample.NewForRates(float64(from), float64(to), resample.WithQuality(resample.QualityBest))
	if err != nil {
		return nil, err
	}
	chL := make([]float64, len(in))
	chR := make([]float64, len(in))
	for i, f := range in {
		chL[i] = float64(f[0])
		chR[i] = float64(f[1])
	}
	outL := left.Process(chL)
	outR := right.Process(chR)
	out := make(tapedeck.AudioBuffer, len(outL))
	for i := range out {
		out[i] = [2]float32{float32(outL[i]), float32(outR[i])}
	}
	return out, nil
}
