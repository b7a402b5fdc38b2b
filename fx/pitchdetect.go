package fx

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"tapedeck"
)

// Detection range. Lags outside sampleRate/maxDetectHz..sampleRate/minDetectHz
// are not considered; that covers roughly the range of the human voice and
// most melodic material.
const (
	minDetectHz = 60
	maxDetectHz = 1000
)

// trimToZeroCrossings cuts the block back to start after its first zero
// crossing and end at its last one, which reduces edge artifacts in the
// autocorrelation.
func trimToZeroCrossings(x []float32) []float32 {
	start, end := 0, len(x)
	for i := 1; i < len(x); i++ {
		if (x[i-1] <= 0 && x[i] > 0) || (x[i-1] >= 0 && x[i] < 0) {
			start = i
			break
		}
	}
	for i := len(x) - 1; i > 0; i-- {
		if (x[i-1] <= 0 && x[i] > 0) || (x[i-1] >= 0 && x[i] < 0) {
			end = i
			break
		}
	}
	if end-start < 64 {
		return x
	}
	return x[start:end]
}

// detectPitch estimates the dominant frequency of the block by
// autocorrelation, returning 0 when no pitch is found. The peak search
// starts past the first local minimum of the correlation, which rejects the
// false maximum at zero lag. corr is caller-provided scratch of at least
// sampleRate/minDetectHz+2 entries.
func detectPitch(block []float32, sampleRate int, corr []float32) float32 {
	trimmed := trimToZeroCrossings(block)
	minLag := sampleRate / maxDetectHz
	maxLag := sampleRate / minDetectHz
	if maxLag >= len(trimmed) {
		maxLag = len(trimmed) - 1
	}
	if minLag < 1 || maxLag <= minLag || maxLag+1 > len(corr) {
		return 0
	}
	for lag := 0; lag <= maxLag; lag++ {
		corr[lag] = vek32.Dot(trimmed[:len(trimmed)-lag], trimmed[lag:])
	}
	// Walk down the zero-lag peak to the first local minimum.
	dip := 1
	for dip < maxLag && corr[dip] > corr[dip+1] {
		dip++
	}
	if dip < minLag {
		dip = minLag
	}
	maxpos := 0
	best := float32(math.Inf(-1))
	for lag := dip; lag <= maxLag; lag++ {
		if corr[lag] > best {
			best = corr[lag]
			maxpos = lag
		}
	}
	// A non-positive correlation peak means no periodicity in range: this
	// catches flat blocks, where the dip walk stops at the clamped minimum
	// lag and would otherwise win the search with a zero correlation.
	if maxpos == 0 || corr[maxpos] <= 0 {
		return 0
	}
	return float32(sampleRate) / float32(maxpos)
}

func midiFromFreq(f float64) float64 {
	return 12*math.Log2(f/440) + 69
}

func freqFromMIDI(m float64) float64 {
	return 440 * math.Pow(2, (m-69)/12)
}

// scaleOffsets are the pitch classes of each scale relative to its key.
var scaleOffsets = map[tapedeck.Scale][]int{
	tapedeck.ScaleChromatic: {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	tapedeck.ScaleMajor:     {0, 2, 4, 5, 7, 9, 11},
	tapedeck.ScaleMinor:     {0, 2, 3, 5, 7, 8, 10},
}

// nearestScaleNote quantizes a fractional MIDI note to the nearest note
// whose pitch class the scale allows. For every allowed class the nearest
// octave placement is considered, so when the class distance exceeds six
// semitones the wrap-around direction is chosen automatically.
func nearestScaleNote(midi float64, scale tapedeck.Scale, key int) float64 {
	offsets, ok := scaleOffsets[scale]
	if !ok {
		offsets = scaleOffsets[tapedeck.ScaleChromatic]
	}
	bestDist := math.Inf(1)
	bestNote := midi
	for _, off := range offsets {
		class := float64((key + off) % 12)
		oct := math.Round((midi - class) / 12)
		cand := class + 12*oct
		if d := math.Abs(cand - midi); d < bestDist {
			bestDist = d
			bestNote = cand
		}
	}
	return bestNote
}

func rmsLevel(x []float32) float32 {
	if len(x) == 0 {
		return 0
	}
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	return math32.Sqrt(sum / float32(len(x)))
}
