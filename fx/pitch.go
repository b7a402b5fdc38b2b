package fx

import (
	"github.com/chewxy/math32"

	"tapedeck"
)

func init() {
	register(tapedeck.KindPitch, registryEntry{build: buildPitch, apply: applyPitch})
}

const (
	// pitchBlock is the analysis block: pitch is estimated once per 2048
	// accumulated frames.
	pitchBlock = 2048

	// grainLen is the fixed grain length of the resynthesis; the two grains
	// run half a grain apart.
	grainLen = 2048

	historyLen  = 4096 // power of two, > grainLen
	historyMask = historyLen - 1

	// rmsFloor is the normalized level below which a block counts as
	// unvoiced.
	rmsFloor = 0.03

	// holdBlocks is how many unvoiced blocks in a row are tolerated before
	// the correction relaxes back to pass-through instead of holding a stale
	// ratio.
	holdBlocks = 5
)

// pitchStage implements pitch correction: autocorrelation detection on
// 2048-frame blocks, quantization of the detected pitch to the nearest
// allowed note of the configured scale, and a dual-grain granular shifter
// that moves the signal to the target ratio without changing its duration.
//
// Resynthesis keeps a circular history per channel and reads two grains half
// a grain apart at a fractional position driven by the integrated shift
// ratio, cross-fading them with a raised-cosine window. The window is zero
// where a grain's read position wraps, so the wraps are inaudible. Per
// sample, the live ratio glides toward the analysis target with a
// speed-derived time constant.
type pitchStage struct {
	sampleRate int

	// control values, written between blocks via apply
	scale      tapedeck.Scale
	key        int
	amount     float64
	speedCoeff float32

	// analysis
	ana            []float32
	anaFill        int
	corr           []float32
	unvoicedBlocks int
	targetRatio    float32

	// resynthesis
	currentRatio float32
	history      [2][]float32
	writePos     int
	phase        float32
}

func speedToCoeff(speed float64, sampleRate int) float32 {
	// speed 0 glides over ~200 ms, speed 100 over ~5 ms
	tc := 0.005 + (1-speed/100)*0.195
	return 1 - math32.Exp(-1/float32(tc*float64(sampleRate)))
}

func buildPitch(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.PitchSettings)
	st := &pitchStage{
		sampleRate:   n.sampleRate,
		scale:        set.Scale,
		key:          set.Key,
		amount:       set.Amount,
		speedCoeff:   speedToCoeff(set.Speed, n.sampleRate),
		ana:          make([]float32, pitchBlock),
		corr:         make([]float32, n.sampleRate/minDetectHz+2),
		targetRatio:  1,
		currentRatio: 1,
		history:      [2][]float32{make([]float32, historyLen), make([]float32, historyLen)},
	}
	n.stages = []Stage{st}
	return nil
}

func applyPitch(n *Node, s tapedeck.Settings) {
	set := s.(tapedeck.PitchSettings)
	st := n.stages[0].(*pitchStage)
	st.scale = set.Scale
	st.key = set.Key
	st.amount = set.Amount
	st.speedCoeff = speedToCoeff(set.Speed, st.sampleRate)
}

// analyze runs once per accumulated block and retargets the shift ratio.
func (st *pitchStage) analyze() {
	unvoiced := func() {
		st.unvoicedBlocks++
		if st.unvoicedBlocks > holdBlocks {
			st.targetRatio = 1
		}
	}
	if rmsLevel(st.ana) < rmsFloor {
		unvoiced()
		return
	}
	freq := detectPitch(st.ana, st.sampleRate, st.corr)
	if freq <= 0 {
		unvoiced()
		return
	}
	st.unvoicedBlocks = 0
	detected := float64(freq)
	note := nearestScaleNote(midiFromFreq(detected), st.scale, st.key)
	ratio := freqFromMIDI(note) / detected
	if ratio < 0.5 {
		ratio = 0.5
	} else if ratio > 2 {
		ratio = 2
	}
	ratio = 1 + (ratio-1)*st.amount/100
	st.targetRatio = float32(ratio)
}

// readTap reads the history the given number of samples behind the write
// position, linearly interpolating between the adjacent frames.
func (st *pitchStage) readTap(ch int, delay float32) float32 {
	pos := float32(st.writePos) - delay + historyLen
	idx := int(pos)
	frac := pos - float32(idx)
	h := st.history[ch]
	a := h[idx&historyMask]
	b := h[(idx+1)&historyMask]
	return a + (b-a)*frac
}

func (st *pitchStage) Process(buf tapedeck.AudioBuffer) {
	const halfGrain = grainLen / 2
	for i := range buf {
		l, r := buf[i][0], buf[i][1]

		st.ana[st.anaFill] = (l + r) / 2
		st.anaFill++
		if st.anaFill == pitchBlock {
			st.analyze()
			st.anaFill = 0
		}

		st.history[0][st.writePos] = l
		st.history[1][st.writePos] = r

		st.currentRatio += (st.targetRatio - st.currentRatio) * st.speedCoeff

		// The read taps drift through the history at 1-ratio samples per
		// sample: ratio > 1 makes them catch up to the write head (pitch
		// up), ratio < 1 makes them fall behind (pitch down).
		st.phase += 1 - st.currentRatio
		for st.phase < 0 {
			st.phase += grainLen
		}
		for st.phase >= grainLen {
			st.phase -= grainLen
		}
		d1 := st.phase
		d2 := d1 + halfGrain
		if d2 >= grainLen {
			d2 -= grainLen
		}
		w1 := 0.5 - 0.5*math32.Cos(2*math32.Pi*d1/grainLen)
		w2 := 1 - w1

		buf[i][0] = st.readTap(0, d1)*w1 + st.readTap(0, d2)*w2
		buf[i][1] = st.readTap(1, d1)*w1 + st.readTap(1, d2)*w2

		st.writePos = (st.writePos + 1) & historyMask
	}
}
