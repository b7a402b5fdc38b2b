package fx

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"tapedeck"
)

func init() {
	register(tapedeck.KindEQ, registryEntry{build: buildEQ, apply: applyEQ})
}

const (
	eqLowFreq  = 200
	eqMidFreq  = 1000
	eqHighFreq = 4000
	eqMidQ     = 1
	eqShelfQ   = 0.7071
)

// eqStage is the fixed 3-band EQ: low shelf at 200 Hz, peaking at 1 kHz and
// high shelf at 4 kHz, each +-12 dB. The three bands run as cascaded biquad
// sections per channel; gain changes glide at block rate, recomputing the
// coefficients while keeping the section state, which is click-free in
// practice for shelving moves of this size.
type eqStage struct {
	sampleRate     int
	sections       [2][3]*biquad.Section
	low, mid, high glide
	scratch        [2][]float64
}

func buildEQ(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.EQSettings)
	st := &eqStage{sampleRate: n.sampleRate, scratch: newScratch64()}
	st.low.setImmediate(set.LowDB)
	st.mid.setImmediate(set.MidDB)
	st.high.setImmediate(set.HighDB)
	for ch := 0; ch < 2; ch++ {
		st.sections[ch][0] = biquad.NewSection(biquad.Coefficients{})
		st.sections[ch][1] = biquad.NewSection(biquad.Coefficients{})
		st.sections[ch][2] = biquad.NewSection(biquad.Coefficients{})
	}
	st.redesign()
	n.stages = []Stage{st}
	return nil
}

func applyEQ(n *Node, s tapedeck.Settings) {
	set := s.(tapedeck.EQSettings)
	st := n.stages[0].(*eqStage)
	st.low.retarget(set.LowDB)
	st.mid.retarget(set.MidDB)
	st.high.retarget(set.HighDB)
}

func (st *eqStage) redesign() {
	sr := float64(st.sampleRate)
	low := design.LowShelf(eqLowFreq, st.low.value, eqShelfQ, sr)
	mid := design.Peak(eqMidFreq, st.mid.value, eqMidQ, sr)
	high := design.HighShelf(eqHighFreq, st.high.value, eqShelfQ, sr)
	for ch := 0; ch < 2; ch++ {
		st.sections[ch][0].Coefficients = low
		st.sections[ch][1].Coefficients = mid
		st.sections[ch][2].Coefficients = high
	}
}

func (st *eqStage) Process(buf tapedeck.AudioBuffer) {
	moved := st.low.step(len(buf), st.sampleRate)
	moved = st.mid.step(len(buf), st.sampleRate) || moved
	moved = st.high.step(len(buf), st.sampleRate) || moved
	if moved {
		st.redesign()
	}
	l, r := splitChannels(buf, &st.scratch)
	for _, sec := range st.sections[0] {
		sec.ProcessBlock(l)
	}
	for _, sec := range st.sections[1] {
		sec.ProcessBlock(r)
	}
	joinChannels(buf, l, r)
}
