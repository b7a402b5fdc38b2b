package fx

import (
	"github.com/chewxy/math32"

	"tapedeck"
)

func init() {
	register(tapedeck.KindGate, registryEntry{build: buildGate, apply: applyGate})
	register(tapedeck.KindWidth, registryEntry{build: buildWidth, apply: applyWidth})
}

const (
	gateBlock = 2048
	// Asymmetric time constants: the gate opens fast and closes slowly.
	gateOpenSeconds  = 0.005
	gateCloseSeconds = 0.1
)

// gateStage is the block-RMS noise gate. It measures RMS level in dB over
// fixed sub-blocks and snaps a gain toward 1 with a fast time constant when
// the level is above the threshold, and toward 0 with a slow one when below.
// There is no knee; the decision is binary per block, only the gain motion
// is smooth.
type gateStage struct {
	sampleRate  int
	thresholdDB glide
	gain        float32
	openCoeff   float32
	closeCoeff  float32
}

func buildGate(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.GateSettings)
	st := &gateStage{
		sampleRate: n.sampleRate,
		gain:       1,
		openCoeff:  1 - math32.Exp(-1/(gateOpenSeconds*float32(n.sampleRate))),
		closeCoeff: 1 - math32.Exp(-1/(gateCloseSeconds*float32(n.sampleRate))),
	}
	st.thresholdDB.setImmediate(set.ThresholdDB)
	n.stages = []Stage{st}
	return nil
}

func applyGate(n *Node, s tapedeck.Settings) {
	st := n.stages[0].(*gateStage)
	st.thresholdDB.retarget(s.(tapedeck.GateSettings).ThresholdDB)
}

func (st *gateStage) Process(buf tapedeck.AudioBuffer) {
	for len(buf) > 0 {
		block := len(buf)
		if block > gateBlock {
			block = gateBlock
		}
		st.processBlock(buf[:block])
		buf = buf[block:]
	}
}

func (st *gateStage) processBlock(buf tapedeck.AudioBuffer) {
	st.thresholdDB.step(len(buf), st.sampleRate)
	var sum float32
	for _, frame := range buf {
		mono := (frame[0] + frame[1]) / 2
		sum += mono * mono
	}
	rms := math32.Sqrt(sum / float32(len(buf)))
	levelDB := float32(-120)
	if rms > 0 {
		levelDB = 20 * math32.Log10(rms)
	}
	target := float32(0)
	coeff := st.closeCoeff
	if levelDB >= float32(st.thresholdDB.value) {
		target = 1
		coeff = st.openCoeff
	}
	for i := range buf {
		st.gain += (target - st.gain) * coeff
		buf[i][0] *= st.gain
		buf[i][1] *= st.gain
	}
}

// widthStage is the mid/side stereo width control: mid = L+R,
// side = (L-R)*width, recombined as (mid+side)/2 on the left and (mid-side)/2
// on the right. Width 0 collapses to mono, 1 passes through and larger
// values exaggerate the sides.
type widthStage struct {
	sampleRate int
	width      ramp
}

func buildWidth(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.WidthSettings)
	st := &widthStage{sampleRate: n.sampleRate}
	st.width.setImmediate(float32(set.Width))
	n.stages = []Stage{st}
	return nil
}

func applyWidth(n *Node, s tapedeck.Settings) {
	st := n.stages[0].(*widthStage)
	st.width.rampTo(float32(s.(tapedeck.WidthSettings).Width), int(smoothingSeconds*float64(st.sampleRate)))
}

func (st *widthStage) Process(buf tapedeck.AudioBuffer) {
	for i := range buf {
		w := st.width.next()
		mid := buf[i][0] + buf[i][1]
		side := (buf[i][0] - buf[i][1]) * w
		buf[i][0] = (mid + side) / 2
		buf[i][1] = (mid - side) / 2
	}
}
