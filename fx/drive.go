package fx

import (
	"github.com/chewxy/math32"

	"tapedeck"
)

func init() {
	register(tapedeck.KindDrive, registryEntry{build: buildDrive, apply: applyDrive})
}

const driveCurveLen = 8192

// driveStage is the waveshaping saturator. The shaping curve is sampled over
// x in [-1, 1] from
//
//	f(x) = (3+k) * x * rad(20) / (pi + k*|x|)
//
// and the output is compensated by 1/(1+drive/100) so that more drive does
// not simply mean more level. Drive changes glide at block rate, rebuilding
// the curve; the compensation gain ramps per sample.
type driveStage struct {
	sampleRate int
	drive      glide
	comp       ramp
	curve      []float32
}

func buildDrive(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.DriveSettings)
	st := &driveStage{
		sampleRate: n.sampleRate,
		curve:      make([]float32, driveCurveLen),
	}
	st.drive.setImmediate(set.Drive)
	st.comp.setImmediate(float32(1 / (1 + set.Drive/100)))
	st.reshape()
	n.stages = []Stage{st}
	return nil
}

func applyDrive(n *Node, s tapedeck.Settings) {
	set := s.(tapedeck.DriveSettings)
	st := n.stages[0].(*driveStage)
	st.drive.retarget(set.Drive)
	st.comp.rampTo(float32(1/(1+set.Drive/100)), int(smoothingSeconds*float64(st.sampleRate)))
}

func (st *driveStage) reshape() {
	k := float32(st.drive.value)
	const deg20 = 20 * math32.Pi / 180
	for i := range st.curve {
		x := float32(i)*2/float32(driveCurveLen-1) - 1
		st.curve[i] = (3 + k) * x * deg20 / (math32.Pi + k*math32.Abs(x))
	}
}

// shape looks x up in the curve with linear interpolation, clamping to the
// curve's [-1, 1] domain the way a waveshaper does.
func (st *driveStage) shape(x float32) float32 {
	pos := (x + 1) / 2 * float32(driveCurveLen-1)
	if pos <= 0 {
		return st.curve[0]
	}
	if pos >= float32(driveCurveLen-1) {
		return st.curve[driveCurveLen-1]
	}
	idx := int(pos)
	frac := pos - float32(idx)
	return st.curve[idx] + (st.curve[idx+1]-st.curve[idx])*frac
}

func (st *driveStage) Process(buf tapedeck.AudioBuffer) {
	if st.drive.step(len(buf), st.sampleRate) {
		st.reshape()
	}
	for i := range buf {
		g := st.comp.next()
		buf[i][0] = st.shape(buf[i][0]) * g
		buf[i][1] = st.shape(buf[i][1]) * g
	}
}
