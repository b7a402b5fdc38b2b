package fx

import "github.com/chewxy/math32"

// ramp is a per-sample linear parameter ramp. next is called once per frame
// on the audio thread; rampTo retargets it at block boundaries.
type ramp struct {
	value, target float32
	step          float32
	remaining     int
}

func (r *ramp) setImmediate(v float32) {
	r.value, r.target = v, v
	r.remaining = 0
}

func (r *ramp) rampTo(target float32, frames int) {
	r.target = target
	if frames <= 0 || r.value == target {
		r.value = target
		r.remaining = 0
		return
	}
	r.step = (target - r.value) / float32(frames)
	r.remaining = frames
}

func (r *ramp) next() float32 {
	if r.remaining > 0 {
		r.value += r.step
		r.remaining--
		if r.remaining == 0 {
			r.value = r.target
		}
	}
	return r.value
}

func (r *ramp) constantAt(v float32) bool {
	return r.remaining == 0 && r.value == v
}

// glide is a block-rate one-pole smoother for parameters that are expensive
// to retarget per sample (filter coefficients, dynamics thresholds). step
// advances it by one block of the given length and reports whether the value
// is still moving.
type glide struct {
	value, target float64
}

func (g *glide) setImmediate(v float64) { g.value, g.target = v, v }

func (g *glide) retarget(v float64) { g.target = v }

func (g *glide) step(frames, sampleRate int) (moved bool) {
	if g.value == g.target {
		return false
	}
	coeff := 1 - math32.Exp(-float32(frames)/(float32(smoothingSeconds)*float32(sampleRate)))
	g.value += (g.target - g.value) * float64(coeff)
	if diff := g.target - g.value; diff < 1e-4 && diff > -1e-4 {
		g.value = g.target
	}
	return true
}
