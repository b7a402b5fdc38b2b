package fx

import (
	"github.com/chewxy/math32"

	"tapedeck"
)

// GainPan is the volume/pan stage terminating every track chain. It is not a
// registered effect kind; the chain builder appends it after the track's
// effects. Volume is linear 0..1, pan is -1 (left) to 1 (right) with
// equal-power panning. Both controls ramp.
type GainPan struct {
	sampleRate int
	gain       ramp
	pan        ramp
}

func NewGainPan(volume, pan float64, sampleRate int) *GainPan {
	g := &GainPan{sampleRate: sampleRate}
	g.gain.setImmediate(float32(volume))
	g.pan.setImmediate(float32(pan))
	return g
}

// Set retargets volume and pan; the change ramps over the smoothing window.
// Safe to call only between blocks (the engine applies it at block start).
func (g *GainPan) Set(volume, pan float64) {
	frames := int(smoothingSeconds * float64(g.sampleRate))
	g.gain.rampTo(float32(volume), frames)
	g.pan.rampTo(float32(pan), frames)
}

func (g *GainPan) Process(buf tapedeck.AudioBuffer) {
	const quarterPi = math32.Pi / 4
	for i := range buf {
		v := g.gain.next()
		p := g.pan.next()
		l := math32.Cos((p + 1) * quarterPi)
		r := math32.Sin((p + 1) * quarterPi)
		buf[i][0] *= v * l
		buf[i][1] *= v * r
	}
}
