package fx

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"

	"tapedeck"
)

func init() {
	register(tapedeck.KindCompressor, registryEntry{build: buildCompressor, apply: applyCompressor})
	register(tapedeck.KindLimiter, registryEntry{build: buildLimiter, apply: applyLimiter})
}

// compressorStage drives one dynamics compressor per channel with a single
// amount knob. Amount 0..100 maps linearly to threshold 0..-50 dB, ratio
// 1:1..20:1 and makeup gain 1x..3x.
type compressorStage struct {
	sampleRate int
	left       *dynamics.Compressor
	right      *dynamics.Compressor
	amount     glide
	scratch    [2][]float64
}

func compressorParams(amount float64) (thresholdDB, ratio, makeupDB float64) {
	thresholdDB = -amount / 2
	ratio = 1 + 19*amount/100
	makeupDB = 20 * math.Log10(1+2*amount/100)
	return
}

func newChannelCompressor(sampleRate int) (*dynamics.Compressor, error) {
	c, err := dynamics.NewCompressor(float64(sampleRate))
	if err != nil {
		return nil, err
	}
	if err := c.SetAttack(5); err != nil {
		return nil, err
	}
	if err := c.SetRelease(120); err != nil {
		return nil, err
	}
	if err := c.SetKnee(6); err != nil {
		return nil, err
	}
	return c, nil
}

func buildCompressor(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.CompressorSettings)
	left, err := newChannelCompressor(n.sampleRate)
	if err != nil {
		return fmt.Errorf("compressor left channel: %w", err)
	}
	right, err := newChannelCompressor(n.sampleRate)
	if err != nil {
		return fmt.Errorf("compressor right channel: %w", err)
	}
	st := &compressorStage{
		sampleRate: n.sampleRate,
		left:       left,
		right:      right,
		scratch:    newScratch64(),
	}
	st.amount.setImmediate(set.Amount)
	st.retune()
	n.stages = []Stage{st}
	return nil
}

func applyCompressor(n *Node, s tapedeck.Settings) {
	st := n.stages[0].(*compressorStage)
	st.amount.retarget(s.(tapedeck.CompressorSettings).Amount)
}

func (st *compressorStage) retune() {
	thresholdDB, ratio, makeupDB := compressorParams(st.amount.value)
	for _, c := range [...]*dynamics.Compressor{st.left, st.right} {
		c.SetThreshold(thresholdDB)
		c.SetRatio(ratio)
		c.SetMakeupGain(makeupDB)
	}
}

func (st *compressorStage) Process(buf tapedeck.AudioBuffer) {
	if st.amount.step(len(buf), st.sampleRate) {
		st.retune()
	}
	l, r := splitChannels(buf, &st.scratch)
	st.left.ProcessInPlace(l)
	st.right.ProcessInPlace(r)
	joinChannels(buf, l, r)
}

// limiterStage is a brickwall limiter: fixed 20:1 ratio, zero knee, 3 ms
// attack, with makeup gain 10^((ceiling-threshold)/20).
type limiterStage struct {
	sampleRate int
	left       *dynamics.Compressor
	right      *dynamics.Compressor
	threshold  glide
	ceiling    float64
	scratch    [2][]float64
}

func newChannelLimiter(sampleRate int) (*dynamics.Compressor, error) {
	c, err := dynamics.NewCompressor(float64(sampleRate))
	if err != nil {
		return nil, err
	}
	if err := c.SetRatio(20); err != nil {
		return nil, err
	}
	if err := c.SetKnee(0); err != nil {
		return nil, err
	}
	if err := c.SetAttack(3); err != nil {
		return nil, err
	}
	if err := c.SetRelease(50); err != nil {
		return nil, err
	}
	return c, nil
}

func buildLimiter(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.LimiterSettings)
	left, err := newChannelLimiter(n.sampleRate)
	if err != nil {
		return fmt.Errorf("limiter left channel: %w", err)
	}
	right, err := newChannelLimiter(n.sampleRate)
	if err != nil {
		return fmt.Errorf("limiter right channel: %w", err)
	}
	st := &limiterStage{
		sampleRate: n.sampleRate,
		left:       left,
		right:      right,
		ceiling:    set.CeilingDB,
		scratch:    newScratch64(),
	}
	st.threshold.setImmediate(set.ThresholdDB)
	st.retune()
	n.stages = []Stage{st}
	return nil
}

func applyLimiter(n *Node, s tapedeck.Settings) {
	set := s.(tapedeck.LimiterSettings)
	st := n.stages[0].(*limiterStage)
	st.ceiling = set.CeilingDB
	st.threshold.retarget(set.ThresholdDB)
	if st.threshold.value == st.threshold.target {
		st.retune() // ceiling may have moved alone
	}
}

func (st *limiterStage) retune() {
	for _, c := range [...]*dynamics.Compressor{st.left, st.right} {
		c.SetThreshold(st.threshold.value)
		c.SetMakeupGain(st.ceiling - st.threshold.value)
	}
}

func (st *limiterStage) Process(buf tapedeck.AudioBuffer) {
	if st.threshold.step(len(buf), st.sampleRate) {
		st.retune()
	}
	l, r := splitChannels(buf, &st.scratch)
	st.left.ProcessInPlace(l)
	st.right.ProcessInPlace(r)
	joinChannels(buf, l, r)
}

func newScratch64() [2][]float64 {
	return [2][]float64{make([]float64, MaxBlockFrames), make([]float64, MaxBlockFrames)}
}

// splitChannels copies the stereo frames into the per-channel float64
// scratch buffers that the algo-dsp processors work on.
func splitChannels(buf tapedeck.AudioBuffer, scratch *[2][]float64) (l, r []float64) {
	l, r = scratch[0][:len(buf)], scratch[1][:len(buf)]
	for i, frame := range buf {
		l[i] = float64(frame[0])
		r[i] = float64(frame[1])
	}
	return l, r
}

func joinChannels(buf tapedeck.AudioBuffer, l, r []float64) {
	for i := range buf {
		buf[i][0] = float32(l[i])
		buf[i][1] = float32(r[i])
	}
}
