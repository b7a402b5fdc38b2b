package fx

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/algo-dsp/dsp/conv"

	"tapedeck"
)

func init() {
	register(tapedeck.KindReverb, registryEntry{build: buildReverb, apply: applyReverb})
}

const (
	reverbSeconds = 2
	// impulseSeed makes the synthesized impulse reproducible, so two reverb
	// instances sound identical.
	impulseSeed = 0x7e4e12b

	// Partition sizing for the convolution engine: 2^8 = 256 samples of wet
	// latency, partitions up to 2^13.
	reverbMinBlockOrder = 8
	reverbMaxBlockOrder = 13
)

// reverbStage convolves the signal with a synthetic 2 second stereo impulse:
// uniform noise shaped by a cubic decay (1-t)^3. The long kernel runs
// through a partitioned FFT convolver per channel; the wet/dry mix is a
// single linear crossfade ramped per sample.
type reverbStage struct {
	sampleRate int
	left       *conv.PartitionedConvolution32
	right      *conv.PartitionedConvolution32
	mix        ramp
	wet        [2][]float32
	in         [2][]float32
}

func reverbImpulse(sampleRate int) (left, right []float32) {
	n := reverbSeconds * sampleRate
	rng := rand.New(rand.NewSource(impulseSeed))
	left = make([]float32, n)
	right = make([]float32, n)
	for i := 0; i < n; i++ {
		t := float32(i) / float32(n)
		decay := (1 - t) * (1 - t) * (1 - t)
		left[i] = (rng.Float32()*2 - 1) * decay
		right[i] = (rng.Float32()*2 - 1) * decay
	}
	return left, right
}

func buildReverb(n *Node, s tapedeck.Settings) error {
	set := s.(tapedeck.ReverbSettings)
	impL, impR := reverbImpulse(n.sampleRate)
	left, err := conv.NewPartitionedConvolution32(impL, reverbMinBlockOrder, reverbMaxBlockOrder)
	if err != nil {
		return fmt.Errorf("reverb left convolver: %w", err)
	}
	right, err := conv.NewPartitionedConvolution32(impR, reverbMinBlockOrder, reverbMaxBlockOrder)
	if err != nil {
		return fmt.Errorf("reverb right convolver: %w", err)
	}
	st := &reverbStage{
		sampleRate: n.sampleRate,
		left:       left,
		right:      right,
		wet:        [2][]float32{make([]float32, MaxBlockFrames), make([]float32, MaxBlockFrames)},
		in:         [2][]float32{make([]float32, MaxBlockFrames), make([]float32, MaxBlockFrames)},
	}
	st.mix.setImmediate(float32(set.Mix))
	n.stages = []Stage{st}
	return nil
}

func applyReverb(n *Node, s tapedeck.Settings) {
	set := s.(tapedeck.ReverbSettings)
	st := n.stages[0].(*reverbStage)
	st.mix.rampTo(float32(set.Mix), int(smoothingSeconds*float64(st.sampleRate)))
}

func (st *reverbStage) Process(buf tapedeck.AudioBuffer) {
	inL, inR := st.in[0][:len(buf)], st.in[1][:len(buf)]
	wetL, wetR := st.wet[0][:len(buf)], st.wet[1][:len(buf)]
	for i, frame := range buf {
		inL[i] = frame[0]
		inR[i] = frame[1]
	}
	// An error here only happens on a length mismatch, which the slicing
	// above rules out.
	st.left.ProcessBlock(inL, wetL)
	st.right.ProcessBlock(inR, wetR)
	for i := range buf {
		m := st.mix.next()
		buf[i][0] = buf[i][0]*(1-m) + wetL[i]*m
		buf[i][1] = buf[i][1]*(1-m) + wetR[i]*m
	}
}
