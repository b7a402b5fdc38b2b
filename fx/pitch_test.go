package fx

import (
	"math"
	"testing"

	"tapedeck"
)

func monoSine(frames int, freq float64, sampleRate int) tapedeck.AudioBuffer {
	buf := make(tapedeck.AudioBuffer, frames)
	for i := range buf {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		buf[i] = [2]float32{v, v}
	}
	return buf
}

func TestDetectPitch(t *testing.T) {
	const rate = 44100
	corr := make([]float32, rate/minDetectHz+2)
	for _, freq := range []float64{110, 220, 440, 880} {
		buf := monoSine(pitchBlock, freq, rate)
		mono := make([]float32, pitchBlock)
		for i, f := range buf {
			mono[i] = f[0]
		}
		got := detectPitch(mono, rate, corr)
		// Resolution is limited by integer lag, about freq^2/rate.
		tol := freq * freq / rate * 1.5
		if math.Abs(float64(got)-freq) > tol+1 {
			t.Errorf("detectPitch(%g Hz sine) = %g", freq, got)
		}
	}
	silence := make([]float32, pitchBlock)
	if got := detectPitch(silence, rate, corr); got != 0 {
		t.Errorf("detectPitch(silence) = %g, want 0", got)
	}
}

func TestMIDIConversions(t *testing.T) {
	if got := midiFromFreq(440); math.Abs(got-69) > 1e-9 {
		t.Errorf("midiFromFreq(440) = %g, want 69", got)
	}
	if got := freqFromMIDI(69); math.Abs(got-440) > 1e-9 {
		t.Errorf("freqFromMIDI(69) = %g, want 440", got)
	}
	if got := midiFromFreq(880); math.Abs(got-81) > 1e-9 {
		t.Errorf("midiFromFreq(880) = %g, want 81", got)
	}
}

func TestNearestScaleNote(t *testing.T) {
	cases := []struct {
		midi  float64
		scale tapedeck.Scale
		key   int
		want  float64
	}{
		{69, tapedeck.ScaleChromatic, 0, 69},
		{69.4, tapedeck.ScaleChromatic, 0, 69},
		{68.6, tapedeck.ScaleChromatic, 0, 69},
		// C major: 61.2 is 0.8 st from D and 1.2 st from C, so D wins;
		// 60.4 sits nearer C and corrects down.
		{61.2, tapedeck.ScaleMajor, 0, 62},
		{60.4, tapedeck.ScaleMajor, 0, 60},
		{66.4, tapedeck.ScaleMajor, 0, 67},
		// 50 cents above C5 corrects to C5, not up to D5.
		{72.5, tapedeck.ScaleMajor, 0, 72},
		// B natural just under C5 stays B (it is in C major).
		{70.9, tapedeck.ScaleMajor, 0, 71},
		// A minor: C# between C (60) and D (62), D is nearer.
		{61.2, tapedeck.ScaleMinor, 9, 62},
		// Octave wrap: 71.6 reaches up to C5 even though the C pitch class
		// is 11 semitones below within the octave.
		{71.6, tapedeck.ScaleMajor, 0, 72},
	}
	for _, c := range cases {
		if got := nearestScaleNote(c.midi, c.scale, c.key); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("nearestScaleNote(%g, %v, key %d) = %g, want %g", c.midi, c.scale, c.key, got, c.want)
		}
	}
}

func pitchNode(t *testing.T, set tapedeck.PitchSettings, rate int) (*Node, *pitchStage) {
	t.Helper()
	node, err := Build(tapedeck.KindPitch, set, rate)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return node, node.stages[0].(*pitchStage)
}

// A tone already on an allowed note must pass with a correction ratio of 1
// and its frequency intact.
func TestPitchInScaleToneUntouched(t *testing.T) {
	const rate = 44100
	node, stage := pitchNode(t, tapedeck.PitchSettings{
		Key: 0, Scale: tapedeck.ScaleMajor, Amount: 100, Speed: 100, Active: true,
	}, rate)
	buf := monoSine(rate, 440, rate) // A4 is in C major
	node.Process(buf)
	if math.Abs(float64(stage.targetRatio)-1) > 0.02 {
		t.Errorf("target ratio for in-scale tone = %g, want 1", stage.targetRatio)
	}
	mono := make([]float32, pitchBlock)
	for i, f := range buf[len(buf)-pitchBlock:] {
		mono[i] = f[0]
	}
	corr := make([]float32, rate/minDetectHz+2)
	if got := detectPitch(mono, rate, corr); math.Abs(float64(got)-440) > 8 {
		t.Errorf("output pitch = %g Hz, want about 440", got)
	}
}

// A tone 50 cents sharp of C5 corrects down to C5: ratio about 0.9715 and
// the output lands near 523 Hz.
func TestPitchCorrectsSharpTone(t *testing.T) {
	const (
		rate  = 44100
		input = 538.58 // 50 cents above C5
		c5    = 523.25
	)
	node, stage := pitchNode(t, tapedeck.PitchSettings{
		Key: 0, Scale: tapedeck.ScaleMajor, Amount: 100, Speed: 100, Active: true,
	}, rate)
	buf := monoSine(rate*2, input, rate)
	node.Process(buf)
	if math.Abs(float64(stage.targetRatio)-c5/input) > 0.01 {
		t.Errorf("target ratio = %g, want %g", stage.targetRatio, c5/input)
	}
	mono := make([]float32, pitchBlock)
	for i, f := range buf[len(buf)-pitchBlock:] {
		mono[i] = f[0]
	}
	corr := make([]float32, rate/minDetectHz+2)
	got := detectPitch(mono, rate, corr)
	if math.Abs(float64(got)-c5) > 15 {
		t.Errorf("corrected pitch = %g Hz, want about %g", got, c5)
	}
}

// Correction strength scales with amount: at 50 the ratio moves only half
// way to the target note.
func TestPitchAmountScalesCorrection(t *testing.T) {
	const rate = 44100
	node, stage := pitchNode(t, tapedeck.PitchSettings{
		Key: 0, Scale: tapedeck.ScaleMajor, Amount: 50, Speed: 100, Active: true,
	}, rate)
	node.Process(monoSine(rate, 538.58, rate))
	full := 523.25 / 538.58
	want := 1 + (full-1)*0.5
	if math.Abs(float64(stage.targetRatio)-want) > 0.01 {
		t.Errorf("target ratio at amount 50 = %g, want %g", stage.targetRatio, want)
	}
}

// Silence is unvoiced: after the hold expires the ratio relaxes to 1.
func TestPitchUnvoicedRelaxes(t *testing.T) {
	const rate = 44100
	node, stage := pitchNode(t, tapedeck.PitchSettings{
		Key: 0, Scale: tapedeck.ScaleMajor, Amount: 100, Speed: 100, Active: true,
	}, rate)
	node.Process(monoSine(rate, 538.58, rate))
	if stage.targetRatio >= 0.999 {
		t.Fatalf("precondition: sharp tone should set ratio below 1, got %g", stage.targetRatio)
	}
	silence := make(tapedeck.AudioBuffer, pitchBlock*(holdBlocks+2))
	node.Process(silence)
	if stage.targetRatio != 1 {
		t.Errorf("ratio after extended silence = %g, want 1", stage.targetRatio)
	}
}
