package tapedeck_test

import (
	"math"
	"testing"

	"tapedeck"
)

func rampBuffer(frames, rate int) *tapedeck.SampleBuffer {
	samples := make(tapedeck.AudioBuffer, frames)
	for i := range samples {
		v := float32(i) / float32(frames)
		samples[i] = [2]float32{v, -v}
	}
	return tapedeck.NewSampleBuffer(samples, rate)
}

func TestClipSplit(t *testing.T) {
	buf := rampBuffer(44100*4, 44100)
	c := tapedeck.NewClip("track", "take", buf, 10)
	c.Offset = 1
	c.Duration = 2

	right, err := c.Split(10.75)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if c.Start != 10 || math.Abs(c.Duration-0.75) > 1e-9 {
		t.Errorf("left span = [%g, %g), want [10, 10.75)", c.Start, c.End())
	}
	if math.Abs(right.Start-10.75) > 1e-9 || math.Abs(right.Duration-1.25) > 1e-9 {
		t.Errorf("right span = [%g, %g), want [10.75, 12)", right.Start, right.End())
	}
	// The halves read contiguous regions of the same source.
	if right.Buffer != c.Buffer {
		t.Error("split halves do not share the source buffer")
	}
	if math.Abs(right.Offset-(c.Offset+c.Duration)) > 1e-9 {
		t.Errorf("right offset %g does not continue left's region ending at %g", right.Offset, c.Offset+c.Duration)
	}
	if right.ID == c.ID {
		t.Error("split halves share an id")
	}

	if _, err := c.Split(10); err == nil {
		t.Error("split at clip start accepted")
	}
	if _, err := c.Split(c.End()); err == nil {
		t.Error("split at clip end accepted")
	}
}

func TestClipMerge(t *testing.T) {
	buf := rampBuffer(44100*4, 44100)
	c := tapedeck.NewClip("track", "take", buf, 0)
	right, err := c.Split(1.5)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if err := c.Merge(right); err != nil {
		t.Fatalf("Merge of freshly split halves: %v", err)
	}
	if c.Start != 0 || c.Duration != 4 || c.Offset != 0 {
		t.Errorf("merged clip = [%g, %g) offset %g, want original [0, 4) offset 0", c.Start, c.End(), c.Offset)
	}

	// Merging unrelated clips must fail.
	other := tapedeck.NewClip("track", "other", rampBuffer(44100, 44100), c.End())
	if err := c.Merge(other); err == nil {
		t.Error("merge across different source buffers accepted")
	}
	gap := c.Copy()
	gap.Start = c.End() + 1
	gap.Offset = 0
	if err := c.Merge(gap); err == nil {
		t.Error("merge across a timeline gap accepted")
	}
}

func TestClipCopyAndEmpty(t *testing.T) {
	buf := rampBuffer(4410, 44100)
	c := tapedeck.NewClip("track", "take", buf, 3)
	dup := c.Copy()
	if dup.ID == c.ID {
		t.Error("copy kept the id")
	}
	if dup.Buffer != c.Buffer {
		t.Error("copy duplicated the buffer; it should be shared")
	}
	if c.Empty() {
		t.Error("clip with audio reports Empty")
	}
	empty := tapedeck.NewClip("track", "missing", nil, 0)
	if !empty.Empty() || empty.Duration != 0 {
		t.Errorf("clip without buffer: Empty=%v Duration=%g, want true and 0", empty.Empty(), empty.Duration)
	}
}
