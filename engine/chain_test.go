package engine

import (
	"math/rand"
	"testing"

	"tapedeck"
)

func chainTestTrack(t *testing.T) *tapedeck.Track {
	t.Helper()
	tr := tapedeck.NewTrack("vox", tapedeck.TrackVocal)
	tr.Volume = 0.8
	tr.Pan = -0.3
	for _, kind := range []tapedeck.Kind{tapedeck.KindEQ, tapedeck.KindDrive, tapedeck.KindCompressor, tapedeck.KindWidth} {
		if err := tr.AddEffect(kind); err != nil {
			t.Fatalf("AddEffect(%v): %v", kind, err)
		}
	}
	return tr
}

func noiseBlocks(n int) tapedeck.AudioBuffer {
	rng := rand.New(rand.NewSource(41))
	buf := make(tapedeck.AudioBuffer, n)
	for i := range buf {
		buf[i][0] = rng.Float32()*1.6 - 0.8
		buf[i][1] = rng.Float32()*1.6 - 0.8
	}
	return buf
}

func renderThrough(c *Chain, in tapedeck.AudioBuffer) tapedeck.AudioBuffer {
	out := make(tapedeck.AudioBuffer, len(in))
	copy(out, in)
	const block = 512
	for off := 0; off < len(out); off += block {
		end := off + block
		if end > len(out) {
			end = len(out)
		}
		c.process(out[off:end], false)
	}
	return out
}

// A rebuild followed by an update with the unchanged settings must be
// indistinguishable from a cold build: same parameter state, same samples.
func TestRebuildThenUpdateMatchesColdBuild(t *testing.T) {
	tr := chainTestTrack(t)
	rebuilt, err := BuildChain(tr, 44100)
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if err := rebuilt.Update(tr); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cold, err := BuildChain(tr, 44100)
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}

	in := noiseBlocks(4096)
	got := renderThrough(rebuilt, in)
	want := renderThrough(cold, in)
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("frame %d: rebuilt+update %v, cold build %v", i, got[i], want[i])
		}
	}
}

// A build error must not disturb the chain it would have replaced.
func TestBuildChainErrorLeavesNothingBehind(t *testing.T) {
	tr := chainTestTrack(t)
	tr.Settings[tapedeck.KindDrive] = tapedeck.DriveSettings{Drive: -5, Active: true}
	if _, err := BuildChain(tr, 44100); err == nil {
		t.Fatal("BuildChain accepted out-of-range drive")
	}
}
