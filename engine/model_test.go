package engine_test

import (
	"bytes"
	"errors"
	"testing"

	"tapedeck"
	"tapedeck/engine"
)

func TestEffectEditing(t *testing.T) {
	model, eng, track := newTestSetup(t, 10)
	if err := model.AddEffect(track.ID, tapedeck.KindCompressor); err != nil {
		t.Fatalf("AddEffect: %v", err)
	}
	if err := model.AddEffect(track.ID, tapedeck.KindCompressor); err == nil {
		t.Error("duplicate effect accepted")
	}
	var cfgErr *tapedeck.ConfigurationError
	if err := model.AddEffect(track.ID, tapedeck.Kind(77)); !errors.As(err, &cfgErr) {
		t.Errorf("unknown kind: got %v, want ConfigurationError", err)
	}
	if got := track.Effects; len(got) != 1 {
		t.Fatalf("track effects after failed adds = %v, want just the compressor", got)
	}

	// Out-of-range parameters are rejected without touching the stored ones.
	before := track.EffectSettings(tapedeck.KindCompressor)
	if err := model.SetEffect(track.ID, tapedeck.CompressorSettings{Amount: 900, Active: true}); err == nil {
		t.Error("out-of-range settings accepted")
	}
	if track.EffectSettings(tapedeck.KindCompressor) != before {
		t.Error("rejected settings were stored")
	}
	if err := model.SetEffect(track.ID, tapedeck.CompressorSettings{Amount: 80, Active: true}); err != nil {
		t.Fatalf("SetEffect: %v", err)
	}
	if got := track.EffectSettings(tapedeck.KindCompressor); got != (tapedeck.CompressorSettings{Amount: 80, Active: true}) {
		t.Errorf("settings after edit = %+v", got)
	}

	render(eng, testBlock) // the updated chain must still process cleanly

	if err := model.RemoveEffect(track.ID, tapedeck.KindCompressor); err != nil {
		t.Fatalf("RemoveEffect: %v", err)
	}
	if err := model.RemoveEffect(track.ID, tapedeck.KindCompressor); err == nil {
		t.Error("removing an absent effect succeeded")
	}
}

func TestMoveEffectReorders(t *testing.T) {
	model, _, track := newTestSetup(t, 10)
	for _, k := range []tapedeck.Kind{tapedeck.KindEQ, tapedeck.KindDrive, tapedeck.KindReverb} {
		if err := model.AddEffect(track.ID, k); err != nil {
			t.Fatalf("AddEffect(%v): %v", k, err)
		}
	}
	if err := model.MoveEffect(track.ID, 2, 0); err != nil {
		t.Fatalf("MoveEffect: %v", err)
	}
	want := []tapedeck.Kind{tapedeck.KindReverb, tapedeck.KindEQ, tapedeck.KindDrive}
	for i, k := range want {
		if track.Effects[i] != k {
			t.Fatalf("chain order = %v, want %v", track.Effects, want)
		}
	}
	if err := model.MoveEffect(track.ID, 0, 5); err == nil {
		t.Error("out-of-range move accepted")
	}
}

func TestImportFailureYieldsEmptyClip(t *testing.T) {
	model, eng, track := newTestSetup(t, 10)
	clip, err := model.ImportClip(track.ID, "/nonexistent/take.wav", 1)
	if err == nil {
		t.Fatal("import of a missing file reported success")
	}
	if clip == nil {
		t.Fatal("no clip created for the failed import")
	}
	if !clip.Empty() || clip.Duration != 0 {
		t.Errorf("failed import clip: Empty=%v Duration=%g, want empty", clip.Empty(), clip.Duration)
	}
	if model.Session().Clip(clip.ID) == nil {
		t.Error("empty clip not kept in the session")
	}
	// The empty clip is excluded from scheduling; playback stays silent.
	model.PlayFrom(0)
	out := render(eng, testBlock)
	for i := range out {
		if out[i][0] != 0 {
			t.Fatalf("frame %d = %g, want silence", i, out[i][0])
		}
	}
}

func TestImportSnapsToGrid(t *testing.T) {
	model, _, track := newTestSetup(t, 10)
	model.SetSnap(true) // 120 BPM session, 0.5 s grid
	clip, _ := model.ImportClip(track.ID, "/nonexistent/take.wav", 1.3)
	if clip.Start != 1.5 {
		t.Errorf("snapped start = %g, want 1.5", clip.Start)
	}
}

func TestDuplicateTrackCopiesClips(t *testing.T) {
	model, _, track := newTestSetup(t, 10)
	src := constClipBuffer(testRate, 0.5)
	clip := addClip(t, model, track, src, 2)

	dup, err := model.DuplicateTrack(track.ID)
	if err != nil {
		t.Fatalf("DuplicateTrack: %v", err)
	}
	if dup.ID == track.ID {
		t.Error("duplicate shares the original id")
	}
	clips := model.Session().TrackClips(dup.ID)
	if len(clips) != 1 {
		t.Fatalf("duplicate has %d clips, want 1", len(clips))
	}
	if clips[0].ID == clip.ID {
		t.Error("duplicated clip shares the original id")
	}
	if clips[0].Buffer != clip.Buffer {
		t.Error("duplicated clip should share the sample buffer")
	}
	if clips[0].Start != 2 {
		t.Errorf("duplicated clip start = %g, want 2", clips[0].Start)
	}
}

func TestDeleteTrackRemovesClips(t *testing.T) {
	model, eng, track := newTestSetup(t, 10)
	addClip(t, model, track, constClipBuffer(testRate, 0.5), 0)
	if err := model.DeleteTrack(track.ID); err != nil {
		t.Fatalf("DeleteTrack: %v", err)
	}
	if len(model.Session().TrackClips(track.ID)) != 0 {
		t.Error("clips survived their track")
	}
	masterID := model.Session().Master().ID
	if err := model.DeleteTrack(masterID); err == nil {
		t.Error("master track deletion accepted")
	}
	model.PlayFrom(0)
	out := render(eng, testBlock)
	for i := range out {
		if out[i][0] != 0 {
			t.Fatalf("frame %d = %g after track delete, want silence", i, out[i][0])
		}
	}
}

func TestMergeClipsRejoinsSplit(t *testing.T) {
	model, eng, track := newTestSetup(t, 10)
	src := rampClipBuffer(testRate)
	clip := addClip(t, model, track, src, 0)
	right, err := model.SplitClip(clip.ID, 0.4)
	if err != nil {
		t.Fatalf("SplitClip: %v", err)
	}
	if err := model.MergeClips(clip.ID, right.ID); err != nil {
		t.Fatalf("MergeClips: %v", err)
	}
	if model.Session().Clip(right.ID) != nil {
		t.Error("right half still in the session after merge")
	}
	if clip.Duration != 1 {
		t.Errorf("merged duration = %g, want 1", clip.Duration)
	}
	model.PlayFrom(0)
	out := render(eng, 1000)
	for i := range out {
		if out[i][0] != src.At(i)[0] {
			t.Fatalf("frame %d after merge = %g, want %g", i, out[i][0], src.At(i)[0])
		}
	}
}

// Clips on different tracks never merge, even when their spans and source
// offsets happen to line up.
func TestMergeClipsRejectsCrossTrack(t *testing.T) {
	model, _, track := newTestSetup(t, 10)
	other, err := model.AddTrack("Harmony", tapedeck.TrackVocal)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	src := rampClipBuffer(testRate)
	left := addClip(t, model, track, src, 0)
	right, err := model.SplitClip(left.ID, 0.4)
	if err != nil {
		t.Fatalf("SplitClip: %v", err)
	}
	right.TrackID = other.ID
	if err := model.MergeClips(left.ID, right.ID); err == nil {
		t.Error("merge across tracks accepted")
	}
}

func TestSetTrackVolumeClamps(t *testing.T) {
	model, _, track := newTestSetup(t, 10)
	if err := model.SetTrackVolume(track.ID, 3.5); err != nil {
		t.Fatalf("SetTrackVolume: %v", err)
	}
	if track.Volume != 1 {
		t.Errorf("volume after overdriven set = %g, want 1", track.Volume)
	}
	if err := model.SetTrackVolume(track.ID, -0.5); err != nil {
		t.Fatalf("SetTrackVolume: %v", err)
	}
	if track.Volume != 0 {
		t.Errorf("volume after negative set = %g, want 0", track.Volume)
	}
}

func TestSaveSessionRoundTrips(t *testing.T) {
	model, _, track := newTestSetup(t, 10)
	if err := model.AddEffect(track.ID, tapedeck.KindPitch); err != nil {
		t.Fatalf("AddEffect: %v", err)
	}
	var buf bytes.Buffer
	if err := model.SaveSession(&buf); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := tapedeck.ReadSession(&buf)
	if err != nil {
		t.Fatalf("ReadSession: %v", err)
	}
	gt := got.Track(track.ID)
	if gt == nil || len(gt.Effects) != 1 || gt.Effects[0] != tapedeck.KindPitch {
		t.Errorf("saved session lost the pitch effect: %+v", gt)
	}
	broker := engine.NewBroker()
	if _, _, err := engine.NewModel(broker, got, testRate, testBlock); err != nil {
		t.Fatalf("NewModel on reloaded session: %v", err)
	}
}
