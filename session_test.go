package tapedeck_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"tapedeck"
)

func testSession(t *testing.T) (*tapedeck.Session, *tapedeck.Track) {
	t.Helper()
	s := tapedeck.NewSession()
	track := tapedeck.NewTrack("Vocals", tapedeck.TrackVocal)
	if err := track.AddEffect(tapedeck.KindCompressor); err != nil {
		t.Fatalf("AddEffect: %v", err)
	}
	if err := track.AddEffect(tapedeck.KindReverb); err != nil {
		t.Fatalf("AddEffect: %v", err)
	}
	track.Settings[tapedeck.KindCompressor] = tapedeck.CompressorSettings{Amount: 55, Active: true}
	track.Pan = -0.25
	s.Tracks = append(s.Tracks, track)
	return s, track
}

func TestSessionRoundTrip(t *testing.T) {
	s, track := testSession(t)
	s.Loop = tapedeck.Loop{Active: true, Start: 1, End: 5}
	s.BPM = 95
	s.Snap = true
	buf := tapedeck.NewSampleBuffer(make(tapedeck.AudioBuffer, 44100), 44100)
	clip := tapedeck.NewClip(track.ID, "take 1", buf, 2.5)
	clip.Source = "take1.wav"
	s.Clips = append(s.Clips, clip)

	var out bytes.Buffer
	if err := s.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := tapedeck.ReadSession(&out)
	if err != nil {
		t.Fatalf("ReadSession: %v", err)
	}
	if len(got.Tracks) != 2 || len(got.Clips) != 1 {
		t.Fatalf("got %d tracks, %d clips, want 2 and 1", len(got.Tracks), len(got.Clips))
	}
	gt := got.Track(track.ID)
	if gt == nil {
		t.Fatal("track lost in round trip")
	}
	if len(gt.Effects) != 2 || gt.Effects[0] != tapedeck.KindCompressor || gt.Effects[1] != tapedeck.KindReverb {
		t.Errorf("effect order lost: %v", gt.Effects)
	}
	if gt.EffectSettings(tapedeck.KindCompressor) != (tapedeck.CompressorSettings{Amount: 55, Active: true}) {
		t.Errorf("compressor settings lost: %+v", gt.EffectSettings(tapedeck.KindCompressor))
	}
	if gt.Pan != -0.25 {
		t.Errorf("pan = %g, want -0.25", gt.Pan)
	}
	gc := got.Clip(clip.ID)
	if gc == nil {
		t.Fatal("clip lost in round trip")
	}
	if gc.Start != 2.5 || gc.Source != "take1.wav" {
		t.Errorf("clip fields lost: %+v", gc)
	}
	if gc.Buffer != nil {
		t.Error("buffers are not serialized; want nil after load")
	}
	if got.Loop != s.Loop || got.BPM != 95 || !got.Snap {
		t.Errorf("transport state lost: %+v", got)
	}
}

func TestCheckPlacement(t *testing.T) {
	s, track := testSession(t)
	buf := tapedeck.NewSampleBuffer(make(tapedeck.AudioBuffer, 44100*4), 44100)
	a := tapedeck.NewClip(track.ID, "a", buf, 0)
	b := tapedeck.NewClip(track.ID, "b", buf, 10)
	s.Clips = append(s.Clips, a, b)

	if err := s.CheckPlacement(b, 5, 4); err != nil {
		t.Errorf("non-overlapping placement rejected: %v", err)
	}
	err := s.CheckPlacement(b, 3, 4)
	var conflict *tapedeck.SchedulingConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("overlapping placement: got %v, want SchedulingConflict", err)
	}
	if conflict.OtherID != a.ID {
		t.Errorf("conflict names clip %s, want %s", conflict.OtherID, a.ID)
	}
	// Touching end-to-start is not an overlap.
	if err := s.CheckPlacement(b, a.End(), 4); err != nil {
		t.Errorf("adjacent placement rejected: %v", err)
	}
	if err := s.CheckPlacement(b, -1, 4); err == nil {
		t.Error("negative start accepted")
	}
}

func TestClampMove(t *testing.T) {
	s, track := testSession(t)
	buf := tapedeck.NewSampleBuffer(make(tapedeck.AudioBuffer, 44100*2), 44100)
	left := tapedeck.NewClip(track.ID, "left", buf, 0)
	mid := tapedeck.NewClip(track.ID, "mid", buf, 5)
	right := tapedeck.NewClip(track.ID, "right", buf, 10)
	s.Clips = append(s.Clips, left, mid, right)

	if got := s.ClampMove(mid, 1); got != left.End() {
		t.Errorf("drag into left neighbor clamped to %g, want %g", got, left.End())
	}
	if got := s.ClampMove(mid, 9.5); got != right.Start-mid.Duration {
		t.Errorf("drag into right neighbor clamped to %g, want %g", got, right.Start-mid.Duration)
	}
	if got := s.ClampMove(mid, 6); got != 6 {
		t.Errorf("free move clamped to %g, want 6", got)
	}
	if got := s.ClampMove(left, -3); got != 0 {
		t.Errorf("drag before zero clamped to %g, want 0", got)
	}
}

func TestSnapTime(t *testing.T) {
	s := tapedeck.NewSession()
	s.BPM = 120 // 0.5 s grid
	s.Snap = true
	for _, c := range []struct{ in, want float64 }{
		{0.2, 0},
		{0.3, 0.5},
		{1.74, 1.5},
		{1.76, 2},
	} {
		if got := s.SnapTime(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("SnapTime(%g) = %g, want %g", c.in, got, c.want)
		}
	}
	s.Snap = false
	if got := s.SnapTime(0.3); got != 0.3 {
		t.Errorf("snapping disabled but SnapTime(0.3) = %g", got)
	}
}

func TestValidateRejectsBadSessions(t *testing.T) {
	s, track := testSession(t)
	buf := tapedeck.NewSampleBuffer(make(tapedeck.AudioBuffer, 44100), 44100)
	a := tapedeck.NewClip(track.ID, "a", buf, 0)
	b := tapedeck.NewClip(track.ID, "b", buf, 0.5)
	s.Clips = append(s.Clips, a, b)
	if err := s.Validate(); err == nil {
		t.Error("overlapping clips passed validation")
	}
	b.Start = 2
	if err := s.Validate(); err != nil {
		t.Errorf("valid session rejected: %v", err)
	}
	s.Loop = tapedeck.Loop{Active: true, Start: 5, End: 5}
	if err := s.Validate(); err == nil {
		t.Error("empty loop region passed validation")
	}
	s.Loop = tapedeck.Loop{}
	s.Tracks = s.Tracks[1:] // drop the master
	if err := s.Validate(); err == nil {
		t.Error("session without master track passed validation")
	}
}

func TestTrackEffectSetSemantics(t *testing.T) {
	track := tapedeck.NewTrack("t", tapedeck.TrackBeat)
	if err := track.AddEffect(tapedeck.KindDrive); err != nil {
		t.Fatalf("AddEffect: %v", err)
	}
	var cfgErr *tapedeck.ConfigurationError
	if err := track.AddEffect(tapedeck.KindDrive); !errors.As(err, &cfgErr) {
		t.Errorf("duplicate AddEffect: got %v, want ConfigurationError", err)
	}
	if err := track.AddEffect(tapedeck.Kind(99)); !errors.As(err, &cfgErr) {
		t.Errorf("unknown kind AddEffect: got %v, want ConfigurationError", err)
	}
	track.Settings[tapedeck.KindDrive] = tapedeck.DriveSettings{Drive: 80, Active: true}
	if !track.RemoveEffect(tapedeck.KindDrive) {
		t.Fatal("RemoveEffect returned false for present effect")
	}
	if track.RemoveEffect(tapedeck.KindDrive) {
		t.Error("RemoveEffect returned true for absent effect")
	}
	// Settings survive removal so re-adding restores them.
	if err := track.AddEffect(tapedeck.KindDrive); err != nil {
		t.Fatalf("re-AddEffect: %v", err)
	}
	if got := track.EffectSettings(tapedeck.KindDrive); got != (tapedeck.DriveSettings{Drive: 80, Active: true}) {
		t.Errorf("settings after re-add = %+v, want the edited values", got)
	}
}
