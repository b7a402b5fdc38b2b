package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"tapedeck"
	"tapedeck/engine"
	"tapedeck/internal/config"
)

// Rendering a session with burst clips must put the bursts at the right
// sample positions and keep every block up to the end of the timeline,
// including the final partial one.
func TestRenderPlacesClipsAndKeepsTail(t *testing.T) {
	const (
		rate  = 44100
		block = 512
	)
	master := tapedeck.NewTrack("Master", tapedeck.TrackMaster)
	vocals := tapedeck.NewTrack("Vocals", tapedeck.TrackVocal)
	master.Pan = -1
	vocals.Pan = -1

	burst := make(tapedeck.AudioBuffer, rate/10)
	burst.Fill([2]float32{0.5, 0.5})
	buf := tapedeck.NewSampleBuffer(burst, rate)

	session := &tapedeck.Session{
		Tracks:   []*tapedeck.Track{master, vocals},
		Duration: 1,
		BPM:      120,
	}
	session.Clips = append(session.Clips,
		tapedeck.NewClip(vocals.ID, "mid", buf, 0.5),
		// Runs past the end of the timeline, so the last rendered block
		// still carries real audio.
		tapedeck.NewClip(vocals.ID, "tail", buf, 0.95),
	)

	broker := engine.NewBroker()
	model, eng, err := engine.NewModel(broker, session, rate, block)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := newWAVSink(path, rate)
	if err != nil {
		t.Fatalf("newWAVSink: %v", err)
	}
	model.PlayFrom(0)
	out := make(tapedeck.AudioBuffer, block)
	for {
		eng.Process(out)
		if err := sink.WriteAudio(out); err != nil {
			t.Fatalf("WriteAudio: %v", err)
		}
		model.ProcessMessages()
		if !eng.Playing() {
			break
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open rendered file: %v", err)
	}
	defer f.Close()
	pcm, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode rendered file: %v", err)
	}

	frames := len(pcm.Data) / 2
	wantFrames := (rate/block + 1) * block // one second, rounded up to blocks
	if frames != wantFrames {
		t.Fatalf("rendered %d frames, want %d", frames, wantFrames)
	}

	ch0 := func(frame int) int { return pcm.Data[frame*2] }
	first := -1
	for i := 0; i < frames; i++ {
		if ch0(i) > 8000 {
			first = i
			break
		}
	}
	if want := rate / 2; first != want {
		t.Errorf("first burst starts at frame %d, want %d", first, want)
	}
	// The tail clip plays right up to the timeline end...
	if got := ch0(rate - 1); got < 8000 {
		t.Errorf("frame before timeline end = %d, want the burst level", got)
	}
	// ...and nothing after it.
	for i := rate; i < frames; i++ {
		if ch0(i) != 0 {
			t.Fatalf("frame %d past the end = %d, want silence", i, ch0(i))
		}
	}
}

// A clip whose source format is not in the config's supported list must be
// rejected before any decoding is attempted.
func TestLoadSessionRejectsDisabledFormat(t *testing.T) {
	dir := t.TempDir()
	vocals := tapedeck.NewTrack("Vocals", tapedeck.TrackVocal)
	session := &tapedeck.Session{
		Tracks: []*tapedeck.Track{
			tapedeck.NewTrack("Master", tapedeck.TrackMaster),
			vocals,
		},
		Duration: 1,
		BPM:      120,
		Clips: []*tapedeck.Clip{
			{ID: "c1", TrackID: vocals.ID, Name: "take", Duration: 1, Source: "take.ogg"},
		},
	}
	path := filepath.Join(dir, "session.yml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create session file: %v", err)
	}
	if err := session.Write(f); err != nil {
		t.Fatalf("write session: %v", err)
	}
	f.Close()

	cfg := config.DefaultConfig()
	if _, err := loadSession(path, cfg); err == nil {
		t.Fatal("session with .ogg source loaded despite the format not being configured")
	}
}
