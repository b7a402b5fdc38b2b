package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapedeck.toml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.BlockFrames != 1024 {
		t.Errorf("unexpected defaults: %+v", cfg.Audio)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file not written: %v", err)
	}
	// Loading again reads the file it just wrote.
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig (second): %v", err)
	}
	if again.Audio != cfg.Audio || again.Logging != cfg.Logging || again.Media.Dir != cfg.Media.Dir {
		t.Errorf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapedeck.toml")
	bad := `[audio]
sample_rate = 1000
block_frames = 1024
`
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("config with a 1 kHz sample rate accepted")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	cfg.Logging.Level = "chatty"
	if err := cfg.Validate(); err == nil {
		t.Error("bad log level accepted")
	}
	cfg = DefaultConfig()
	cfg.Audio.BlockFrames = 16
	if err := cfg.Validate(); err == nil {
		t.Error("tiny block size accepted")
	}
}

func TestIsFormatSupported(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsFormatSupported(".wav") {
		t.Error(".wav should be supported by default")
	}
	if cfg.IsFormatSupported(".ogg") {
		t.Error(".ogg is not in the default formats")
	}
}
