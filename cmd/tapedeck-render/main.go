// Command tapedeck-render renders a session file offline, through exactly
// the same engine path as live playback, and writes the mix as a wav file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"tapedeck"
	"tapedeck/decode"
	"tapedeck/engine"
	"tapedeck/internal/config"
	"tapedeck/version"
)

func main() {
	configPath := flag.String("config", "tapedeck.toml", "Path to the configuration file; created with defaults if missing.")
	output := flag.String("o", "", "Output wav file. Defaults to the session file name with a .wav extension.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tapedeck-render [flags] session.yml")
		flag.PrintDefaults()
		os.Exit(1)
	}
	sessionPath := flag.Arg(0)
	if *output == "" {
		*output = strings.TrimSuffix(sessionPath, filepath.Ext(sessionPath)) + ".wav"
	}
	if err := render(*configPath, sessionPath, *output); err != nil {
		logrus.WithError(err).Fatal("render failed")
	}
}

func render(configPath, sessionPath, outputPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()

	session, err := loadSession(sessionPath, cfg)
	if err != nil {
		return err
	}
	// Looping forever makes no sense offline.
	session.Loop = tapedeck.Loop{}

	broker := engine.NewBroker()
	model, eng, err := engine.NewModel(broker, session, cfg.Audio.SampleRate, cfg.Audio.BlockFrames)
	if err != nil {
		return err
	}

	sink, err := newWAVSink(outputPath, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	model.PlayFrom(0)
	buf := make(tapedeck.AudioBuffer, cfg.Audio.BlockFrames)
	for {
		// The block that crosses the end of the timeline carries the last
		// real audio and flips the transport off, so write before testing.
		eng.Process(buf)
		if err := sink.WriteAudio(buf); err != nil {
			sink.Close()
			return err
		}
		model.ProcessMessages()
		if !eng.Playing() {
			break
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"output":   outputPath,
		"duration": session.Duration,
	}).Info("render complete")
	return nil
}

// loadSession reads the session file and decodes every clip's source audio
// at the engine rate. Offline, a clip that fails to decode is a hard error:
// rendering a mix with silently missing audio helps nobody.
func loadSession(path string, cfg *config.Config) (*tapedeck.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	session, err := tapedeck.ReadSession(f)
	if err != nil {
		return nil, err
	}
	buffers := make(map[string]*tapedeck.SampleBuffer)
	for _, c := range session.Clips {
		if c.Source == "" {
			continue
		}
		src := resolveSource(c.Source, filepath.Dir(path), cfg)
		if ext := strings.ToLower(filepath.Ext(src)); !cfg.IsFormatSupported(ext) {
			return nil, fmt.Errorf("clip %s: source format %q not enabled in config", c.ID, ext)
		}
		buf, ok := buffers[src]
		if !ok {
			buf, _, err = decode.File(src, cfg.Audio.SampleRate)
			if err != nil {
				return nil, err
			}
			buffers[src] = buf
		}
		c.Buffer = buf
	}
	return session, nil
}

// resolveSource resolves a clip's media path: absolute paths stand, relative
// ones are tried next to the session file and then in the configured media
// directory.
func resolveSource(source, sessionDir string, cfg *config.Config) string {
	if filepath.IsAbs(source) {
		return source
	}
	src := filepath.Join(sessionDir, source)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return filepath.Join(cfg.Media.Dir, source)
	}
	return src
}
