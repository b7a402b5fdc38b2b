// Command tapedeck-play plays a session file through the default audio
// device, printing the transport position while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tapedeck"
	"tapedeck/decode"
	"tapedeck/engine"
	"tapedeck/internal/config"
	"tapedeck/oto"
	"tapedeck/version"
)

func main() {
	configPath := flag.String("config", "tapedeck.toml", "Path to the configuration file; created with defaults if missing.")
	from := flag.Float64("from", 0, "Start position in seconds.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tapedeck-play [flags] session.yml")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err := run(*configPath, flag.Arg(0), *from); err != nil {
		logrus.WithError(err).Fatal("playback failed")
	}
}

func run(configPath, sessionPath string, from float64) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()

	session, err := loadSession(sessionPath, cfg)
	if err != nil {
		return err
	}

	broker := engine.NewBroker()
	model, eng, err := engine.NewModel(broker, session, cfg.Audio.SampleRate, cfg.Audio.BlockFrames)
	if err != nil {
		return err
	}

	audioContext, err := oto.NewContext(cfg.Audio.SampleRate)
	if err != nil {
		return err
	}
	defer audioContext.Close()
	sink := audioContext.Output()
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx, sink) }()

	model.PlayFrom(from)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	started := false
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			model.ProcessMessages()
			for _, a := range model.Alerts() {
				logrus.WithField("alert", a.Name).Warn(a.Message)
			}
			t := model.Transport()
			if t.Playing {
				started = true
				fmt.Printf("\r%8.2f s", t.Position)
			} else if started {
				fmt.Println()
				cancel()
				<-done
				return nil
			}
		}
	}
}

// loadSession reads the session file and decodes every clip's source audio
// at the engine rate. Clips whose media cannot be decoded stay empty; that
// is a warning, not a failure.
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
			logrus.WithFields(logrus.Fields{"clip": c.ID, "format": ext}).Warn("clip source format not enabled in config")
			continue
		}
		buf, ok := buffers[src]
		if !ok {
			if d, err := decode.Duration(src); err == nil {
				logrus.WithFields(logrus.Fields{"source": src, "duration": d}).Debug("decoding clip source")
			}
			buf, _, err = decode.File(src, cfg.Audio.SampleRate)
			if err != nil {
				logrus.WithError(err).WithField("clip", c.ID).Warn("clip source failed to decode")
				continue
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
