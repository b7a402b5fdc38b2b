package decode

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	tcmp3 "github.com/tcolgate/mp3"

	"tapedeck"
)

// Duration probes the playing time of a media file without decoding its
// PCM. wav and flac carry it in their headers; for mp3 the frame headers
// are walked, which handles variable bitrate files correctly.
func Duration(path string) (time.Duration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3Duration(path)
	case ".wav":
		return wavDuration(path)
	case ".flac":
		return flacDuration(path)
	default:
		return 0, &tapedeck.DecodeError{Path: path, Err: errUnsupported}
	}
}

func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	d, err := wav.NewDecoder(f).Duration()
	if err != nil {
		return 0, &tapedeck.DecodeError{Path: path, Err: err}
	}
	return d, nil
}

func flacDuration(path string) (time.Duration, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return 0, &tapedeck.DecodeError{Path: path, Err: err}
	}
	defer stream.Close()
	info := stream.Info
	if info.SampleRate == 0 {
		return 0, nil
	}
	return time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate), nil
}

func mp3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := tcmp3.NewDecoder(f)
	var (
		frame   tcmp3.Frame
		skipped int
		total   time.Duration
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			return 0, &tapedeck.DecodeError{Path: path, Err: err}
		}
		total += frame.Duration()
	}
	return total, nil
}
