// Package decode turns media files into sample buffers at the engine rate.
// It understands wav, mp3 and flac, resamples everything to the requested
// rate, and reads the display name from the file's tags when present.
package decode

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"

	"tapedeck"
)

// File decodes the media file into a stereo sample buffer at targetRate.
// The returned name is the tag title when the file has one, otherwise the
// base filename. Failures return a nil buffer wrapped in a DecodeError.
func File(path string, targetRate int) (*tapedeck.SampleBuffer, string, error) {
	name := displayName(path)
	var (
		samples tapedeck.AudioBuffer
		rate    int
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		samples, rate, err = decodeWAV(path)
	case ".mp3":
		samples, rate, err = decodeMP3(path)
	case ".flac":
		samples, rate, err = decodeFLAC(path)
	default:
		return nil, name, &tapedeck.DecodeError{Path: path, Err: errUnsupported}
	}
	if err != nil {
		return nil, name, &tapedeck.DecodeError{Path: path, Err: err}
	}
	if rate != targetRate {
		logrus.WithFields(logrus.Fields{
			"path": path, "from": rate, "to": targetRate,
		}).Debug("resampling imported audio")
		samples, err = resampleBuffer(samples, rate, targetRate)
		if err != nil {
			return nil, name, &tapedeck.DecodeError{Path: path, Err: err}
		}
		rate = targetRate
	}
	return tapedeck.NewSampleBuffer(samples, rate), name, nil
}

func displayName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return name
	}
	defer f.Close()
	if md, err := tag.ReadFrom(f); err == nil && md.Title() != "" {
		return md.Title()
	}
	return name
}

// stereoFrame spreads an n-channel sample row onto two channels: mono is
// duplicated, anything beyond two channels is dropped.
func stereoFrame(row []float32) [2]float32 {
	switch len(row) {
	case 0:
		return [2]float32{}
	case 1:
		return [2]float32{row[0], row[0]}
	default:
		return [2]float32{row[0], row[1]}
	}
}

func decodeMP3(path string) (tapedeck.AudioBuffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, 0, err
	}
	// The decoder always emits 16-bit little-endian stereo.
	samples := make(tapedeck.AudioBuffer, 0, dec.Length()/4)
	var frame [4]byte
	for {
		if _, err := io.ReadFull(dec, frame[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, 0, err
		}
		l := int16(uint16(frame[0]) | uint16(frame[1])<<8)
		r := int16(uint16(frame[2]) | uint16(frame[3])<<8)
		samples = append(samples, [2]float32{
			float32(l) / 32768,
			float32(r) / 32768,
		})
	}
	return samples, dec.SampleRate(), nil
}

func decodeFLAC(path string) (tapedeck.AudioBuffer, int, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()
	rate := int(stream.Info.SampleRate)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))
	var samples tapedeck.AudioBuffer
	for {
		fr, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		n := len(fr.Subframes[0].Samples)
		row := make([]float32, len(fr.Subframes))
		for i := 0; i < n; i++ {
			for ch, sub := range fr.Subframes {
				row[ch] = float32(sub.Samples[i]) / scale
			}
			samples = append(samples, stereoFrame(row))
		}
	}
	return samples, rate, nil
}
