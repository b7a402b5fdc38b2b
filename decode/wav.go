package decode

import (
	"errors"
	"os"

	"github.com/go-audio/wav"

	"tapedeck"
)

var errUnsupported = errors.New("unsupported media format")

func decodeWAV(path string) (tapedeck.AudioBuffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if pcm.Format == nil || pcm.Format.NumChannels < 1 {
		return nil, 0, errors.New("wav file has no channel format")
	}
	fl := pcm.AsFloat32Buffer()
	channels := pcm.Format.NumChannels
	frames := len(fl.Data) / channels
	samples := make(tapedeck.AudioBuffer, frames)
	for i := 0; i < frames; i++ {
		samples[i] = stereoFrame(fl.Data[i*channels : (i+1)*channels])
	}
	return samples, pcm.Format.SampleRate, nil
}
