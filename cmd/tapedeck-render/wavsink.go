package main

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"tapedeck"
)

// wavSink writes rendered buffers to a 16-bit stereo wav file.
type wavSink struct {
	file    *os.File
	encoder *wav.Encoder
	ints    []int
}

func newWAVSink(path string, sampleRate int) (*wavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &wavSink{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, 16, 2, 1),
	}, nil
}

func (s *wavSink) WriteAudio(buffer tapedeck.AudioBuffer) error {
	if cap(s.ints) < len(buffer)*2 {
		s.ints = make([]int, len(buffer)*2)
	}
	s.ints = s.ints[:len(buffer)*2]
	for i, frame := range buffer {
		s.ints[i*2] = clamp16(frame[0])
		s.ints[i*2+1] = clamp16(frame[1])
	}
	return s.encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: s.encoder.SampleRate},
		SourceBitDepth: 16,
		Data:           s.ints,
	})
}

func (s *wavSink) Close() error {
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func clamp16(v float32) int {
	switch {
	case v <= -1:
		return -32767
	case v >= 1:
		return 32767
	default:
		return int(v * 32767)
	}
}
