// Package oto adapts the oto audio library to the engine's AudioContext
// and AudioSink interfaces.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"

	"tapedeck"
)

type (
	// OtoContext wraps the process-wide oto context. There can be only one;
	// create it once and close it when the program exits.
	OtoContext struct {
		context *oto.Context
	}

	// OtoOutput feeds rendered buffers to an oto player through a pipe. The
	// player pulls from its end on the device's schedule, so WriteAudio
	// blocks when the device is ahead, pacing the render loop to real time.
	OtoOutput struct {
		player    *oto.Player
		pipe      *io.PipeWriter
		tmpBuffer []byte
	}
)

func NewContext(sampleRate int) (*OtoContext, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context}, nil
}

func (c *OtoContext) Output() tapedeck.AudioSink {
	pr, pw := io.Pipe()
	player := c.context.NewPlayer(pr)
	player.Play()
	return &OtoOutput{player: player, pipe: pw}
}

// Close is a no-op: the underlying oto context cannot be closed, it lives
// for the rest of the process.
func (c *OtoContext) Close() error { return nil }

func (o *OtoOutput) WriteAudio(buffer tapedeck.AudioBuffer) error {
	o.tmpBuffer = floatBufferToBytes(buffer, o.tmpBuffer[:0])
	if _, err := o.pipe.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

func (o *OtoOutput) Close() error {
	o.pipe.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
