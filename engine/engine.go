package engine

import (
	"context"
	"math"
	"time"

	"tapedeck"
)

// Engine renders the timeline on the audio thread. All mutable state is
// owned by the goroutine calling Process; the only way in is the broker's
// ToEngine channel, drained at the start of every call, and the only way
// out is the non-blocking snapshot sent to ToModel after every call.
//
// The clock is a monotonic frame counter that never rewinds, even across
// loop wraps and reschedules: scheduled sources are expressed against it,
// so replacing a track's clips mid-flight keeps the time-to-sample mapping
// of untouched clips intact and produces no seam.
type Engine struct {
	broker      *Broker
	sampleRate  int
	blockFrames int

	tracks []*trackUnit
	master *trackUnit

	playing  bool
	frame    int64 // monotonic engine clock
	pos      int64 // timeline position, frames
	playFrom float64
	loop     tapedeck.Loop
	duration int64 // timeline length, frames

	underruns uint64
}

func NewEngine(broker *Broker, sampleRate, blockFrames int, master *Chain) *Engine {
	e := &Engine{
		broker:      broker,
		sampleRate:  sampleRate,
		blockFrames: blockFrames,
	}
	e.master = newTrackUnit("master", master, blockFrames)
	return e
}

func (e *Engine) SampleRate() int { return e.sampleRate }

// Playing reports the transport state. Only meaningful on the goroutine
// driving Process; the model observes transport through snapshots instead.
func (e *Engine) Playing() bool { return e.playing }

func (e *Engine) frames(seconds float64) int64 {
	return int64(math.Round(seconds * float64(e.sampleRate)))
}

func (e *Engine) seconds(frames int64) float64 {
	return float64(frames) / float64(e.sampleRate)
}

// Process renders len(buf) frames of the mix into buf. Pending control
// messages are applied first, then the block is rendered in chunks that
// never straddle a loop or end-of-timeline boundary, so wraps land on the
// exact frame.
func (e *Engine) Process(buf tapedeck.AudioBuffer) {
	started := time.Now()
	e.processMessages()

	rendered := 0
	for rendered < len(buf) {
		chunk := len(buf) - rendered
		if chunk > e.blockFrames {
			chunk = e.blockFrames
		}
		if e.playing {
			if b := e.boundary(); b > e.pos && int64(chunk) > b-e.pos {
				chunk = int(b - e.pos)
			}
		}
		e.renderBlock(buf[rendered : rendered+chunk])
		e.frame += int64(chunk)
		if e.playing {
			e.pos += int64(chunk)
			e.atBoundary()
		}
		rendered += chunk
	}

	budget := time.Duration(len(buf)) * time.Second / time.Duration(e.sampleRate)
	if time.Since(started) > budget {
		e.underruns++
	}
	e.sendSnapshot()
}

// boundary returns the next timeline frame where rendering must break:
// the loop end when looping toward it, otherwise the end of the timeline.
func (e *Engine) boundary() int64 {
	if e.loop.Active {
		if end := e.frames(e.loop.End); e.pos < end && end <= e.duration {
			return end
		}
	}
	return e.duration
}

func (e *Engine) atBoundary() {
	if e.loop.Active && e.pos == e.frames(e.loop.End) && e.pos <= e.duration {
		e.pos = e.frames(e.loop.Start)
		for _, tu := range e.tracks {
			tu.schedule(e.loop.Start, e.frame, e.sampleRate)
		}
		return
	}
	if e.pos >= e.duration {
		e.playing = false
		e.pos = 0
		e.playFrom = 0
		for _, tu := range e.tracks {
			tu.cancelSources()
		}
	}
}

func (e *Engine) startPlay(from float64) {
	e.playing = true
	e.playFrom = from
	e.pos = e.frames(from)
	for _, tu := range e.tracks {
		tu.schedule(from, e.frame, e.sampleRate)
	}
}

func (e *Engine) stop() {
	if !e.playing {
		return
	}
	e.playing = false
	e.pos = e.frames(e.playFrom)
	for _, tu := range e.tracks {
		tu.cancelSources()
	}
}

func (e *Engine) processMessages() {
loop:
	for {
		select {
		case msg := <-e.broker.ToEngine:
			e.handleMessage(msg)
		default:
			break loop
		}
	}
}

func (e *Engine) handleMessage(msg any) {
	switch m := msg.(type) {
	case startPlayMsg:
		e.startPlay(m.From)
	case stopMsg:
		e.stop()
	case setPositionMsg:
		if !e.playing {
			e.pos = e.frames(m.Position)
			e.playFrom = m.Position
		}
	case setLoopMsg:
		e.loop = m.Loop
	case setDurationMsg:
		e.duration = e.frames(m.Seconds)
	case addTrackMsg:
		if len(e.tracks) >= MaxTracks {
			return
		}
		e.tracks = append(e.tracks, m.Unit)
		if e.playing {
			m.Unit.schedule(e.seconds(e.pos), e.frame, e.sampleRate)
		}
	case removeTrackMsg:
		if m.Index < 0 || m.Index >= len(e.tracks) {
			return
		}
		e.tracks = append(e.tracks[:m.Index], e.tracks[m.Index+1:]...)
	case setTrackParamsMsg:
		tu := e.unitAt(m.Index)
		if tu == nil {
			return
		}
		tu.muted, tu.solo, tu.bypass = m.Muted, m.Solo, m.Bypass
		tu.chain.gainpan.Set(m.Volume, m.Pan)
	case swapChainMsg:
		tu := e.unitAt(m.Index)
		if tu == nil {
			return
		}
		tu.chain = m.Chain
	case setClipsMsg:
		tu := e.unitAt(m.Index)
		if tu == nil {
			return
		}
		tu.clips = m.Clips
		if e.playing {
			tu.schedule(e.seconds(e.pos), e.frame, e.sampleRate)
		} else {
			tu.cancelSources()
		}
	case stopClipMsg:
		for _, tu := range e.tracks {
			tu.stopClip(m.ClipID)
		}
	}
}

func (e *Engine) unitAt(index int) *trackUnit {
	if index == -1 {
		return e.master
	}
	if index < 0 || index >= len(e.tracks) {
		return nil
	}
	return e.tracks[index]
}

func (e *Engine) sendSnapshot() {
	msg := MsgToModel{
		HasTransport: true,
		Position:     e.seconds(e.pos),
		Playing:      e.playing,
		Underruns:    e.underruns,
		NumTracks:    len(e.tracks),
		MasterPeak:   e.master.peak,
	}
	for i, tu := range e.tracks {
		msg.Peaks[i] = tu.peak
	}
	TrySend(e.broker.ToModel, msg)
}

// Run renders blocks into the sink until the context is canceled or the
// sink fails. The sink's backpressure paces rendering against real time;
// this is the audio thread's main loop.
func (e *Engine) Run(ctx context.Context, sink tapedeck.AudioSink) error {
	buf := make(tapedeck.AudioBuffer, e.blockFrames)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.Process(buf)
		if err := sink.WriteAudio(buf); err != nil {
			return err
		}
	}
}
