// Package engine contains the real-time half of the editor: the Broker that
// carries messages between the control thread and the audio thread, the
// Engine that renders the timeline (transport, clip scheduling, track chains
// and the mix bus), and the Model that owns the session data on the control
// side.
package engine

import (
	"sync"
	"time"

	"tapedeck"
)

// MaxTracks caps how many non-master tracks a session can have; the peak
// meter array in MsgToModel is fixed-size so that sending it never
// allocates.
const MaxTracks = 32

type (
	// Broker is the message hub between the Model (control thread) and the
	// Engine (audio thread). Communication is one channel per recipient;
	// sends from the audio thread are always non-blocking so that it can
	// never deadlock or stall on a slow consumer. The broker also pools
	// audio buffers so waveform data can be passed to the model without
	// allocating on the audio thread.
	Broker struct {
		ToEngine chan any
		ToModel  chan MsgToModel

		bufferPool sync.Pool
	}

	// MsgToModel is sent from the engine to the model, at least once per
	// processed buffer. The frequently sent fields (transport position and
	// peaks) are inline to avoid boxing; anything rare travels in Data.
	MsgToModel struct {
		HasTransport bool
		Position     float64
		Playing      bool
		Underruns    uint64

		NumTracks  int
		Peaks      [MaxTracks][2]float32
		MasterPeak [2]float32

		Data any
	}

	// Alert is a diagnostic surfaced to the UI; the engine cannot log on the
	// audio thread, so problems travel to the model as alerts.
	Alert struct {
		Name     string
		Message  string
		Priority AlertPriority
	}

	AlertPriority int
)

const (
	AlertInfo AlertPriority = iota
	AlertWarning
	AlertError
)

func NewBroker() *Broker {
	return &Broker{
		ToEngine:   make(chan any, 1024),
		ToModel:    make(chan MsgToModel, 1024),
		bufferPool: sync.Pool{New: func() any { return &tapedeck.AudioBuffer{} }},
	}
}

// GetAudioBuffer returns an empty buffer from the pool; return it with
// PutAudioBuffer once consumed.
func (b *Broker) GetAudioBuffer() *tapedeck.AudioBuffer {
	return b.bufferPool.Get().(*tapedeck.AudioBuffer)
}

// PutAudioBuffer resets the buffer's length (keeping capacity) and returns
// it to the pool.
func (b *Broker) PutAudioBuffer(buf *tapedeck.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend sends v to c if there is room, never blocking. Reports whether the
// value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value arrives or the timeout passes; ok is
// false on timeout or a closed channel.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}

// Messages from the model to the engine. All of them carry whole values;
// the engine applies them between rendered blocks.
type (
	startPlayMsg struct{ From float64 }
	stopMsg      struct{}
	// setPositionMsg moves the stopped playhead (scrubbing, for instance);
	// it is ignored while playing.
	setPositionMsg struct{ Position float64 }
	setLoopMsg     struct{ Loop tapedeck.Loop }
	setDurationMsg struct{ Seconds float64 }

	addTrackMsg    struct{ Unit *trackUnit }
	removeTrackMsg struct{ Index int }
	// setTrackParamsMsg updates the lightweight per-track mix parameters.
	setTrackParamsMsg struct {
		Index       int
		Volume, Pan float64
		Muted, Solo bool
		Bypass      bool
	}
	// swapChainMsg atomically replaces a track's effect chain with a
	// freshly built one. Index -1 addresses the master chain.
	swapChainMsg struct {
		Index int
		Chain *Chain
	}
	// setClipsMsg replaces a track's clip regions; if the transport is
	// running the track is rescheduled from the current position, which
	// leaves unchanged in-flight clips playing seamlessly.
	setClipsMsg struct {
		Index int
		Clips []clipRegion
	}
	// stopClipMsg cancels any scheduled playback of the clip, effective
	// within the current Process call.
	stopClipMsg struct{ ClipID string }
)
