// Package fx implements the effect node factory: a closed registry of effect
// kinds, each built as a facade node over one or more internal processing
// stages. Nodes process stereo blocks in place and are allocation-free after
// construction, so they are safe to run on the audio thread. Parameter
// updates are handed over with an atomic store and picked up at the start of
// the next block.
package fx

import (
	"fmt"
	"sync/atomic"

	"tapedeck"
)

const (
	// MaxBlockFrames is the largest block a Node processes in one pass;
	// longer buffers are chunked internally.
	MaxBlockFrames = 8192

	// smoothingSeconds is how long parameter ramps take. Short enough to
	// feel immediate, long enough to avoid audible clicks.
	smoothingSeconds = 0.03
)

// Stage is a primitive processing step inside a node: a gain scaler, a
// filter section, a dynamics processor, a convolution engine or a custom
// per-block sample processor. Stages process stereo frames in place and must
// not allocate or block.
type Stage interface {
	Process(buf tapedeck.AudioBuffer)
}

// Node is the facade over an effect's internal stage graph. However many
// stages the kind wires internally, the node presents a single input and a
// single output: Process runs the whole sub-graph over the buffer. The
// active flag is realized as a smoothed wet/dry crossfade, so an inactive
// node still runs its stages (keeping filter and envelope state warm for a
// click-free activation) but outputs the dry signal untouched.
type Node struct {
	kind       tapedeck.Kind
	sampleRate int
	stages     []Stage
	apply      applyFunc

	pending atomic.Value // tapedeck.Settings, written by the control thread
	applied tapedeck.Settings

	mix ramp // 0 = bypass, 1 = fully active
	dry tapedeck.AudioBuffer
}

type (
	buildFunc func(n *Node, s tapedeck.Settings) error
	applyFunc func(n *Node, s tapedeck.Settings)

	registryEntry struct {
		build buildFunc
		apply applyFunc
	}
)

var registry [tapedeck.NumKinds]*registryEntry

func register(kind tapedeck.Kind, e registryEntry) {
	if registry[kind] != nil {
		panic(fmt.Sprintf("fx: effect kind %v registered twice", kind))
	}
	registry[kind] = &e
}

// Build constructs the full stage graph for the kind, even when the settings
// are inactive, so that a later activation only has to ramp the crossfade.
// Unknown kinds and malformed settings fail with a ConfigurationError.
func Build(kind tapedeck.Kind, settings tapedeck.Settings, sampleRate int) (*Node, error) {
	if kind < 0 || int(kind) >= tapedeck.NumKinds || registry[kind] == nil {
		return nil, &tapedeck.ConfigurationError{Kind: kind, Reason: "unknown effect kind"}
	}
	if settings == nil {
		settings = tapedeck.DefaultSettings(kind)
	}
	if settings.Kind() != kind {
		return nil, &tapedeck.ConfigurationError{Kind: kind, Reason: fmt.Sprintf("settings are for kind %v", settings.Kind())}
	}
	if err := validate(settings); err != nil {
		return nil, err
	}
	e := registry[kind]
	n := &Node{
		kind:       kind,
		sampleRate: sampleRate,
		apply:      e.apply,
		applied:    settings,
		dry:        make(tapedeck.AudioBuffer, MaxBlockFrames),
	}
	if err := e.build(n, settings); err != nil {
		return nil, fmt.Errorf("building %v node: %w", kind, err)
	}
	if settings.IsActive() {
		n.mix.setImmediate(1)
	}
	return n, nil
}

func (n *Node) Kind() tapedeck.Kind { return n.kind }

// Settings returns the most recently handed-over settings value.
func (n *Node) Settings() tapedeck.Settings {
	if s, ok := n.pending.Load().(tapedeck.Settings); ok {
		return s
	}
	return n.applied
}

// Update hands new parameter values to the audio thread. It never
// reconstructs the stage graph; the values are picked up at the start of the
// next processed block and applied as short ramps. Safe to call from the
// control thread while audio is running.
func (n *Node) Update(settings tapedeck.Settings) error {
	if settings == nil || settings.Kind() != n.kind {
		return &tapedeck.ConfigurationError{Kind: n.kind, Reason: "settings kind mismatch in update"}
	}
	if err := validate(settings); err != nil {
		return err
	}
	n.pending.Store(settings)
	return nil
}

func (n *Node) smoothingFrames() int {
	return int(smoothingSeconds * float64(n.sampleRate))
}

// Process runs the node over the buffer in place. Called from the audio
// thread only.
func (n *Node) Process(buf tapedeck.AudioBuffer) {
	if s, ok := n.pending.Load().(tapedeck.Settings); ok && s != n.applied {
		n.applied = s
		n.apply(n, s)
		target := float32(0)
		if s.IsActive() {
			target = 1
		}
		n.mix.rampTo(target, n.smoothingFrames())
	}
	for len(buf) > 0 {
		chunk := len(buf)
		if chunk > MaxBlockFrames {
			chunk = MaxBlockFrames
		}
		n.processChunk(buf[:chunk])
		buf = buf[chunk:]
	}
}

func (n *Node) processChunk(buf tapedeck.AudioBuffer) {
	if n.mix.constantAt(1) {
		for _, st := range n.stages {
			st.Process(buf)
		}
		return
	}
	copy(n.dry[:len(buf)], buf)
	for _, st := range n.stages {
		st.Process(buf)
	}
	for i := range buf {
		m := n.mix.next()
		buf[i][0] = buf[i][0]*m + n.dry[i][0]*(1-m)
		buf[i][1] = buf[i][1]*m + n.dry[i][1]*(1-m)
	}
}

// validate rejects parameter values outside their documented ranges.
func validate(s tapedeck.Settings) error {
	bad := func(reason string) error {
		return &tapedeck.ConfigurationError{Kind: s.Kind(), Reason: reason}
	}
	switch v := s.(type) {
	case tapedeck.CompressorSettings:
		if v.Amount < 0 || v.Amount > 100 || v.Amount != v.Amount {
			return bad(fmt.Sprintf("amount %g outside [0, 100]", v.Amount))
		}
	case tapedeck.EQSettings:
		for _, g := range []float64{v.LowDB, v.MidDB, v.HighDB} {
			if g < -12 || g > 12 || g != g {
				return bad(fmt.Sprintf("band gain %g outside [-12, 12] dB", g))
			}
		}
	case tapedeck.DriveSettings:
		if v.Drive < 0 || v.Drive > 100 || v.Drive != v.Drive {
			return bad(fmt.Sprintf("drive %g outside [0, 100]", v.Drive))
		}
	case tapedeck.ReverbSettings:
		if v.Mix < 0 || v.Mix > 1 || v.Mix != v.Mix {
			return bad(fmt.Sprintf("mix %g outside [0, 1]", v.Mix))
		}
	case tapedeck.GateSettings:
		if v.ThresholdDB < -120 || v.ThresholdDB > 0 || v.ThresholdDB != v.ThresholdDB {
			return bad(fmt.Sprintf("threshold %g outside [-120, 0] dB", v.ThresholdDB))
		}
	case tapedeck.WidthSettings:
		if v.Width < 0 || v.Width > 4 || v.Width != v.Width {
			return bad(fmt.Sprintf("width %g outside [0, 4]", v.Width))
		}
	case tapedeck.LimiterSettings:
		if v.ThresholdDB < -60 || v.ThresholdDB > 0 || v.CeilingDB < -60 || v.CeilingDB > 0 {
			return bad("threshold and ceiling must be in [-60, 0] dB")
		}
	case tapedeck.PitchSettings:
		if v.Key < 0 || v.Key > 11 {
			return bad(fmt.Sprintf("key %d outside [0, 11]", v.Key))
		}
		if v.Amount < 0 || v.Amount > 100 {
			return bad(fmt.Sprintf("amount %g outside [0, 100]", v.Amount))
		}
		if v.Speed < 0 || v.Speed > 100 {
			return bad(fmt.Sprintf("speed %g outside [0, 100]", v.Speed))
		}
	}
	return nil
}
