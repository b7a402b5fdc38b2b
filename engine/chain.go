package engine

import (
	"fmt"
	"math"

	"tapedeck"
	"tapedeck/fx"
)

// Chain is a track's live audio graph: the effect nodes in chain order,
// terminated by the volume/pan stage. Chains are built on the control
// thread and handed to the engine whole, so a rebuild can never expose a
// half-wired graph to the audio thread.
type Chain struct {
	nodes   []*fx.Node
	gainpan *fx.GainPan
}

// BuildChain constructs the full chain for the track's active effect list.
// On any error the prior live chain is unaffected; the caller simply keeps
// it.
func BuildChain(t *tapedeck.Track, sampleRate int) (*Chain, error) {
	c := &Chain{gainpan: fx.NewGainPan(t.Volume, t.Pan, sampleRate)}
	for _, kind := range t.Effects {
		node, err := fx.Build(kind, t.EffectSettings(kind), sampleRate)
		if err != nil {
			return nil, err
		}
		c.nodes = append(c.nodes, node)
	}
	return c, nil
}

// Update pushes the track's current settings into the already-built nodes
// without structural changes. Volume and pan are not handled here: they are
// owned by the audio thread and travel as a track-params message.
func (c *Chain) Update(t *tapedeck.Track) error {
	for _, node := range c.nodes {
		if err := node.Update(t.EffectSettings(node.Kind())); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOne pushes one settings value into the matching node. Reports
// whether a node of that kind exists in the chain.
func (c *Chain) UpdateOne(s tapedeck.Settings) (bool, error) {
	for _, node := range c.nodes {
		if node.Kind() == s.Kind() {
			return true, node.Update(s)
		}
	}
	return false, nil
}

// process runs the chain over the buffer. bypass skips the effect nodes but
// never the volume/pan stage.
func (c *Chain) process(buf tapedeck.AudioBuffer, bypass bool) {
	if !bypass {
		for _, node := range c.nodes {
			node.Process(buf)
		}
	}
	c.gainpan.Process(buf)
}

// clipRegion is the engine-side definition of one clip: a span on the
// timeline reading from an immutable sample buffer. All times are in
// seconds; the scheduler converts them to frames when playback starts.
type clipRegion struct {
	ID       string
	Start    float64
	Duration float64
	Offset   float64
	Buffer   *tapedeck.SampleBuffer
}

// scheduledSource is one clip materialized against the engine clock: play
// frames [Start, End) of the clock, reading the buffer from SrcStart.
type scheduledSource struct {
	ClipID   string
	Start    int64
	End      int64
	SrcStart int64
	Buffer   *tapedeck.SampleBuffer
}

// trackUnit is the audio-thread state of one track. It is constructed on
// the control thread (allocating its scratch buffers) and handed to the
// engine in an addTrackMsg; after that only the audio thread touches it,
// except for the chain's own atomic parameter handoffs.
type trackUnit struct {
	id    string
	chain *Chain

	muted, solo, bypass bool

	clips   []clipRegion
	sources []scheduledSource

	scratch tapedeck.AudioBuffer
	meterL  []float32
	meterR  []float32
	peak    [2]float32
}

func newTrackUnit(id string, chain *Chain, blockFrames int) *trackUnit {
	return &trackUnit{
		id:      id,
		chain:   chain,
		scratch: make(tapedeck.AudioBuffer, blockFrames),
		meterL:  make([]float32, blockFrames),
		meterR:  make([]float32, blockFrames),
		sources: make([]scheduledSource, 0, 64),
	}
}

// schedule materializes every clip whose span intersects [from, inf) against
// the engine clock. Clips starting at or after from begin at
// engineFrame + (clip.Start-from); clips already underway at from begin
// immediately with the extra source offset from-clip.Start.
func (tu *trackUnit) schedule(from float64, engineFrame int64, sampleRate int) {
	tu.sources = tu.sources[:0]
	sr := float64(sampleRate)
	toFrames := func(seconds float64) int64 { return int64(math.Round(seconds * sr)) }
	for _, c := range tu.clips {
		if c.Buffer == nil || c.Duration <= 0 || c.Start+c.Duration <= from {
			continue
		}
		var src scheduledSource
		src.ClipID = c.ID
		src.Buffer = c.Buffer
		// The end frame is derived from the absolute end time, not from the
		// duration, so that clips split at a position quantize to contiguous
		// frame spans.
		src.End = engineFrame + toFrames(c.Start+c.Duration-from)
		if c.Start >= from {
			src.Start = engineFrame + toFrames(c.Start-from)
			src.SrcStart = toFrames(c.Offset)
		} else {
			src.Start = engineFrame
			src.SrcStart = toFrames(c.Offset + (from - c.Start))
		}
		if src.End > src.Start {
			tu.sources = append(tu.sources, src)
		}
	}
}

func (tu *trackUnit) cancelSources() {
	tu.sources = tu.sources[:0]
}

func (tu *trackUnit) stopClip(id string) {
	for i := 0; i < len(tu.sources); {
		if tu.sources[i].ClipID == id {
			tu.sources = append(tu.sources[:i], tu.sources[i+1:]...)
			continue
		}
		i++
	}
	for i := 0; i < len(tu.clips); {
		if tu.clips[i].ID == id {
			tu.clips = append(tu.clips[:i], tu.clips[i+1:]...)
			continue
		}
		i++
	}
}

// renderSources mixes every scheduled source overlapping the frame range
// [frame, frame+len(buf)) into the buffer.
func (tu *trackUnit) renderSources(buf tapedeck.AudioBuffer, frame int64) {
	frameEnd := frame + int64(len(buf))
	for _, src := range tu.sources {
		if src.End <= frame || src.Start >= frameEnd {
			continue
		}
		from, to := frame, frameEnd
		if src.Start > from {
			from = src.Start
		}
		if src.End < to {
			to = src.End
		}
		bufOff := int(from - frame)
		srcIdx := int(src.SrcStart + (from - src.Start))
		for i := 0; i < int(to-from); i++ {
			f := src.Buffer.At(srcIdx + i)
			buf[bufOff+i][0] += f[0]
			buf[bufOff+i][1] += f[1]
		}
	}
}

func (tu *trackUnit) String() string {
	return fmt.Sprintf("track %s (%d clips, %d scheduled)", tu.id, len(tu.clips), len(tu.sources))
}
