package engine

import "tapedeck"

// renderBlock renders one chunk into buf: each track reads its scheduled
// sources, runs its chain, and the audible tracks sum into the master,
// which runs the master chain last. Chains run even when the transport is
// stopped so that effect tails and parameter ramps keep flowing.
//
// A soloed track mutes every non-solo track; mute and solo gate the track's
// contribution to the sum only, so meters still show the gated signal.
func (e *Engine) renderBlock(buf tapedeck.AudioBuffer) {
	buf.Zero()
	anySolo := false
	for _, tu := range e.tracks {
		if tu.solo {
			anySolo = true
		}
	}
	for _, tu := range e.tracks {
		scratch := tu.scratch[:len(buf)]
		scratch.Zero()
		if e.playing {
			tu.renderSources(scratch, e.frame)
		}
		tu.chain.process(scratch, tu.bypass)
		tu.measure(scratch)
		if tu.muted || (anySolo && !tu.solo) {
			continue
		}
		buf.Add(scratch)
	}
	e.master.chain.process(buf, e.master.bypass)
	e.master.measure(buf)
}
