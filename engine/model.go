package engine

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tapedeck"
	"tapedeck/decode"
)

// Model owns the session data and runs on the control thread. Every edit
// goes through it: it mutates the session, rebuilds or updates the affected
// live chains, and tells the engine about structural changes through the
// broker. The engine never reads the session; the model never touches
// engine state directly.
//
// The engine addresses tracks by index; the model keeps the engine's track
// order identical to the order of non-master tracks in the session, so the
// index is always derivable.
type Model struct {
	session     *tapedeck.Session
	broker      *Broker
	sampleRate  int
	blockFrames int

	// chains holds the live chain per track id (master included). The model
	// keeps these references after handing them to the engine so that
	// parameter edits can be pushed into the running nodes without a
	// rebuild.
	chains map[string]*Chain

	transport  MsgToModel
	alerts     []Alert
	resumePlay bool

	log *logrus.Entry
}

// NewModel builds the live chains and track units for the session and
// primes the engine with them. The session must already carry its decoded
// buffers; ReadSession leaves them nil and the caller attaches them.
func NewModel(broker *Broker, session *tapedeck.Session, sampleRate, blockFrames int) (*Model, *Engine, error) {
	if err := session.Validate(); err != nil {
		return nil, nil, err
	}
	m := &Model{
		session:     session,
		broker:      broker,
		sampleRate:  sampleRate,
		blockFrames: blockFrames,
		chains:      make(map[string]*Chain),
		log:         logrus.WithField("component", "model"),
	}
	master := session.Master()
	masterChain, err := BuildChain(master, sampleRate)
	if err != nil {
		return nil, nil, err
	}
	m.chains[master.ID] = masterChain
	engine := NewEngine(broker, sampleRate, blockFrames, masterChain)
	engine.master.bypass = master.Bypass

	for _, t := range session.Tracks {
		if t.Kind == tapedeck.TrackMaster {
			continue
		}
		chain, err := BuildChain(t, sampleRate)
		if err != nil {
			return nil, nil, err
		}
		m.chains[t.ID] = chain
		unit := newTrackUnit(t.ID, chain, blockFrames)
		unit.muted, unit.solo, unit.bypass = t.Muted, t.Solo, t.Bypass
		unit.clips = m.regionsFor(t.ID)
		m.send(addTrackMsg{Unit: unit})
	}
	m.send(setDurationMsg{Seconds: session.Duration})
	m.send(setLoopMsg{Loop: session.Loop})
	m.send(setPositionMsg{Position: session.Position})
	return m, engine, nil
}

func (m *Model) Session() *tapedeck.Session { return m.session }

func (m *Model) send(msg any) {
	if !TrySend(m.broker.ToEngine, msg) {
		m.log.Warn("engine message queue full, dropping message")
	}
}

// trackIndex returns the engine index of the track, -1 for the master.
func (m *Model) trackIndex(id string) int {
	idx := 0
	for _, t := range m.session.Tracks {
		if t.Kind == tapedeck.TrackMaster {
			if t.ID == id {
				return -1
			}
			continue
		}
		if t.ID == id {
			return idx
		}
		idx++
	}
	return -1
}

func (m *Model) track(id string) (*tapedeck.Track, error) {
	if t := m.session.Track(id); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("unknown track %s", id)
}

func (m *Model) clip(id string) (*tapedeck.Clip, error) {
	if c := m.session.Clip(id); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("unknown clip %s", id)
}

func (m *Model) regionsFor(trackID string) []clipRegion {
	var regions []clipRegion
	for _, c := range m.session.TrackClips(trackID) {
		if c.Empty() {
			continue
		}
		regions = append(regions, clipRegion{
			ID:       c.ID,
			Start:    c.Start,
			Duration: c.Duration,
			Offset:   c.Offset,
			Buffer:   c.Buffer,
		})
	}
	return regions
}

func (m *Model) syncClips(trackID string) {
	m.send(setClipsMsg{Index: m.trackIndex(trackID), Clips: m.regionsFor(trackID)})
}

func (m *Model) sendTrackParams(t *tapedeck.Track) {
	m.send(setTrackParamsMsg{
		Index:  m.trackIndex(t.ID),
		Volume: t.Volume, Pan: t.Pan,
		Muted: t.Muted, Solo: t.Solo, Bypass: t.Bypass,
	})
}

// rebuildChain constructs a fresh chain for the track's current state and
// swaps it into the engine. On a build error the previous chain stays live
// and the error is returned.
func (m *Model) rebuildChain(t *tapedeck.Track) error {
	chain, err := BuildChain(t, m.sampleRate)
	if err != nil {
		return err
	}
	m.chains[t.ID] = chain
	m.send(swapChainMsg{Index: m.trackIndex(t.ID), Chain: chain})
	return nil
}

// --- tracks ---

func (m *Model) AddTrack(name string, kind tapedeck.TrackKind) (*tapedeck.Track, error) {
	if kind == tapedeck.TrackMaster {
		return nil, fmt.Errorf("session already has a master track")
	}
	if m.numTracks() >= MaxTracks {
		return nil, fmt.Errorf("track limit of %d reached", MaxTracks)
	}
	t := tapedeck.NewTrack(name, kind)
	chain, err := BuildChain(t, m.sampleRate)
	if err != nil {
		return nil, err
	}
	m.session.Tracks = append(m.session.Tracks, t)
	m.chains[t.ID] = chain
	unit := newTrackUnit(t.ID, chain, m.blockFrames)
	m.send(addTrackMsg{Unit: unit})
	return t, nil
}

// DuplicateTrack copies the track with its effect chain and clips. The new
// clips share the originals' sample buffers.
func (m *Model) DuplicateTrack(id string) (*tapedeck.Track, error) {
	src, err := m.track(id)
	if err != nil {
		return nil, err
	}
	if src.Kind == tapedeck.TrackMaster {
		return nil, fmt.Errorf("cannot duplicate the master track")
	}
	if m.numTracks() >= MaxTracks {
		return nil, fmt.Errorf("track limit of %d reached", MaxTracks)
	}
	t := src.Copy()
	t.ID = uuid.NewString()
	t.Name = src.Name + " copy"
	chain, err := BuildChain(t, m.sampleRate)
	if err != nil {
		return nil, err
	}
	m.session.Tracks = append(m.session.Tracks, t)
	m.chains[t.ID] = chain
	for _, c := range m.session.TrackClips(id) {
		dup := c.Copy()
		dup.TrackID = t.ID
		m.session.Clips = append(m.session.Clips, dup)
	}
	unit := newTrackUnit(t.ID, chain, m.blockFrames)
	unit.muted, unit.solo, unit.bypass = t.Muted, t.Solo, t.Bypass
	unit.clips = m.regionsFor(t.ID)
	m.send(addTrackMsg{Unit: unit})
	m.sendTrackParams(t)
	return t, nil
}

func (m *Model) DeleteTrack(id string) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	if t.Kind == tapedeck.TrackMaster {
		return fmt.Errorf("cannot delete the master track")
	}
	m.send(removeTrackMsg{Index: m.trackIndex(id)})
	for i, st := range m.session.Tracks {
		if st.ID == id {
			m.session.Tracks = append(m.session.Tracks[:i], m.session.Tracks[i+1:]...)
			break
		}
	}
	kept := m.session.Clips[:0]
	for _, c := range m.session.Clips {
		if c.TrackID != id {
			kept = append(kept, c)
		}
	}
	m.session.Clips = kept
	delete(m.chains, id)
	return nil
}

func (m *Model) RenameTrack(id, name string) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	t.Name = name
	return nil
}

func (m *Model) SetTrackVolume(id string, volume float64) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	t.Volume = volume
	m.sendTrackParams(t)
	return nil
}

func (m *Model) SetTrackPan(id string, pan float64) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	t.Pan = pan
	m.sendTrackParams(t)
	return nil
}

func (m *Model) SetTrackMuted(id string, muted bool) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	t.Muted = muted
	m.sendTrackParams(t)
	return nil
}

func (m *Model) SetTrackSolo(id string, solo bool) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	t.Solo = solo
	m.sendTrackParams(t)
	return nil
}

// SetTrackBypass toggles the whole chain in or out. Re-engaging rebuilds
// the chain so that no stale filter state or reverb tail from before the
// bypass leaks into the output.
func (m *Model) SetTrackBypass(id string, bypass bool) error {
	t, err := m.track(id)
	if err != nil {
		return err
	}
	if t.Bypass == bypass {
		return nil
	}
	t.Bypass = bypass
	if !bypass {
		if err := m.rebuildChain(t); err != nil {
			t.Bypass = !bypass
			return err
		}
	}
	m.sendTrackParams(t)
	return nil
}

// --- effects ---

func (m *Model) AddEffect(trackID string, kind tapedeck.Kind) error {
	t, err := m.track(trackID)
	if err != nil {
		return err
	}
	backup := t.Copy()
	if err := t.AddEffect(kind); err != nil {
		return err
	}
	if err := m.rebuildChain(t); err != nil {
		*t = *backup
		return err
	}
	return nil
}

func (m *Model) RemoveEffect(trackID string, kind tapedeck.Kind) error {
	t, err := m.track(trackID)
	if err != nil {
		return err
	}
	if !t.RemoveEffect(kind) {
		return fmt.Errorf("effect %v is not on track %s", kind, trackID)
	}
	return m.rebuildChain(t)
}

// MoveEffect moves the effect at position from to position to in the
// track's chain order.
func (m *Model) MoveEffect(trackID string, from, to int) error {
	t, err := m.track(trackID)
	if err != nil {
		return err
	}
	if from < 0 || from >= len(t.Effects) || to < 0 || to >= len(t.Effects) {
		return fmt.Errorf("effect position out of range")
	}
	if from == to {
		return nil
	}
	kind := t.Effects[from]
	t.Effects = append(t.Effects[:from], t.Effects[from+1:]...)
	t.Effects = append(t.Effects[:to], append([]tapedeck.Kind{kind}, t.Effects[to:]...)...)
	return m.rebuildChain(t)
}

// SetEffect updates one effect's parameters. Identical values are a no-op;
// otherwise the new settings are stored and, if the effect is live on the
// track, handed to its running node without a rebuild.
func (m *Model) SetEffect(trackID string, s tapedeck.Settings) error {
	t, err := m.track(trackID)
	if err != nil {
		return err
	}
	if t.EffectSettings(s.Kind()) == s {
		return nil
	}
	// A kind not on the track has no node; the settings are still stored so
	// that adding the effect later starts from them.
	if _, err := m.chains[trackID].UpdateOne(s); err != nil {
		return err
	}
	if t.Settings == nil {
		t.Settings = make(map[tapedeck.Kind]tapedeck.Settings)
	}
	t.Settings[s.Kind()] = s
	return nil
}

// --- clips ---

// ImportClip decodes the media file and places a clip for it at the snapped
// start position. A file that cannot be decoded still yields an empty clip
// on the timeline, so the session keeps the reference, and the decode error
// is returned alongside it.
func (m *Model) ImportClip(trackID, path string, start float64) (*tapedeck.Clip, error) {
	t, err := m.track(trackID)
	if err != nil {
		return nil, err
	}
	if t.Kind == tapedeck.TrackMaster {
		return nil, fmt.Errorf("cannot place clips on the master track")
	}
	start = m.session.SnapTime(start)
	if start < 0 {
		start = 0
	}
	buffer, name, derr := decode.File(path, m.sampleRate)
	clip := tapedeck.NewClip(trackID, name, buffer, start)
	clip.Source = path
	if derr != nil {
		m.log.WithError(derr).WithField("path", path).Warn("import failed, placing empty clip")
		m.session.Clips = append(m.session.Clips, clip)
		return clip, derr
	}
	if err := m.session.CheckPlacement(clip, clip.Start, clip.Duration); err != nil {
		return nil, err
	}
	m.session.Clips = append(m.session.Clips, clip)
	m.syncClips(trackID)
	m.log.WithFields(logrus.Fields{"clip": clip.ID, "duration": clip.Duration}).Info("imported clip")
	return clip, nil
}

// MoveClip drags the clip to a new start position, snapping to the grid and
// clamping against its neighbors.
func (m *Model) MoveClip(id string, start float64) error {
	c, err := m.clip(id)
	if err != nil {
		return err
	}
	start = m.session.ClampMove(c, m.session.SnapTime(start))
	if err := m.session.CheckPlacement(c, start, c.Duration); err != nil {
		return err
	}
	c.Start = start
	m.syncClips(c.TrackID)
	return nil
}

// ResizeClip trims the clip to the span [start, start+duration). The span
// must stay inside the source buffer; trimming the left edge advances the
// source offset so the audio under the playhead does not move.
func (m *Model) ResizeClip(id string, start, duration float64) error {
	c, err := m.clip(id)
	if err != nil {
		return err
	}
	if c.Buffer == nil {
		return fmt.Errorf("clip %s has no audio to resize", id)
	}
	offset := c.Offset + (start - c.Start)
	if offset < 0 || duration <= 0 || offset+duration > c.Buffer.Duration()+1e-9 {
		return fmt.Errorf("resize of clip %s exceeds its source", id)
	}
	if err := m.session.CheckPlacement(c, start, duration); err != nil {
		return err
	}
	c.Start, c.Duration, c.Offset = start, duration, offset
	m.syncClips(c.TrackID)
	return nil
}

// SplitClip cuts the clip at the snapped timeline position and returns the
// right-hand part.
func (m *Model) SplitClip(id string, at float64) (*tapedeck.Clip, error) {
	c, err := m.clip(id)
	if err != nil {
		return nil, err
	}
	right, err := c.Split(m.session.SnapTime(at))
	if err != nil {
		return nil, err
	}
	m.session.Clips = append(m.session.Clips, right)
	m.syncClips(c.TrackID)
	return right, nil
}

// MergeClips rejoins two clips produced by a split.
func (m *Model) MergeClips(leftID, rightID string) error {
	left, err := m.clip(leftID)
	if err != nil {
		return err
	}
	right, err := m.clip(rightID)
	if err != nil {
		return err
	}
	if left.TrackID != right.TrackID {
		return fmt.Errorf("clips %s and %s are on different tracks", leftID, rightID)
	}
	if err := left.Merge(right); err != nil {
		return err
	}
	m.removeClip(rightID)
	m.syncClips(left.TrackID)
	return nil
}

// DeleteClip removes the clip. The stop message reaches the engine before
// any reschedule, so a clip deleted mid-playback falls silent within the
// current buffer.
func (m *Model) DeleteClip(id string) error {
	c, err := m.clip(id)
	if err != nil {
		return err
	}
	m.send(stopClipMsg{ClipID: id})
	m.removeClip(id)
	m.syncClips(c.TrackID)
	return nil
}

func (m *Model) removeClip(id string) {
	for i, c := range m.session.Clips {
		if c.ID == id {
			m.session.Clips = append(m.session.Clips[:i], m.session.Clips[i+1:]...)
			return
		}
	}
}

// FadeClip renders fade-in and fade-out ramps into a private copy of the
// clip's buffer. Other clips sharing the source keep the original.
func (m *Model) FadeClip(id string, fadeIn, fadeOut float64) error {
	c, err := m.clip(id)
	if err != nil {
		return err
	}
	if c.Buffer == nil {
		return fmt.Errorf("clip %s has no audio", id)
	}
	c.Buffer = c.Buffer.Faded(fadeIn, fadeOut)
	m.syncClips(c.TrackID)
	return nil
}

// NormalizeClip scales a private copy of the clip's buffer so its peak hits
// the given level.
func (m *Model) NormalizeClip(id string, peak float32) error {
	c, err := m.clip(id)
	if err != nil {
		return err
	}
	if c.Buffer == nil {
		return fmt.Errorf("clip %s has no audio", id)
	}
	c.Buffer = c.Buffer.Normalized(peak)
	m.syncClips(c.TrackID)
	return nil
}

// ReverseClip replaces the clip's buffer with a reversed copy and remaps
// the offset so the clip plays the same source region backwards.
func (m *Model) ReverseClip(id string) error {
	c, err := m.clip(id)
	if err != nil {
		return err
	}
	if c.Buffer == nil {
		return fmt.Errorf("clip %s has no audio", id)
	}
	reversed := c.Buffer.Reversed()
	c.Offset = c.Buffer.Duration() - (c.Offset + c.Duration)
	if c.Offset < 0 {
		c.Offset = 0
	}
	c.Buffer = reversed
	m.syncClips(c.TrackID)
	return nil
}

// --- transport ---

func (m *Model) Play() {
	m.send(startPlayMsg{From: m.session.Position})
}

func (m *Model) PlayFrom(pos float64) {
	m.session.Position = pos
	m.send(startPlayMsg{From: pos})
}

func (m *Model) Stop() {
	m.send(stopMsg{})
}

func (m *Model) SetPosition(pos float64) {
	if pos < 0 {
		pos = 0
	}
	m.session.Position = pos
	m.send(setPositionMsg{Position: pos})
}

// ScrubBegin suspends playback while the user drags the playhead.
func (m *Model) ScrubBegin() {
	m.resumePlay = m.transport.Playing
	if m.resumePlay {
		m.send(stopMsg{})
	}
}

func (m *Model) ScrubTo(pos float64) {
	m.SetPosition(pos)
}

// ScrubEnd releases the playhead; if the transport was running when the
// scrub began, playback resumes from the release position.
func (m *Model) ScrubEnd() {
	if m.resumePlay {
		m.send(startPlayMsg{From: m.session.Position})
		m.resumePlay = false
	}
}

func (m *Model) SetLoop(loop tapedeck.Loop) error {
	if loop.Active && loop.Start >= loop.End {
		return fmt.Errorf("loop start %g is not before end %g", loop.Start, loop.End)
	}
	m.session.Loop = loop
	m.send(setLoopMsg{Loop: loop})
	return nil
}

func (m *Model) SetDuration(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("timeline duration must be positive")
	}
	m.session.Duration = seconds
	m.send(setDurationMsg{Seconds: seconds})
	return nil
}

func (m *Model) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive")
	}
	m.session.BPM = bpm
	return nil
}

func (m *Model) SetSnap(on bool) {
	m.session.Snap = on
}

// --- engine feedback ---

// ProcessMessages drains the engine's feedback channel, keeping the latest
// transport snapshot and collecting alerts.
func (m *Model) ProcessMessages() {
	for {
		select {
		case msg := <-m.broker.ToModel:
			if msg.HasTransport {
				m.transport = msg
			}
			switch d := msg.Data.(type) {
			case Alert:
				m.alerts = append(m.alerts, d)
			case *tapedeck.AudioBuffer:
				m.broker.PutAudioBuffer(d)
			}
		default:
			return
		}
	}
}

// Transport returns the latest snapshot received from the engine.
func (m *Model) Transport() MsgToModel { return m.transport }

// TrackPeak returns the track's held stereo peak from the latest snapshot.
func (m *Model) TrackPeak(id string) [2]float32 {
	if m.session.Track(id) != nil && m.session.Track(id).Kind == tapedeck.TrackMaster {
		return m.transport.MasterPeak
	}
	idx := m.trackIndex(id)
	if idx < 0 || idx >= m.transport.NumTracks {
		return [2]float32{}
	}
	return m.transport.Peaks[idx]
}

// Alerts returns and clears the pending alerts.
func (m *Model) Alerts() []Alert {
	ret := m.alerts
	m.alerts = nil
	return ret
}

func (m *Model) SaveSession(w io.Writer) error {
	return m.session.Write(w)
}

func (m *Model) numTracks() int {
	n := 0
	for _, t := range m.session.Tracks {
		if t.Kind != tapedeck.TrackMaster {
			n++
		}
	}
	return n
}
