package tapedeck

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// Session is the serializable snapshot of everything the engine needs:
// tracks, clips, and the transport state. Decoded sample buffers are
// deliberately not part of it; the persistence layer stores the audio
// payloads keyed by clip id and reunites them on load by decoding into
// buffers before the session is handed to the engine.
type Session struct {
	Tracks   []*Track `yaml:"tracks"`
	Clips    []*Clip  `yaml:"clips"`
	Duration float64  `yaml:"duration"`
	Position float64  `yaml:"position"`
	Loop     Loop     `yaml:"loop"`
	BPM      float64  `yaml:"bpm"`
	Snap     bool     `yaml:"snap,omitempty"`
}

// NewSession creates a session holding only the master track, with a
// limiter on its chain.
func NewSession() *Session {
	master := NewTrack("Master", TrackMaster)
	master.Effects = []Kind{KindLimiter}
	master.Settings[KindLimiter] = DefaultSettings(KindLimiter).(LimiterSettings)
	return &Session{
		Tracks:   []*Track{master},
		Duration: 60,
		BPM:      120,
	}
}

// Master returns the master track, or nil if the session has none.
func (s *Session) Master() *Track {
	for _, t := range s.Tracks {
		if t.Kind == TrackMaster {
			return t
		}
	}
	return nil
}

// Track returns the track with the given id, or nil.
func (s *Session) Track(id string) *Track {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Clip returns the clip with the given id, or nil.
func (s *Session) Clip(id string) *Clip {
	for _, c := range s.Clips {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// TrackClips returns the track's clips sorted by start time.
func (s *Session) TrackClips(trackID string) []*Clip {
	var clips []*Clip
	for _, c := range s.Clips {
		if c.TrackID == trackID {
			clips = append(clips, c)
		}
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Start < clips[j].Start })
	return clips
}

// CheckPlacement reports whether the clip could occupy the span
// [start, start+duration) on its track without overlapping a neighbor. The
// clip itself is ignored, so moves and resizes check against everyone else.
func (s *Session) CheckPlacement(clip *Clip, start, duration float64) error {
	if start < 0 {
		return fmt.Errorf("clip start %g is negative", start)
	}
	if duration <= 0 {
		return fmt.Errorf("clip duration %g is not positive", duration)
	}
	probe := Clip{Start: start, Duration: duration}
	for _, other := range s.Clips {
		if other.ID == clip.ID || other.TrackID != clip.TrackID || other.Duration <= 0 {
			continue
		}
		if probe.Overlaps(other) {
			return &SchedulingConflict{ClipID: clip.ID, OtherID: other.ID}
		}
	}
	return nil
}

// ClampMove clamps a proposed start position for the clip against its
// neighbors' spans and the timeline start, so drags stop at the legal
// boundary instead of failing.
func (s *Session) ClampMove(clip *Clip, start float64) float64 {
	if start < 0 {
		start = 0
	}
	for _, other := range s.TrackClips(clip.TrackID) {
		if other.ID == clip.ID || other.Empty() {
			continue
		}
		if other.End() <= clip.Start && start < other.End() {
			start = other.End()
		}
		if other.Start >= clip.End() && start+clip.Duration > other.Start {
			start = other.Start - clip.Duration
		}
	}
	if start < 0 {
		start = 0
	}
	return start
}

// GridSpacing returns the snap grid spacing in seconds, one beat at the
// session tempo.
func (s *Session) GridSpacing() float64 {
	if s.BPM <= 0 {
		return 0
	}
	return 60 / s.BPM
}

// SnapTime quantizes pos to the snap grid if snapping is on.
func (s *Session) SnapTime(pos float64) float64 {
	grid := s.GridSpacing()
	if !s.Snap || grid <= 0 {
		return pos
	}
	return math.Round(pos/grid) * grid
}

// Validate checks the session invariants: one master track, no duplicate
// effects, no overlapping clips per track, loop start < end, clip spans
// within their buffers.
func (s *Session) Validate() error {
	masters := 0
	for _, t := range s.Tracks {
		if t.Kind == TrackMaster {
			masters++
		}
		seen := make(map[Kind]bool)
		for _, k := range t.Effects {
			if seen[k] {
				return &ConfigurationError{Kind: k, Reason: fmt.Sprintf("listed twice on track %s", t.ID)}
			}
			seen[k] = true
		}
	}
	if masters != 1 {
		return fmt.Errorf("session has %d master tracks, want exactly 1", masters)
	}
	if s.Loop.Active && s.Loop.Start >= s.Loop.End {
		return fmt.Errorf("loop start %g is not before end %g", s.Loop.Start, s.Loop.End)
	}
	for _, c := range s.Clips {
		if c.Duration <= 0 {
			continue
		}
		if s.Track(c.TrackID) == nil {
			return fmt.Errorf("clip %s references unknown track %s", c.ID, c.TrackID)
		}
		if c.Start < 0 || c.Offset < 0 {
			return fmt.Errorf("clip %s has negative start or offset", c.ID)
		}
		if c.Buffer != nil && c.Offset+c.Duration > c.Buffer.Duration()+1e-6 {
			return fmt.Errorf("clip %s reads past its buffer", c.ID)
		}
		for _, other := range s.Clips {
			if other.ID == c.ID || other.TrackID != c.TrackID || other.Duration <= 0 {
				continue
			}
			if c.Overlaps(other) {
				return &SchedulingConflict{ClipID: c.ID, OtherID: other.ID}
			}
		}
	}
	return nil
}

// Write serializes the session as yaml.
func (s *Session) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return nil
}

// ReadSession parses a yaml session snapshot. Buffers are left nil; the
// caller decodes the clip sources and attaches them.
func ReadSession(r io.Reader) (*Session, error) {
	var s Session
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
