package tapedeck

import (
	"fmt"

	"github.com/google/uuid"
)

// Clip is a time-bounded reference into a decoded sample buffer, placed on a
// track's timeline. Start is in timeline seconds, Offset is seconds into the
// source buffer. The buffer is shared and immutable; it is nil for an empty
// clip (e.g. one whose source failed to decode), in which case Duration is
// zero and the clip is excluded from scheduling.
type Clip struct {
	ID       string  `yaml:"id"`
	TrackID  string  `yaml:"track"`
	Name     string  `yaml:"name"`
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
	Offset   float64 `yaml:"offset"`
	// Source is the media path the persistence layer decodes the buffer
	// from; the engine itself never touches it.
	Source string `yaml:"source,omitempty"`

	Buffer *SampleBuffer `yaml:"-"`
}

// NewClip creates a clip covering the whole buffer, starting at the given
// timeline position.
func NewClip(trackID, name string, buffer *SampleBuffer, start float64) *Clip {
	c := &Clip{
		ID:      uuid.NewString(),
		TrackID: trackID,
		Name:    name,
		Start:   start,
		Buffer:  buffer,
	}
	if buffer != nil {
		c.Duration = buffer.Duration()
	}
	return c
}

// End returns the exclusive end of the clip's span on the timeline.
func (c *Clip) End() float64 { return c.Start + c.Duration }

// Empty reports whether the clip has no playable audio.
func (c *Clip) Empty() bool { return c.Buffer == nil || c.Duration <= 0 }

// Overlaps reports whether the spans of the two clips intersect.
func (c *Clip) Overlaps(other *Clip) bool {
	return c.Start < other.End() && other.Start < c.End()
}

// Copy returns a copy of the clip with a fresh id. The sample buffer is
// shared, not duplicated.
func (c *Clip) Copy() *Clip {
	ret := *c
	ret.ID = uuid.NewString()
	return &ret
}

// Split cuts the clip at timeline position t, which must fall strictly
// inside its span. The receiver keeps its identity and becomes the left
// part; the returned clip is the right part. The two spans are contiguous
// and their union is exactly the original span.
func (c *Clip) Split(t float64) (*Clip, error) {
	if t <= c.Start || t >= c.End() {
		return nil, fmt.Errorf("split position %g outside clip span [%g, %g)", t, c.Start, c.End())
	}
	right := c.Copy()
	left := t - c.Start
	right.Start = t
	right.Duration = c.Duration - left
	right.Offset = c.Offset + left
	c.Duration = left
	return right, nil
}

// Merge extends the clip to cover other, which must be the immediately
// following part of the same source buffer (as produced by Split).
func (c *Clip) Merge(other *Clip) error {
	if other.Buffer != c.Buffer {
		return fmt.Errorf("clips %s and %s do not share a source buffer", c.ID, other.ID)
	}
	const eps = 1e-9
	if diff := other.Start - c.End(); diff < -eps || diff > eps {
		return fmt.Errorf("clips %s and %s are not adjacent", c.ID, other.ID)
	}
	if diff := other.Offset - (c.Offset + c.Duration); diff < -eps || diff > eps {
		return fmt.Errorf("clips %s and %s are not contiguous in the source", c.ID, other.ID)
	}
	c.Duration += other.Duration
	return nil
}
