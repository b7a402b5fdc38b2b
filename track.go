package tapedeck

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// TrackKind tells what role a track plays in the mix. There is exactly one
// master track per session; its chain is the master chain of the mix bus.
type TrackKind int

const (
	TrackVocal TrackKind = iota
	TrackBeat
	TrackMaster
)

var trackKindNames = []string{"vocal", "beat", "master"}

func (k TrackKind) String() string {
	if k < 0 || int(k) >= len(trackKindNames) {
		return fmt.Sprintf("trackkind(%d)", int(k))
	}
	return trackKindNames[k]
}

func (k TrackKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

func (k *TrackKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	for i, n := range trackKindNames {
		if n == s {
			*k = TrackKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown track kind %q", s)
}

// Track is one lane of the timeline: an ordered chain of effects terminated
// by a gain/pan stage. Effects lists the active effect kinds in chain order;
// each kind appears at most once. Settings holds the parameter values per
// kind; a kind present in Effects but missing from Settings falls back to
// DefaultSettings.
type Track struct {
	ID       string
	Name     string
	Kind     TrackKind
	Volume   float64 // 0..1 linear
	Pan      float64 // -1..1
	Muted    bool
	Solo     bool
	Bypass   bool
	Effects  []Kind
	Settings map[Kind]Settings
}

// NewTrack creates a track with a fresh id, unity volume and centered pan.
func NewTrack(name string, kind TrackKind) *Track {
	return &Track{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     kind,
		Volume:   1,
		Settings: make(map[Kind]Settings),
	}
}

// Copy returns a deep copy of the track, keeping the same id.
func (t *Track) Copy() *Track {
	settings := make(map[Kind]Settings, len(t.Settings))
	for k, v := range t.Settings {
		settings[k] = v
	}
	ret := *t
	ret.Effects = slices.Clone(t.Effects)
	ret.Settings = settings
	return &ret
}

// EffectSettings returns the settings value for the kind, falling back to
// the registered default when the track has no entry for it.
func (t *Track) EffectSettings(kind Kind) Settings {
	if s, ok := t.Settings[kind]; ok {
		return s
	}
	return DefaultSettings(kind)
}

// AddEffect appends the kind to the active chain. Each kind may appear only
// once per track.
func (t *Track) AddEffect(kind Kind) error {
	if kind < 0 || int(kind) >= NumKinds {
		return &ConfigurationError{Kind: kind, Reason: "unknown effect kind"}
	}
	if slices.Contains(t.Effects, kind) {
		return &ConfigurationError{Kind: kind, Reason: "effect already active on track"}
	}
	t.Effects = append(t.Effects, kind)
	if _, ok := t.Settings[kind]; !ok {
		if t.Settings == nil {
			t.Settings = make(map[Kind]Settings)
		}
		t.Settings[kind] = DefaultSettings(kind)
	}
	return nil
}

// RemoveEffect removes the kind from the active chain, keeping its settings
// so that re-adding it restores the previous parameters.
func (t *Track) RemoveEffect(kind Kind) bool {
	i := slices.Index(t.Effects, kind)
	if i < 0 {
		return false
	}
	t.Effects = slices.Delete(t.Effects, i, i+1)
	return true
}

// trackYAML is the serialized shape of a Track. The effect list is stored in
// chain order with the settings inlined, which keeps the order and the
// settings in one place in the file.
type trackYAML struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Kind    TrackKind    `yaml:"kind"`
	Volume  float64      `yaml:"volume"`
	Pan     float64      `yaml:"pan"`
	Muted   bool         `yaml:"muted,omitempty"`
	Solo    bool         `yaml:"solo,omitempty"`
	Bypass  bool         `yaml:"bypass,omitempty"`
	Effects []effectYAML `yaml:"effects,omitempty"`
}

// effectYAML is a closed tagged union: exactly the field matching Kind is
// set.
type effectYAML struct {
	Kind       Kind                `yaml:"kind"`
	Compressor *CompressorSettings `yaml:"compressor,omitempty"`
	EQ         *EQSettings         `yaml:"eq,omitempty"`
	Drive      *DriveSettings      `yaml:"drive,omitempty"`
	Reverb     *ReverbSettings     `yaml:"reverb,omitempty"`
	Gate       *GateSettings       `yaml:"gate,omitempty"`
	Width      *WidthSettings      `yaml:"width,omitempty"`
	Limiter    *LimiterSettings    `yaml:"limiter,omitempty"`
	Pitch      *PitchSettings      `yaml:"pitch,omitempty"`
}

func packEffect(kind Kind, s Settings) effectYAML {
	e := effectYAML{Kind: kind}
	switch v := s.(type) {
	case CompressorSettings:
		e.Compressor = &v
	case EQSettings:
		e.EQ = &v
	case DriveSettings:
		e.Drive = &v
	case ReverbSettings:
		e.Reverb = &v
	case GateSettings:
		e.Gate = &v
	case WidthSettings:
		e.Width = &v
	case LimiterSettings:
		e.Limiter = &v
	case PitchSettings:
		e.Pitch = &v
	}
	return e
}

func (e effectYAML) unpack() (Settings, error) {
	switch e.Kind {
	case KindCompressor:
		if e.Compressor != nil {
			return *e.Compressor, nil
		}
	case KindEQ:
		if e.EQ != nil {
			return *e.EQ, nil
		}
	case KindDrive:
		if e.Drive != nil {
			return *e.Drive, nil
		}
	case KindReverb:
		if e.Reverb != nil {
			return *e.Reverb, nil
		}
	case KindGate:
		if e.Gate != nil {
			return *e.Gate, nil
		}
	case KindWidth:
		if e.Width != nil {
			return *e.Width, nil
		}
	case KindLimiter:
		if e.Limiter != nil {
			return *e.Limiter, nil
		}
	case KindPitch:
		if e.Pitch != nil {
			return *e.Pitch, nil
		}
	default:
		return nil, &ConfigurationError{Kind: e.Kind, Reason: "unknown effect kind"}
	}
	return DefaultSettings(e.Kind), nil
}

func (t Track) MarshalYAML() (interface{}, error) {
	out := trackYAML{
		ID: t.ID, Name: t.Name, Kind: t.Kind,
		Volume: t.Volume, Pan: t.Pan,
		Muted: t.Muted, Solo: t.Solo, Bypass: t.Bypass,
	}
	for _, kind := range t.Effects {
		out.Effects = append(out.Effects, packEffect(kind, t.EffectSettings(kind)))
	}
	return out, nil
}

func (t *Track) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw trackYAML
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*t = Track{
		ID: raw.ID, Name: raw.Name, Kind: raw.Kind,
		Volume: raw.Volume, Pan: raw.Pan,
		Muted: raw.Muted, Solo: raw.Solo, Bypass: raw.Bypass,
		Settings: make(map[Kind]Settings, len(raw.Effects)),
	}
	for _, e := range raw.Effects {
		if slices.Contains(t.Effects, e.Kind) {
			return &ConfigurationError{Kind: e.Kind, Reason: "effect listed twice on track"}
		}
		s, err := e.unpack()
		if err != nil {
			return err
		}
		t.Effects = append(t.Effects, e.Kind)
		t.Settings[e.Kind] = s
	}
	return nil
}
