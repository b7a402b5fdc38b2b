package tapedeck

import "fmt"

type (
	// Kind identifies one of the built-in effect kinds. The set is closed at
	// compile time; the fx package registers a constructor and an updater for
	// every kind.
	Kind int

	// Settings is the per-kind parameter value of one effect instance on a
	// track. All implementations are small comparable value types, so two
	// Settings can be compared with ==; the model uses that to decide whether
	// a parameter edit needs a graph update or nothing at all. Every kind has
	// an Active flag, and Active=false must be acoustically transparent.
	Settings interface {
		Kind() Kind
		IsActive() bool
	}

	// Scale is the set of pitch classes the pitch correction quantizes to.
	Scale int
)

const (
	KindCompressor Kind = iota
	KindEQ
	KindDrive
	KindReverb
	KindGate
	KindWidth
	KindLimiter
	KindPitch
	NumKinds int = iota
)

const (
	ScaleChromatic Scale = iota
	ScaleMajor
	ScaleMinor
)

var kindNames = [NumKinds]string{
	"compressor", "eq", "drive", "reverb", "gate", "width", "limiter", "pitch",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= NumKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown effect kind %q", s)
}

func (k Kind) MarshalYAML() (interface{}, error) { return k.String(), nil }

func (k *Kind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

var scaleNames = []string{"chromatic", "major", "minor"}

func (s Scale) String() string {
	if s < 0 || int(s) >= len(scaleNames) {
		return fmt.Sprintf("scale(%d)", int(s))
	}
	return scaleNames[s]
}

func (s Scale) MarshalYAML() (interface{}, error) { return s.String(), nil }

func (s *Scale) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	for i, n := range scaleNames {
		if n == str {
			*s = Scale(i)
			return nil
		}
	}
	return fmt.Errorf("unknown scale %q", str)
}

type (
	// CompressorSettings is the single-knob compressor: Amount 0..100 maps
	// linearly to threshold (0 dB .. -50 dB), ratio (1:1 .. 20:1) and makeup
	// gain (1x .. 3x).
	CompressorSettings struct {
		Amount float64 `yaml:"amount"`
		Active bool    `yaml:"active"`
	}

	// EQSettings is the fixed 3-band EQ: low shelf at 200 Hz, peaking at
	// 1 kHz (Q=1) and high shelf at 4 kHz, each gain in -12..12 dB.
	EQSettings struct {
		LowDB  float64 `yaml:"low"`
		MidDB  float64 `yaml:"mid"`
		HighDB float64 `yaml:"high"`
		Active bool    `yaml:"active"`
	}

	// DriveSettings is the waveshaping saturator; Drive is 0..100.
	DriveSettings struct {
		Drive  float64 `yaml:"drive"`
		Active bool    `yaml:"active"`
	}

	// ReverbSettings is the fixed-impulse convolution reverb; Mix is the
	// linear wet/dry crossfade in 0..1.
	ReverbSettings struct {
		Mix    float64 `yaml:"mix"`
		Active bool    `yaml:"active"`
	}

	// GateSettings is the block-RMS noise gate; ThresholdDB is typically in
	// -80..0.
	GateSettings struct {
		ThresholdDB float64 `yaml:"threshold"`
		Active      bool    `yaml:"active"`
	}

	// WidthSettings is the mid/side stereo width. Width 0 collapses to mono,
	// 1 is unity and values above 1 exaggerate the sides.
	WidthSettings struct {
		Width  float64 `yaml:"width"`
		Active bool    `yaml:"active"`
	}

	// LimiterSettings is the brickwall limiter: fixed 20:1 ratio, zero knee,
	// 3 ms attack; makeup gain is 10^((ceiling-threshold)/20).
	LimiterSettings struct {
		ThresholdDB float64 `yaml:"threshold"`
		CeilingDB   float64 `yaml:"ceiling"`
		Active      bool    `yaml:"active"`
	}

	// PitchSettings is the pitch correction stage. Key is the tonic pitch
	// class 0..11 (0 = C), Amount 0..100 is the correction strength and Speed
	// 0..100 sets how fast the shift ratio glides to each new target.
	PitchSettings struct {
		Key    int     `yaml:"key"`
		Scale  Scale   `yaml:"scale"`
		Amount float64 `yaml:"amount"`
		Speed  float64 `yaml:"speed"`
		Active bool    `yaml:"active"`
	}
)

func (CompressorSettings) Kind() Kind { return KindCompressor }
func (EQSettings) Kind() Kind         { return KindEQ }
func (DriveSettings) Kind() Kind      { return KindDrive }
func (ReverbSettings) Kind() Kind     { return KindReverb }
func (GateSettings) Kind() Kind       { return KindGate }
func (WidthSettings) Kind() Kind      { return KindWidth }
func (LimiterSettings) Kind() Kind    { return KindLimiter }
func (PitchSettings) Kind() Kind      { return KindPitch }

func (s CompressorSettings) IsActive() bool { return s.Active }
func (s EQSettings) IsActive() bool         { return s.Active }
func (s DriveSettings) IsActive() bool      { return s.Active }
func (s ReverbSettings) IsActive() bool     { return s.Active }
func (s GateSettings) IsActive() bool       { return s.Active }
func (s WidthSettings) IsActive() bool      { return s.Active }
func (s LimiterSettings) IsActive() bool    { return s.Active }
func (s PitchSettings) IsActive() bool      { return s.Active }

// DefaultSettings returns the registered default settings value for the
// kind. Tracks fall back to it when their active-effect list contains a kind
// with no settings entry.
func DefaultSettings(kind Kind) Settings {
	switch kind {
	case KindCompressor:
		return CompressorSettings{Amount: 30, Active: true}
	case KindEQ:
		return EQSettings{Active: true}
	case KindDrive:
		return DriveSettings{Drive: 20, Active: true}
	case KindReverb:
		return ReverbSettings{Mix: 0.3, Active: true}
	case KindGate:
		return GateSettings{ThresholdDB: -50, Active: true}
	case KindWidth:
		return WidthSettings{Width: 1, Active: true}
	case KindLimiter:
		return LimiterSettings{ThresholdDB: -3, CeilingDB: 0, Active: true}
	case KindPitch:
		return PitchSettings{Scale: ScaleChromatic, Amount: 100, Speed: 50, Active: true}
	}
	return nil
}
