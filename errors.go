package tapedeck

import "fmt"

type (
	// ConfigurationError indicates an unknown effect kind or malformed effect
	// settings. The operation that caused it is rejected and the prior graph
	// stays intact.
	ConfigurationError struct {
		Kind   Kind
		Reason string
	}

	// DecodeError indicates unplayable or corrupt source audio. The clip is
	// still created, but in an empty state with zero duration, and is
	// excluded from scheduling.
	DecodeError struct {
		Path string
		Err  error
	}

	// SchedulingConflict indicates an edit that would make two clips on the
	// same track overlap in time. The edit is rejected before any mutation.
	SchedulingConflict struct {
		ClipID, OtherID string
	}
)

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("effect %v: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *SchedulingConflict) Error() string {
	return fmt.Sprintf("clip %s would overlap clip %s", e.ClipID, e.OtherID)
}
