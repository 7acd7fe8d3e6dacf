package domain

import "fmt"

// ListeningState is the hands-free capture state.
type ListeningState int

const (
	// ListeningDisabled is the rest state while voice commands are off.
	ListeningDisabled ListeningState = iota
	// ListeningIdle means enabled but not capturing, e.g. while audio plays.
	ListeningIdle
	// ListeningActive means speech is being captured.
	ListeningActive
)

func (s ListeningState) String() string {
	switch s {
	case ListeningDisabled:
		return "disabled"
	case ListeningIdle:
		return "idle"
	case ListeningActive:
		return "listening"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ListeningState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ListeningState) UnmarshalText(b []byte) error {
	for _, st := range []ListeningState{ListeningDisabled, ListeningIdle, ListeningActive} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown listening state %q", b)
}
