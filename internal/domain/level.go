package domain

import (
	"fmt"
	"strings"
)

// NarrationLevel is the length of a generated narration.
// Levels are ordered Short < Medium < Full.
type NarrationLevel int

const (
	LevelShort NarrationLevel = iota
	LevelMedium
	LevelFull
)

func (l NarrationLevel) String() string {
	switch l {
	case LevelShort:
		return "short"
	case LevelMedium:
		return "medium"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// Title returns the capitalized label used in track info.
func (l NarrationLevel) Title() string {
	s := l.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Upgrade returns the next longer level. The second value is false at Full.
func (l NarrationLevel) Upgrade() (NarrationLevel, bool) {
	switch l {
	case LevelShort:
		return LevelMedium, true
	case LevelMedium:
		return LevelFull, true
	default:
		return l, false
	}
}

// Valid reports whether l is one of the three levels.
func (l NarrationLevel) Valid() bool {
	return l >= LevelShort && l <= LevelFull
}

// ParseNarrationLevel parses "short", "medium" or "full" (case-insensitive).
func ParseNarrationLevel(s string) (NarrationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return LevelShort, nil
	case "medium":
		return LevelMedium, nil
	case "full":
		return LevelFull, nil
	default:
		return LevelShort, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l NarrationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *NarrationLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseNarrationLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
