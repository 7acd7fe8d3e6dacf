package domain

import "time"

// Preferences are the user choices restored at start: the topic last
// loaded and whether voice commands were on. What was listened to is not
// recorded.
type Preferences struct {
	Topic        string    `json:"topic,omitempty"`
	VoiceEnabled bool      `json:"voiceEnabled"`
	SavedAt      time.Time `json:"savedAt,omitempty"`
}

// PreferencesRepository persists Preferences between runs.
type PreferencesRepository interface {
	Load() (Preferences, bool, error)
	Save(Preferences) error
}
