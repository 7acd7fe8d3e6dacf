package core

import (
	"time"

	"pulse-voice/internal/domain"
)

// Grace delays before capture restarts, so the tail of our own audio output
// is not captured as a command.
const (
	GraceAfterEnable  = 300 * time.Millisecond
	GraceAfterPause   = 300 * time.Millisecond
	GraceAfterEnd     = 500 * time.Millisecond
	GraceAfterSession = 500 * time.Millisecond
)

// EffectType represents the type of side effect to be performed.
type EffectType string

const (
	EffectLoadAndPlay     EffectType = "LoadAndPlay"
	EffectPlay            EffectType = "Play"
	EffectPause           EffectType = "Pause"
	EffectSeekToStart     EffectType = "SeekToStart"
	EffectStartCapture    EffectType = "StartCapture"
	EffectStopCapture     EffectType = "StopCapture"
	EffectScheduleRestart EffectType = "ScheduleRestart"
	EffectCancelRestart   EffectType = "CancelRestart"
	EffectNotify          EffectType = "Notify"
)

// Effect is a side effect produced by HandleEvent and executed by the Controller.
type Effect struct {
	Type    EffectType
	URI     string
	Delay   time.Duration
	Seq     uint64
	Message string
	Level   domain.NoticeLevel
}

// EventType represents the type of event.
type EventType string

const (
	EventEnable           EventType = "Enable"
	EventDisable          EventType = "Disable"
	EventToggle           EventType = "Toggle"
	EventDeviceStarted    EventType = "DeviceStarted"
	EventDevicePaused     EventType = "DevicePaused"
	EventDeviceEnded      EventType = "DeviceEnded"
	EventDeviceError      EventType = "DeviceError"
	EventTranscript       EventType = "Transcript"
	EventRecognitionError EventType = "RecognitionError"
	EventSessionEnded     EventType = "SessionEnded"
	EventRestartDue       EventType = "RestartDue"
	EventArticlesLoaded   EventType = "ArticlesLoaded"
	EventFetchFailed      EventType = "FetchFailed"
	EventCommand          EventType = "Command"
	EventInterpret        EventType = "Interpret"
	EventSelect           EventType = "Select"
	EventCaptureFailed    EventType = "CaptureFailed"
)

// Event is an input to the state machine. Payload fields are set according to Type.
type Event struct {
	Type    EventType
	Text    string
	Code    string
	Seq     uint64
	Action  Action
	Batch   domain.ArticleBatch
	Index   int
	Level   domain.NarrationLevel
	Message string
}

// DeviceFacts are the playback device queries taken right before a transition.
type DeviceFacts struct {
	Playing   bool
	Paused    bool
	Ended     bool
	HasSource bool
}

// State is everything the controller owns.
type State struct {
	Nav     domain.NavigationState
	Enabled bool

	// Capturing is true while speech is being captured.
	Capturing bool

	// SessionOpen is true between Start and the matching sessionEnded.
	SessionOpen bool

	// RestartSeq identifies the only scheduled restart still allowed to fire.
	RestartSeq uint64

	Topic     string
	TrackInfo string
}

// NewState returns the rest state: disabled, no articles, Short level.
func NewState() State {
	return State{Nav: domain.NewNavigationState()}
}

// Listening derives the ListeningState.
func (s State) Listening() domain.ListeningState {
	switch {
	case s.Capturing:
		return domain.ListeningActive
	case s.Enabled:
		return domain.ListeningIdle
	default:
		return domain.ListeningDisabled
	}
}

// Snapshot is the read-only view handed to CLI and web clients.
type Snapshot struct {
	Enabled   bool                  `json:"enabled"`
	Listening domain.ListeningState `json:"listening"`
	Topic     string                `json:"topic"`
	Count     int                   `json:"count"`
	Index     int                   `json:"index"`
	Level     domain.NarrationLevel `json:"level"`
	Current   *domain.Article       `json:"current,omitempty"`
	TrackInfo string                `json:"trackInfo"`
	Articles  []domain.Article      `json:"articles,omitempty"`
}

// Snapshot returns a copy suitable for external consumption.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Enabled:   s.Enabled,
		Listening: s.Listening(),
		Topic:     s.Topic,
		Count:     len(s.Nav.Articles),
		Index:     s.Nav.Index,
		Level:     s.Nav.Level,
		TrackInfo: s.TrackInfo,
		Articles:  append([]domain.Article(nil), s.Nav.Articles...),
	}
	if a, ok := s.Nav.Current(); ok {
		snap.Current = &a
	}
	return snap
}
