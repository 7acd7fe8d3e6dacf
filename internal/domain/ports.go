package domain

import "context"

// DeviceEventKind is a playback lifecycle transition.
type DeviceEventKind string

const (
	DeviceStarted DeviceEventKind = "started"
	DevicePaused  DeviceEventKind = "paused"
	DeviceEnded   DeviceEventKind = "ended"
	DeviceError   DeviceEventKind = "error"
)

// DeviceEvent is emitted once per physical playback transition.
type DeviceEvent struct {
	Kind    DeviceEventKind
	Message string
}

// PlaybackDevice is a secondary port wrapping a single audio output.
// Events must fire exactly once per transition; no duplicate ended without
// an intervening started.
type PlaybackDevice interface {
	Load(uri string) error
	Play() error
	Pause() error
	SeekToStart() error
	AtStart() bool
	Playing() bool
	Paused() bool
	Ended() bool
	HasSource() bool
	Events() <-chan DeviceEvent
}

// CaptureEventKind is a listening session transition.
type CaptureEventKind string

const (
	CaptureTranscript       CaptureEventKind = "transcript"
	CaptureRecognitionError CaptureEventKind = "recognitionError"
	CaptureSessionEnded     CaptureEventKind = "sessionEnded"
)

// Recognition error codes that are noise rather than failures.
const (
	RecognitionNoSpeech = "no-speech"
	RecognitionAborted  = "aborted"
)

// CaptureEvent is emitted by a ListeningService.
type CaptureEvent struct {
	Kind CaptureEventKind
	Text string
	Code string
}

// ListeningService is a secondary port wrapping a speech capture service.
// Start and Stop are idempotent. Every Start is followed by exactly one
// sessionEnded, and a transcript fires at most once per session.
type ListeningService interface {
	Start() error
	Stop() error
	Events() <-chan CaptureEvent
}

// NotificationSink receives short-lived status messages.
type NotificationSink interface {
	Notify(message string, level NoticeLevel)
}

// ArticleSource fetches the article batch for a topic.
type ArticleSource interface {
	Fetch(ctx context.Context, topic string) (ArticleBatch, error)
	Topics(ctx context.Context) ([]string, error)
}
