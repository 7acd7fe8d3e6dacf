// Package capture implements domain.ListeningService over typed lines.
// Each line fed while a session is open stands in for one recognized
// utterance.
package capture

import (
	"strings"
	"sync"
	"time"

	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
)

type stopper interface {
	Stop() bool
}

// LineListener runs one listening session at a time. A session closes on
// the first fed line, on Stop, or when the timeout passes without input.
type LineListener struct {
	timeout time.Duration
	after   func(time.Duration, func()) stopper

	mu      sync.Mutex
	active  bool
	session uint64
	timer   stopper

	events chan domain.CaptureEvent
}

// NewLineListener closes silent sessions after timeout. A zero timeout
// keeps a session open until a line arrives or Stop is called.
func NewLineListener(timeout time.Duration) *LineListener {
	return &LineListener{
		timeout: timeout,
		after: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		events: make(chan domain.CaptureEvent, 64),
	}
}

// Events implements domain.ListeningService.
func (l *LineListener) Events() <-chan domain.CaptureEvent {
	return l.events
}

// Active reports whether a session is open.
func (l *LineListener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Start opens a session. Starting while one is open does nothing.
func (l *LineListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return nil
	}
	l.active = true
	l.session++
	if l.timeout > 0 {
		session := l.session
		l.timer = l.after(l.timeout, func() { l.expire(session) })
	}
	logging.Debugf("capture: session %d open", l.session)
	return nil
}

// Stop aborts the open session, if any.
func (l *LineListener) Stop() error {
	if !l.close(0) {
		return nil
	}
	l.emit(
		domain.CaptureEvent{Kind: domain.CaptureRecognitionError, Code: domain.RecognitionAborted},
		domain.CaptureEvent{Kind: domain.CaptureSessionEnded},
	)
	return nil
}

// Feed delivers one utterance to the open session and ends it. A blank
// line counts as silence.
func (l *LineListener) Feed(text string) error {
	if !l.close(0) {
		return domain.ErrNotInSession
	}
	text = strings.TrimSpace(text)
	if text == "" {
		l.emit(
			domain.CaptureEvent{Kind: domain.CaptureRecognitionError, Code: domain.RecognitionNoSpeech},
			domain.CaptureEvent{Kind: domain.CaptureSessionEnded},
		)
		return nil
	}
	l.emit(
		domain.CaptureEvent{Kind: domain.CaptureTranscript, Text: text},
		domain.CaptureEvent{Kind: domain.CaptureSessionEnded},
	)
	return nil
}

func (l *LineListener) expire(session uint64) {
	if !l.close(session) {
		return
	}
	logging.Debugf("capture: session %d timed out", session)
	l.emit(
		domain.CaptureEvent{Kind: domain.CaptureRecognitionError, Code: domain.RecognitionNoSpeech},
		domain.CaptureEvent{Kind: domain.CaptureSessionEnded},
	)
}

// close ends the open session and reports whether it did. A non-zero
// session only closes that session.
func (l *LineListener) close(session uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active || (session != 0 && session != l.session) {
		return false
	}
	l.active = false
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	return true
}

func (l *LineListener) emit(evs ...domain.CaptureEvent) {
	for _, ev := range evs {
		logging.Tracef("capture: %s %s%s", ev.Kind, ev.Text, ev.Code)
		l.events <- ev
	}
}
