// Package notify implements the status bar that shows short-lived notices.
package notify

import (
	"sync"
	"time"

	"pulse-voice/internal/domain"
)

// RevertAfter is how long a notice stays before the bar returns to Ready.
const RevertAfter = 3 * time.Second

// ReadyMessage is the neutral resting notice.
const ReadyMessage = "Ready"

// Publisher receives every notice the bar displays, including reverts.
type Publisher interface {
	Publish(domain.Notice)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(domain.Notice)

// Publish calls f(n).
func (f PublisherFunc) Publish(n domain.Notice) { f(n) }

// StatusBar implements domain.NotificationSink. Each notice reverts to
// Ready after RevertAfter unless a newer notice superseded it first.
type StatusBar struct {
	mu         sync.Mutex
	current    domain.Notice
	seq        uint64
	timer      *time.Timer
	after      func(time.Duration, func()) *time.Timer
	now        func() time.Time
	publishers []Publisher
}

// NewStatusBar returns a bar showing Ready.
func NewStatusBar(publishers ...Publisher) *StatusBar {
	b := &StatusBar{
		after:      time.AfterFunc,
		now:        time.Now,
		publishers: publishers,
	}
	b.current = domain.Notice{Message: ReadyMessage, Level: domain.NoticeInfo, At: b.now()}
	return b
}

// Subscribe adds a publisher.
func (b *StatusBar) Subscribe(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishers = append(b.publishers, p)
}

// Notify shows message and arms the revert timer.
func (b *StatusBar) Notify(message string, level domain.NoticeLevel) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	if b.timer != nil {
		b.timer.Stop()
	}
	b.current = domain.Notice{Message: message, Level: level, At: b.now()}
	b.timer = b.after(RevertAfter, func() { b.revert(seq) })
	n, pubs := b.current, b.publishersLocked()
	b.mu.Unlock()

	for _, p := range pubs {
		p.Publish(n)
	}
}

func (b *StatusBar) revert(seq uint64) {
	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		return
	}
	b.current = domain.Notice{Message: ReadyMessage, Level: domain.NoticeInfo, At: b.now()}
	b.timer = nil
	n, pubs := b.current, b.publishersLocked()
	b.mu.Unlock()

	for _, p := range pubs {
		p.Publish(n)
	}
}

func (b *StatusBar) publishersLocked() []Publisher {
	return append([]Publisher(nil), b.publishers...)
}

// Current returns the notice on display.
func (b *StatusBar) Current() domain.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
