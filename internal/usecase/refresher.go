// Package usecase holds application workflows that sit outside the
// controller's event loop.
package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"pulse-voice/internal/core"
	"pulse-voice/internal/logging"
)

// ErrBusy is returned by RunOnce while audio is playing.
var ErrBusy = errors.New("refresh skipped while audio is playing")

// Refreshable is the part of core.Controller the refresher drives.
type Refreshable interface {
	Snapshot() core.Snapshot
	Refresh(ctx context.Context, topic string) error
}

// RefreshStatus reports the refresher's history.
type RefreshStatus struct {
	Interval  time.Duration `json:"interval"`
	LastRun   time.Time     `json:"lastRun,omitempty"`
	LastTopic string        `json:"lastTopic,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	Runs      int           `json:"runs"`
	Skipped   int           `json:"skipped"`
}

// Refresher reloads the current topic on a fixed interval. Ticks that
// land while audio is playing are skipped so a listener never loses the
// article under them.
type Refresher struct {
	ctrl     Refreshable
	playing  func() bool
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	status RefreshStatus
}

// NewRefresher creates a refresher. playing may be nil.
func NewRefresher(ctrl Refreshable, playing func() bool, interval, timeout time.Duration) *Refresher {
	if playing == nil {
		playing = func() bool { return false }
	}
	return &Refresher{
		ctrl:     ctrl,
		playing:  playing,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		status:   RefreshStatus{Interval: interval},
	}
}

// Start begins the refresh loop. A non-positive interval disables it.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		logging.Debugf("refresher: disabled")
		return
	}
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	logging.Infof("refresher: reloading every %s", r.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrBusy) {
				logging.Warnf("refresher: %v", err)
			}
		}
	}
}

// RunOnce reloads the current topic now unless audio is playing.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if r.playing() {
		r.mu.Lock()
		r.status.Skipped++
		r.mu.Unlock()
		logging.Debugf("refresher: skipped, audio is playing")
		return ErrBusy
	}

	topic := r.ctrl.Snapshot().Topic
	if topic == "" {
		return errors.New("no topic loaded yet")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	err := r.ctrl.Refresh(ctx, topic)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Runs++
	r.status.LastRun = r.now()
	r.status.LastTopic = topic
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	return err
}

// Status returns a copy of the refresh history.
func (r *Refresher) Status() RefreshStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
