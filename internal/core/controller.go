package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Observer receives a snapshot after every transition.
type Observer interface {
	OnSnapshot(Snapshot)
}

var errDevicePlaying = errors.New("playback device is outputting audio")

// Controller is the voice command controller. It owns navigation and
// listening state and coordinates the listening service with the playback
// device. All transitions run on the goroutine that calls Run; the public
// entry points only enqueue events.
type Controller struct {
	device    domain.PlaybackDevice
	capture   domain.ListeningService
	sink      domain.NotificationSink
	source    domain.ArticleSource
	clock     Clock
	observers []Observer

	mu    sync.RWMutex
	state State

	restart Timer
	inbox   chan Event
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for grace delays.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithObserver registers a snapshot observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithArticleSource enables Refresh.
func WithArticleSource(src domain.ArticleSource) Option {
	return func(c *Controller) { c.source = src }
}

// NewController wires the controller to its collaborators.
func NewController(device domain.PlaybackDevice, capture domain.ListeningService, sink domain.NotificationSink, opts ...Option) (*Controller, error) {
	if device == nil || capture == nil || sink == nil {
		return nil, errors.New("device, listening service and notification sink are required")
	}
	c := &Controller{
		device:  device,
		capture: capture,
		sink:    sink,
		clock:   realClock{},
		state:   NewState(),
		inbox:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	deviceEvents := c.device.Events()
	captureEvents := c.capture.Events()
	for {
		select {
		case <-ctx.Done():
			c.cancelRestart()
			if err := c.capture.Stop(); err != nil {
				logging.Warnf("controller: stopping capture on shutdown: %v", err)
			}
			return ctx.Err()
		case ev := <-c.inbox:
			c.Dispatch(ev)
		case de, ok := <-deviceEvents:
			if !ok {
				deviceEvents = nil
				continue
			}
			c.Dispatch(fromDevice(de))
		case ce, ok := <-captureEvents:
			if !ok {
				captureEvents = nil
				continue
			}
			c.Dispatch(fromCapture(ce))
		}
	}
}

func fromDevice(e domain.DeviceEvent) Event {
	switch e.Kind {
	case domain.DeviceStarted:
		return Event{Type: EventDeviceStarted}
	case domain.DevicePaused:
		return Event{Type: EventDevicePaused}
	case domain.DeviceEnded:
		return Event{Type: EventDeviceEnded}
	default:
		return Event{Type: EventDeviceError, Message: e.Message}
	}
}

func fromCapture(e domain.CaptureEvent) Event {
	switch e.Kind {
	case domain.CaptureTranscript:
		return Event{Type: EventTranscript, Text: e.Text}
	case domain.CaptureRecognitionError:
		return Event{Type: EventRecognitionError, Code: e.Code}
	default:
		return Event{Type: EventSessionEnded}
	}
}

// Dispatch runs one transition synchronously. It must only be called from
// the goroutine running Run (or from tests driving the controller directly).
func (c *Controller) Dispatch(ev Event) {
	facts := c.facts()

	c.mu.Lock()
	next, effects, err := HandleEvent(c.state, ev, facts)
	if err != nil {
		c.mu.Unlock()
		logging.Warnf("controller: %v", err)
		return
	}
	c.state = next
	c.mu.Unlock()

	if ev.Type == EventDeviceError && ev.Message != "" {
		logging.Warnf("controller: playback error: %s", ev.Message)
	}
	logging.Debugf("controller: %s -> listening=%s index=%d level=%s", ev.Type, next.Listening(), next.Nav.Index, next.Nav.Level)

	c.execute(effects)
	c.publish()
}

func (c *Controller) facts() DeviceFacts {
	return DeviceFacts{
		Playing:   c.device.Playing(),
		Paused:    c.device.Paused(),
		Ended:     c.device.Ended(),
		HasSource: c.device.HasSource(),
	}
}

func (c *Controller) execute(effects []Effect) {
	for _, eff := range effects {
		logging.Tracef("controller: effect %s %s", eff.Type, eff.URI)
		var err error
		switch eff.Type {
		case EffectLoadAndPlay:
			if err = c.device.Load(eff.URI); err == nil {
				err = c.device.Play()
			}
		case EffectPlay:
			err = c.device.Play()
		case EffectPause:
			err = c.device.Pause()
		case EffectSeekToStart:
			err = c.device.SeekToStart()
		case EffectStartCapture:
			// Never capture over our own audio, whatever order events arrived in.
			if c.device.Playing() {
				err = errDevicePlaying
			} else {
				err = c.capture.Start()
			}
		case EffectStopCapture:
			err = c.capture.Stop()
		case EffectScheduleRestart:
			c.schedule(eff)
		case EffectCancelRestart:
			c.cancelRestart()
		case EffectNotify:
			c.sink.Notify(eff.Message, eff.Level)
		}
		if err != nil {
			c.fail(eff, err)
		}
	}
}

func (c *Controller) fail(eff Effect, err error) {
	c.mu.Lock()
	c.state = HandleEffectResult(c.state, eff, err)
	c.mu.Unlock()

	switch {
	case errors.Is(err, errDevicePlaying):
		logging.Debugf("controller: capture start skipped, device is playing")
	case eff.Type == EffectStopCapture:
		logging.Warnf("controller: stopping capture: %v", err)
	case eff.Type == EffectStartCapture:
		logging.Errorf("controller: starting capture: %v", err)
		c.sink.Notify("Voice error: "+err.Error(), domain.NoticeDanger)
	case errors.Is(err, domain.ErrNoSource):
		c.sink.Notify("No audio loaded", domain.NoticeWarning)
	case eff.Type == EffectLoadAndPlay:
		logging.Errorf("controller: loading %s: %v", eff.URI, err)
		c.sink.Notify("Failed to load audio file", domain.NoticeDanger)
	default:
		logging.Errorf("controller: %s: %v", eff.Type, err)
		c.sink.Notify("Playback error: "+err.Error(), domain.NoticeDanger)
	}
}

func (c *Controller) schedule(eff Effect) {
	c.cancelRestart()
	seq := eff.Seq
	c.restart = c.clock.AfterFunc(eff.Delay, func() {
		c.post(Event{Type: EventRestartDue, Seq: seq})
	})
}

func (c *Controller) cancelRestart() {
	if c.restart != nil {
		c.restart.Stop()
		c.restart = nil
	}
}

func (c *Controller) publish() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, o := range c.observers {
		o.OnSnapshot(snap)
	}
}

func (c *Controller) post(ev Event) {
	c.inbox <- ev
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Snapshot()
}

// Enable turns voice commands on.
func (c *Controller) Enable() { c.post(Event{Type: EventEnable}) }

// Disable turns voice commands off and stops any capture.
func (c *Controller) Disable() { c.post(Event{Type: EventDisable}) }

// Toggle flips voice commands.
func (c *Controller) Toggle() { c.post(Event{Type: EventToggle}) }

// Do runs an action as if its button was pressed.
func (c *Controller) Do(action Action) { c.post(Event{Type: EventCommand, Action: action}) }

// Interpret runs typed text through the command registry.
func (c *Controller) Interpret(text string) { c.post(Event{Type: EventInterpret, Text: text}) }

// Select plays the article at index with the given level.
func (c *Controller) Select(index int, level domain.NarrationLevel) {
	c.post(Event{Type: EventSelect, Index: index, Level: level})
}

// LoadArticles replaces the working article list.
func (c *Controller) LoadArticles(batch domain.ArticleBatch) {
	c.post(Event{Type: EventArticlesLoaded, Batch: batch})
}

// Refresh fetches topic from the article source and loads the result.
// Transport failures are reported to the user and returned.
func (c *Controller) Refresh(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.ContainsAny(topic, " /?&") {
		return domain.ErrInvalidTopic
	}
	if c.source == nil {
		return errors.New("no article source configured")
	}
	c.sink.Notify("Loading "+topic+" news...", domain.NoticeInfo)
	batch, err := c.source.Fetch(ctx, topic)
	if err != nil {
		logging.Errorf("controller: fetching %s: %v", topic, err)
		c.post(Event{Type: EventFetchFailed, Message: err.Error()})
		return err
	}
	batch.Topic = topic
	c.post(Event{Type: EventArticlesLoaded, Batch: batch})
	return nil
}
