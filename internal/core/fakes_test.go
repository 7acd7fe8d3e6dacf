package core

import (
	"time"

	"pulse-voice/internal/domain"
)

type fakeDevice struct {
	src     string
	playing bool
	paused  bool
	ended   bool
	calls   []string
	loadErr error
	events  chan domain.DeviceEvent
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{paused: true, events: make(chan domain.DeviceEvent, 8)}
}

func (d *fakeDevice) Load(uri string) error {
	d.calls = append(d.calls, "load:"+uri)
	if d.loadErr != nil {
		return d.loadErr
	}
	d.src = uri
	d.playing, d.paused, d.ended = false, true, false
	return nil
}

func (d *fakeDevice) Play() error {
	if d.src == "" {
		return domain.ErrNoSource
	}
	d.calls = append(d.calls, "play")
	d.playing, d.paused, d.ended = true, false, false
	return nil
}

func (d *fakeDevice) Pause() error {
	d.calls = append(d.calls, "pause")
	d.playing, d.paused = false, true
	return nil
}

func (d *fakeDevice) SeekToStart() error {
	d.calls = append(d.calls, "seek")
	return nil
}

func (d *fakeDevice) AtStart() bool                     { return true }
func (d *fakeDevice) Playing() bool                     { return d.playing }
func (d *fakeDevice) Paused() bool                      { return d.paused }
func (d *fakeDevice) Ended() bool                       { return d.ended }
func (d *fakeDevice) HasSource() bool                   { return d.src != "" }
func (d *fakeDevice) Events() <-chan domain.DeviceEvent { return d.events }

// finish simulates the clip running out.
func (d *fakeDevice) finish() {
	d.playing, d.paused, d.ended = false, true, true
}

type fakeCapture struct {
	open     bool
	starts   int
	stops    int
	overlaps int
	startErr error
	events   chan domain.CaptureEvent
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{events: make(chan domain.CaptureEvent, 8)}
}

func (f *fakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.open {
		f.overlaps++
	}
	f.open = true
	f.starts++
	return nil
}

func (f *fakeCapture) Stop() error {
	f.stops++
	return nil
}

func (f *fakeCapture) Events() <-chan domain.CaptureEvent { return f.events }

type fakeSink struct {
	notices []domain.Notice
}

func (s *fakeSink) Notify(message string, level domain.NoticeLevel) {
	s.notices = append(s.notices, domain.Notice{Message: message, Level: level})
}

func (s *fakeSink) last() domain.Notice {
	if len(s.notices) == 0 {
		return domain.Notice{}
	}
	return s.notices[len(s.notices)-1]
}

func (s *fakeSink) has(message string, level domain.NoticeLevel) bool {
	for _, n := range s.notices {
		if n.Message == message && n.Level == level {
			return true
		}
	}
	return false
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) active() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireAll runs every pending timer. With includeStopped it also runs timers
// that were stopped, as a timer that already fired before Stop would.
func (c *fakeClock) fireAll(includeStopped bool) {
	for _, t := range c.timers {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		t.fn()
	}
}

type harness struct {
	ctrl    *Controller
	device  *fakeDevice
	capture *fakeCapture
	sink    *fakeSink
	clock   *fakeClock
}

func newHarness(t interface{ Fatalf(string, ...any) }) *harness {
	h := &harness{
		device:  newFakeDevice(),
		capture: newFakeCapture(),
		sink:    &fakeSink{},
		clock:   &fakeClock{},
	}
	ctrl, err := NewController(h.device, h.capture, h.sink, WithClock(h.clock))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *harness) send(ev Event) {
	h.ctrl.Dispatch(ev)
	h.drain()
}

// drain processes events posted by fired timers.
func (h *harness) drain() {
	for {
		select {
		case ev := <-h.ctrl.inbox:
			h.ctrl.Dispatch(ev)
		default:
			return
		}
	}
}

func (h *harness) tick() {
	h.clock.fireAll(false)
	h.drain()
}

// endSession delivers the capture service's sessionEnded.
func (h *harness) endSession() {
	h.capture.open = false
	h.send(Event{Type: EventSessionEnded})
}

func (h *harness) load(titles ...string) {
	var articles []domain.Article
	for _, title := range titles {
		articles = append(articles, domain.Article{
			Title:       title,
			AudioShort:  title + "-short.mp3",
			AudioMedium: title + "-medium.mp3",
			AudioFull:   title + "-full.mp3",
		})
	}
	h.send(Event{Type: EventArticlesLoaded, Batch: domain.ArticleBatch{Success: true, Count: len(articles), Articles: articles, Topic: "technology"}})
}
