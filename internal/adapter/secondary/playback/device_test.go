package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"pulse-voice/internal/domain"
)

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	now    time.Time
	timers []*manualTimer
}

func (c *manualClock) after(d time.Duration, f func()) stopper {
	t := &manualTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) last() *manualTimer {
	return c.timers[len(c.timers)-1]
}

func writeWAV(t *testing.T, fs afero.Fs, name string, seconds int) {
	t.Helper()
	f, err := fs.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	const rate = 8000
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, rate*seconds),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func newTestDevice(t *testing.T) (*Device, afero.Fs, *manualClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/audio/static/audio/a_short.wav", 2)
	if err := afero.WriteFile(fs, "/audio/static/audio/a_full.mp3", []byte("ID3 not really mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	clock := &manualClock{now: time.Unix(1000, 0)}
	d := NewDevice(fs, "/audio", 15*time.Second)
	d.after = clock.after
	d.now = func() time.Time { return clock.now }
	return d, fs, clock
}

func nextEvent(t *testing.T, d *Device) domain.DeviceEvent {
	t.Helper()
	select {
	case ev := <-d.Events():
		return ev
	default:
		t.Fatal("no device event")
		return domain.DeviceEvent{}
	}
}

func assertNoEvent(t *testing.T, d *Device) {
	t.Helper()
	select {
	case ev := <-d.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestLoadReadsWAVDuration(t *testing.T) {
	d, _, clock := newTestDevice(t)
	if err := d.Load("/static/audio/a_short.wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !d.HasSource() || !d.Paused() || d.Playing() || !d.AtStart() {
		t.Fatal("loaded device should be paused at start")
	}
	assertNoEvent(t, d)

	if err := d.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := nextEvent(t, d); ev.Kind != domain.DeviceStarted {
		t.Fatalf("event = %+v", ev)
	}
	delay := clock.last().delay
	if delay < 2*time.Second || delay > 2100*time.Millisecond {
		t.Fatalf("clip timer = %s, want about 2s", delay)
	}
}

func TestFallbackDurationForOtherFormats(t *testing.T) {
	d, _, clock := newTestDevice(t)
	if err := d.Load("static/audio/a_full.mp3"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = d.Play()
	if got := clock.last().delay; got != 15*time.Second {
		t.Fatalf("clip timer = %s, want fallback", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	d, _, _ := newTestDevice(t)
	if err := d.Load("static/audio/nope.wav"); err == nil {
		t.Fatal("expected error")
	}
	if d.HasSource() {
		t.Fatal("failed load left a source")
	}
	if err := d.Play(); !errors.Is(err, domain.ErrNoSource) {
		t.Fatalf("Play err = %v, want ErrNoSource", err)
	}
}

func TestLifecycleEventsFireOncePerTransition(t *testing.T) {
	d, _, clock := newTestDevice(t)
	_ = d.Load("static/audio/a_short.wav")

	_ = d.Play()
	_ = d.Play()
	if ev := nextEvent(t, d); ev.Kind != domain.DeviceStarted {
		t.Fatalf("event = %+v", ev)
	}
	assertNoEvent(t, d)

	clock.now = clock.now.Add(500 * time.Millisecond)
	_ = d.Pause()
	_ = d.Pause()
	if ev := nextEvent(t, d); ev.Kind != domain.DevicePaused {
		t.Fatalf("event = %+v", ev)
	}
	assertNoEvent(t, d)
	if got := d.Position(); got != 500*time.Millisecond {
		t.Fatalf("position = %s", got)
	}

	// The stopped timer firing late must not end the clip.
	clock.timers[0].fn()
	assertNoEvent(t, d)

	_ = d.Play()
	nextEvent(t, d)
	remaining := clock.last().delay
	clock.now = clock.now.Add(remaining)
	clock.last().fn()
	if ev := nextEvent(t, d); ev.Kind != domain.DeviceEnded {
		t.Fatalf("event = %+v", ev)
	}
	if !d.Ended() || d.Playing() || !d.Paused() {
		t.Fatal("device should be ended")
	}
	clock.last().fn()
	assertNoEvent(t, d)
}

func TestPlayAfterEndRestarts(t *testing.T) {
	d, _, clock := newTestDevice(t)
	_ = d.Load("static/audio/a_short.wav")
	_ = d.Play()
	nextEvent(t, d)
	clock.last().fn()
	nextEvent(t, d)

	_ = d.Play()
	if ev := nextEvent(t, d); ev.Kind != domain.DeviceStarted {
		t.Fatalf("event = %+v", ev)
	}
	if d.Ended() || !d.AtStart() {
		t.Fatal("replay should start from zero")
	}
}

func TestSeekToStart(t *testing.T) {
	d, _, clock := newTestDevice(t)
	if err := d.SeekToStart(); !errors.Is(err, domain.ErrNoSource) {
		t.Fatalf("err = %v", err)
	}
	_ = d.Load("static/audio/a_short.wav")
	_ = d.Play()
	clock.now = clock.now.Add(time.Second)
	_ = d.Pause()
	if d.AtStart() {
		t.Fatal("should have advanced")
	}
	if err := d.SeekToStart(); err != nil {
		t.Fatal(err)
	}
	if !d.AtStart() {
		t.Fatal("seek did not rewind")
	}
}

func TestVanishedClipReportsErrorEvent(t *testing.T) {
	d, fs, _ := newTestDevice(t)
	_ = d.Load("static/audio/a_short.wav")
	if err := fs.Remove("/audio/static/audio/a_short.wav"); err != nil {
		t.Fatal(err)
	}
	if err := d.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := nextEvent(t, d); ev.Kind != domain.DeviceError || ev.Message == "" {
		t.Fatalf("event = %+v", ev)
	}
	if d.HasSource() || d.Playing() {
		t.Fatal("device should have dropped the source")
	}
}

func TestResolveStaysUnderRoot(t *testing.T) {
	d, _, _ := newTestDevice(t)
	got, err := d.resolve("http://localhost:5000/../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/audio/etc/passwd" {
		t.Fatalf("resolve = %s", got)
	}
}
