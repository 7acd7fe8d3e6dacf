// Package playback implements domain.PlaybackDevice as a simulated output
// that runs each clip for its real length.
package playback

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
)

type stopper interface {
	Stop() bool
}

// Device plays one clip at a time. A clip's length is read from its WAV
// header; other formats are assumed to last the fallback duration.
type Device struct {
	fs       afero.Fs
	root     string
	fallback time.Duration

	after func(time.Duration, func()) stopper
	now   func() time.Time

	mu        sync.Mutex
	src       string
	file      string
	length    time.Duration
	position  time.Duration
	startedAt time.Time
	playing   bool
	ended     bool
	timer     stopper
	gen       uint64

	events chan domain.DeviceEvent
}

// NewDevice resolves clip URIs against root on fs.
func NewDevice(fs afero.Fs, root string, fallback time.Duration) *Device {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Device{
		fs:       fs,
		root:     root,
		fallback: fallback,
		after: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		now:    time.Now,
		events: make(chan domain.DeviceEvent, 32),
	}
}

// Events implements domain.PlaybackDevice.
func (d *Device) Events() <-chan domain.DeviceEvent {
	return d.events
}

func (d *Device) resolve(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrapf(err, "playback: parsing %q failed", uri)
	}
	p := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if p == "" {
		return "", errors.Errorf("playback: empty audio path in %q", uri)
	}
	return filepath.Join(d.root, filepath.FromSlash(p)), nil
}

func (d *Device) probe(file string) (time.Duration, error) {
	f, err := d.fs.Open(file)
	if err != nil {
		return 0, errors.Wrapf(err, "playback: opening %s failed", file)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if dec.IsValidFile() {
		length, err := dec.Duration()
		if err != nil {
			return 0, errors.Wrapf(err, "playback: reading duration of %s failed", file)
		}
		return length, nil
	}
	if d.fallback <= 0 {
		return 0, errors.Errorf("playback: %s is not a WAV file", file)
	}
	logging.Debugf("playback: %s is not WAV, assuming %s", file, d.fallback)
	return d.fallback, nil
}

// Load replaces the current clip. The device is left paused at the start.
func (d *Device) Load(uri string) error {
	file, err := d.resolve(uri)
	if err != nil {
		return err
	}
	length, err := d.probe(file)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.src, d.file, d.length = uri, file, length
	d.position = 0
	d.playing, d.ended = false, false
	logging.Infof("playback: loaded %s (%s)", uri, length)
	return nil
}

// Play starts or resumes output. A clip that vanished since Load is
// reported through an error event, as an async media failure would be.
func (d *Device) Play() error {
	d.mu.Lock()
	if d.src == "" {
		d.mu.Unlock()
		return domain.ErrNoSource
	}
	if d.playing {
		d.mu.Unlock()
		return nil
	}
	if _, err := d.fs.Stat(d.file); err != nil {
		d.src, d.file = "", ""
		d.mu.Unlock()
		d.emit(domain.DeviceEvent{Kind: domain.DeviceError, Message: err.Error()})
		return nil
	}
	if d.ended {
		d.position = 0
		d.ended = false
	}
	d.playing = true
	d.startedAt = d.now()
	d.armLocked()
	d.mu.Unlock()

	d.emit(domain.DeviceEvent{Kind: domain.DeviceStarted})
	return nil
}

// Pause stops output, keeping the position.
func (d *Device) Pause() error {
	d.mu.Lock()
	if !d.playing {
		d.mu.Unlock()
		return nil
	}
	d.position = d.positionLocked()
	d.playing = false
	d.stopTimerLocked()
	d.mu.Unlock()

	d.emit(domain.DeviceEvent{Kind: domain.DevicePaused})
	return nil
}

// SeekToStart rewinds the clip.
func (d *Device) SeekToStart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.src == "" {
		return domain.ErrNoSource
	}
	d.position = 0
	d.ended = false
	if d.playing {
		d.startedAt = d.now()
		d.armLocked()
	}
	return nil
}

// AtStart reports whether the position is zero.
func (d *Device) AtStart() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked() == 0
}

// Position returns the current offset into the clip.
func (d *Device) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

func (d *Device) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *Device) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.playing
}

func (d *Device) Ended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ended
}

func (d *Device) HasSource() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.src != ""
}

func (d *Device) positionLocked() time.Duration {
	if !d.playing {
		return d.position
	}
	pos := d.position + d.now().Sub(d.startedAt)
	if pos > d.length {
		pos = d.length
	}
	return pos
}

func (d *Device) armLocked() {
	d.stopTimerLocked()
	d.gen++
	gen := d.gen
	d.timer = d.after(d.length-d.position, func() { d.finish(gen) })
}

func (d *Device) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Device) finish(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.playing {
		d.mu.Unlock()
		return
	}
	d.playing = false
	d.ended = true
	d.position = d.length
	d.timer = nil
	d.mu.Unlock()

	d.emit(domain.DeviceEvent{Kind: domain.DeviceEnded})
}

func (d *Device) emit(ev domain.DeviceEvent) {
	logging.Tracef("playback: %s", ev.Kind)
	d.events <- ev
}
