// Package repository persists user preferences between runs.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
)

// PreferencesFile is the file name used next to the config file.
const PreferencesFile = "preferences.json"

// FileRepository implements domain.PreferencesRepository using a JSON file.
// It also observes the controller and saves whenever a preference changes.
type FileRepository struct {
	fs   afero.Fs
	path string
	now  func() time.Time

	mu   sync.Mutex
	last domain.Preferences
}

// NewFileRepository creates a repository at path. Parent directories are
// created automatically.
func NewFileRepository(fs afero.Fs, path string) (*FileRepository, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create preferences dir: %w", err)
	}
	return &FileRepository{fs: fs, path: path, now: time.Now}, nil
}

// PathFor returns the preferences file that belongs with a config file.
func PathFor(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), PreferencesFile)
}

// Load reads the saved preferences. The bool is false when nothing has
// been saved yet.
func (r *FileRepository) Load() (domain.Preferences, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Preferences{}, false, nil
		}
		return domain.Preferences{}, false, fmt.Errorf("read preferences: %w", err)
	}
	var p domain.Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Preferences{}, false, fmt.Errorf("unmarshal preferences: %w", err)
	}
	r.last = p
	return p, true, nil
}

// Save writes the preferences atomically.
func (r *FileRepository) Save(p domain.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(p)
}

func (r *FileRepository) saveLocked(p domain.Preferences) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = r.now()
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	// Atomic write
	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename tmp: %w", err)
	}
	r.last = p
	return nil
}

// OnSnapshot implements core.Observer.
func (r *FileRepository) OnSnapshot(snap core.Snapshot) {
	if snap.Topic == "" {
		return
	}
	p := domain.Preferences{Topic: snap.Topic, VoiceEnabled: snap.Enabled}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last.Topic == p.Topic && r.last.VoiceEnabled == p.VoiceEnabled {
		return
	}
	if err := r.saveLocked(p); err != nil {
		logging.Warnf("preferences: %v", err)
	}
}
