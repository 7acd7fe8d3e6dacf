package repository

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
)

func newTestRepo(t *testing.T) (*FileRepository, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	repo, err := NewFileRepository(fs, "/cfg/preferences.json")
	if err != nil {
		t.Fatal(err)
	}
	repo.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return repo, fs
}

func TestLoadMissingPreferences(t *testing.T) {
	repo, _ := newTestRepo(t)
	p, ok, err := repo.Load()
	if err != nil || ok {
		t.Fatalf("Load = %+v, %t, %v", p, ok, err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	repo, fs := newTestRepo(t)
	if err := repo.Save(domain.Preferences{Topic: "science", VoiceEnabled: true}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, "/cfg/preferences.json.tmp"); ok {
		t.Fatal("tmp file left behind")
	}

	other, err := NewFileRepository(fs, "/cfg/preferences.json")
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := other.Load()
	if err != nil || !ok {
		t.Fatalf("Load: %t, %v", ok, err)
	}
	if got.Topic != "science" || !got.VoiceEnabled || got.SavedAt.IsZero() {
		t.Fatalf("preferences = %+v", got)
	}
}

func TestLoadCorruptPreferences(t *testing.T) {
	repo, fs := newTestRepo(t)
	_ = afero.WriteFile(fs, "/cfg/preferences.json", []byte("{"), 0o644)
	if _, _, err := repo.Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestObserverSavesOnlyPreferenceChanges(t *testing.T) {
	repo, fs := newTestRepo(t)
	article := domain.Article{Title: "Chips"}
	snap := core.Snapshot{Topic: "technology", Enabled: true, Index: 0, Current: &article}

	repo.OnSnapshot(snap)
	if _, err := fs.Stat("/cfg/preferences.json"); err != nil {
		t.Fatalf("not saved: %v", err)
	}

	// Navigation is not a preference.
	_ = fs.Remove("/cfg/preferences.json")
	snap.Index = 1
	snap.TrackInfo = "Robots - Short Version"
	repo.OnSnapshot(snap)
	if ok, _ := afero.Exists(fs, "/cfg/preferences.json"); ok {
		t.Fatal("navigation change was saved")
	}

	snap.Enabled = false
	repo.OnSnapshot(snap)
	got, _, err := repo.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Topic != "technology" || got.VoiceEnabled {
		t.Fatalf("preferences = %+v", got)
	}
}

func TestObserverIgnoresStartupSnapshot(t *testing.T) {
	repo, fs := newTestRepo(t)
	repo.OnSnapshot(core.Snapshot{})
	if ok, _ := afero.Exists(fs, "/cfg/preferences.json"); ok {
		t.Fatal("saved before any topic was loaded")
	}
}

func TestPathFor(t *testing.T) {
	if got := PathFor("/home/u/.config/pulse-voice/config.yaml"); got != "/home/u/.config/pulse-voice/preferences.json" {
		t.Fatalf("PathFor = %s", got)
	}
}
