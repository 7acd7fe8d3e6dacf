package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"pulse-voice/internal/config"
	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
)

type fakeController struct {
	snap  core.Snapshot
	calls []string
}

func (f *fakeController) Snapshot() core.Snapshot { return f.snap }
func (f *fakeController) Enable()                 { f.calls = append(f.calls, "enable") }
func (f *fakeController) Disable()                { f.calls = append(f.calls, "disable") }
func (f *fakeController) Toggle()                 { f.calls = append(f.calls, "toggle") }
func (f *fakeController) Do(a core.Action)        { f.calls = append(f.calls, "do:"+string(a)) }
func (f *fakeController) Interpret(text string)   { f.calls = append(f.calls, "interpret:"+text) }
func (f *fakeController) Select(i int, l domain.NarrationLevel) {
	f.calls = append(f.calls, "select:"+l.String()+":"+string(rune('0'+i)))
}
func (f *fakeController) Refresh(_ context.Context, topic string) error {
	f.calls = append(f.calls, "refresh:"+topic)
	if strings.Contains(topic, "/") {
		return domain.ErrInvalidTopic
	}
	return nil
}

func (f *fakeController) last() string {
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

type fakeSpeech struct {
	active bool
	fed    []string
}

func (f *fakeSpeech) Active() bool { return f.active }
func (f *fakeSpeech) Feed(text string) error {
	if !f.active {
		return domain.ErrNotInSession
	}
	f.active = false
	f.fed = append(f.fed, text)
	return nil
}

func newTestShell() (*shell, *fakeController, *fakeSpeech, *bytes.Buffer) {
	ctrl := &fakeController{snap: core.Snapshot{
		Topic: "technology",
		Count: 2,
		Index: 1,
		Articles: []domain.Article{
			{Title: "Chips", Source: "Wire"},
			{Title: "Robots", Source: "Daily"},
		},
	}}
	speech := &fakeSpeech{}
	out := &bytes.Buffer{}
	status := func() domain.Notice { return domain.Notice{Message: "Ready"} }
	return newShell(ctrl, speech, status, out), ctrl, speech, out
}

func TestShellRoutesSpeechAndTypedCommands(t *testing.T) {
	sh, ctrl, speech, _ := newTestShell()

	speech.active = true
	sh.handle(context.Background(), "  next please ")
	if len(speech.fed) != 1 || speech.fed[0] != "next please" {
		t.Fatalf("fed = %v", speech.fed)
	}
	if len(ctrl.calls) != 0 {
		t.Fatalf("speech also reached the controller: %v", ctrl.calls)
	}

	sh.handle(context.Background(), "repeat")
	if ctrl.last() != "interpret:repeat" {
		t.Fatalf("typed command call = %q", ctrl.last())
	}

	sh.handle(context.Background(), "   ")
	if len(ctrl.calls) != 1 {
		t.Fatalf("blank line reached the controller: %v", ctrl.calls)
	}
}

func TestShellCommands(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{":enable", "enable"},
		{":disable", "disable"},
		{":toggle", "toggle"},
		{":do back", "do:previous"},
		{":do more", "do:more"},
		{":topic Science", "refresh:science"},
		{":refresh", "refresh:technology"},
		{":select 2 full", "select:full:1"},
		{":select 1", "select:short:0"},
	}
	for _, tt := range tests {
		sh, ctrl, _, _ := newTestShell()
		if quit := sh.handle(context.Background(), tt.line); quit {
			t.Fatalf("%s quit the shell", tt.line)
		}
		if got := ctrl.last(); got != tt.want {
			t.Errorf("%s: call = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestShellRejectsBadInput(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{":do dance", "unknown action"},
		{":select 3", "out of range"},
		{":select x", "not a number"},
		{":select 1 epic", "select:"},
		{":topic", "usage: :topic"},
		{":topic a/b", "invalid topic"},
		{":frobnicate", "unknown shell command"},
		{`:do "next`, "Parse error"},
	}
	for _, tt := range tests {
		sh, ctrl, _, out := newTestShell()
		sh.handle(context.Background(), tt.line)
		if !strings.Contains(out.String(), tt.want) {
			t.Errorf("%s: output %q does not mention %q", tt.line, out.String(), tt.want)
		}
		for _, c := range ctrl.calls {
			if strings.HasPrefix(c, "do:") || strings.HasPrefix(c, "select:") {
				t.Errorf("%s: unexpected call %q", tt.line, c)
			}
		}
	}
}

func TestShellStatusListAndQuit(t *testing.T) {
	sh, _, _, out := newTestShell()
	sh.handle(context.Background(), ":list")
	if !strings.Contains(out.String(), ">  2. Robots (Daily)") {
		t.Fatalf("list output:\n%s", out.String())
	}
	out.Reset()
	sh.handle(context.Background(), ":status")
	if !strings.Contains(out.String(), "technology (2 articles)") || !strings.Contains(out.String(), "status:  Ready") {
		t.Fatalf("status output:\n%s", out.String())
	}
	if !sh.handle(context.Background(), ":quit") {
		t.Fatal(":quit did not end the shell")
	}
	// A bare "quit" is the stop voice command, not a shell exit.
	if sh.handle(context.Background(), "quit") {
		t.Fatal("bare quit ended the shell")
	}
}

func TestShellLogLevel(t *testing.T) {
	sh, _, _, out := newTestShell()
	defer sh.handle(context.Background(), ":log --level warn")
	sh.handle(context.Background(), ":log --level debug")
	if !strings.Contains(out.String(), "log level set to debug") {
		t.Fatalf("output = %q", out.String())
	}
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--config", "/cfg/config.yaml"}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()
	prev := appFs
	appFs = afero.NewMemMapFs()
	t.Cleanup(func() { appFs = prev })
	return appFs
}

func TestConfigSetThenGet(t *testing.T) {
	fs := useMemFs(t)
	runRoot(t, "config", "set", "--topic", "Science", "--voice", "true", "--session-timeout", "5s")

	store, err := config.NewFileStore(fs, "/cfg/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Articles.Topic != "science" || !cfg.Voice.Enabled || cfg.Voice.SessionTimeout.Seconds() != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}

	out := runRoot(t, "config", "get")
	if !strings.Contains(out, "topic: science") || !strings.Contains(out, "sessionTimeout: 5s") {
		t.Fatalf("config get:\n%s", out)
	}
}

func TestArticlesFromSnapshotFile(t *testing.T) {
	fs := useMemFs(t)
	snapshot := `{"technology": [
		{"title": "Older", "source": "Wire", "timestamp": "2025-01-01T00:00:00Z"},
		{"title": "Newer", "source": "Daily", "timestamp": "2025-01-02T00:00:00Z"}
	]}`
	if err := afero.WriteFile(fs, "/news.json", []byte(snapshot), 0o644); err != nil {
		t.Fatal(err)
	}
	runRoot(t, "config", "set", "--file", "/news.json")

	out := runRoot(t, "articles")
	newer, older := strings.Index(out, "Newer"), strings.Index(out, "Older")
	if newer < 0 || older < 0 || newer > older {
		t.Fatalf("articles output:\n%s", out)
	}
	if out := runRoot(t, "articles", "sports"); !strings.Contains(out, "No sports news available") {
		t.Fatalf("empty topic output:\n%s", out)
	}
	if out := runRoot(t, "topics"); strings.TrimSpace(out) != "technology" {
		t.Fatalf("topics output:\n%s", out)
	}
}

func TestCommandsListsVocabulary(t *testing.T) {
	useMemFs(t)
	out := runRoot(t, "commands")
	if !strings.Contains(out, "back") || !strings.Contains(out, "Available Voice Commands") {
		t.Fatalf("commands output:\n%s", out)
	}
	if strings.Index(out, "short") > strings.Index(out, "play ") {
		t.Fatalf("short must be listed before play:\n%s", out)
	}
}

func TestStartPrefersSavedPreferences(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Voice.Enabled = false
	saved := domain.Preferences{Topic: "science", VoiceEnabled: true}

	tests := []struct {
		name      string
		app       *app
		wantTopic string
		wantVoice bool
	}{
		{"nothing saved", &app{cfg: cfg}, "technology", false},
		{"saved wins", &app{cfg: cfg, saved: saved, hasSaved: true}, "science", true},
		{"flags win", &app{cfg: cfg, saved: saved, hasSaved: true, pinTopic: true, pinVoice: true}, "technology", false},
	}
	for _, tt := range tests {
		if got := tt.app.startTopic(); got != tt.wantTopic {
			t.Errorf("%s: topic = %s, want %s", tt.name, got, tt.wantTopic)
		}
		if got := tt.app.startVoice(); got != tt.wantVoice {
			t.Errorf("%s: voice = %t, want %t", tt.name, got, tt.wantVoice)
		}
	}
}

func TestNewAppWiresFileSource(t *testing.T) {
	fs := useMemFs(t)
	prev := cfgPath
	cfgPath = "/cfg/config.yaml"
	t.Cleanup(func() { cfgPath = prev })
	_ = afero.WriteFile(fs, "/news.json", []byte(`{"technology": []}`), 0o644)

	cfg := config.DefaultConfig()
	cfg.Articles.File = "/news.json"
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	topics, err := a.source.Topics(context.Background())
	if err != nil || len(topics) != 1 {
		t.Fatalf("topics = %v, %v", topics, err)
	}
	if ok, _ := afero.DirExists(fs, "/cfg"); !ok {
		t.Fatal("preferences dir not created")
	}
}
