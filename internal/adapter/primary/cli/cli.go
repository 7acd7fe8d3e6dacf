// Package cli is the primary adapter that translates command lines and the
// interactive voice shell into controller calls.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"pulse-voice/internal/adapter/secondary/articles"
	"pulse-voice/internal/adapter/secondary/capture"
	"pulse-voice/internal/adapter/secondary/playback"
	"pulse-voice/internal/adapter/secondary/repository"
	"pulse-voice/internal/config"
	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
	"pulse-voice/internal/notify"
	"pulse-voice/internal/usecase"
)

var (
	cfgPath   string
	verbosity int

	// appFs backs the config store, the article snapshot and the audio root.
	appFs afero.Fs = afero.NewOsFs()
)

// NewRootCmd creates the root CLI command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pulse-voice",
		Short:         "Hands-free voice control for narrated news",
		Long:          "Plays narrated news articles and steers them with spoken (or typed) commands such as next, more and repeat.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "path to the config file")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase logging (-v, -vv, ... up to 4 times)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetVerbosity(verbosity)
	}

	cmd.AddCommand(
		newListenCmd(),
		newServeCmd(),
		newArticlesCmd(),
		newTopicsCmd(),
		newCommandsCmd(),
		newConfigCmd(),
	)
	return cmd
}

func openStore() (*config.FileStore, error) {
	return config.NewFileStore(appFs, cfgPath)
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (config.Config, error) {
	store, err := openStore()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := store.Load()
	if err != nil {
		return config.Config{}, err
	}
	return config.Normalize(config.ApplyEnv(cfg))
}

// newSource prefers a local snapshot file over the news server.
func newSource(cfg config.Config) (domain.ArticleSource, error) {
	if cfg.Articles.File != "" {
		logging.Infof("articles: reading snapshot %s", cfg.Articles.File)
		return articles.NewFileSource(appFs, cfg.Articles.File), nil
	}
	logging.Infof("articles: using news server %s", cfg.Articles.BaseURL)
	src, err := articles.NewHTTPSource(cfg.Articles.BaseURL, cfg.Articles.Timeout)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// app is one wired controller with its adapters.
type app struct {
	cfg       config.Config
	source    domain.ArticleSource
	device    *playback.Device
	listener  *capture.LineListener
	bar       *notify.StatusBar
	ctrl      *core.Controller
	prefs     *repository.FileRepository
	saved     domain.Preferences
	hasSaved  bool
	refresher *usecase.Refresher
	pinTopic  bool
	pinVoice  bool

	wg sync.WaitGroup
}

type appOptions struct {
	publishers []notify.Publisher
	observers  []core.Observer
	// pinTopic and pinVoice keep cfg's values over the saved preferences.
	pinTopic bool
	pinVoice bool
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	source, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	prefs, err := repository.NewFileRepository(appFs, repository.PathFor(cfgPath))
	if err != nil {
		return nil, err
	}
	saved, hasSaved, err := prefs.Load()
	if err != nil {
		logging.Warnf("ignoring saved preferences: %v", err)
	}

	a := &app{
		cfg:      cfg,
		source:   source,
		device:   playback.NewDevice(appFs, cfg.Audio.Root, cfg.Audio.FallbackDuration),
		listener: capture.NewLineListener(cfg.Voice.SessionTimeout),
		bar:      notify.NewStatusBar(opts.publishers...),
		prefs:    prefs,
		saved:    saved,
		hasSaved: hasSaved,
		pinTopic: opts.pinTopic,
		pinVoice: opts.pinVoice,
	}
	coreOpts := []core.Option{core.WithArticleSource(source), core.WithObserver(prefs)}
	for _, o := range opts.observers {
		coreOpts = append(coreOpts, core.WithObserver(o))
	}
	a.ctrl, err = core.NewController(a.device, a.listener, a.bar, coreOpts...)
	if err != nil {
		return nil, err
	}
	a.refresher = usecase.NewRefresher(a.ctrl, a.device.Playing, cfg.Articles.RefreshInterval, cfg.Articles.Timeout)
	return a, nil
}

// startTopic is the topic loaded at start.
func (a *app) startTopic() string {
	if !a.pinTopic && a.hasSaved && a.saved.Topic != "" {
		return a.saved.Topic
	}
	return a.cfg.Articles.Topic
}

// startVoice reports whether voice commands are enabled at start.
func (a *app) startVoice() bool {
	if !a.pinVoice && a.hasSaved {
		return a.saved.VoiceEnabled
	}
	return a.cfg.Voice.Enabled
}

// start runs the controller until ctx is done and loads the start topic.
// Call wait after cancelling ctx.
func (a *app) start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Errorf("controller stopped: %v", err)
		}
	}()
	if a.startVoice() {
		a.ctrl.Enable()
	}
	topic := a.startTopic()
	go func() {
		if err := a.ctrl.Refresh(ctx, topic); err != nil {
			logging.Warnf("initial load of %s failed: %v", topic, err)
		}
	}()
	a.refresher.Start(ctx)
}

func (a *app) wait() {
	a.wg.Wait()
}

// consolePublisher prints notices other than the resting Ready message.
func consolePublisher(w io.Writer) notify.Publisher {
	var mu sync.Mutex
	return notify.PublisherFunc(func(n domain.Notice) {
		if n.Message == notify.ReadyMessage {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "%s %s\n", noticePrefix(n.Level), n.Message)
	})
}

func noticePrefix(level domain.NoticeLevel) string {
	switch level {
	case domain.NoticeSuccess:
		return "[ok]  "
	case domain.NoticeWarning:
		return "[warn]"
	case domain.NoticeDanger:
		return "[err] "
	default:
		return "[info]"
	}
}

func fetchContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
