package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/pflag"

	"pulse-voice/internal/adapter/primary/web"
	"pulse-voice/internal/config"
	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
)

// shellController is what the shell drives on core.Controller.
type shellController interface {
	Snapshot() core.Snapshot
	Enable()
	Disable()
	Toggle()
	Do(core.Action)
	Interpret(text string)
	Select(index int, level domain.NarrationLevel)
	Refresh(ctx context.Context, topic string) error
}

// speechInput is the listening session the shell types into.
type speechInput interface {
	Active() bool
	Feed(text string) error
}

// shell interprets one line at a time. Lines starting with ':' are shell
// commands; anything else is speech while a listening session is open and
// a typed command otherwise.
type shell struct {
	ctrl     shellController
	speech   speechInput
	status   func() domain.Notice
	out      io.Writer
	registry *core.Registry

	sessionVerbosity int
}

func newShell(ctrl shellController, speech speechInput, status func() domain.Notice, out io.Writer) *shell {
	return &shell{
		ctrl:             ctrl,
		speech:           speech,
		status:           status,
		out:              out,
		registry:         core.NewRegistry(),
		sessionVerbosity: verbosity,
	}
}

// handle processes line and reports whether the shell should exit.
func (s *shell) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ":") {
		tokens, err := shlex.Split(line[1:])
		if err != nil {
			fmt.Fprintf(s.out, "Parse error: %v\n", err)
			return false
		}
		if len(tokens) == 0 {
			return false
		}
		return s.command(ctx, tokens[0], tokens[1:])
	}

	if s.speech.Active() {
		err := s.speech.Feed(line)
		if err == nil {
			return false
		}
		if !errors.Is(err, domain.ErrNotInSession) {
			fmt.Fprintf(s.out, "speech: %v\n", err)
			return false
		}
	}
	s.ctrl.Interpret(line)
	return false
}

func (s *shell) command(ctx context.Context, name string, args []string) bool {
	switch name {
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Bye!")
		return true
	case "help", "h":
		printShellHelp(s.out)
	case "enable":
		s.ctrl.Enable()
	case "disable":
		s.ctrl.Disable()
	case "toggle", "mic":
		s.ctrl.Toggle()
	case "topic":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: :topic <name>")
			return false
		}
		s.refresh(ctx, args[0])
	case "refresh":
		topic := s.ctrl.Snapshot().Topic
		if len(args) == 1 {
			topic = args[0]
		}
		if topic == "" {
			topic = config.DefaultTopic
		}
		s.refresh(ctx, topic)
	case "status":
		s.printStatus()
	case "list", "ls":
		s.printList()
	case "do":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: :do <action>")
			return false
		}
		action, ok := s.registry.ParseAction(args[0])
		if !ok {
			fmt.Fprintf(s.out, "unknown action %q; see :help\n", args[0])
			return false
		}
		s.ctrl.Do(action)
	case "select", "play":
		if err := s.selectArticle(args); err != nil {
			fmt.Fprintf(s.out, "select: %v\n", err)
		}
	case "log":
		if err := s.handleLog(args); err != nil {
			fmt.Fprintf(s.out, "log: %v\n", err)
		}
	default:
		fmt.Fprintf(s.out, "unknown shell command :%s; see :help\n", name)
	}
	return false
}

func (s *shell) refresh(ctx context.Context, topic string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.ctrl.Refresh(ctx, strings.ToLower(topic)); err != nil {
		if errors.Is(err, domain.ErrInvalidTopic) {
			fmt.Fprintf(s.out, "invalid topic %q\n", topic)
		}
		logging.Debugf("shell: refresh %s: %v", topic, err)
	}
}

func (s *shell) selectArticle(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: :select <number> [short|medium|full]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%q is not a number", args[0])
	}
	snap := s.ctrl.Snapshot()
	if n < 1 || n > snap.Count {
		return fmt.Errorf("%w: pick 1-%d", domain.ErrIndexOutOfRange, snap.Count)
	}
	level := domain.LevelShort
	if len(args) == 2 {
		if level, err = domain.ParseNarrationLevel(args[1]); err != nil {
			return err
		}
	}
	s.ctrl.Select(n-1, level)
	return nil
}

func (s *shell) printStatus() {
	snap := s.ctrl.Snapshot()
	fmt.Fprintf(s.out, "voice:   %s\n", snap.Listening)
	fmt.Fprintf(s.out, "topic:   %s (%d articles)\n", snap.Topic, snap.Count)
	if snap.Current != nil {
		fmt.Fprintf(s.out, "article: %d. %s [%s]\n", snap.Index+1, snap.Current.Title, snap.Level)
	}
	if snap.TrackInfo != "" {
		fmt.Fprintf(s.out, "track:   %s\n", snap.TrackInfo)
	}
	if s.status != nil {
		fmt.Fprintf(s.out, "status:  %s\n", s.status().Message)
	}
}

func (s *shell) printList() {
	snap := s.ctrl.Snapshot()
	if snap.Count == 0 {
		fmt.Fprintln(s.out, "No articles loaded")
		return
	}
	for i, a := range snap.Articles {
		marker := " "
		if i == snap.Index {
			marker = ">"
		}
		fmt.Fprintf(s.out, "%s %2d. %s (%s)\n", marker, i+1, a.Title, a.Source)
	}
}

func (s *shell) handleLog(args []string) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var vcount int
	var level string
	var show bool
	fs.CountVarP(&vcount, "verbose", "v", "Increase verbosity (-v... up to 4)")
	fs.StringVar(&level, "level", "", "set level (error|warn|info|debug|trace)")
	fs.BoolVarP(&show, "show", "s", false, "show the current level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case show && vcount == 0 && level == "":
		fmt.Fprintf(s.out, "log level: %s (-v x%d)\n", logging.LevelName(), logging.Verbosity())
		return nil
	case level != "":
		_, count, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		s.sessionVerbosity = count
	case vcount > 0:
		s.sessionVerbosity = vcount
	default:
		fmt.Fprintf(s.out, "log level: %s (-v x%d)\n", logging.LevelName(), logging.Verbosity())
		return nil
	}

	verbosity = s.sessionVerbosity
	logging.SetVerbosity(s.sessionVerbosity)
	fmt.Fprintf(s.out, "log level set to %s (-v x%d)\n", logging.LevelName(), logging.Verbosity())
	return nil
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, `Anything you type is heard as speech while the mic is listening,
and run as a typed command otherwise (next, back, more, pause, ...).

Shell commands:
  :enable / :disable / :toggle   # voice commands on/off
  :topic science                 # load another topic
  :refresh                       # reload the current topic
  :list                          # list the loaded articles
  :select 3 full                 # play article 3 at a level
  :do repeat                     # run an action directly
  :status                        # show the controller state
  :log -vv                       # more detailed logging
  :log --show                    # show the current log level
  :quit                          # leave the shell`)
}

// promptObserver marks the prompt while a listening session is open.
type promptObserver struct {
	rl   *readline.Instance
	base string
}

func (p promptObserver) OnSnapshot(s core.Snapshot) {
	prompt := p.base
	if s.Listening == domain.ListeningActive {
		prompt = "🎤 " + p.base
	}
	p.rl.SetPrompt(prompt)
	p.rl.Refresh()
}

func runShell(cfg config.Config, prompt, addr string, opts appOptions) error {
	historyFile := filepath.Join(os.TempDir(), "pulse-voice-shell.history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	out := rl.Stdout()
	logging.SetOutput(rl.Stderr())
	defer logging.SetOutput(os.Stderr)

	opts.publishers = append(opts.publishers, consolePublisher(out))
	opts.observers = append(opts.observers, promptObserver{rl: rl, base: prompt})
	var (
		hub  *web.Hub
		ctrl *core.Controller
	)
	if addr != "" {
		hub = web.NewHub(func(text string) { ctrl.Interpret(text) })
		opts.publishers = append(opts.publishers, hub)
		opts.observers = append(opts.observers, hub)
	}
	a, err := newApp(cfg, opts)
	if err != nil {
		return err
	}
	ctrl = a.ctrl

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		a.wait()
	}()
	a.start(ctx)

	if hub != nil {
		srv := newWebServer(a, hub, addr)
		go func() {
			if err := srv.Start(); err != nil {
				logging.Errorf("web server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(out, "Web UI running at http://%s\n", addr)
	}

	sh := newShell(a.ctrl, a.listener, a.bar.Current, out)
	fmt.Fprintln(out, "Voice shell started. ':help' for commands, ':quit' to leave.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Fprintln(out)
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if sh.handle(ctx, line) {
			return nil
		}
	}
}
