package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pulse-voice/internal/adapter/primary/web"
	"pulse-voice/internal/config"
	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
	"pulse-voice/internal/notify"
)

func newListenCmd() *cobra.Command {
	var (
		addr   string
		prompt string
		topic  string
		voice  bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Start the voice shell (optionally with the web UI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if topic != "" {
				cfg.Articles.Topic = topic
			}
			if cmd.Flags().Changed("voice") {
				cfg.Voice.Enabled = voice
			}
			return runShell(cfg, prompt, addr, appOptions{
				pinTopic: topic != "",
				pinVoice: cmd.Flags().Changed("voice"),
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "also serve the web UI on this address")
	cmd.Flags().StringVar(&prompt, "prompt", "pulse> ", "shell prompt")
	cmd.Flags().StringVar(&topic, "topic", "", "topic to load at start (default: last session, then config)")
	cmd.Flags().BoolVar(&voice, "voice", false, "enable voice commands at start (default: last session, then config)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr, topic string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if topic != "" {
				cfg.Articles.Topic = topic
			}

			var ctrl *core.Controller
			hub := web.NewHub(func(text string) { ctrl.Interpret(text) })
			a, err := newApp(cfg, appOptions{
				publishers: []notify.Publisher{consolePublisher(cmd.OutOrStdout()), hub},
				observers:  []core.Observer{hub},
				pinTopic:   topic != "",
			})
			if err != nil {
				return err
			}
			ctrl = a.ctrl

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			a.start(ctx)

			srv := newWebServer(a, hub, addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Pulse Voice UI running at http://%s\n", addr)
			logging.Infof("Pulse Voice UI: http://%s", addr)

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			err = srv.Start()
			stop()
			a.wait()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&topic, "topic", "", "topic to load at start (default: last session, then config)")
	return cmd
}

func newWebServer(a *app, hub *web.Hub, addr string) *web.Server {
	return web.NewServer(a.ctrl, addr,
		web.WithSpeech(a.listener),
		web.WithTopics(a.source),
		web.WithStatus(a.bar.Current),
		web.WithHub(hub),
		web.WithRefresher(a.refresher),
	)
}

func newArticlesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "articles [topic]",
		Short: "Fetch and list the articles for a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			topic := cfg.Articles.Topic
			if len(args) == 1 {
				topic = args[0]
			}
			src, err := newSource(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := fetchContext()
			defer cancel()
			batch, err := src.Fetch(ctx, topic)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), batch)
			}
			return printArticles(cmd.OutOrStdout(), topic, batch)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw batch as JSON")
	return cmd
}

func printArticles(w io.Writer, topic string, batch domain.ArticleBatch) error {
	if batch.Empty() {
		fmt.Fprintf(w, "No %s news available. Try refreshing later.\n", topic)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tSOURCE\tPUBLISHED")
	for i, a := range batch.Articles {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, a.Title, a.Source, a.Timestamp.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the topics the article source serves",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := newSource(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := fetchContext()
			defer cancel()
			topics, err := src.Topics(ctx)
			if err != nil {
				return err
			}
			for _, t := range topics {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "Show the voice command vocabulary in match order",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEYWORD\tACTION")
			for _, e := range core.NewRegistry().Entries() {
				fmt.Fprintf(tw, "%s\t%s\n", e.Keyword, e.Action)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, core.HelpText)
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the configuration",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			cfg, err := store.Load()
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var (
		addr           string
		newsURL        string
		file           string
		topic          string
		timeout        time.Duration
		refresh        time.Duration
		audioRoot      string
		fallback       time.Duration
		voiceFlag      string
		sessionTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			cfg, err := store.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("news-url") {
				cfg.Articles.BaseURL = newsURL
			}
			if flags.Changed("file") {
				cfg.Articles.File = file
			}
			if flags.Changed("topic") {
				cfg.Articles.Topic = strings.ToLower(strings.TrimSpace(topic))
			}
			if flags.Changed("timeout") {
				cfg.Articles.Timeout = timeout
			}
			if flags.Changed("refresh-interval") {
				cfg.Articles.RefreshInterval = refresh
			}
			if flags.Changed("audio-root") {
				cfg.Audio.Root = audioRoot
			}
			if flags.Changed("fallback") {
				cfg.Audio.FallbackDuration = fallback
			}
			if flags.Changed("voice") {
				switch voiceFlag {
				case "true", "on":
					cfg.Voice.Enabled = true
				case "false", "off":
					cfg.Voice.Enabled = false
				default:
					return errors.New("--voice takes true or false")
				}
			}
			if flags.Changed("session-timeout") {
				cfg.Voice.SessionTimeout = sessionTimeout
			}

			cfg, err = config.Normalize(cfg)
			if err != nil {
				return err
			}
			if err := store.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s: topic=%s voice=%t\n", store.Path(), cfg.Articles.Topic, cfg.Voice.Enabled)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "web UI listen address")
	cmd.Flags().StringVar(&newsURL, "news-url", "", "news server base URL")
	cmd.Flags().StringVar(&file, "file", "", "article snapshot file (empty to use the news server)")
	cmd.Flags().StringVar(&topic, "topic", "", "default topic")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "news server timeout, e.g. 10s")
	cmd.Flags().DurationVar(&refresh, "refresh-interval", 0, "reload the current topic this often (0 disables)")
	cmd.Flags().StringVar(&audioRoot, "audio-root", "", "directory the audio paths resolve against")
	cmd.Flags().DurationVar(&fallback, "fallback", 0, "length assumed for clips that are not WAV")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "true/false to enable voice commands at start")
	cmd.Flags().DurationVar(&sessionTimeout, "session-timeout", 0, "silence before a listening session gives up")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
