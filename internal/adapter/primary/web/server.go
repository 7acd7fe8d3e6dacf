// Package web is the primary adapter that exposes the controller over a
// JSON API, a websocket feed and a small control page.
package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
	"pulse-voice/internal/usecase"
)

// Controller is the subset of core.Controller the server drives.
type Controller interface {
	Snapshot() core.Snapshot
	Enable()
	Disable()
	Toggle()
	Do(core.Action)
	Interpret(text string)
	Select(index int, level domain.NarrationLevel)
	Refresh(ctx context.Context, topic string) error
}

// Speech accepts utterances for the open listening session.
type Speech interface {
	Feed(text string) error
}

// TopicLister lists the topics the article source serves.
type TopicLister interface {
	Topics(ctx context.Context) ([]string, error)
}

// RefreshReporter reports the periodic refresher's history.
type RefreshReporter interface {
	Status() usecase.RefreshStatus
}

// Server is a primary adapter that exposes HTTP API + UI.
type Server struct {
	ctrl     Controller
	speech   Speech
	topics   TopicLister
	status   func() domain.Notice
	hub      *Hub
	refresh  RefreshReporter
	registry *core.Registry
	server   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithSpeech enables POST /api/speech.
func WithSpeech(s Speech) Option { return func(srv *Server) { srv.speech = s } }

// WithTopics enables GET /api/topics.
func WithTopics(t TopicLister) Option { return func(srv *Server) { srv.topics = t } }

// WithStatus reports the notice on display in GET /api/state.
func WithStatus(f func() domain.Notice) Option { return func(srv *Server) { srv.status = f } }

// WithRefresher adds the refresher's status to GET /api/health.
func WithRefresher(r RefreshReporter) Option { return func(srv *Server) { srv.refresh = r } }

// WithHub serves hub on /ws.
func WithHub(h *Hub) Option { return func(srv *Server) { srv.hub = h } }

// NewServer creates the HTTP server bound to addr.
func NewServer(ctrl Controller, addr string, opts ...Option) *Server {
	srv := &Server{ctrl: ctrl, registry: core.NewRegistry()}
	for _, opt := range opts {
		opt(srv)
	}

	r := httprouter.New()
	r.GET("/", srv.handleRoot)
	r.GET("/api/health", srv.handleHealth)
	r.GET("/api/state", srv.handleState)
	r.GET("/api/commands", srv.handleCommands)
	r.GET("/api/topics", srv.handleTopics)
	r.POST("/api/command", srv.handleCommand)
	r.POST("/api/select", srv.handleSelect)
	r.POST("/api/speech", srv.handleSpeech)
	r.POST("/api/voice/:op", srv.handleVoice)
	r.POST("/api/articles/refresh", srv.handleRefresh)
	if srv.hub != nil {
		r.Handler(http.MethodGet, "/ws", srv.hub)
	}

	srv.server = &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(r),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks and serves HTTP traffic.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.server.Shutdown(ctx)
}

type stateView struct {
	State  core.Snapshot  `json:"state"`
	Notice *domain.Notice `json:"notice,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	view := stateView{State: s.ctrl.Snapshot()}
	if s.status != nil {
		n := s.status()
		view.Notice = &n
	}
	respondJSON(w, http.StatusOK, view)
}

type healthView struct {
	Status  string                 `json:"status"`
	Clients int                    `json:"clients"`
	Refresh *usecase.RefreshStatus `json:"refresh,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	view := healthView{Status: "healthy"}
	if s.hub != nil {
		view.Clients = s.hub.Clients()
	}
	if s.refresh != nil {
		st := s.refresh.Status()
		view.Refresh = &st
	}
	respondJSON(w, http.StatusOK, view)
}

type commandView struct {
	Keyword string      `json:"keyword"`
	Action  core.Action `json:"action"`
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries := s.registry.Entries()
	out := make([]commandView, len(entries))
	for i, e := range entries {
		out[i] = commandView{Keyword: e.Keyword, Action: e.Action}
	}
	respondJSON(w, http.StatusOK, map[string]any{"commands": out, "help": core.HelpText})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.topics == nil {
		respondError(w, http.StatusNotFound, "no article source configured")
		return
	}
	topics, err := s.topics.Topics(r.Context())
	if err != nil {
		logging.Errorf("web: listing topics: %v", err)
		respondError(w, http.StatusBadGateway, "Error connecting to news server")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

type commandPayload struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req commandPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	switch {
	case req.Action != "":
		action, ok := s.registry.ParseAction(req.Action)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown action "+req.Action)
			return
		}
		s.ctrl.Do(action)
	case req.Text != "":
		s.ctrl.Interpret(req.Text)
	default:
		respondError(w, http.StatusBadRequest, "text or action is required")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type selectPayload struct {
	Index int                   `json:"index"`
	Level domain.NarrationLevel `json:"level"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := selectPayload{Level: domain.LevelShort}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Index < 0 || req.Index >= s.ctrl.Snapshot().Count {
		respondError(w, http.StatusBadRequest, domain.ErrIndexOutOfRange.Error())
		return
	}
	s.ctrl.Select(req.Index, req.Level)
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.speech == nil {
		respondError(w, http.StatusNotFound, "no listening service configured")
		return
	}
	var req commandPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.speech.Feed(req.Text); err != nil {
		if errors.Is(err, domain.ErrNotInSession) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	switch p.ByName("op") {
	case "enable":
		s.ctrl.Enable()
	case "disable":
		s.ctrl.Disable()
	case "toggle":
		s.ctrl.Toggle()
	default:
		respondError(w, http.StatusNotFound, "unknown voice operation "+p.ByName("op"))
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = s.ctrl.Snapshot().Topic
	}
	if err := s.ctrl.Refresh(r.Context(), topic); err != nil {
		if errors.Is(err, domain.ErrInvalidTopic) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "Error connecting to news server")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "topic": topic})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Errorf("web: encode JSON: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
