// Package http exposes a session.Controller as a JSON API with
// per-user Server-Sent Events.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/branchtale"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/internal/presentation/graph"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/session"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; choices themselves are capped by the sanitizer.
const maxBodyBytes = 64 << 10

// inspectable is implemented by graphs that can list their nodes.
type inspectable interface {
	Nodes() []domain.StoryNode
	Entries() []string
}

// Server serves reader sessions over HTTP.
type Server struct {
	Controller *session.Controller
	Streams    *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type startRequest struct {
	Prompt string `json:"prompt,omitempty"`
	NodeID string `json:"node_id,omitempty"`
	Random bool   `json:"random,omitempty"`
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

type turnResponse struct {
	Session *domain.Session  `json:"session"`
	Choices domain.ChoiceSet `json:"choices"`
	Ended   bool             `json:"ended"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler for ctrl.
func NewHandler(ctrl *session.Controller, opts ...Option) http.Handler {
	s := &Server{
		Controller: ctrl,
		Streams:    NewStreamManager(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/sessions", s.ListSessions)
	r.Route("/sessions/{userID}", func(r chi.Router) {
		r.Get("/", s.ResumeSession)
		r.Post("/", s.StartSession)
		r.Post("/choices", s.Advance)
		r.Post("/end", s.EndSession)
		r.Get("/events", s.SubscribeEvents)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartSession handles POST /sessions/{userID}.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if !s.decode(w, r, &body) {
		return
	}
	userID := chi.URLParam(r, "userID")

	var (
		turn *session.Turn
		err  error
	)
	if body.Random {
		turn, err = s.Controller.StartRandom(r.Context(), userID, nil)
	} else {
		turn, err = s.Controller.Start(r.Context(), userID, session.StartRequest{
			Prompt: body.Prompt,
			NodeID: body.NodeID,
		})
	}
	if err != nil {
		s.writeError(w, "StartSession", err)
		return
	}
	s.Streams.Reset(turn.Session.UserID)
	s.Streams.Publish(turn.Session)
	s.writeJSON(w, http.StatusCreated, toResponse(turn))
}

// Advance handles POST /sessions/{userID}/choices.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	var body choiceRequest
	if !s.decode(w, r, &body) {
		return
	}
	turn, err := s.Controller.Advance(r.Context(), chi.URLParam(r, "userID"), body.Choice)
	if err != nil {
		s.writeError(w, "Advance", err)
		return
	}
	s.Streams.Publish(turn.Session)
	s.writeJSON(w, http.StatusOK, toResponse(turn))
}

// EndSession handles POST /sessions/{userID}/end.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	final, err := s.Controller.End(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, "EndSession", err)
		return
	}
	s.Streams.Publish(final)
	s.writeJSON(w, http.StatusOK, toResponse(&session.Turn{Session: final, Choices: domain.ChoiceSet{}}))
}

// ResumeSession handles GET /sessions/{userID}.
func (s *Server) ResumeSession(w http.ResponseWriter, r *http.Request) {
	turn, err := s.Controller.Resume(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, "ResumeSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(turn))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	users, err := s.Controller.List(r.Context())
	if err != nil {
		s.writeError(w, "ListSessions", err)
		return
	}
	if users == nil {
		users = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

// GetGraph handles GET /graph. It returns Mermaid text, or the node list
// with ?format=json. ?user= overlays that reader's path on the chart.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, ok := s.Controller.Graph().(inspectable)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no story graph loaded"})
		return
	}

	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, http.StatusOK, g.Nodes())
		return
	}

	var overlay *graph.Overlay
	if userID := r.URL.Query().Get("user"); userID != "" {
		current, err := s.Controller.Session(r.Context(), userID)
		if err != nil {
			s.writeError(w, "GetGraph", err)
			return
		}
		overlay = graph.OverlayFromSession(current)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(g.Nodes(), g.Entries(), overlay))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "branchtale-http",
		"version": strings.TrimSpace(branchtale.Version),
	})
}

// SubscribeEvents handles GET /sessions/{userID}/events (SSE).
// Each event carries a domain.SessionDiff as JSON.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	userID := chi.URLParam(r, "userID")
	ch, cancel := s.Streams.Subscribe(userID)
	defer cancel()
	s.logger.Info("SSE: subscribed", "user_id", userID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "user_id", userID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op+" rejected", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func toResponse(t *session.Turn) turnResponse {
	choices := t.Choices
	if choices == nil {
		choices = domain.ChoiceSet{}
	}
	return turnResponse{Session: t.Session, Choices: choices, Ended: t.Ended()}
}
