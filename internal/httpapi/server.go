package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/voxtodo/internal/config"
	"github.com/antoniostano/voxtodo/internal/engine"
	"github.com/antoniostano/voxtodo/internal/intent"
	"github.com/antoniostano/voxtodo/internal/observability"
	"github.com/antoniostano/voxtodo/internal/session"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

type Server struct {
	cfg      config.Config
	engine   *engine.Engine
	parser   intent.Parser
	sessions *session.Registry
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, eng *engine.Engine, parser intent.Parser, sessions *session.Registry, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		engine:   eng,
		parser:   parser,
		sessions: sessions,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients must come from the same origin; other
				// clients typically omit the header.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/session", s.handleCreateSession)
	r.Get("/api/session/ws", s.handleSessionWS)
	r.Get("/api/context", s.handleGetContext)
	r.Post("/api/voice-command", s.handleVoiceCommand)

	r.Get("/api/tasks", s.handleListTasks)
	r.Get("/api/tasks/search", s.handleSearchTasks)
	r.Post("/api/tasks", s.handleCreateTask)
	r.Get("/api/tasks/{id}", s.handleGetTask)
	r.Put("/api/tasks/{id}", s.handleUpdateTask)
	r.Delete("/api/tasks/{id}", s.handleDeleteTask)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()
	s.sessions.Acquire(id)
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	respondJSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

type contextResponse struct {
	SessionID string             `json:"session_id"`
	History   []session.Exchange `json:"history"`
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	sessionID := session.Normalize(r.URL.Query().Get("session_id"))
	history := s.engine.Context(sessionID)
	if history == nil {
		history = []session.Exchange{}
	}
	respondJSON(w, http.StatusOK, contextResponse{SessionID: sessionID, History: history})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondEngineError(w http.ResponseWriter, err error) {
	if resp := engineErrorResponse(err); resp != nil {
		respondError(w, http.StatusServiceUnavailable, resp.Code, resp.Error)
		return
	}
	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func engineErrorResponse(err error) *errorResponse {
	if errors.Is(err, tasks.ErrStoreUnavailable) {
		return &errorResponse{Error: err.Error(), Code: "store_unavailable"}
	}
	return nil
}
