package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/voxtodo/internal/engine"
	"github.com/antoniostano/voxtodo/internal/resolver"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

type createTaskRequest struct {
	SessionID     string `json:"session_id"`
	Title         string `json:"title"`
	Priority      string `json:"priority"`
	ScheduledTime string `json:"scheduled_time"`
	Category      string `json:"category"`
}

type updateTaskRequest struct {
	SessionID     string `json:"session_id"`
	Title         string `json:"title"`
	Priority      string `json:"priority"`
	ScheduledTime string `json:"scheduled_time"`
	Category      string `json:"category"`
}

type deleteTaskRequest struct {
	SessionID string `json:"session_id"`
}

type taskListResponse struct {
	Tasks   []tasks.Task `json:"tasks"`
	Message string       `json:"message"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	list, err := s.engine.Tasks(r.Context(), sessionID, category)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if list == nil {
		list = []tasks.Task{}
	}
	respondJSON(w, http.StatusOK, taskListResponse{
		Tasks:   list,
		Message: listMessage(len(list)),
	})
}

func (s *Server) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter q is required")
		return
	}

	outcome, err := s.engine.Execute(r.Context(), r.URL.Query().Get("session_id"), engine.Intent{
		Operation: engine.OpSearch,
		Query:     query,
		Utterance: "search tasks: " + query,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	outcome, err := s.engine.Execute(r.Context(), req.SessionID, engine.Intent{
		Operation: engine.OpCreate,
		Fields: engine.Fields{
			Title:         req.Title,
			Priority:      req.Priority,
			ScheduledTime: req.ScheduledTime,
			Category:      req.Category,
		},
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if outcome.Status != engine.StatusOK {
		respondOutcome(w, outcome)
		return
	}
	respondJSON(w, http.StatusCreated, outcome.Task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	outcome, err := s.engine.Execute(r.Context(), r.URL.Query().Get("session_id"), engine.Intent{
		Operation: engine.OpGet,
		Reference: refPtr(resolver.ByID(id)),
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if outcome.Status != engine.StatusOK {
		respondOutcome(w, outcome)
		return
	}
	respondJSON(w, http.StatusOK, outcome.Task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	outcome, err := s.engine.Execute(r.Context(), req.SessionID, engine.Intent{
		Operation: engine.OpUpdate,
		Reference: refPtr(resolver.ByID(id)),
		Fields: engine.Fields{
			Title:         req.Title,
			Priority:      req.Priority,
			ScheduledTime: req.ScheduledTime,
			Category:      req.Category,
		},
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if outcome.Status != engine.StatusOK {
		respondOutcome(w, outcome)
		return
	}
	respondJSON(w, http.StatusOK, outcome.Task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	// The body is optional on delete; clients may pass session_id
	// either way.
	var req deleteTaskRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}

	outcome, err := s.engine.Execute(r.Context(), sessionID, engine.Intent{
		Operation: engine.OpDelete,
		Reference: refPtr(resolver.ByID(id)),
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if outcome.Status != engine.StatusOK {
		respondOutcome(w, outcome)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": outcome.Message})
}

// respondOutcome maps a non-ok domain outcome to an HTTP status for
// the REST surface. The conversational endpoint keeps everything 200.
func respondOutcome(w http.ResponseWriter, outcome engine.Outcome) {
	status := http.StatusOK
	switch outcome.Status {
	case engine.StatusNotFound:
		status = http.StatusNotFound
	case engine.StatusInvalid:
		status = http.StatusBadRequest
	case engine.StatusAmbiguous:
		status = http.StatusConflict
	}
	respondJSON(w, status, outcome)
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_task_id", "task id must be a positive integer")
		return 0, false
	}
	return id, true
}

func listMessage(n int) string {
	if n == 0 {
		return "No tasks found."
	}
	return "Found " + strconv.Itoa(n) + " task(s)"
}

func refPtr(ref resolver.Reference) *resolver.Reference { return &ref }
