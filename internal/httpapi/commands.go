package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/voxtodo/internal/engine"
	"github.com/antoniostano/voxtodo/internal/policy"
	"github.com/antoniostano/voxtodo/internal/session"
)

const wsWriteTimeout = 10 * time.Second

type voiceCommandRequest struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command"`
}

type voiceCommandResponse struct {
	SessionID string           `json:"session_id"`
	Operation engine.Operation `json:"operation"`
	engine.Outcome
}

func (s *Server) handleVoiceCommand(w http.ResponseWriter, r *http.Request) {
	var req voiceCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, status, errResp := s.runCommand(r, req)
	if errResp != nil {
		respondError(w, status, errResp.Code, errResp.Error)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// runCommand is the shared parse-then-execute path behind the HTTP and
// websocket command surfaces. Domain outcomes (ambiguous, not found,
// invalid) come back as a normal response; only transport and store
// failures become an error.
func (s *Server) runCommand(r *http.Request, req voiceCommandRequest) (voiceCommandResponse, int, *errorResponse) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return voiceCommandResponse{}, http.StatusBadRequest,
			&errorResponse{Code: "invalid_request", Error: "command is required"}
	}
	if s.parser == nil {
		return voiceCommandResponse{}, http.StatusNotImplemented,
			&errorResponse{Code: "intent_unavailable", Error: "no intent parser configured; use the /api/tasks endpoints"}
	}

	sessionID := session.Normalize(req.SessionID)
	parsed, err := s.parser.Parse(r.Context(), command, s.engine.Context(sessionID))
	if err != nil {
		safe, _ := policy.RedactPII(command)
		log.Printf("intent parse failed for session %s (command %q): %v", sessionID, safe, err)
		return voiceCommandResponse{}, http.StatusBadGateway,
			&errorResponse{Code: "intent_failed", Error: "could not interpret the command"}
	}
	parsed.Utterance = command

	outcome, err := s.engine.Execute(r.Context(), sessionID, parsed)
	if err != nil {
		if resp := engineErrorResponse(err); resp != nil {
			return voiceCommandResponse{}, http.StatusServiceUnavailable, resp
		}
		return voiceCommandResponse{}, http.StatusInternalServerError,
			&errorResponse{Code: "internal_error", Error: err.Error()}
	}

	return voiceCommandResponse{
		SessionID: sessionID,
		Operation: parsed.Operation,
		Outcome:   outcome,
	}, http.StatusOK, nil
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := session.Normalize(r.URL.Query().Get("session_id"))

	for {
		var req voiceCommandRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		resp, _, errResp := s.runCommand(r, req)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if errResp != nil {
			if err := conn.WriteJSON(errResp); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}
