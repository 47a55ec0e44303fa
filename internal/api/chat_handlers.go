package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// WebChannel names sessions started through the HTTP chat endpoints.
const WebChannel = "web"

// maxChatBodyBytes bounds a chat turn request body.
const maxChatBodyBytes = 16 << 10

// startSessionHandler handles POST /chat/sessions
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Start(r.Context(), "", WebChannel)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to start session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}
	slog.Debug("Server.startSessionHandler: session started", "sessionID", session.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(session.View()))
}

// getSessionHandler handles GET /chat/sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, "Server.getSessionHandler", id, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session.View()))
}

// sendMessageHandler handles POST /chat/sessions/{id}/messages
func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.ChatMessageRequest
	if !decodeJSONBody(w, r, maxChatBodyBytes, &req) {
		return
	}

	turn, err := s.sessions.Handle(r.Context(), id, req.Text)
	if err != nil {
		s.writeSessionError(w, "Server.sendMessageHandler", id, err)
		return
	}

	view := models.ChatTurnView{
		SessionID:        id,
		State:            turn.State,
		Messages:         turn.Messages,
		SubmissionFailed: turn.SubmissionFailed,
	}
	if turn.Contact != nil {
		view.ContactID = turn.Contact.ID
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

// endSessionHandler handles DELETE /chat/sessions/{id}
func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.End(r.Context(), id); err != nil {
		s.writeSessionError(w, "Server.endSessionHandler", id, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session ended", nil))
}

// writeSessionError maps session manager errors to HTTP responses.
func (s *Server) writeSessionError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, flow.ErrSessionClosed):
		writeJSONResponse(w, http.StatusConflict, models.Error(s.sessions.Script().ClosedMessage))
	case errors.Is(err, flow.ErrEmptyAnswer), errors.Is(err, flow.ErrUnknownOption), errors.Is(err, flow.ErrAnswerTooLong):
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(err.Error()))
	default:
		slog.Error(op+": session operation failed", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
