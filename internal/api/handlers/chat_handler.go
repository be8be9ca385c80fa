package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
	"github.com/markdave123-py/smartdoc/internal/services"
)

type ChatHandler struct {
	sessions
	svc *services.ChatService
}

func NewChatHandler(svc *services.ChatService, store core.SessionStore, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{sessions: newSessions(store, logger), svc: svc}
}

type ChatRequest struct {
	Question string `json:"question"`
}

type ChatResponse struct {
	Answer  string               `json:"answer"`
	History []models.ChatMessage `json:"history"`
}

// Ask handles the question form. Failures come back as a notice on the page.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	next, err := h.svc.Ask(r.Context(), sess, r.PostFormValue("question"))
	if err != nil {
		h.logger.Debug("ask failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	if err := h.save(r.Context(), next); err != nil {
		http.Error(w, "could not save session", http.StatusInternalServerError)
		return
	}
	redirectHome(w, r)
}

func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", core.ErrEmptyQuestion))
		return
	}

	next, err := h.svc.Ask(r.Context(), sess, req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.save(r.Context(), next); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:  next.History[len(next.History)-1].Content,
		History: next.History,
	})
}
