package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/core/session"
	"github.com/markdave123-py/smartdoc/internal/services"
)

type SessionHandler struct {
	sessions
	svc *services.ChatService
}

func NewSessionHandler(svc *services.ChatService, store core.SessionStore, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: newSessions(store, logger), svc: svc}
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

// SetCredential handles the API key form.
func (h *SessionHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}
	if err := h.save(r.Context(), h.svc.SetCredential(sess, r.PostFormValue("api_key"))); err != nil {
		http.Error(w, "could not save session", http.StatusInternalServerError)
		return
	}
	redirectHome(w, r)
}

func (h *SessionHandler) PutCredential(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "api_key is required"})
		return
	}

	next := h.svc.SetCredential(sess, req.APIKey)
	if err := h.save(r.Context(), next); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(next))
}

// Reset handles the clear form.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	next, err := h.svc.Reset(r.Context(), sess)
	if err != nil {
		h.logger.Error("reset session", zap.String("session_id", sess.ID), zap.Error(err))
		next = h.svc.Notify(sess, err)
	}
	if err := h.save(r.Context(), next); err != nil {
		http.Error(w, "could not save session", http.StatusInternalServerError)
		return
	}
	redirectHome(w, r)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// EndSession destroys the session and its document.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	if err := h.svc.End(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), sess.ID); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}
