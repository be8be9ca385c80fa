package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/smartdoc/internal/api/middlewares"
	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
	"github.com/markdave123-py/smartdoc/internal/services"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: core.Kind(err), Message: services.FormatError(err)})
}

// statusFor maps an error kind to the API status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrRefused), errors.Is(err, core.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrEmptyQuestion), errors.Is(err, core.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// sessions is the load/save plumbing shared by every handler.
type sessions struct {
	store  core.SessionStore
	logger *zap.Logger
}

func newSessions(store core.SessionStore, logger *zap.Logger) sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sessions{store: store, logger: logger}
}

func (s sessions) current(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
	}
	return sess, ok
}

func (s sessions) save(ctx context.Context, sess models.Session) error {
	if err := s.store.Save(ctx, &sess); err != nil {
		s.logger.Error("save session", zap.String("session_id", sess.ID), zap.Error(err))
		return err
	}
	return nil
}

// redirectHome sends form posts back to the chat page.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type sessionView struct {
	ID            string               `json:"id"`
	HasCredential bool                 `json:"has_credential"`
	Document      *models.DocumentInfo `json:"document,omitempty"`
	PageCount     int                  `json:"page_count"`
	History       []models.ChatMessage `json:"history"`
	Notice        *models.Notice       `json:"notice,omitempty"`
}

func viewOf(sess models.Session) sessionView {
	history := sess.History
	if history == nil {
		history = []models.ChatMessage{}
	}
	return sessionView{
		ID:            sess.ID,
		HasCredential: sess.HasCredential(),
		Document:      sess.Document,
		PageCount:     len(sess.Pages),
		History:       history,
		Notice:        sess.Notice,
	}
}
