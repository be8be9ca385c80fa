package handlers

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
	"github.com/markdave123-py/smartdoc/internal/services"
)

type DocumentHandler struct {
	sessions
	svc       *services.ChatService
	maxUpload int64
}

func NewDocumentHandler(svc *services.ChatService, store core.SessionStore, maxUploadMB int, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		sessions:  newSessions(store, logger),
		svc:       svc,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

type uploadResponse struct {
	Document *models.DocumentInfo `json:"document"`
	Pages    int                  `json:"pages"`
	Preview  string               `json:"preview"`
}

// Upload handles the upload form.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	next, err := h.upload(w, r, sess)
	if err != nil {
		h.logger.Debug("upload failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	if err := h.save(r.Context(), next); err != nil {
		http.Error(w, "could not save session", http.StatusInternalServerError)
		return
	}
	redirectHome(w, r)
}

func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	next, err := h.upload(w, r, sess)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.save(r.Context(), next); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Document: next.Document,
		Pages:    len(next.Pages),
		Preview:  services.Preview(next),
	})
}

// Download serves the uploaded original.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	data, info, err := h.svc.DocumentFile(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.FileName}))
	_, _ = w.Write(data)
}

func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request, sess models.Session) (models.Session, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrInvalidUpload, err)
		return h.svc.Notify(sess, err), err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrInvalidUpload, err)
		return h.svc.Notify(sess, err), err
	}
	defer file.Close()

	if !isPDF(header) {
		err := fmt.Errorf("%w: %s is not a PDF", core.ErrInvalidUpload, header.Filename)
		return h.svc.Notify(sess, err), err
	}

	return h.svc.Upload(r.Context(), sess, header.Filename, "application/pdf", file)
}

func isPDF(header *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return true
	}
	ct, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	return ct == "application/pdf"
}
