package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
	"github.com/markdave123-py/smartdoc/internal/services"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type PageHandler struct {
	sessions
	svc              *services.ChatService
	md               goldmark.Markdown
	provider         string
	serverCredential bool
	maxUploadMB      int
}

func NewPageHandler(svc *services.ChatService, store core.SessionStore, provider string, serverCredential bool, maxUploadMB int, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		sessions:         newSessions(store, logger),
		svc:              svc,
		md:               goldmark.New(goldmark.WithExtensions(extension.GFM)),
		provider:         provider,
		serverCredential: serverCredential,
		maxUploadMB:      maxUploadMB,
	}
}

type messageView struct {
	User    bool
	Content string
	HTML    template.HTML
}

type pageView struct {
	Provider        string
	NeedsCredential bool
	MaxUploadMB     int
	Notice          *models.Notice
	Document        *models.DocumentInfo
	PageCount       int
	Preview         string
	Messages        []messageView
}

// Page renders the chat page. A pending notice is shown once.
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r)
	if !ok {
		return
	}

	sess, notice := h.svc.TakeNotice(sess)
	if notice != nil {
		if err := h.save(r.Context(), sess); err != nil {
			http.Error(w, "could not save session", http.StatusInternalServerError)
			return
		}
	}

	view := pageView{
		Provider:        h.provider,
		NeedsCredential: !h.serverCredential && !sess.HasCredential(),
		MaxUploadMB:     h.maxUploadMB,
		Notice:          notice,
		Document:        sess.Document,
		PageCount:       len(sess.Pages),
		Preview:         services.Preview(sess),
	}
	for _, m := range sess.History {
		mv := messageView{User: m.Role == models.RoleUser, Content: m.Content}
		if !mv.User {
			mv.HTML = h.render(m.Content)
		}
		view.Messages = append(view.Messages, mv)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		h.logger.Error("render page", zap.Error(err))
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// render converts an answer from markdown. Raw HTML in the answer is dropped.
func (h *PageHandler) render(md string) template.HTML {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
