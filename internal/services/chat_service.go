package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/core/prompt"
	"github.com/markdave123-py/smartdoc/internal/models"
)

const (
	previewPages = 2
	previewRunes = 1000
)

// ChatConfig tunes the question answering pipeline.
type ChatConfig struct {
	Bucket            string
	PageLimit         int
	DefaultCredential string        // used when the session carries no key
	LLMTimeout        time.Duration // 0 = no extra deadline
}

// ChatService drives extract → assemble → answer for one session at a time.
// Every operation takes the current session and returns the updated one; the
// input value is never modified.
type ChatService struct {
	extractor core.PageExtractor
	assembler *prompt.Assembler
	llm       core.LLMProvider
	objects   core.ObjectClient
	cfg       ChatConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewChatService(extractor core.PageExtractor, assembler *prompt.Assembler, llm core.LLMProvider, objects core.ObjectClient, cfg ChatConfig, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		extractor: extractor,
		assembler: assembler,
		llm:       llm,
		objects:   objects,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// NewSession starts an empty session.
func (s *ChatService) NewSession() models.Session {
	now := s.now()
	return models.Session{
		ID:        uuid.NewString(),
		History:   []models.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Upload stores the original document, extracts its first pages and makes it
// the session's document. Chat history starts over. On failure the previous
// document and history are kept and a notice is attached.
func (s *ChatService) Upload(ctx context.Context, sess models.Session, filename, contentType string, r io.Reader) (models.Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		err = fmt.Errorf("read upload: %w", err)
		return s.fail(sess, err, ""), err
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	docID := uuid.NewString()
	key := objectKey(sess.ID, docID, filename)

	url, err := s.objects.UploadFile(ctx, s.cfg.Bucket, key, bytes.NewReader(data), contentType)
	if err != nil {
		err = fmt.Errorf("store document: %w", err)
		return s.fail(sess, err, ""), err
	}

	ext, err := s.extractor.ExtractPages(ctx, bytes.NewReader(data), s.cfg.PageLimit)
	if err != nil {
		s.deleteObject(ctx, key)
		s.logger.Warn("extraction failed",
			zap.String("session_id", sess.ID),
			zap.String("file_name", filename),
			zap.Error(err),
		)
		return s.fail(sess, err, ""), err
	}

	if sess.Document != nil {
		s.deleteObject(ctx, sess.Document.StorageKey)
	}

	out := sess.Clone()
	out.Document = &models.DocumentInfo{
		ID:          docID,
		FileName:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		StorageKey:  key,
		StorageURL:  url,
		TotalPages:  ext.TotalPages,
		UploadedAt:  s.now(),
	}
	out.Pages = ext.Pages
	out.History = []models.ChatMessage{}
	out.Notice = nil
	out.UpdatedAt = s.now()

	s.logger.Info("document loaded",
		zap.String("session_id", sess.ID),
		zap.String("document_id", docID),
		zap.Int("pages", len(ext.Pages)),
		zap.Int("total_pages", ext.TotalPages),
	)
	return out, nil
}

// Ask answers question against the session's document and appends the
// exchange to the history. Nothing is appended when the provider fails.
func (s *ChatService) Ask(ctx context.Context, sess models.Session, question string) (models.Session, error) {
	if strings.TrimSpace(question) == "" {
		return s.fail(sess, core.ErrEmptyQuestion, ""), core.ErrEmptyQuestion
	}
	if sess.Document == nil {
		return s.fail(sess, core.ErrNoDocument, question), core.ErrNoDocument
	}

	credential := sess.Credential
	if credential == "" {
		credential = s.cfg.DefaultCredential
	}

	p := s.assembler.Build(sess.Pages, question)

	callCtx := ctx
	if s.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.LLMTimeout)
		defer cancel()
	}

	started := s.now()
	answer, err := s.llm.Generate(callCtx, credential, p)
	if err != nil {
		s.logger.Warn("answer failed",
			zap.String("session_id", sess.ID),
			zap.String("provider", s.llm.Name()),
			zap.String("kind", core.Kind(err)),
			zap.Error(err),
		)
		return s.fail(sess, err, question), err
	}
	if strings.TrimSpace(answer) == "" {
		answer = "The model returned an empty answer."
	}

	now := s.now()
	out := sess.Clone()
	out.History = append(out.History,
		models.ChatMessage{ID: uuid.NewString(), Role: models.RoleUser, Content: question, CreatedAt: started},
		models.ChatMessage{ID: uuid.NewString(), Role: models.RoleAssistant, Content: answer, CreatedAt: now},
	)
	out.Notice = nil
	out.UpdatedAt = now

	s.logger.Info("question answered",
		zap.String("session_id", sess.ID),
		zap.String("provider", s.llm.Name()),
		zap.Int("prompt_chars", utf8.RuneCountInString(p)),
		zap.Duration("took", now.Sub(started)),
	)
	return out, nil
}

// SetCredential stores a user supplied API key on the session.
func (s *ChatService) SetCredential(sess models.Session, apiKey string) models.Session {
	out := sess.Clone()
	out.Credential = strings.TrimSpace(apiKey)
	out.Notice = nil
	out.UpdatedAt = s.now()
	return out
}

// Reset drops the document, its pages and the chat history.
func (s *ChatService) Reset(ctx context.Context, sess models.Session) (models.Session, error) {
	if sess.Document != nil {
		if err := s.objects.DeleteFile(ctx, s.cfg.Bucket, sess.Document.StorageKey); err != nil {
			return sess, fmt.Errorf("delete document: %w", err)
		}
	}
	out := sess.Clone()
	out.Document = nil
	out.Pages = nil
	out.History = []models.ChatMessage{}
	out.Notice = nil
	out.UpdatedAt = s.now()
	return out, nil
}

// End destroys everything the session owns outside the session store.
func (s *ChatService) End(ctx context.Context, sess models.Session) error {
	if sess.Document == nil {
		return nil
	}
	if err := s.objects.DeleteFile(ctx, s.cfg.Bucket, sess.Document.StorageKey); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// DocumentFile returns the uploaded original.
func (s *ChatService) DocumentFile(ctx context.Context, sess models.Session) ([]byte, *models.DocumentInfo, error) {
	if sess.Document == nil {
		return nil, nil, core.ErrNoDocument
	}
	data, err := s.objects.GetFile(ctx, s.cfg.Bucket, sess.Document.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return data, sess.Document, nil
}

// TakeNotice returns the pending notice and a session without it.
func (s *ChatService) TakeNotice(sess models.Session) (models.Session, *models.Notice) {
	if sess.Notice == nil {
		return sess, nil
	}
	out := sess.Clone()
	n := out.Notice
	out.Notice = nil
	return out, n
}

// Preview returns the start of the first pages for display.
func Preview(sess models.Session) string {
	pages := sess.Pages
	if len(pages) > previewPages {
		pages = pages[:previewPages]
	}
	text := strings.Join(pages, "\n")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes])
}

// FormatError turns a pipeline error into the message shown in the chat.
func FormatError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, core.ErrNoDocument):
		return "Please upload a PDF document first."
	case errors.Is(err, core.ErrInvalidUpload):
		return "Please choose a PDF file to upload."
	case errors.Is(err, core.ErrExtraction):
		return "Error processing PDF: " + err.Error()
	case errors.Is(err, core.ErrAuth):
		return "The API key was rejected or is missing. Please enter a valid key and try again."
	case errors.Is(err, core.ErrRateLimit):
		return "The AI service is rate limiting requests. Please wait a moment and retry."
	case errors.Is(err, core.ErrRefused):
		return "The AI service declined to answer this question."
	case errors.Is(err, core.ErrTransport):
		return "Analysis failed: " + err.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}

// Notify attaches err to the session as a notice for the chat page.
func (s *ChatService) Notify(sess models.Session, err error) models.Session {
	return s.fail(sess, err, "")
}

func (s *ChatService) fail(sess models.Session, err error, question string) models.Session {
	out := sess.Clone()
	out.Notice = &models.Notice{Kind: core.Kind(err), Message: FormatError(err), Question: question}
	out.UpdatedAt = s.now()
	return out
}

func (s *ChatService) deleteObject(ctx context.Context, key string) {
	if err := s.objects.DeleteFile(ctx, s.cfg.Bucket, key); err != nil {
		s.logger.Warn("document cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

// objectKey creates a consistent storage key layout.
func objectKey(sessionID, docID, filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	if filename == "." || filename == "/" || filename == "" {
		filename = "document.pdf"
	}
	return path.Join("sessions", sessionID, "documents", docID, filename)
}
