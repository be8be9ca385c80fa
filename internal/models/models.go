package models

import (
	"time"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DocumentInfo describes the document currently loaded into a session.
// The bytes themselves live in the object store under StorageKey.
type DocumentInfo struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"storage_key"`
	StorageURL  string    `json:"storage_url"`
	TotalPages  int       `json:"total_pages"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Extraction is the text of the first pages of a document.
type Extraction struct {
	Pages      []string `json:"pages"`       // one entry per processed page, in page order
	TotalPages int      `json:"total_pages"` // pages in the whole document
}

// ChatMessage represents an individual chat message (user or assistant).
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Notice is a failure waiting to be shown on the chat page.
type Notice struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Question string `json:"question,omitempty"` // set when the failed action can be retried
}

// Session holds one user's document, credential and chat history.
type Session struct {
	ID         string        `json:"id"`
	Credential string        `json:"-"`
	Document   *DocumentInfo `json:"document,omitempty"`
	Pages      []string      `json:"pages,omitempty"`
	History    []ChatMessage `json:"history"`
	Notice     *Notice       `json:"notice,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Clone returns a copy that shares no slices or pointers with s.
func (s Session) Clone() Session {
	out := s
	if s.Document != nil {
		doc := *s.Document
		out.Document = &doc
	}
	if s.Notice != nil {
		n := *s.Notice
		out.Notice = &n
	}
	out.Pages = append([]string(nil), s.Pages...)
	out.History = append([]ChatMessage(nil), s.History...)
	return out
}

// HasCredential reports whether the session carries an API key.
func (s Session) HasCredential() bool { return s.Credential != "" }
