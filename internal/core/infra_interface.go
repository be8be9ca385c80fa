package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/smartdoc/internal/models"
)

// PageExtractor turns a document byte stream into the text of its first pages.
type PageExtractor interface {
	// ExtractPages returns the text of pages 1..min(total, limit) in page order.
	ExtractPages(ctx context.Context, r io.Reader, limit int) (*models.Extraction, error)
}

// SessionStore persists sessions between user interactions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, id string) error

	// Expired lists sessions last updated before the cutoff.
	Expired(ctx context.Context, before time.Time) ([]string, error)
	// DeleteIdle removes the session only if it is still idle since before
	// the cutoff and returns it, or nil when it was refreshed or is gone.
	DeleteIdle(ctx context.Context, id string, before time.Time) (*models.Session, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// Uploaded originals live here for the life of their session.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
