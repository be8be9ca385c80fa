package core

import "errors"

// Error kinds surfaced to the user. Provider and extractor errors wrap one of
// these so callers can branch with errors.Is.
var (
	ErrExtraction = errors.New("document could not be read")
	ErrAuth       = errors.New("api credential rejected or missing")
	ErrRateLimit  = errors.New("provider rate limit exceeded")
	ErrTransport  = errors.New("provider request failed")
	ErrRefused    = errors.New("provider refused the prompt")

	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoDocument    = errors.New("no document loaded")
	ErrInvalidUpload = errors.New("upload must be a single PDF file")
	ErrNotFound      = errors.New("not found")
)

// Kind returns a short machine-readable name for the error kind wrapped by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrRefused):
		return "refused"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrEmptyQuestion):
		return "empty_question"
	case errors.Is(err, ErrNoDocument):
		return "no_document"
	case errors.Is(err, ErrInvalidUpload):
		return "invalid_upload"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
