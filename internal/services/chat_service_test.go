package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/smartdoc/internal/core"
	objectclient "github.com/markdave123-py/smartdoc/internal/core/object-client"
	"github.com/markdave123-py/smartdoc/internal/core/prompt"
	"github.com/markdave123-py/smartdoc/internal/models"
)

type fakeExtractor struct {
	pages []string
	err   error
	limit int
}

func (f *fakeExtractor) ExtractPages(_ context.Context, r io.Reader, limit int) (*models.Extraction, error) {
	f.limit = limit
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	n := min(limit, len(f.pages))
	return &models.Extraction{Pages: append([]string(nil), f.pages[:n]...), TotalPages: len(f.pages)}, nil
}

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
	keys    []string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(_ context.Context, apiKey, p string) (string, error) {
	f.prompts = append(f.prompts, p)
	f.keys = append(f.keys, apiKey)
	return f.answer, f.err
}

func newTestService(ext *fakeExtractor, llm *fakeLLM) (*ChatService, *objectclient.MemoryClient) {
	objects := objectclient.NewMemoryClient()
	svc := NewChatService(ext, prompt.NewAssembler(0), llm, objects, ChatConfig{
		Bucket:            "docs",
		PageLimit:         4,
		DefaultCredential: "server-key",
	}, nil)
	return svc, objects
}

func TestUploadLoadsDocument(t *testing.T) {
	ext := &fakeExtractor{pages: []string{"one", "two", "three", "four", "five"}}
	svc, objects := newTestService(ext, &fakeLLM{})
	sess := svc.NewSession()

	got, err := svc.Upload(context.Background(), sess, "my report.pdf", "application/pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ext.limit != 4 {
		t.Errorf("extractor limit = %d, want 4", ext.limit)
	}
	if len(got.Pages) != 4 || got.Document.TotalPages != 5 {
		t.Errorf("pages = %d total = %d", len(got.Pages), got.Document.TotalPages)
	}
	if !strings.HasSuffix(got.Document.StorageKey, "/my_report.pdf") || !strings.HasPrefix(got.Document.StorageKey, "sessions/"+sess.ID+"/") {
		t.Errorf("storage key = %q", got.Document.StorageKey)
	}
	if objects.Len() != 1 {
		t.Errorf("objects stored = %d, want 1", objects.Len())
	}
	if sess.Document != nil {
		t.Error("input session was modified")
	}
}

func TestUploadReplacesDocumentAndHistory(t *testing.T) {
	ext := &fakeExtractor{pages: []string{"first"}}
	llm := &fakeLLM{answer: "ok"}
	svc, objects := newTestService(ext, llm)
	ctx := context.Background()

	sess, err := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	sess, err = svc.Ask(ctx, sess, "q?")
	if err != nil {
		t.Fatal(err)
	}
	sess, err = svc.Upload(ctx, sess, "b.pdf", "", strings.NewReader("b"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.History) != 0 {
		t.Errorf("history = %d, want reset", len(sess.History))
	}
	if sess.Document.FileName != "b.pdf" {
		t.Errorf("document = %q", sess.Document.FileName)
	}
	if objects.Len() != 1 {
		t.Errorf("old document not removed: %d objects", objects.Len())
	}
}

func TestUploadExtractionFailureKeepsState(t *testing.T) {
	ext := &fakeExtractor{pages: []string{"first"}}
	svc, objects := newTestService(ext, &fakeLLM{})
	ctx := context.Background()

	sess, err := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}

	ext.err = fmt.Errorf("%w: broken xref", core.ErrExtraction)
	got, err := svc.Upload(ctx, sess, "bad.pdf", "", strings.NewReader("junk"))
	if !errors.Is(err, core.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
	if got.Document.FileName != "a.pdf" {
		t.Errorf("previous document lost: %q", got.Document.FileName)
	}
	if got.Notice == nil || got.Notice.Kind != "extraction" || !strings.HasPrefix(got.Notice.Message, "Error processing PDF") {
		t.Errorf("notice = %+v", got.Notice)
	}
	if objects.Len() != 1 {
		t.Errorf("failed upload left an object: %d", objects.Len())
	}
}

func TestAskAppendsExchange(t *testing.T) {
	ext := &fakeExtractor{pages: []string{"Total: 100 EUR."}}
	llm := &fakeLLM{answer: "100 EUR"}
	svc, _ := newTestService(ext, llm)
	ctx := context.Background()

	sess, _ := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("a"))
	got, err := svc.Ask(ctx, sess, "What is the total?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(got.History) != 2 {
		t.Fatalf("history = %d, want 2", len(got.History))
	}
	if got.History[0].Role != models.RoleUser || got.History[0].Content != "What is the total?" {
		t.Errorf("user message = %+v", got.History[0])
	}
	if got.History[1].Role != models.RoleAssistant || got.History[1].Content != "100 EUR" {
		t.Errorf("assistant message = %+v", got.History[1])
	}
	if !strings.Contains(llm.prompts[0], "Total: 100 EUR.") || !strings.HasSuffix(llm.prompts[0], "What is the total?") {
		t.Errorf("prompt = %q", llm.prompts[0])
	}
	if llm.keys[0] != "server-key" {
		t.Errorf("credential = %q, want server default", llm.keys[0])
	}
	if len(sess.History) != 0 {
		t.Error("input session was modified")
	}
}

func TestAskUsesSessionCredential(t *testing.T) {
	llm := &fakeLLM{answer: "yes"}
	svc, _ := newTestService(&fakeExtractor{pages: []string{"p"}}, llm)
	ctx := context.Background()

	sess, _ := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("a"))
	sess = svc.SetCredential(sess, "  user-key ")
	if _, err := svc.Ask(ctx, sess, "q"); err != nil {
		t.Fatal(err)
	}
	if llm.keys[0] != "user-key" {
		t.Errorf("credential = %q", llm.keys[0])
	}
}

func TestAskFailures(t *testing.T) {
	tests := []struct {
		name     string
		upload   bool
		question string
		llmErr   error
		want     error
		retry    bool
	}{
		{"blank question", true, "   ", nil, core.ErrEmptyQuestion, false},
		{"no document", false, "q?", nil, core.ErrNoDocument, true},
		{"auth", true, "q?", fmt.Errorf("%w: bad key", core.ErrAuth), core.ErrAuth, true},
		{"rate limit", true, "q?", fmt.Errorf("%w: slow down", core.ErrRateLimit), core.ErrRateLimit, true},
		{"transport", true, "q?", fmt.Errorf("%w: reset", core.ErrTransport), core.ErrTransport, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			llm := &fakeLLM{err: tc.llmErr}
			svc, _ := newTestService(&fakeExtractor{pages: []string{"p"}}, llm)
			ctx := context.Background()
			sess := svc.NewSession()
			if tc.upload {
				sess, _ = svc.Upload(ctx, sess, "a.pdf", "", strings.NewReader("a"))
			}

			got, err := svc.Ask(ctx, sess, tc.question)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(got.History) != 0 {
				t.Errorf("history grew on failure: %d", len(got.History))
			}
			if got.Notice == nil || got.Notice.Message != FormatError(err) {
				t.Fatalf("notice = %+v", got.Notice)
			}
			if (got.Notice.Question != "") != tc.retry {
				t.Errorf("retry question = %q", got.Notice.Question)
			}
		})
	}
}

func TestAskTimeout(t *testing.T) {
	svc, _ := newTestService(&fakeExtractor{pages: []string{"p"}}, nil)
	svc.llm = blockingLLM{}
	svc.cfg.LLMTimeout = 10 * time.Millisecond
	ctx := context.Background()

	sess, _ := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("a"))
	_, err := svc.Ask(ctx, sess, "q?")
	if !errors.Is(err, core.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
}

type blockingLLM struct{}

func (blockingLLM) Name() string { return "blocking" }

func (blockingLLM) Generate(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", fmt.Errorf("%w: %w", core.ErrTransport, ctx.Err())
}

func TestResetAndEnd(t *testing.T) {
	svc, objects := newTestService(&fakeExtractor{pages: []string{"p"}}, &fakeLLM{answer: "a"})
	ctx := context.Background()

	sess, _ := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("a"))
	sess, _ = svc.Ask(ctx, sess, "q")

	reset, err := svc.Reset(ctx, sess)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.Document != nil || len(reset.Pages) != 0 || len(reset.History) != 0 {
		t.Errorf("reset left state: %+v", reset)
	}
	if objects.Len() != 0 {
		t.Errorf("document not deleted on reset")
	}

	sess, _ = svc.Upload(ctx, reset, "b.pdf", "", strings.NewReader("b"))
	if err := svc.End(ctx, sess); err != nil {
		t.Fatalf("End: %v", err)
	}
	if objects.Len() != 0 {
		t.Errorf("document not deleted on end")
	}
}

func TestDocumentFile(t *testing.T) {
	svc, _ := newTestService(&fakeExtractor{pages: []string{"p"}}, &fakeLLM{})
	ctx := context.Background()

	if _, _, err := svc.DocumentFile(ctx, svc.NewSession()); !errors.Is(err, core.ErrNoDocument) {
		t.Fatalf("err = %v, want ErrNoDocument", err)
	}
	sess, _ := svc.Upload(ctx, svc.NewSession(), "a.pdf", "", strings.NewReader("%PDF-1.4"))
	data, info, err := svc.DocumentFile(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-1.4" || info.FileName != "a.pdf" {
		t.Errorf("got %q %+v", data, info)
	}
}

func TestTakeNotice(t *testing.T) {
	svc, _ := newTestService(&fakeExtractor{}, &fakeLLM{})
	sess, _ := svc.Ask(context.Background(), svc.NewSession(), "")

	cleared, n := svc.TakeNotice(sess)
	if n == nil || cleared.Notice != nil {
		t.Fatalf("notice = %+v cleared = %+v", n, cleared.Notice)
	}
	if sess.Notice == nil {
		t.Error("input session was modified")
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", 900)
	sess := models.Session{Pages: []string{long, long, "third"}}
	got := Preview(sess)
	if n := len([]rune(got)); n != 1000 {
		t.Errorf("preview runes = %d, want 1000", n)
	}
	if strings.Contains(got, "third") {
		t.Error("preview includes third page")
	}
	if Preview(models.Session{Pages: []string{"short"}}) != "short" {
		t.Error("short preview changed")
	}
}

func TestObjectKey(t *testing.T) {
	tests := map[string]string{
		"report.pdf":           "report.pdf",
		"../../etc/passwd":     "passwd",
		"my annual report.pdf": "my_annual_report.pdf",
		"":                     "document.pdf",
	}
	for in, want := range tests {
		got := objectKey("s", "d", in)
		if got != "sessions/s/documents/d/"+want {
			t.Errorf("objectKey(%q) = %q", in, got)
		}
	}
}
