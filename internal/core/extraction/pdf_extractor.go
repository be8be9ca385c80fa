package extraction

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
)

func init() {
	// pdfcpu otherwise creates a config dir under the user's home.
	pdfmodel.ConfigPath = "disable"
}

var _ core.PageExtractor = (*PDFExtractor)(nil)

// PDFExtractor implements core.PageExtractor for PDF documents.
//
// The upload is spooled to a temp file, validated and page-counted with pdfcpu,
// then read page by page with ledongthuc/pdf. The temp file never outlives the call.
type PDFExtractor struct {
	tempDir string
	logger  *zap.Logger
}

// NewPDFExtractor builds an extractor that spools into tempDir ("" = os.TempDir()).
func NewPDFExtractor(tempDir string, logger *zap.Logger) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExtractor{tempDir: tempDir, logger: logger}
}

// ExtractPages returns the text of pages 1..min(total, limit).
func (e *PDFExtractor) ExtractPages(ctx context.Context, r io.Reader, limit int) (*models.Extraction, error) {
	if limit < 1 {
		return nil, fmt.Errorf("page limit must be at least 1, got %d", limit)
	}

	tmp, err := os.CreateTemp(e.tempDir, "smartdoc-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("temp file cleanup failed", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
	}()

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrExtraction)
	}

	return e.extractFile(ctx, tmp, size, limit)
}

func (e *PDFExtractor) extractFile(ctx context.Context, f *os.File, size int64, limit int) (out *models.Extraction, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", core.ErrExtraction, p)
		}
	}()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	total, err := api.PageCount(f, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtraction, err)
	}

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", core.ErrExtraction, err)
	}
	if n := reader.NumPage(); n < total {
		total = n
	}

	count := min(total, limit)
	pages := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader.Page(i))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", core.ErrExtraction, i, err)
		}
		pages = append(pages, text)
	}

	e.logger.Debug("pdf extracted",
		zap.Int("total_pages", total),
		zap.Int("pages", len(pages)),
		zap.Int64("bytes", size),
	)
	return &models.Extraction{Pages: pages, TotalPages: total}, nil
}

// pageText returns the trimmed plain text of a page; pages without a
// content dictionary yield "".
func pageText(page pdf.Page) (string, error) {
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ctxReader stops a copy as soon as ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
