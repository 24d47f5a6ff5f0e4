// Package pdf reads uploaded documents: the signature pre-filter, the
// per-page text layer and the embedded raster images.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

var horizontalSpaceRe = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)

// TextExtractor decodes the embedded text layer of a document, one string per page.
type TextExtractor struct {
	logger *slog.Logger
}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor(logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{logger: logger.With("component", "text-extractor")}
}

// Extract returns the text of every page in order. A page that fails to
// decode becomes an empty string. When the text layer cannot be opened at
// all the document still yields one empty entry per page pdfcpu can count,
// or no entries when nothing can be read. Password protected documents are
// reported as a PasswordProtectedError.
func (e *TextExtractor) Extract(ctx context.Context, doc models.RawDocument) (models.PageText, error) {
	r, err := openReader(doc.Data)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || isPasswordError(err) {
			return nil, models.PasswordProtectedError(err)
		}
		// The text parser gives up on some encryption revisions that
		// pdfcpu can still answer for.
		if perr := checkPassword(doc.Data); perr != nil {
			return nil, perr
		}
		e.logger.Warn("Text layer could not be opened, pages will be empty",
			"filename", doc.Filename, "error", models.NewStageError(models.StageText, models.ErrExtraction, "failed to open text layer", err))
		n, cerr := PageCount(doc.Data)
		if cerr != nil {
			e.logger.Warn("Page count unavailable", "filename", doc.Filename, "error", cerr)
			return models.PageText{}, nil
		}
		return make(models.PageText, n), nil
	}

	n := r.NumPage()
	pages := make(models.PageText, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(r, i)
		if err != nil {
			e.logger.Warn("Page text extraction failed",
				"filename", doc.Filename, "page", i,
				"error", models.NewStageError(models.StageText, models.ErrExtraction, fmt.Sprintf("page %d", i), err))
			continue
		}
		pages[i-1] = text
	}
	e.logger.Info("Extracted text layer", "filename", doc.Filename, "pages", n)
	return pages, nil
}

// openReader opens the text layer, converting parser panics into errors.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(r *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("panic: %v", rec)
		}
	}()
	p := r.Page(pageNum)
	if p.V.IsNull() {
		return "", nil
	}
	raw, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return normalizeRuns(raw), nil
}

// normalizeRuns joins text runs on each line with single spaces and drops
// blank lines at the edges.
func normalizeRuns(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpaceRe.ReplaceAllString(line, " "))
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
