package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text of the first MaxPages pages of a PDF.
type PDFExtractor struct {
	MaxPages int
}

// NewPDFExtractor returns a PDFExtractor; maxPages <= 0 uses DefaultMaxPages.
func NewPDFExtractor(maxPages int) *PDFExtractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &PDFExtractor{MaxPages: maxPages}
}

// Extract parses data as a PDF. Parser panics on malformed input are
// recovered and reported as *ExtractionError.
func (p *PDFExtractor) Extract(ctx context.Context, name string, data []byte) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &ExtractionError{Document: name, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	if len(data) == 0 {
		return nil, &ExtractionError{Document: name, Err: errors.New("empty document")}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Document: name, Err: err}
	}

	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	total := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= total && i <= maxPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &ExtractionError{Document: name, Err: err}
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &ExtractionError{Document: name, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}

	return &Result{
		Text:  sb.String(),
		Size:  int64(len(data)),
		Pages: total,
	}, nil
}
