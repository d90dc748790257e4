package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
	"github.com/Pond500/rag-mcp/internal/infrastructure/extractor/spreadsheet"
)

// Extractor is the fast tier: native PDF text layer, xlsx sheets and plain
// UTF-8 text. No external calls, so cost per page is normally zero. Binary
// formats without a text layer fail with ErrTierUnavailable so the controller
// can escalate.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Tier() domain.ExtractionTier {
	return domain.TierFast
}

func (e *Extractor) Extract(ctx context.Context, req ports.TierExtractRequest) (ports.TierPages, error) {
	if err := ctx.Err(); err != nil {
		return ports.TierPages{}, err
	}

	pages, err := extractPages(req.Filename, req.Data)
	if err != nil {
		return ports.TierPages{}, err
	}
	if !hasText(pages) {
		return ports.TierPages{}, domain.WrapError(
			domain.ErrExtractionEmpty,
			"fast extract",
			fmt.Errorf("no text layer in %s", req.Filename),
		)
	}

	return ports.TierPages{
		Pages: pages,
		Cost:  float64(len(pages)) * req.Config.CostPerPage,
	}, nil
}

func extractPages(filename string, data []byte) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".xlsx", ".xlsm":
		pages, err := spreadsheet.ExtractSheets(data)
		if err != nil {
			return nil, domain.WrapError(domain.ErrTierUnavailable, "fast extract", err)
		}
		return pages, nil
	default:
		if !utf8.Valid(data) {
			return nil, domain.WrapError(
				domain.ErrTierUnavailable,
				"fast extract",
				fmt.Errorf("binary format %s has no native text layer", filename),
			)
		}
		return []string{strings.TrimSpace(string(data))}, nil
	}
}

func extractPDF(data []byte) (pages []string, err error) {
	// The pdf library panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = domain.WrapError(domain.ErrTierUnavailable, "fast extract", fmt.Errorf("pdf parse panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTierUnavailable, "fast extract", fmt.Errorf("open pdf: %w", err))
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
