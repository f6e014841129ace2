// Package extractor converts raw document bytes into bounded text segments.
//
// Supported formats: plain text, markdown, PDF, DOCX, XLSX. All parsers are
// pure Go; XLSX goes through excelize.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/complianceops/riskextract/internal/domain/documents"
)

// charsPerToken is the approximate average characters per token for GPT tokenizers.
const charsPerToken = 4

const (
	MimePlain    = "text/plain"
	MimeMarkdown = "text/markdown"
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Extractor implements the documents.Extractor port.
type Extractor struct {
	// MaxSegmentTokens bounds each segment; defaults to 2000.
	MaxSegmentTokens int
}

func New(maxSegmentTokens int) *Extractor {
	if maxSegmentTokens <= 0 {
		maxSegmentTokens = 2000
	}
	return &Extractor{MaxSegmentTokens: maxSegmentTokens}
}

// Supported reports whether the mime type has a parser.
func Supported(mimeType string) bool {
	switch normalizeMime(mimeType) {
	case MimePlain, MimeMarkdown, MimePDF, MimeDOCX, MimeXLSX:
		return true
	}
	return false
}

// Extract parses the document bytes per the declared mime type and splits the
// text into token-bounded segments, ordinals starting at 1. Deterministic for
// identical input.
func (e *Extractor) Extract(ctx context.Context, doc *documents.Document, data []byte) ([]*documents.TextSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var text string
	var err error
	switch normalizeMime(doc.MimeType) {
	case MimePlain, MimeMarkdown:
		text = string(data)
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDOCX:
		text, err = extractDOCX(data)
	case MimeXLSX:
		text, err = extractXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", documents.ErrUnsupportedFormat, doc.MimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", documents.ErrCorruptDocument, err)
	}

	segs := make([]*documents.TextSegment, 0, 4)
	for i, chunk := range splitSegments(text, e.MaxSegmentTokens) {
		segs = append(segs, &documents.TextSegment{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Ordinal:    i + 1,
			Content:    chunk,
			TokenCount: estimateTokens(chunk),
		})
	}
	return segs, nil
}

// mime parameters like "; charset=utf-8" are ignored
func normalizeMime(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

func estimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// splitSegments packs paragraphs into chunks of at most maxTokens, preserving
// paragraph boundaries where possible. Oversized paragraphs are hard-split at
// word boundaries.
func splitSegments(text string, maxTokens int) []string {
	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return nil
	}
	budget := maxTokens * charsPerToken

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, p := range paras {
		if len(p) > budget {
			flush()
			for _, piece := range hardSplit(p, budget) {
				chunks = append(chunks, piece)
			}
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(p) > budget {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(normalized, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hardSplit cuts an oversized paragraph at word boundaries within budget.
func hardSplit(p string, budget int) []string {
	words := strings.Fields(p)
	var out []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > budget {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
