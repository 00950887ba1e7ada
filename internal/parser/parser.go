// Package parser turns raw document payloads into ordered text blocks.
// It is the boundary to format-specific extraction: the rest of the
// pipeline only ever sees TextBlock sequences.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TextBlock is one unit of parsed document content, in document order.
type TextBlock struct {
	// Text is the raw block text.
	Text string
	// HierarchyPath lists the ancestor headings of this block, outermost
	// first. Empty for formats without structure.
	HierarchyPath []string
	// DocumentID identifies the source document.
	DocumentID string
}

// Format identifies a supported input format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatText     Format = "text"
	FormatUnknown  Format = "unknown"
)

// ParseError reports that a document payload could not be parsed.
type ParseError struct {
	DocumentID string
	Format     Format
	Reason     string
	Err        error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s (%s): %s: %v", e.DocumentID, e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s (%s): %s", e.DocumentID, e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DetectFormat resolves the input format from a declared MIME type or,
// failing that, the file name extension.
func DetectFormat(name, declaredMIME string) Format {
	switch {
	case strings.HasPrefix(declaredMIME, "text/markdown"):
		return FormatMarkdown
	case strings.HasPrefix(declaredMIME, "application/pdf"):
		return FormatPDF
	case strings.HasPrefix(declaredMIME, "text/plain"):
		return FormatText
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	case ".txt", ".text":
		return FormatText
	}
	return FormatUnknown
}

// Parse extracts ordered text blocks from a document payload.
// Binary formats beyond PDF text extraction (DOCX and friends) are not
// interpreted here; they must be converted upstream.
func Parse(docID string, format Format, content []byte) ([]TextBlock, error) {
	switch format {
	case FormatMarkdown:
		return parseMarkdown(docID, content)
	case FormatPDF:
		return parsePDF(docID, content)
	case FormatText:
		return parsePlainText(docID, content), nil
	default:
		return nil, &ParseError{
			DocumentID: docID,
			Format:     format,
			Reason:     "unsupported format; convert to markdown, pdf or plain text upstream",
		}
	}
}

// parsePlainText splits on blank lines. Plain text carries no hierarchy.
func parsePlainText(docID string, content []byte) []TextBlock {
	var blocks []TextBlock
	for _, para := range splitParagraphs(string(content)) {
		blocks = append(blocks, TextBlock{Text: para, DocumentID: docID})
	}
	return blocks
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
