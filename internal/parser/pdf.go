package parser

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts the plain-text layer of a PDF and splits it into
// paragraph blocks. PDFs carry no usable heading structure, so the
// hierarchy path stays empty.
func parsePDF(docID string, content []byte) ([]TextBlock, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ParseError{DocumentID: docID, Format: FormatPDF, Reason: "reading pdf", Err: err}
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, &ParseError{DocumentID: docID, Format: FormatPDF, Reason: "extracting text", Err: err}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, &ParseError{DocumentID: docID, Format: FormatPDF, Reason: "extracting text", Err: err}
	}

	return parsePlainText(docID, buf.Bytes()), nil
}
