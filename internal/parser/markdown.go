package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// parseMarkdown walks the goldmark AST and emits one block per top-level
// paragraph, list or code block. Headings do not become blocks themselves;
// they maintain the hierarchy path attached to the blocks that follow.
func parseMarkdown(docID string, content []byte) ([]TextBlock, error) {
	md := goldmark.New()
	reader := text.NewReader(content)
	doc := md.Parser().Parse(reader)

	var blocks []TextBlock
	var path []string // one entry per heading level seen so far

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			title := nodeText(heading, content)
			if title == "" {
				continue
			}
			// A level-N heading replaces everything from depth N down.
			if heading.Level-1 < len(path) {
				path = path[:heading.Level-1]
			}
			path = append(path, title)
			continue
		}

		txt := nodeText(node, content)
		if strings.TrimSpace(txt) == "" {
			continue
		}
		blocks = append(blocks, TextBlock{
			Text:          strings.TrimSpace(txt),
			HierarchyPath: append([]string(nil), path...),
			DocumentID:    docID,
		})
	}

	if len(blocks) == 0 && len(content) > 0 && strings.TrimSpace(string(content)) != "" {
		// Structured parse found nothing usable (e.g. HTML-only body);
		// fall back to paragraph splitting rather than dropping content.
		return parsePlainText(docID, content), nil
	}
	return blocks, nil
}

// nodeText collects the raw text of a node and its descendants.
func nodeText(node ast.Node, source []byte) string {
	var buf strings.Builder

	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
