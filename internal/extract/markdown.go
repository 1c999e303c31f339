package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownPages parses markdown and walks the AST collecting text nodes, so
// formatting syntax never reaches the segmenter. Pages are estimated by word
// count.
func markdownPages(path string) ([]Page, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown file: %w", err)
	}
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		txt := nodeText(node, source)
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(txt)
	}
	return estimatePages(b.String()), nil
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
