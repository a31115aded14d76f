package merge

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// extractFencedBlock extracts the content of a ```<tag> ... ``` fenced code
// block from description, per spec.md §4.1 step 6. Parsed with goldmark
// rather than a hand-rolled string search so that the block is recognized
// the same way any other Markdown renderer would recognize it (nested
// indentation, CRLF line endings, info strings with trailing attributes),
// following the walker-visitor style of tozd-gitlab-config's markdown.go.
func extractFencedBlock(description, tag string) (string, bool) {
	source := []byte(description)
	p := parser.NewParser(
		parser.WithBlockParsers(parser.DefaultBlockParsers()...),
	)
	doc := p.Parse(text.NewReader(source))

	var found string
	var ok bool
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || ok {
			return ast.WalkContinue, nil
		}
		block, isFenced := n.(*ast.FencedCodeBlock)
		if !isFenced {
			return ast.WalkContinue, nil
		}
		info := ""
		if block.Info != nil {
			info = string(block.Info.Text(source))
		}
		lang := ""
		if fields := strings.Fields(info); len(fields) > 0 {
			lang = fields[0]
		}
		if lang != tag {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		for i := 0; i < block.Lines().Len(); i++ {
			line := block.Lines().At(i)
			b.Write(line.Value(source))
		}
		found = strings.TrimSpace(b.String())
		ok = true
		return ast.WalkStop, nil
	})

	return found, ok
}
