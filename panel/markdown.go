package panel

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Converter turns assistant Markdown into display HTML.
//
// The output follows chat conventions rather than strict CommonMark:
//   - bare URLs become links, without trailing punctuation
//   - a single newline is a line break
//   - underscores inside words stay literal
//   - code blocks carry no trailing blank line
//   - raw HTML in the source is dropped
type Converter struct {
	md goldmark.Markdown
}

// NewConverter returns a converter with the panel's fixed configuration.
func NewConverter() *Converter {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			renderer.WithNodeRenderers(util.Prioritized(newCodeBlockRenderer(), 100)),
		),
	)
	return &Converter{md: md}
}

// Convert renders markdown to an HTML fragment.
func (c *Converter) Convert(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ---------------------------------------------------------------------------
// Code blocks
// ---------------------------------------------------------------------------

// codeBlockRenderer replaces goldmark's code block rendering so the closing
// tag follows the last line of code directly.
type codeBlockRenderer struct {
	html.Config
}

func newCodeBlockRenderer() renderer.NodeRenderer {
	return &codeBlockRenderer{Config: html.NewConfig()}
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(
	w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	_, _ = w.WriteString("<pre><code")
	if lang := n.Language(source); lang != nil {
		_, _ = w.WriteString(` class="language-`)
		r.Writer.Write(w, lang)
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	r.writeLines(w, source, n)
	return ast.WalkContinue, nil
}

func (r *codeBlockRenderer) renderCodeBlock(
	w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<pre><code>")
	r.writeLines(w, source, node)
	return ast.WalkContinue, nil
}

// writeLines writes the escaped block body without its trailing blank lines.
func (r *codeBlockRenderer) writeLines(w util.BufWriter, source []byte, n ast.Node) {
	var body bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		body.Write(seg.Value(source))
	}
	r.Writer.RawWrite(w, trimTrailingBlankLines(body.Bytes()))
}

func trimTrailingBlankLines(b []byte) []byte {
	for {
		trimmed := bytes.TrimRight(b, " \t\r")
		switch {
		case len(trimmed) == 0:
			return trimmed
		case trimmed[len(trimmed)-1] == '\n':
			b = trimmed[:len(trimmed)-1]
		default:
			return b
		}
	}
}
