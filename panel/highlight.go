package panel

import (
	"bytes"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/linanwx/nagopanel/logger"
)

// DefaultHighlightStyle is the chroma style used when none is configured.
const DefaultHighlightStyle = "github"

// ChromaHighlighter colours code containers with chroma. Token spans carry
// CSS classes; WriteCSS produces the matching stylesheet.
type ChromaHighlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// NewChromaHighlighter returns a highlighter for the named chroma style.
// Unknown names fall back to chroma's default style.
func NewChromaHighlighter(styleName string) *ChromaHighlighter {
	if strings.TrimSpace(styleName) == "" {
		styleName = DefaultHighlightStyle
	}
	return &ChromaHighlighter{
		style: styles.Get(styleName),
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
	}
}

// Highlight re-highlights the content of every code container inside every
// code element of target.
func (h *ChromaHighlighter) Highlight(target Target) {
	for _, code := range target.QueryAll("code") {
		lang := languageOf(code)
		for _, box := range code.Query("." + codeContainerClass) {
			h.highlightElement(box, lang)
		}
	}
}

// WriteCSS writes the stylesheet for the configured style.
func (h *ChromaHighlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}

func (h *ChromaHighlighter) highlightElement(box Element, lang string) {
	src := box.Text()
	if src == "" {
		return
	}
	lexer := pickLexer(lang, src)
	if lexer == nil {
		return
	}
	out, ok := h.render(lexer, src)
	if !ok {
		return
	}
	box.SetInnerHTML(out)
	box.AddClass("chroma")
}

// render formats src. It reports false if the token stream would not
// reproduce src exactly, so highlighting never changes the clickable text.
func (h *ChromaHighlighter) render(lexer chroma.Lexer, src string) (string, bool) {
	it, err := chroma.Coalesce(lexer).Tokenise(&chroma.TokeniseOptions{State: "root"}, src)
	if err != nil {
		logger.Debug("tokenise failed", "lexer", lexer.Config().Name, "err", err)
		return "", false
	}
	tokens := trimAddedNewline(it.Tokens(), src)

	var joined strings.Builder
	for _, t := range tokens {
		joined.WriteString(t.Value)
	}
	if joined.String() != src {
		return "", false
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, chroma.Literator(tokens...)); err != nil {
		logger.Debug("highlight format failed", "err", err)
		return "", false
	}
	return buf.String(), true
}

func pickLexer(lang, src string) chroma.Lexer {
	if lang != "" {
		if l := lexers.Get(lang); l != nil {
			return l
		}
	}
	return lexers.Analyse(src)
}

// trimAddedNewline drops the final newline some lexers append to their input.
func trimAddedNewline(tokens []chroma.Token, src string) []chroma.Token {
	if strings.HasSuffix(src, "\n") || len(tokens) == 0 {
		return tokens
	}
	last := &tokens[len(tokens)-1]
	if !strings.HasSuffix(last.Value, "\n") {
		return tokens
	}
	last.Value = strings.TrimSuffix(last.Value, "\n")
	if last.Value == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// languageOf returns the language named by a "language-xxx" class.
func languageOf(el Element) string {
	class, _ := el.Attr("class")
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}
