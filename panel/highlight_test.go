package panel

import (
	"bytes"
	"strings"
	"testing"
)

func highlightedRegion(t *testing.T, body string) *Region {
	t.Helper()
	r := NewRegion()
	r.SetContent(body)
	for _, code := range r.QueryAll("code") {
		code.WrapContent("div", codeContainerClass)
	}
	NewChromaHighlighter("github").Highlight(r)
	return r
}

func TestHighlightAddsTokenSpans(t *testing.T) {
	src := "package main\n\nfunc main() {\n\treturn\n}"
	r := highlightedRegion(t, `<pre><code class="language-go">`+src+`</code></pre>`)

	code := r.QueryAll("code")[0]
	expect(t, code.Text(), src)
	box := code.Query(".code")[0]
	if class, _ := box.Attr("class"); !strings.Contains(class, "chroma") {
		t.Errorf("container class = %q", class)
	}
	if !strings.Contains(r.HTML(), `<span class="kd">func</span>`) {
		t.Errorf("no keyword span in %s", r.HTML())
	}
}

func TestHighlightPreservesTextWithEntities(t *testing.T) {
	src := `if a < b && c > "d" {}`
	r := highlightedRegion(t, `<pre><code class="language-go">if a &lt; b &amp;&amp; c &gt; &quot;d&quot; {}</code></pre>`)
	expect(t, r.QueryAll("code")[0].Text(), src)
}

func TestHighlightIsRepeatable(t *testing.T) {
	src := "x := []int{1, 2}"
	r := highlightedRegion(t, `<pre><code class="language-go">`+src+`</code></pre>`)
	once := r.HTML()
	NewChromaHighlighter("github").Highlight(r)
	expect(t, r.HTML(), once)
	expect(t, r.QueryAll("code")[0].Text(), src)
}

func TestHighlightSkipsUnwrappedAndEmptyCode(t *testing.T) {
	r := NewRegion()
	r.SetContent(`<pre><code class="language-go">func f() {}</code></pre><code class="language-go"><div class="code"></div></code>`)
	NewChromaHighlighter("github").Highlight(r)
	expect(t, r.HTML(), `<pre><code class="language-go">func f() {}</code></pre><code class="language-go"><div class="code"></div></code>`)
}

func TestLanguageOf(t *testing.T) {
	r := NewRegion()
	r.SetContent(`<code class="p-2 language-python block">x</code><code>y</code>`)
	els := r.QueryAll("code")
	expect(t, languageOf(els[0]), "python")
	expect(t, languageOf(els[1]), "")
}

func TestWriteCSS(t *testing.T) {
	var buf bytes.Buffer
	if err := NewChromaHighlighter("").WriteCSS(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), ".chroma .kd") {
		t.Errorf("css has no keyword rule:\n%s", buf.String())
	}
}
