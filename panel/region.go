package panel

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// clickAttr carries the id the shell reports back when an element is clicked.
const clickAttr = "data-panel-id"

// Region is an in-memory display region backed by a goquery document.
// It implements Target and Flusher. A Region is not safe for concurrent use;
// the View drives it from a single goroutine.
type Region struct {
	root     *goquery.Selection
	handlers map[string][]func(*ClickEvent)
	nextID   int

	// OnFlush, if set, receives the serialized region after each render pass.
	OnFlush func(html string)
}

// NewRegion returns an empty, detached region.
func NewRegion() *Region {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "id", Val: "response"}},
	})
	r, _ := LookupRegion(goquery.NewDocumentFromNode(doc), "#response")
	return r
}

// LookupRegion binds a region to the first element of doc matching selector.
// It reports false when no such element exists.
func LookupRegion(doc *goquery.Document, selector string) (*Region, bool) {
	root := doc.Find(selector).First()
	if root.Length() == 0 {
		return nil, false
	}
	return &Region{
		root:     root,
		handlers: make(map[string][]func(*ClickEvent)),
	}, true
}

// SetContent replaces the region's children. Click handlers bound to the
// previous content are dropped. Click ids are never reused for the life of
// the region, so a click reported against old content cannot reach new
// content.
func (r *Region) SetContent(htmlStr string) {
	r.root.SetHtml(htmlStr)
	r.handlers = make(map[string][]func(*ClickEvent))
}

// QueryAll implements Target.
func (r *Region) QueryAll(selector string) []Element {
	return r.wrap(r.root.Find(selector))
}

// HTML serializes the region's children.
func (r *Region) HTML() string {
	// Rendering into a strings.Builder cannot fail.
	out, _ := r.root.Html()
	return out
}

// Flush implements Flusher.
func (r *Region) Flush() {
	if r.OnFlush != nil {
		r.OnFlush(r.HTML())
	}
}

// Click dispatches a click on the element carrying id. It reports false for
// unknown ids, including ids from content that has since been replaced.
func (r *Region) Click(id string) (*ClickEvent, bool) {
	fns, ok := r.handlers[id]
	if !ok {
		return nil, false
	}
	ev := &ClickEvent{ID: id}
	for _, fn := range fns {
		fn(ev)
	}
	return ev, true
}

func (r *Region) wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{region: r, sel: s})
	})
	return out
}

func (r *Region) bind(sel *goquery.Selection, fn func(*ClickEvent)) {
	id, ok := sel.Attr(clickAttr)
	if _, bound := r.handlers[id]; !ok || !bound {
		r.nextID++
		id = "c" + strconv.Itoa(r.nextID)
		sel.SetAttr(clickAttr, id)
	}
	r.handlers[id] = append(r.handlers[id], fn)
}

// element is a single-node goquery selection.
type element struct {
	region *Region
	sel    *goquery.Selection
}

func (e *element) Text() string {
	return e.sel.Text()
}

func (e *element) SetText(text string) {
	e.sel.SetText(text)
}

func (e *element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *element) AddClass(classes ...string) {
	e.sel.AddClass(classes...)
	class, _ := e.sel.Attr("class")
	e.sel.SetAttr("class", normalizeClass(class))
}

// normalizeClass drops duplicate and empty class names, keeping first-seen order.
func normalizeClass(class string) string {
	fields := strings.Fields(class)
	out := fields[:0]
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

func (e *element) WrapContent(tag string, classes ...string) {
	wrapper := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if len(classes) > 0 {
		wrapper.Attr = []html.Attribute{{Key: "class", Val: strings.Join(classes, " ")}}
	}
	e.sel.WrapInnerNode(wrapper)
}

func (e *element) Query(selector string) []Element {
	return e.region.wrap(e.sel.Find(selector))
}

func (e *element) SetInnerHTML(htmlStr string) {
	e.sel.SetHtml(htmlStr)
}

func (e *element) OnClick(fn func(*ClickEvent)) {
	e.region.bind(e.sel, fn)
}
