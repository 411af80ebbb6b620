package panel

// Target is the display region a View renders into.
type Target interface {
	// SetContent replaces everything inside the region with html.
	SetContent(html string)
	// QueryAll returns the elements inside the region matching a CSS selector,
	// in document order.
	QueryAll(selector string) []Element
}

// Flusher is implemented by targets that publish their content once a render
// pass has finished post-processing.
type Flusher interface {
	Flush()
}

// Element is a single node inside a Target.
type Element interface {
	Text() string
	SetText(text string)
	Attr(name string) (string, bool)
	AddClass(classes ...string)
	// WrapContent moves the element's children into a new child element.
	WrapContent(tag string, classes ...string)
	Query(selector string) []Element
	SetInnerHTML(html string)
	OnClick(fn func(*ClickEvent))
}

// ClickEvent is passed to click handlers.
type ClickEvent struct {
	ID        string
	prevented bool
}

// PreventDefault marks the click as handled; the shell must not follow links
// inside the element.
func (e *ClickEvent) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a handler called PreventDefault.
func (e *ClickEvent) DefaultPrevented() bool { return e.prevented }

// PromptField is the prompt input of the panel.
type PromptField interface {
	SetValue(value string)
}

// Prompt is an in-memory PromptField.
type Prompt struct {
	value string

	// OnChange, if set, is called after every SetValue.
	OnChange func(value string)
}

// SetValue overwrites the prompt text.
func (p *Prompt) SetValue(value string) {
	p.value = value
	if p.OnChange != nil {
		p.OnChange(value)
	}
}

// Value returns the current prompt text.
func (p *Prompt) Value() string {
	return p.value
}
