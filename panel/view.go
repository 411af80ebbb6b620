// Package panel implements the assistant panel view: it keeps the latest
// response text, renders it to HTML and reports prompt submissions and code
// selections back to the host.
package panel

import (
	"html"
	"strings"
	"sync"

	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
)

// Classes applied during post-processing.
var (
	preCodeClasses = []string{"p-2", "my-2", "block", "overflow-x-scroll"}
	codeClasses    = []string{"inline-flex", "max-w-full", "overflow-hidden", "rounded-sm", "cursor-pointer"}
)

const (
	codeContainerClass = "code"
	copyCodeArtifact   = "Copy code"
	keyEnter           = "Enter"
)

// Host receives the view's outbound messages. Delivery is fire-and-forget.
type Host interface {
	PostMessage(msg message.Outbound)
}

// HostSource delivers inbound host messages to a registered listener.
// The returned cancel func deregisters it.
type HostSource interface {
	ListenHost(fn func(message.Inbound)) (cancel func())
}

// Highlighter applies syntax highlighting to a rendered target.
type Highlighter interface {
	Highlight(target Target)
}

// Options configures a View. Target, Prompt and Highlighter may be nil.
type Options struct {
	Host        Host
	Target      Target
	Prompt      PromptField
	Converter   *Converter
	Highlighter Highlighter
}

// View is the panel. All methods must be called from one goroutine, the
// same way a browser runs event handlers on its UI thread.
type View struct {
	host        Host
	target      Target
	prompt      PromptField
	converter   *Converter
	highlighter Highlighter

	response string
}

// NewView creates a view with an empty response buffer.
func NewView(opts Options) *View {
	conv := opts.Converter
	if conv == nil {
		conv = NewConverter()
	}
	return &View{
		host:        opts.Host,
		target:      opts.Target,
		prompt:      opts.Prompt,
		converter:   conv,
		highlighter: opts.Highlighter,
	}
}

// Response returns the current response buffer.
func (v *View) Response() string {
	return v.response
}

// Mount starts listening for host messages. The returned func stops
// listening; it is safe to call more than once.
func (v *View) Mount(src HostSource) (unmount func()) {
	cancel := src.ListenHost(v.HandleHostMessage)
	var once sync.Once
	return func() { once.Do(cancel) }
}

// HandleHostMessage applies one inbound message. Unknown types are ignored.
func (v *View) HandleHostMessage(msg message.Inbound) {
	switch msg.Type {
	case message.TypeAddResponse:
		v.response = msg.Value
		v.Render()
	case message.TypeClearResponse:
		// The display keeps the last render until the next addResponse.
		v.response = ""
	case message.TypeSetPrompt:
		if v.prompt != nil {
			v.prompt.SetValue(msg.Value)
		}
	default:
		logger.Debug("ignoring host message", "type", msg.Type)
	}
}

// PromptKeyUp handles a key release in the prompt field.
func (v *View) PromptKeyUp(key, value string) {
	if key != keyEnter {
		return
	}
	v.post(message.Prompt(value))
}

// Render converts the response buffer into the target.
func (v *View) Render() {
	v.response = BalanceFences(v.response)
	if v.target == nil {
		return
	}

	out, err := v.converter.Convert(v.response)
	if err != nil {
		logger.Warn("markdown conversion failed", "err", err)
		out = "<pre>" + html.EscapeString(v.response) + "</pre>"
	}
	v.target.SetContent(out)

	for _, block := range v.target.QueryAll("pre code") {
		block.AddClass(preCodeClasses...)
	}
	for _, code := range v.target.QueryAll("code") {
		v.decorateCode(code)
	}

	if v.highlighter != nil {
		v.highlighter.Highlight(v.target)
	}
	if f, ok := v.target.(Flusher); ok {
		f.Flush()
	}
}

func (v *View) decorateCode(code Element) {
	if text := code.Text(); strings.HasPrefix(text, copyCodeArtifact) {
		code.SetText(strings.Replace(text, copyCodeArtifact, "", 1))
	}
	code.AddClass(codeClasses...)
	code.OnClick(func(ev *ClickEvent) {
		ev.PreventDefault()
		v.post(message.CodeSelected(code.Text()))
	})
	code.WrapContent("div", codeContainerClass)
}

func (v *View) post(msg message.Outbound) {
	if v.host == nil {
		return
	}
	v.host.PostMessage(msg)
}
