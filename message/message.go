// Package message defines the messages exchanged between the host process and
// the panel view.
//
// Host to view (Inbound):
//
//	{"type": "addResponse", "value": "..."}
//	{"type": "clearResponse"}
//	{"type": "setPrompt", "value": "..."}
//
// View to host (Outbound):
//
//	{"type": "prompt", "value": "..."}
//	{"type": "codeSelected", "value": "..."}
package message

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Inbound message types.
const (
	TypeAddResponse   = "addResponse"
	TypeClearResponse = "clearResponse"
	TypeSetPrompt     = "setPrompt"
)

// Outbound message types.
const (
	TypePrompt       = "prompt"
	TypeCodeSelected = "codeSelected"
)

// Inbound is a message sent by the host to the view.
type Inbound struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Known reports whether the message carries one of the inbound types the view
// understands.
func (m Inbound) Known() bool {
	switch m.Type {
	case TypeAddResponse, TypeClearResponse, TypeSetPrompt:
		return true
	}
	return false
}

// DecodeInbound parses a host message. It returns false when data is not a
// JSON object or has no string "type" field. Unknown types are returned as-is.
func DecodeInbound(data []byte) (Inbound, bool) {
	if !gjson.ValidBytes(data) {
		return Inbound{}, false
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Inbound{}, false
	}
	typ := root.Get("type")
	if typ.Type != gjson.String {
		return Inbound{}, false
	}

	msg := Inbound{Type: typ.String()}
	if msg.Type == TypeClearResponse {
		return msg, true
	}
	if v := root.Get("value"); v.Exists() && v.Type != gjson.Null {
		msg.Value = v.String()
	}
	return msg, true
}

// Outbound is a message sent by the view to the host.
type Outbound struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Prompt builds a prompt submission.
func Prompt(value string) Outbound {
	return Outbound{Type: TypePrompt, Value: value}
}

// CodeSelected builds a code selection notice.
func CodeSelected(value string) Outbound {
	return Outbound{Type: TypeCodeSelected, Value: value}
}

// Encode renders the message as a single JSON object.
func (m Outbound) Encode() ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "type", m.Type)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "value", m.Value)
}
