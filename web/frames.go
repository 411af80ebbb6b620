package web

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/linanwx/nagopanel/bus"
)

// Frames sent to the browser carry an "op"; frames from the browser carry an
// "event".
const (
	opContent = "content"
	opPrompt  = "prompt"

	eventKeyUp = "keyup"
	eventClick = "click"
)

func contentFrame(d bus.ContentData) ([]byte, error) {
	tree, err := json.Marshal(d.Tree)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	frame, err := sjson.SetBytes([]byte(`{}`), "op", opContent)
	if err == nil {
		frame, err = sjson.SetBytes(frame, "html", d.HTML)
	}
	if err == nil {
		frame, err = sjson.SetRawBytes(frame, "tree", tree)
	}
	return frame, err
}

func promptFrame(value string) ([]byte, error) {
	frame, err := sjson.SetBytes([]byte(`{}`), "op", opPrompt)
	if err == nil {
		frame, err = sjson.SetBytes(frame, "value", value)
	}
	return frame, err
}

// clientEvent is a decoded browser frame.
type clientEvent struct {
	kind  bus.EventType
	keyUp bus.KeyUpData
	click bus.ClickData
}

// decodeClientFrame reports false for frames the panel does not handle.
func decodeClientFrame(data []byte) (clientEvent, bool) {
	if !gjson.ValidBytes(data) {
		return clientEvent{}, false
	}
	root := gjson.ParseBytes(data)
	switch root.Get("event").String() {
	case eventKeyUp:
		key := root.Get("key")
		if key.Type != gjson.String {
			return clientEvent{}, false
		}
		return clientEvent{
			kind:  bus.EventKeyUp,
			keyUp: bus.KeyUpData{Key: key.String(), Value: root.Get("value").String()},
		}, true
	case eventClick:
		id := root.Get("id")
		if id.Type != gjson.String || id.String() == "" {
			return clientEvent{}, false
		}
		return clientEvent{kind: bus.EventClick, click: bus.ClickData{ID: id.String()}}, true
	}
	return clientEvent{}, false
}
