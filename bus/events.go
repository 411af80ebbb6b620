// Package bus carries panel events between the host link, the view and the
// browser shell.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
	"github.com/linanwx/nagopanel/panel"
)

// EventType represents the type of event.
type EventType string

const (
	// EventHostMessage carries a message.Inbound received from the host.
	EventHostMessage EventType = "host.message"
	// EventKeyUp is a key release in the shell's prompt input.
	EventKeyUp EventType = "view.keyup"
	// EventClick is a click on an element carrying a click id.
	EventClick EventType = "view.click"
	// EventContent is published after every render pass.
	EventContent EventType = "view.content"
	// EventPrompt is published when the prompt value changes.
	EventPrompt EventType = "view.prompt"

	eventBarrier EventType = "bus.barrier"
)

// Event represents a bus event.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`

	barrier chan struct{}
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, source string, data any) (*Event, error) {
	var dataBytes json.RawMessage
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      dataBytes,
	}, nil
}

// ParseData unmarshals the event data into the given struct.
func (e *Event) ParseData(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// KeyUpData is the payload of EventKeyUp.
type KeyUpData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ClickData is the payload of EventClick.
type ClickData struct {
	ID string `json:"id"`
}

// ContentData is the payload of EventContent.
type ContentData struct {
	HTML string       `json:"html"`
	Tree []panel.Node `json:"tree,omitempty"`
}

// PromptData is the payload of EventPrompt.
type PromptData struct {
	Value string `json:"value"`
}

// ListenHost delivers host messages to fn on the bus goroutine. It lets a
// Bus act as the view's panel.HostSource.
func (b *Bus) ListenHost(fn func(message.Inbound)) func() {
	id := b.Subscribe(EventHostMessage, func(_ context.Context, e *Event) {
		var msg message.Inbound
		if err := e.ParseData(&msg); err != nil {
			logger.Warn("bad host message event", "id", e.ID, "err", err)
			return
		}
		fn(msg)
	})
	return func() { b.Unsubscribe(id) }
}

var eventCounter atomic.Int64

func generateEventID() string {
	n := eventCounter.Add(1)
	return fmt.Sprintf("evt-%d-%d", time.Now().UnixMilli(), n)
}
