// Package channel provides the links between the panel and its host process.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
)

// ErrNotConnected is returned by Send when the link has no live connection.
var ErrNotConnected = errors.New("channel: not connected")

// Channel is a bidirectional link to the host.
type Channel interface {
	// Name returns the channel name (e.g., "stdio", "websocket").
	Name() string

	// Start begins receiving host messages.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel and closes Messages.
	Stop() error

	// Send delivers a view message to the host.
	Send(ctx context.Context, msg message.Outbound) error

	// Messages returns the host messages received so far, in arrival order.
	Messages() <-chan message.Inbound
}

// Manager is a registry of host links.
type Manager struct {
	channels map[string]Channel
}

// NewManager creates a new channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the manager and logs it. Nil is silently ignored.
func (m *Manager) Register(ch Channel) {
	if ch == nil {
		return
	}
	m.channels[ch.Name()] = ch
	logger.Info("channel registered", "channel", ch.Name())
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// SendTo sends a message over a named channel.
func (m *Manager) SendTo(ctx context.Context, channelName string, msg message.Outbound) error {
	ch, ok := m.channels[channelName]
	if !ok {
		return fmt.Errorf("channel not found: %s", channelName)
	}
	return ch.Send(ctx, msg)
}

// Broadcast sends msg over every channel and joins the errors.
func (m *Manager) Broadcast(ctx context.Context, msg message.Outbound) error {
	var errs []error
	m.Each(func(ch Channel) {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	})
	return errors.Join(errs...)
}

// StartAll starts all registered channels in name order.
func (m *Manager) StartAll(ctx context.Context) error {
	var started []Channel
	for _, ch := range m.sorted() {
		if err := ch.Start(ctx); err != nil {
			for _, s := range started {
				s.Stop()
			}
			return fmt.Errorf("start %s: %w", ch.Name(), err)
		}
		started = append(started, ch)
	}
	return nil
}

// StopAll stops every registered channel and joins the errors.
func (m *Manager) StopAll() error {
	var errs []error
	for _, ch := range m.sorted() {
		if err := ch.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Each iterates over all registered channels in name order.
func (m *Manager) Each(fn func(Channel)) {
	for _, ch := range m.sorted() {
		fn(ch)
	}
}

func (m *Manager) sorted() []Channel {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Channel, 0, len(names))
	for _, name := range names {
		out = append(out, m.channels[name])
	}
	return out
}
