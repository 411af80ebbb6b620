package bus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/linanwx/nagopanel/logger"
)

// ErrClosed is returned by blocking publishes on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Handler is a function that handles events.
type Handler func(ctx context.Context, event *Event)

// Subscription represents a subscription to events.
type Subscription struct {
	ID        string
	EventType EventType
	Handler   Handler
}

// Bus is the panel's event loop. Events are dispatched one at a time on a
// single goroutine, in publish order, to subscribers in subscription order.
// Handlers therefore never run concurrently with each other, which is what
// lets the view be driven without locks.
type Bus struct {
	mu            sync.RWMutex
	subscriptions []*Subscription
	subCounter    int64

	eventChan chan *Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewBus creates a new event bus and starts its loop.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	b := &Bus{
		eventChan: make(chan *Event, bufferSize),
		done:      make(chan struct{}),
	}

	b.wg.Add(1)
	go b.processEvents()

	return b
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subCounter++
	id := fmt.Sprintf("sub-%d", b.subCounter)

	b.subscriptions = append(b.subscriptions, &Subscription{
		ID:        id,
		EventType: eventType,
		Handler:   handler,
	})

	logger.Debug("subscription added", "id", id, "eventType", eventType)
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscriptions = slices.DeleteFunc(b.subscriptions, func(s *Subscription) bool {
		return s.ID == id
	})
}

// Publish queues an event without blocking. Events published after Close or
// while the buffer is full are dropped. Producers whose events must arrive
// use PublishWait.
func (b *Bus) Publish(event *Event) {
	select {
	case <-b.done:
		logger.Warn("bus closed, event dropped", "type", event.Type)
		return
	default:
	}

	select {
	case b.eventChan <- event:
		logger.Debug("event published", "type", event.Type, "source", event.Source)
	default:
		logger.Warn("event buffer full, event dropped", "type", event.Type)
	}
}

// PublishWait queues an event, blocking while the buffer is full. It fails
// only when the bus is closed or ctx ends. Never call it from a handler:
// the loop it waits on is the one running the handler.
func (b *Bus) PublishWait(ctx context.Context, event *Event) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case b.eventChan <- event:
		logger.Debug("event published", "type", event.Type, "source", event.Source)
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit builds an event from data and publishes it without blocking.
func (b *Bus) Emit(eventType EventType, source string, data any) {
	event, err := NewEvent(eventType, source, data)
	if err != nil {
		logger.Error("event encode failed", "type", eventType, "err", err)
		return
	}
	b.Publish(event)
}

// EmitWait builds an event from data and publishes it with PublishWait.
func (b *Bus) EmitWait(ctx context.Context, eventType EventType, source string, data any) error {
	event, err := NewEvent(eventType, source, data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return b.PublishWait(ctx, event)
}

// EmitNow dispatches an event to its subscribers before returning. It must
// only be called from a handler, where it keeps the loop's ordering without
// going through the buffer.
func (b *Bus) EmitNow(eventType EventType, source string, data any) {
	event, err := NewEvent(eventType, source, data)
	if err != nil {
		logger.Error("event encode failed", "type", eventType, "err", err)
		return
	}
	b.dispatch(event)
}

// Drain blocks until every event queued before the call has been dispatched.
func (b *Bus) Drain(ctx context.Context) error {
	barrier := &Event{Type: eventBarrier, barrier: make(chan struct{})}
	if err := b.PublishWait(ctx, barrier); err != nil {
		return err
	}
	select {
	case <-barrier.barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop after dispatching events already queued.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.dispatch(event)
		case <-b.done:
			for {
				select {
				case event := <-b.eventChan:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

// dispatch runs every matching handler in turn.
func (b *Bus) dispatch(event *Event) {
	if event.barrier != nil {
		close(event.barrier)
		return
	}

	b.mu.RLock()
	var subs []*Subscription
	for _, sub := range b.subscriptions {
		if sub.EventType == event.Type {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()

	ctx := context.Background()
	for _, sub := range subs {
		b.invoke(ctx, sub, event)
	}
}

func (b *Bus) invoke(ctx context.Context, s *Subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "subscription", s.ID, "type", event.Type, "panic", r)
		}
	}()
	s.Handler(ctx, event)
}
