package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/linanwx/nagopanel/bus"
	"github.com/linanwx/nagopanel/channel"
	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
	"github.com/linanwx/nagopanel/panel"
)

// drainTimeout bounds how long Run waits for queued host messages once every
// channel has closed.
const drainTimeout = 5 * time.Second

// Dispatcher connects the host channels, the event loop and the view. Every
// view call happens on the bus goroutine.
type Dispatcher struct {
	channels *channel.Manager
	bus      *bus.Bus
	host     *hostLink

	region *panel.Region
	prompt *panel.Prompt
	view   *panel.View
}

// NewDispatcher creates the view and its display region.
func NewDispatcher(channels *channel.Manager, b *bus.Bus, highlighter panel.Highlighter) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		bus:      b,
		host:     newHostLink(channels),
		region:   panel.NewRegion(),
	}
	// Flushes and prompt changes happen inside bus handlers, so they are
	// dispatched inline rather than queued behind later host messages.
	d.region.OnFlush = func(html string) {
		b.EmitNow(bus.EventContent, "view", bus.ContentData{HTML: html, Tree: d.region.Tree()})
	}
	d.prompt = &panel.Prompt{OnChange: func(value string) {
		b.EmitNow(bus.EventPrompt, "view", bus.PromptData{Value: value})
	}}
	d.view = panel.NewView(panel.Options{
		Host:        d.host,
		Target:      d.region,
		Prompt:      d.prompt,
		Highlighter: highlighter,
	})
	return d
}

// Run mounts the view and forwards host messages to the bus. It blocks until
// ctx is cancelled or every host channel has closed. In the latter case the
// messages already forwarded are rendered before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unmount := d.view.Mount(d.bus)
	defer unmount()

	subs := []string{
		d.bus.Subscribe(bus.EventKeyUp, d.onKeyUp),
		d.bus.Subscribe(bus.EventClick, d.onClick),
	}
	defer func() {
		for _, id := range subs {
			d.bus.Unsubscribe(id)
		}
	}()

	go d.host.run(ctx)

	var wg sync.WaitGroup
	d.channels.Each(func(ch channel.Channel) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.processChannel(ctx, ch)
		}()
	})

	closed := make(chan struct{})
	go func() {
		wg.Wait()
		close(closed)
	}()

	select {
	case <-ctx.Done():
	case <-closed:
		logger.Info("all host channels closed")
		drainCtx, drainCancel := context.WithTimeout(ctx, drainTimeout)
		defer drainCancel()
		if err := d.bus.Drain(drainCtx); err != nil {
			logger.Warn("pending host messages not rendered", "err", err)
		}
	}
}

func (d *Dispatcher) processChannel(ctx context.Context, ch channel.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			if err := d.dispatch(ctx, ch, msg); err != nil {
				logger.Warn("host message not delivered", "channel", ch.Name(), "type", msg.Type, "err", err)
				return
			}
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ch channel.Channel, msg message.Inbound) error {
	logger.Debug("host message", "channel", ch.Name(), "type", msg.Type, "bytes", len(msg.Value))
	if !msg.Known() {
		logger.Debug("unknown host message type", "channel", ch.Name(), "type", msg.Type)
	}
	return d.bus.EmitWait(ctx, bus.EventHostMessage, ch.Name(), msg)
}

func (d *Dispatcher) onKeyUp(_ context.Context, e *bus.Event) {
	var k bus.KeyUpData
	if err := e.ParseData(&k); err != nil {
		logger.Warn("bad keyup event", "id", e.ID, "err", err)
		return
	}
	d.view.PromptKeyUp(k.Key, k.Value)
}

func (d *Dispatcher) onClick(_ context.Context, e *bus.Event) {
	var c bus.ClickData
	if err := e.ParseData(&c); err != nil {
		logger.Warn("bad click event", "id", e.ID, "err", err)
		return
	}
	if _, ok := d.region.Click(c.ID); !ok {
		logger.Debug("click on stale element", "id", c.ID, "source", e.Source)
	}
}
