package cmd

import (
	"context"
	"time"

	"github.com/linanwx/nagopanel/channel"
	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
)

const (
	hostQueueSize   = 64
	hostSendTimeout = 10 * time.Second
)

// hostLink is the view's panel.Host. PostMessage never blocks the event loop;
// a single goroutine delivers messages in order to every host channel.
type hostLink struct {
	channels *channel.Manager
	queue    chan message.Outbound
}

func newHostLink(channels *channel.Manager) *hostLink {
	return &hostLink{
		channels: channels,
		queue:    make(chan message.Outbound, hostQueueSize),
	}
}

// PostMessage implements panel.Host.
func (h *hostLink) PostMessage(msg message.Outbound) {
	select {
	case h.queue <- msg:
	default:
		logger.Warn("host queue full, message dropped", "type", msg.Type)
	}
}

// run delivers queued messages until ctx is done. Failures are logged and
// not retried.
func (h *hostLink) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.queue:
			sendCtx, cancel := context.WithTimeout(ctx, hostSendTimeout)
			if err := h.channels.Broadcast(sendCtx, msg); err != nil {
				logger.Warn("send to host failed", "type", msg.Type, "err", err)
			} else {
				logger.Debug("sent to host", "type", msg.Type, "bytes", len(msg.Value))
			}
			cancel()
		}
	}
}
