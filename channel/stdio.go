package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/message"
)

const (
	stdioMessageBufferSize = 32
	stdioMaxLineBytes      = 16 << 20
)

// StdioChannel speaks newline-delimited JSON over a reader and writer,
// normally the process's stdin and stdout.
type StdioChannel struct {
	in  io.Reader
	out io.Writer

	writeMu  sync.Mutex
	messages chan message.Inbound
	done     chan struct{}
	stopOnce sync.Once
}

// NewStdioChannel creates a channel reading host messages from in and writing
// view messages to out.
func NewStdioChannel(in io.Reader, out io.Writer) *StdioChannel {
	return &StdioChannel{
		in:       in,
		out:      out,
		messages: make(chan message.Inbound, stdioMessageBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *StdioChannel) Name() string {
	return "stdio"
}

func (c *StdioChannel) Start(ctx context.Context) error {
	logger.Info("stdio channel started")
	go c.readInput(ctx)
	return nil
}

// Stop ends delivery. A read blocked on the input is abandoned.
func (c *StdioChannel) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)
		logger.Info("stdio channel stopped")
	})
	return nil
}

func (c *StdioChannel) Send(_ context.Context, msg message.Outbound) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *StdioChannel) Messages() <-chan message.Inbound {
	return c.messages
}

func (c *StdioChannel) readInput(ctx context.Context) {
	defer close(c.messages)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), stdioMaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, ok := message.DecodeInbound(line)
		if !ok {
			logger.Warn("stdio: ignoring malformed line", "bytes", len(line))
			continue
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("stdio: read failed", "err", err)
		return
	}
	logger.Info("stdio: input closed")
}
