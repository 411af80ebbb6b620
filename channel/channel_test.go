package channel

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/nagopanel/message"
)

func collect(t *testing.T, ch <-chan message.Inbound) []message.Inbound {
	t.Helper()
	var out []message.Inbound
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-timeout:
			t.Fatal("timed out waiting for channel to close")
		}
	}
}

func TestStdioChannelReadsLines(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"type":"addResponse","value":"**hi**"}`,
		``,
		`not json`,
		`{"type":"clearResponse"}`,
		`{"type":"setPrompt","value":"p"}`,
	}, "\n"))
	c := NewStdioChannel(in, &bytes.Buffer{})
	require.NoError(t, c.Start(context.Background()))

	got := collect(t, c.Messages())
	assert.Equal(t, []message.Inbound{
		{Type: message.TypeAddResponse, Value: "**hi**"},
		{Type: message.TypeClearResponse},
		{Type: message.TypeSetPrompt, Value: "p"},
	}, got)
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
}

func TestStdioChannelSend(t *testing.T) {
	var out bytes.Buffer
	c := NewStdioChannel(strings.NewReader(""), &out)

	require.NoError(t, c.Send(context.Background(), message.Prompt("ls -la")))
	require.NoError(t, c.Send(context.Background(), message.CodeSelected("a\nb")))

	assert.Equal(t,
		`{"type":"prompt","value":"ls -la"}`+"\n"+`{"type":"codeSelected","value":"a\nb"}`+"\n",
		out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestStdioChannelSendError(t *testing.T) {
	c := NewStdioChannel(strings.NewReader(""), failingWriter{})
	err := c.Send(context.Background(), message.Prompt("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed pipe")
}

// hostServer accepts one websocket at a time, pushes frames to it and
// records what the panel sends back.
type hostServer struct {
	*httptest.Server
	conns    chan *websocket.Conn
	received chan string
}

func newHostServer(t *testing.T) *hostServer {
	t.Helper()
	h := &hostServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan string, 16),
	}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			h.received <- string(data)
		}
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *hostServer) url() string {
	return "ws" + strings.TrimPrefix(h.URL, "http")
}

func (h *hostServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("panel never connected")
		return nil
	}
}

func TestWebSocketChannelRoundTrip(t *testing.T) {
	h := newHostServer(t)
	c := NewWebSocketChannel(h.url(), 10*time.Millisecond)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	conn := h.accept(t)
	ctx := context.Background()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"setPrompt","value":"hello"}`)))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"value":"no type"}`)))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"addResponse","value":"x"}`)))

	assert.Equal(t, message.Inbound{Type: message.TypeSetPrompt, Value: "hello"}, <-c.Messages())
	assert.Equal(t, message.Inbound{Type: message.TypeAddResponse, Value: "x"}, <-c.Messages())

	require.Eventually(t, func() bool {
		return c.Send(ctx, message.Prompt("go")) == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `{"type":"prompt","value":"go"}`, <-h.received)
}

func TestWebSocketChannelReconnects(t *testing.T) {
	h := newHostServer(t)
	c := NewWebSocketChannel(h.url(), 10*time.Millisecond)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	first := h.accept(t)
	first.Close(websocket.StatusGoingAway, "host restart")

	second := h.accept(t)
	require.NoError(t, second.Write(context.Background(), websocket.MessageText, []byte(`{"type":"clearResponse"}`)))
	assert.Equal(t, message.Inbound{Type: message.TypeClearResponse}, <-c.Messages())
}

func TestWebSocketChannelSendWhileDisconnected(t *testing.T) {
	c := NewWebSocketChannel("ws://127.0.0.1:1/unused", time.Hour)
	assert.ErrorIs(t, c.Send(context.Background(), message.Prompt("x")), ErrNotConnected)
	assert.NoError(t, c.Stop())
}

func TestWebSocketChannelRequiresURL(t *testing.T) {
	assert.Error(t, NewWebSocketChannel("", 0).Start(context.Background()))
}

type stubChannel struct {
	name    string
	sent    []message.Outbound
	sendErr error
	started bool
	stopped bool
}

func (s *stubChannel) Name() string                     { return s.name }
func (s *stubChannel) Start(context.Context) error      { s.started = true; return nil }
func (s *stubChannel) Stop() error                      { s.stopped = true; return nil }
func (s *stubChannel) Messages() <-chan message.Inbound { return nil }
func (s *stubChannel) Send(_ context.Context, m message.Outbound) error {
	s.sent = append(s.sent, m)
	return s.sendErr
}

func TestManager(t *testing.T) {
	m := NewManager()
	a := &stubChannel{name: "a"}
	b := &stubChannel{name: "b", sendErr: errors.New("down")}
	m.Register(a)
	m.Register(b)
	m.Register(nil)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, a.started && b.started)

	require.NoError(t, m.SendTo(context.Background(), "a", message.Prompt("x")))
	assert.Error(t, m.SendTo(context.Background(), "missing", message.Prompt("x")))

	err := m.Broadcast(context.Background(), message.CodeSelected("y"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: down")
	assert.Len(t, a.sent, 2)

	var names []string
	m.Each(func(ch Channel) { names = append(names, ch.Name()) })
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, m.StopAll())
	assert.True(t, a.stopped && b.stopped)
}
