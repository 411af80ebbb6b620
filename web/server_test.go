package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/linanwx/nagopanel/bus"
	"github.com/linanwx/nagopanel/panel"
)

type fixture struct {
	bus    *bus.Bus
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newTestBus(t)
	s, err := NewServer(Config{}, b, panel.NewChromaHighlighter("monokai"))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &fixture{bus: b, server: s, http: ts}
}

// newTestBus returns a bus closed at the end of the test.
func newTestBus(t *testing.T) *bus.Bus {
	b := bus.NewBus(64)
	t.Cleanup(b.Close)
	return b
}

// drain waits until every event published so far has been dispatched.
func drain(t *testing.T, b *bus.Bus) {
	t.Helper()
	done := make(chan struct{})
	id := b.Subscribe("test.sync", func(context.Context, *bus.Event) { close(done) })
	defer b.Unsubscribe(id)
	b.Emit("test.sync", "test", nil)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not drain")
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) gjson.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	return gjson.ParseBytes(data)
}

func TestIndexServesShell(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("input#prompt-input").Length())
	assert.Equal(t, 1, doc.Find("div#response").Length())
	assert.Equal(t, "nagopanel", doc.Find("title").Text())
	href, _ := doc.Find(`link[rel="stylesheet"]`).Attr("href")
	assert.Equal(t, "/highlight.css", href)

	missing, err := http.Get(f.http.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHighlightCSS(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.http.URL + "/highlight.css")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Contains(t, string(body), ".chroma")
}

func TestSnapshotOnConnect(t *testing.T) {
	f := newFixture(t)
	f.bus.Emit(bus.EventContent, "test", bus.ContentData{
		HTML: "<p>hi</p>",
		Tree: []panel.Node{{Tag: "p", Children: []panel.Node{{Text: "hi"}}}},
	})
	f.bus.Emit(bus.EventPrompt, "test", bus.PromptData{Value: "draft"})
	drain(t, f.bus)

	conn := f.dial(t)
	content := readFrame(t, conn)
	assert.Equal(t, "content", content.Get("op").String())
	assert.Equal(t, "<p>hi</p>", content.Get("html").String())
	assert.Equal(t, "p", content.Get("tree.0.tag").String())
	assert.Equal(t, "hi", content.Get("tree.0.children.0.text").String())

	prompt := readFrame(t, conn)
	assert.Equal(t, "prompt", prompt.Get("op").String())
	assert.Equal(t, "draft", prompt.Get("value").String())
}

func TestBroadcastToConnectedShells(t *testing.T) {
	f := newFixture(t)
	a, b := f.dial(t), f.dial(t)
	require.Eventually(t, func() bool { return f.server.hub.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	f.bus.Emit(bus.EventPrompt, "test", bus.PromptData{Value: "new"})
	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, "new", frame.Get("value").String())
	}
}

func TestShellEventsReachBus(t *testing.T) {
	f := newFixture(t)
	keys := make(chan bus.KeyUpData, 4)
	clicks := make(chan bus.ClickData, 4)
	f.bus.Subscribe(bus.EventKeyUp, func(_ context.Context, e *bus.Event) {
		var d bus.KeyUpData
		e.ParseData(&d)
		keys <- d
	})
	f.bus.Subscribe(bus.EventClick, func(_ context.Context, e *bus.Event) {
		var d bus.ClickData
		e.ParseData(&d)
		clicks <- d
	})

	conn := f.dial(t)
	ctx := context.Background()
	for _, frame := range []string{
		`{"event":"scroll"}`,
		`garbage`,
		`{"event":"click","id":""}`,
		`{"event":"keyup","key":"Enter","value":"explain this"}`,
		`{"event":"click","id":"c3"}`,
	} {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
	}

	select {
	case d := <-keys:
		assert.Equal(t, bus.KeyUpData{Key: "Enter", Value: "explain this"}, d)
	case <-time.After(2 * time.Second):
		t.Fatal("keyup not published")
	}
	select {
	case d := <-clicks:
		assert.Equal(t, bus.ClickData{ID: "c3"}, d)
	case <-time.After(2 * time.Second):
		t.Fatal("click not published")
	}
	assert.Empty(t, clicks)
}

func TestShutdownDisconnectsShells(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	require.Eventually(t, func() bool { return f.server.hub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	require.NoError(t, f.server.Shutdown(ctx))
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(<-readErr))
	assert.Zero(t, f.server.hub.count())
}

func TestDecodeClientFrame(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		kind bus.EventType
	}{
		{`{"event":"keyup","key":"a","value":"x"}`, true, bus.EventKeyUp},
		{`{"event":"keyup","key":1}`, false, ""},
		{`{"event":"click","id":"c1"}`, true, bus.EventClick},
		{`{"event":"click"}`, false, ""},
		{`[]`, false, ""},
		{`{`, false, ""},
	}
	for _, tt := range tests {
		ev, ok := decodeClientFrame([]byte(tt.in))
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.kind, ev.kind, tt.in)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	f.dial(t)
	require.Eventually(t, func() bool { return f.server.hub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(f.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	snap := gjson.ParseBytes(body)
	assert.Equal(t, "healthy", snap.Get("status").String())
	assert.Equal(t, int64(1), snap.Get("shells").Int())
	assert.NotEmpty(t, snap.Get("runtime.version").String())
}
