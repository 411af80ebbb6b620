// Package web serves the browser shell that displays the panel and relays
// its DOM events back to the event loop.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/linanwx/nagopanel/bus"
	"github.com/linanwx/nagopanel/internal/health"
	"github.com/linanwx/nagopanel/logger"
)

//go:embed assets/shell.html
var assets embed.FS

var shellTemplate = template.Must(template.ParseFS(assets, "assets/shell.html"))

const (
	defaultAddr       = "127.0.0.1:8080"
	wsReadLimit       = 1 << 20
	readHeaderTimeout = 10 * time.Second
)

// StyleSheet writes the highlight stylesheet served at /highlight.css.
type StyleSheet interface {
	WriteCSS(w io.Writer) error
}

// Config configures the shell server.
type Config struct {
	Addr  string
	Title string
	// OriginPatterns are extra websocket origins to accept besides the
	// server's own host.
	OriginPatterns []string
	// Transport is reported by /healthz.
	Transport string
}

// Server is the shell HTTP server.
type Server struct {
	cfg  Config
	bus  *bus.Bus
	hub  *hub
	css  []byte
	http *http.Server
	subs []string

	started time.Time

	mu sync.Mutex
	ln net.Listener
}

// NewServer builds the server and subscribes it to view output events.
func NewServer(cfg Config, b *bus.Bus, style StyleSheet) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Title == "" {
		cfg.Title = "nagopanel"
	}

	var css bytes.Buffer
	if style != nil {
		if err := style.WriteCSS(&css); err != nil {
			return nil, fmt.Errorf("web: build stylesheet: %w", err)
		}
	}

	s := &Server{
		cfg: cfg,
		bus: b,
		hub: newHub(),
		css: css.Bytes(),

		started: time.Now(),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.subs = []string{
		b.Subscribe(bus.EventContent, s.onContent),
		b.Subscribe(bus.EventPrompt, s.onPrompt),
	}
	return s, nil
}

// Handler returns the routes of the shell.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /highlight.css", s.handleCSS)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server stopped", "err", err)
		}
	}()
	logger.Info("web shell listening", "url", "http://"+ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown stops accepting requests, disconnects every shell and drops the
// bus subscriptions.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, id := range s.subs {
		s.bus.Unsubscribe(id)
	}
	s.hub.closeAll()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Title       string
		Placeholder string
	}{
		Title:       s.cfg.Title,
		Placeholder: "Ask a question, press Enter",
	}
	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		logger.Error("render shell failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(s.css)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := health.Collect(health.Options{
		StartedAt: s.started,
		Transport: s.cfg.Transport,
		Shells:    s.hub.count(),
	})
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		logger.Debug("write health failed", "err", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := s.hub.add(conn)
	defer s.hub.remove(c.id)
	go c.writeLoop(ctx)

	source := "web:" + c.id
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.Debug("shell read failed", "client", c.id, "err", err)
			}
			return
		}
		ev, ok := decodeClientFrame(data)
		if !ok {
			logger.Debug("ignoring shell frame", "client", c.id, "bytes", len(data))
			continue
		}
		var payload any = ev.click
		if ev.kind == bus.EventKeyUp {
			payload = ev.keyUp
		}
		if err := s.bus.EmitWait(ctx, ev.kind, source, payload); err != nil {
			logger.Debug("shell event not delivered", "client", c.id, "type", ev.kind, "err", err)
			return
		}
	}
}

func (s *Server) onContent(_ context.Context, e *bus.Event) {
	var d bus.ContentData
	if err := e.ParseData(&d); err != nil {
		logger.Warn("bad content event", "id", e.ID, "err", err)
		return
	}
	frame, err := contentFrame(d)
	if err != nil {
		logger.Error("encode content frame failed", "err", err)
		return
	}
	s.hub.setContent(frame)
}

func (s *Server) onPrompt(_ context.Context, e *bus.Event) {
	var d bus.PromptData
	if err := e.ParseData(&d); err != nil {
		logger.Warn("bad prompt event", "id", e.ID, "err", err)
		return
	}
	frame, err := promptFrame(d.Value)
	if err != nil {
		logger.Error("encode prompt frame failed", "err", err)
		return
	}
	s.hub.setPrompt(frame)
}
