package web

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/linanwx/nagopanel/logger"
)

const clientSendBuffer = 16

// client is one connected browser shell.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// hub tracks connected shells and the latest frames, so a shell that
// (re)connects starts from the current render.
type hub struct {
	mu      sync.Mutex
	clients map[string]*client
	content []byte
	prompt  []byte
}

func newHub() *hub {
	return &hub{clients: make(map[string]*client)}
}

// add registers conn and queues the snapshot for it.
func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	for _, frame := range [][]byte{h.content, h.prompt} {
		if frame != nil {
			c.send <- frame
		}
	}
	logger.Info("shell connected", "client", c.id, "clients", len(h.clients))
	return c
}

// remove unregisters a client and ends its write loop.
func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(id)
}

func (h *hub) dropLocked(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(c.send)
	logger.Info("shell disconnected", "client", id, "clients", len(h.clients))
}

// setContent stores and broadcasts a content frame.
func (h *hub) setContent(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.content = frame
	h.broadcastLocked(frame)
}

// setPrompt stores and broadcasts a prompt frame.
func (h *hub) setPrompt(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompt = frame
	h.broadcastLocked(frame)
}

// broadcastLocked drops clients whose buffer is full rather than block the
// event loop on a slow shell.
func (h *hub) broadcastLocked(frame []byte) {
	for id, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			logger.Warn("shell too slow, dropping", "client", id)
			h.dropLocked(id)
			c.conn.CloseNow()
		}
	}
}

// closeAll disconnects every shell and waits for the close handshakes.
func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for id, c := range h.clients {
		conns = append(conns, c.conn)
		h.dropLocked(id)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Close(websocket.StatusGoingAway, "panel shutting down")
		}()
	}
	wg.Wait()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writeLoop sends queued frames until the client is removed or ctx ends.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
				logger.Debug("shell write failed", "client", c.id, "err", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
