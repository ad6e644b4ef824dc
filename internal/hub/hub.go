// Package hub exposes a websocket control channel at /ws. Connected
// clients receive state snapshots as they are published and can send
// {action, asset, interval} control messages to the scheduler.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/runner"
)

const writeTimeout = 10 * time.Second

type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	last    *runner.State

	cmds     chan<- runner.Command
	snapshot func() runner.State
}

func New() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Bind wires the hub to the scheduler. Must be called before Serve.
func (h *Hub) Bind(r *runner.Runner) {
	h.cmds = r.Commands()
	h.snapshot = r.Snapshot
}

// Publish implements runner.Publisher: the snapshot is broadcast to
// every connected client and retained for late joiners.
func (h *Hub) Publish(st runner.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &st
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Serve blocks until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		h.closeAll()
	}()

	logger.Info(ctx, "Control hub listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Websocket upgrade failed", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	// Late joiners get the current state immediately.
	st := h.last
	if st == nil && h.snapshot != nil {
		s := h.snapshot()
		st = &s
	}
	if st != nil {
		if payload, err := json.Marshal(st); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	}
	h.mu.Unlock()

	logger.Info(r.Context(), "Control client connected", "remote", conn.RemoteAddr().String())
	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd runner.Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			logger.Warn(context.Background(), "Dropping malformed control message", "err", err.Error())
			continue
		}
		if h.cmds == nil {
			continue
		}
		select {
		case h.cmds <- cmd:
		default:
			logger.Warn(context.Background(), "Command queue full, dropping", "action", cmd.Action)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.clients, conn)
	}
}
