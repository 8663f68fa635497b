// Package devprobe exposes a local DevTools-style diagnostics endpoint. When
// enabled it serves the /json/version and /json/list discovery documents and
// streams workspace server stderr lines to websocket clients on /ws. The
// listener binds to loopback only.
package devprobe

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EnableEnv turns the probe on. Accepts a bare port ("9222") or host:port;
// the host part is ignored, binding is always 127.0.0.1.
const EnableEnv = "COWORKER_DEVTOOLS_PROBE"

type clientConn struct {
	id   string
	conn *websocket.Conn
	send chan any
}

// diagnosticLine is the message delivered to /ws subscribers.
type diagnosticLine struct {
	WorkspaceID string `json:"workspaceId"`
	Line        string `json:"line"`
}

// Hub broadcasts workspace diagnostics to connected websocket clients and
// serves the discovery documents.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*clientConn

	listener net.Listener
	srv      *http.Server
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "devprobe"})
	}
	return &Hub{
		logger:  logger,
		clients: map[string]*clientConn{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// MaybeStart starts the probe if the enabling environment variable is set.
// Returns the bound address, or "" when the probe is disabled. Failure to
// bind is reported but never fatal; the probe is a diagnostics aid.
func (h *Hub) MaybeStart() string {
	raw := os.Getenv(EnableEnv)
	port, ok := parseDebugPort(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" {
			h.logger.Warn("ignoring invalid probe port", "value", raw)
		}
		return ""
	}
	addr, err := h.Start(port)
	if err != nil {
		h.logger.Warn("probe failed to start", "err", err)
		return ""
	}
	return addr
}

// Start binds the probe on 127.0.0.1:port. Port 0 picks a free port.
func (h *Hub) Start(port int) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("bind probe listener: %w", err)
	}
	h.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", h.handleVersion)
	mux.HandleFunc("/json/list", h.handleList)
	mux.HandleFunc("/ws", h.handleWS)
	h.srv = &http.Server{Handler: mux}

	go func() {
		_ = h.srv.Serve(ln)
	}()
	h.logger.Info("diagnostics probe listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Close stops the listener and disconnects every client.
func (h *Hub) Close() {
	if h.srv != nil {
		_ = h.srv.Close()
	}
	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish fans one diagnostic line out to all connected clients. Slow
// clients drop lines rather than block the publisher.
func (h *Hub) Publish(workspaceID, line string) {
	msg := diagnosticLine{WorkspaceID: workspaceID, Line: line}
	h.mu.Lock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *Hub) wsURL() string {
	if h.listener == nil {
		return ""
	}
	return "ws://" + h.listener.Addr().String() + "/ws"
}

func (h *Hub) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"Browser":              "Coworker",
		"Protocol-Version":     "1.3",
		"webSocketDebuggerUrl": h.wsURL(),
	})
}

func (h *Hub) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []map[string]any{{
		"id":                   "coworker-diagnostics",
		"type":                 "node",
		"title":                "Coworker workspace server diagnostics",
		"webSocketDebuggerUrl": h.wsURL(),
	}})
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &clientConn{id: uuid.NewString(), conn: conn, send: make(chan any, 128)}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	go h.writer(client)
	h.reader(client)
}

func (h *Hub) writer(c *clientConn) {
	for msg := range c.send {
		_ = c.conn.WriteJSON(msg)
	}
	_ = c.conn.Close()
}

// reader only watches for disconnect; the probe has no inbound protocol.
func (h *Hub) reader(c *clientConn) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c.id]; ok {
			delete(h.clients, c.id)
			close(c.send)
		}
		h.mu.Unlock()
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// parseDebugPort interprets the probe env value. "9222" and "host:9222" are
// both accepted; anything else disables the probe.
func parseDebugPort(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		raw = raw[i+1:]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 65535 {
		return 0, false
	}
	return n, true
}
