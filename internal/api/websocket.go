package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"qron/internal/game"
	"qron/internal/input"
	"qron/internal/lobby"
	"qron/internal/metrics"
)

const (
	// MaxWSConnectionsTotal caps all WebSocket connections.
	MaxWSConnectionsTotal = 2000
	// MaxWSConnectionsPerIP caps connections per source IP.
	MaxWSConnectionsPerIP = 4

	wsSendBuffer   = 64
	wsWriteWait    = 10 * time.Second
	wsMaxFrameSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if isAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		metrics.ConnectionRejected("origin")
		return false
	},
}

// isAllowedOrigin permits localhost plus the ALLOWED_ORIGINS env allowlist.
// Empty origins (non-browser clients) are allowed.
func isAllowedOrigin(origin string) bool {
	if origin == "" || strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}
	for _, allowed := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if allowed != "" && origin == strings.TrimSpace(allowed) {
			return true
		}
	}
	return false
}

// envelope is the wire format in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRequest struct {
	Name   string `json:"name"`
	Wallet string `json:"wallet"`
	Mode   string `json:"mode"`
}

type inputRequest struct {
	Direction string `json:"direction"`
}

// sanitizeName normalizes a display name: trimmed, non-empty, at most 24
// runes. Truncation is on a rune boundary so multi-byte names stay valid
// UTF-8.
func sanitizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "anon"
	}
	if utf8.RuneCountInString(name) > 24 {
		name = string([]rune(name)[:24])
	}
	return name
}

// wsClient is one connection. participantID is set once the client joins a
// lobby and cleared again on leave.
type wsClient struct {
	conn          *websocket.Conn
	ip            string
	send          chan []byte
	participantID string
}

// Hub owns all WebSocket connections and implements game.Sink: match and
// lobby events are delivered only to the participants they name. Ids without
// a live connection (bots, disconnected players) are skipped.
type Hub struct {
	mu            sync.RWMutex
	clients       map[*wsClient]struct{}
	byParticipant map[string]*wsClient

	coordinator *lobby.Coordinator
	gateway     *input.Gateway
	connLimiter *ConnLimiter
}

// NewHub creates an empty hub. Bind must be called before serving.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*wsClient]struct{}),
		byParticipant: make(map[string]*wsClient),
		connLimiter:   NewConnLimiter(MaxWSConnectionsPerIP),
	}
}

// Bind wires the coordinator and input gateway. Separate from NewHub because
// the coordinator itself needs the hub as its event sink.
func (h *Hub) Bind(c *lobby.Coordinator, g *input.Gateway) {
	h.coordinator = c
	h.gateway = g
}

// Send implements game.Sink.
func (h *Hub) Send(participantIDs []string, event string, data any) {
	msg, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range participantIDs {
		cl, ok := h.byParticipant[id]
		if !ok {
			continue
		}
		select {
		case cl.send <- msg:
		default:
			// Slow consumer: drop rather than stall the simulation.
		}
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and runs its read loop.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		metrics.ConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.connLimiter.Acquire(ip) {
		metrics.ConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.connLimiter.Release(ip)
		return
	}

	cl := &wsClient{conn: conn, ip: ip, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWSConnections(count)
	log.Printf("📱 Client connected from %s (%d total)", ip, count)

	go cl.writePump()
	h.readLoop(cl)
	h.dropClient(cl)
}

func (h *Hub) readLoop(cl *wsClient) {
	cl.conn.SetReadLimit(wsMaxFrameSize)
	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Event {
		case "join":
			h.handleJoin(cl, env.Data)
		case "input":
			h.handleInput(cl, env.Data)
		case "leave":
			h.leaveLobby(cl)
		}
	}
}

func (h *Hub) handleJoin(cl *wsClient, data json.RawMessage) {
	if cl.participantID != "" {
		return
	}
	var req joinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	name := sanitizeName(req.Name)

	// Register the connection before enqueueing so the client sees every
	// pool and match event, including a match started by its own join.
	p := game.NewParticipant(name, req.Wallet, game.ControllerHuman)
	cl.participantID = p.ID
	h.mu.Lock()
	h.byParticipant[p.ID] = cl
	h.mu.Unlock()

	h.Send([]string{p.ID}, "lobby:joined", map[string]string{"participantId": p.ID})
	h.coordinator.Enqueue(p, req.Mode)
}

func (h *Hub) handleInput(cl *wsClient, data json.RawMessage) {
	if cl.participantID == "" {
		return
	}
	var req inputRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	dir, res := h.gateway.Process(cl.participantID, req.Direction, time.Now())
	if res != input.ResultOK {
		return
	}
	h.coordinator.HandleInput(cl.participantID, dir)
}

// leaveLobby detaches the participant from lobby or match while keeping the
// socket open, so the client can join again.
func (h *Hub) leaveLobby(cl *wsClient) {
	if cl.participantID == "" {
		return
	}
	id := cl.participantID
	cl.participantID = ""

	h.mu.Lock()
	delete(h.byParticipant, id)
	h.mu.Unlock()

	h.coordinator.Disconnect(id)
	h.gateway.Remove(id)
}

// dropClient runs full disconnect handling when the socket closes.
func (h *Hub) dropClient(cl *wsClient) {
	h.leaveLobby(cl)

	h.mu.Lock()
	delete(h.clients, cl)
	count := len(h.clients)
	h.mu.Unlock()

	close(cl.send)
	cl.conn.Close()
	h.connLimiter.Release(cl.ip)
	metrics.UpdateWSConnections(count)
	log.Printf("📱 Client disconnected (%d remaining)", count)
}

func (cl *wsClient) writePump() {
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			cl.conn.Close()
			return
		}
	}
}
