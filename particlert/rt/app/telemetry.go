package app

import (
	"net/http"
	"sync"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/gorilla/websocket"
)

// FrameReport is the JSON message pushed to telemetry clients once per frame.
type FrameReport struct {
	Type      string             `json:"type"`
	Frame     uint32             `json:"frame"`
	Time      float32            `json:"time"`
	Capacity  uint32             `json:"capacity"`
	Alive     uint32             `json:"alive"`
	Dead      uint32             `json:"dead"`
	Spawned   uint32             `json:"spawned"`
	TimingsMS map[string]float64 `json:"timingsMs,omitempty"`
}

// Command is a control message sent by a telemetry client.
type Command struct {
	Reset     bool     `json:"reset,omitempty"`
	MaxSpawn  *uint32  `json:"maxSpawn,omitempty"`
	SpawnRate *float32 `json:"spawnRate,omitempty"`
}

// Hub serves a websocket endpoint that streams frame reports and accepts
// control commands. Commands are queued and drained on the frame goroutine.
type Hub struct {
	log      gpu.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex

	commands chan Command
}

func NewHub(logger gpu.Logger) *Hub {
	if logger == nil {
		logger = gpu.NopLogger()
	}
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local debug tool
			},
		},
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		commands: make(chan Command, 64),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("telemetry: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()
	h.log.Debugf("telemetry: client %s connected", r.RemoteAddr)

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debugf("telemetry: read: %v", err)
			}
			return
		}
		select {
		case h.commands <- cmd:
		default:
			h.log.Warnf("telemetry: command queue full, dropping")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends r to every client. Clients that fail the write are dropped.
func (h *Hub) Broadcast(r FrameReport) {
	if r.Type == "" {
		r.Type = "frame"
	}
	h.mu.RLock()
	var failed []*websocket.Conn
	for conn, lock := range h.clients {
		lock.Lock()
		err := conn.WriteJSON(r)
		lock.Unlock()
		if err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		conn.Close()
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}
}

// Drain returns the commands received since the last call without blocking.
func (h *Hub) Drain() []Command {
	var out []Command
	for {
		select {
		case c := <-h.commands:
			out = append(out, c)
		default:
			return out
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
