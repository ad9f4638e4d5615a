package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Snapshot is the public view of one queue pushed to live clients. It carries no contact details.
type Snapshot struct {
	QueueType    domain.QueueType `json:"queueType"`
	WaitingCount int              `json:"waitingCount"`
	Approved     []SnapshotEntry  `json:"approved"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type SnapshotEntry struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

type broadcastMessage struct {
	queueType domain.QueueType
	payload   []byte
}

// Hub fans queue snapshots out to websocket clients grouped by queue type.
type Hub struct {
	clients    map[domain.QueueType]map[*client]bool
	last       map[domain.QueueType][]byte
	register   chan *client
	unregister chan *client
	broadcast  chan broadcastMessage
	done       chan struct{}

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[domain.QueueType]map[*client]bool),
		last:       make(map[domain.QueueType][]byte),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcastMessage, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, clients := range h.clients {
				for c := range clients {
					close(c.send)
				}
			}
			h.clients = make(map[domain.QueueType]map[*client]bool)
			return
		case c := <-h.register:
			if h.clients[c.queueType] == nil {
				h.clients[c.queueType] = make(map[*client]bool)
			}
			h.clients[c.queueType][c] = true
			metrics.LiveClientConnected()
			if msg, ok := h.last[c.queueType]; ok {
				c.send <- msg
			}
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.broadcast:
			h.last[msg.queueType] = msg.payload
			for c := range h.clients[msg.queueType] {
				select {
				case c.send <- msg.payload:
				default:
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	clients, ok := h.clients[c.queueType]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	metrics.LiveClientDisconnected()
	if len(clients) == 0 {
		delete(h.clients, c.queueType)
	}
}

// Publish has the monitor's observer signature. It never blocks; a full buffer drops the snapshot.
func (h *Hub) Publish(queueType domain.QueueType, waiting, approved []domain.QueueEntry) {
	payload, err := json.Marshal(NewSnapshot(queueType, waiting, approved, time.Now().UTC()))
	if err != nil {
		logger.Error("Failed to encode queue snapshot", "queue_type", queueType, "error", err)
		return
	}
	select {
	case h.broadcast <- broadcastMessage{queueType: queueType, payload: payload}:
	default:
		logger.Warn("Live feed busy, snapshot dropped", "queue_type", queueType)
	}
}

func NewSnapshot(queueType domain.QueueType, waiting, approved []domain.QueueEntry, at time.Time) Snapshot {
	s := Snapshot{
		QueueType:    queueType,
		WaitingCount: len(waiting),
		Approved:     make([]SnapshotEntry, 0, len(approved)),
		UpdatedAt:    at,
	}
	for _, e := range approved {
		s.Approved = append(s.Approved, SnapshotEntry{ID: e.ID, Position: e.Position})
	}
	return s
}

// ServeHTTP upgrades GET /queues/{type}/live and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	queueType, err := domain.ParseQueueType(mux.Vars(r)["type"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), queueType: queueType}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	queueType domain.QueueType
}

// readPump discards client messages and watches for disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
