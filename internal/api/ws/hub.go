package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Message types pushed to clients
const (
	TypeSystem              = "system"
	TypePong                = "pong"
	TypeAppStateChanged     = "appStateChanged"
	TypeAppLifecycleChanged = "appLifecycleStateChanged"
	TypeAppDownloadStatus   = "appDownloadStatus"
	TypeError               = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is a notification frame
type Message struct {
	Type             string          `json:"type"`
	Message          string          `json:"message,omitempty"`
	AppID            string          `json:"appId,omitempty"`
	AppInstanceID    string          `json:"appInstanceId,omitempty"`
	OldState         string          `json:"oldState,omitempty"`
	NewState         string          `json:"newState,omitempty"`
	ErrorReason      string          `json:"errorReason,omitempty"`
	NavigationIntent string          `json:"navigationIntent,omitempty"`
	Statuses         json.RawMessage `json:"statuses,omitempty"`
}

// inbound is a frame sent by a client
type inbound struct {
	Type string `json:"type"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans lifecycle and download notifications out to websocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	writers sync.WaitGroup
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// WithMetrics sets the metrics collector
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams notifications until the
// client disconnects
func (h *Hub) HandleConnection(c *gin.Context) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	h.writers.Add(1)
	h.mu.Unlock()
	h.metrics.IncWSConnections()

	go h.writeLoop(cl)
	h.deliver(cl, Message{Type: TypeSystem, Message: "connected"})

	h.readLoop(cl)

	h.remove(cl)
	h.metrics.DecWSConnections()
}

func (h *Hub) readLoop(cl *client) {
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.deliver(cl, Message{Type: TypeError, Message: "malformed message"})
			continue
		}
		switch msg.Type {
		case "ping":
			h.deliver(cl, Message{Type: TypePong})
		default:
			h.deliver(cl, Message{Type: TypeError, Message: "unknown message type"})
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	defer h.writers.Done()
	defer cl.conn.Close()
	for data := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			h.remove(cl)
			return
		}
	}
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Close disconnects every client, refuses new connections and waits for the
// writers to send their close frames.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
	h.writers.Wait()
	h.logger.Info("WebSocket hub closed", zap.Int("clients", len(clients)))
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		cl.close()
	}
}

func (h *Hub) deliver(cl *client, msg Message) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	select {
	case cl.send <- data:
	default:
	}
}

// Broadcast sends msg to every connected client. Clients whose buffer is
// full are disconnected.
func (h *Hub) Broadcast(msg Message) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.logger.Warn("Dropping slow websocket client")
		h.remove(cl)
	}
	h.metrics.RecordWSMessage(msg.Type)
}

// OnAppStateChanged implements lifecycle.StateListener
func (h *Hub) OnAppStateChanged(appID string, newState lifecycle.State, errorReason string) {
	h.Broadcast(Message{
		Type:        TypeAppStateChanged,
		AppID:       appID,
		NewState:    newState.String(),
		ErrorReason: errorReason,
	})
}

// OnAppLifecycleStateChanged implements lifecycle.LifecycleListener
func (h *Hub) OnAppLifecycleStateChanged(appID, appInstanceID string, oldState, newState lifecycle.State, navigationIntent string) {
	h.Broadcast(Message{
		Type:             TypeAppLifecycleChanged,
		AppID:            appID,
		AppInstanceID:    appInstanceID,
		OldState:         oldState.String(),
		NewState:         newState.String(),
		NavigationIntent: navigationIntent,
	})
}

// OnAppDownloadStatus implements download.Notification
func (h *Hub) OnAppDownloadStatus(statusJSON string) {
	h.Broadcast(Message{
		Type:     TypeAppDownloadStatus,
		Statuses: json.RawMessage(statusJSON),
	})
}
