package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-automation/internal/auth"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe          = "subscribe"
	WSTypeUnsubscribe        = "unsubscribe"
	WSTypeSubscribeTrigger   = "subscribe_trigger"
	WSTypeUnsubscribeTrigger = "unsubscribe_trigger"
	WSTypePing               = "ping"
	WSTypePong               = "pong"
	WSTypeEvent              = "event"
	WSTypeResponse           = "response"
	WSTypeError              = "error"
)

// Broadcast channels and event types.
const (
	// ChannelStateChanged carries every entity state change.
	ChannelStateChanged = "state_changed"

	// EventTrigger is the event type of a fired trigger subscription.
	// The message ID is the subscription ID.
	EventTrigger = "trigger"
)

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 256

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSTriggerPayload is the payload of a subscribe_trigger message: a device
// trigger descriptor as returned by GET /devices/{id}/automation/triggers.
type WSTriggerPayload struct {
	Config map[string]any `json:"config"`
}

// WSUnsubscribeTriggerPayload is the payload of an unsubscribe_trigger message.
type WSUnsubscribeTriggerPayload struct {
	Subscription string `json:"subscription"`
}

// TriggerAttacher attaches device triggers. *automation.Dispatcher satisfies it.
type TriggerAttacher interface {
	AttachTrigger(ctx context.Context, raw map[string]any, action automation.TriggerAction, info automation.AutomationInfo) (core.DetachFunc, error)
}

// Hub manages WebSocket connections and broadcasts events.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	triggers TriggerAttacher
	clients  map[*WSClient]struct{}
	mu       sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// triggers maps subscription ID to the detach function of an attached
	// device trigger. closed is set once detachAll has run; triggers
	// attached after that are detached immediately.
	triggers map[string]core.DetachFunc
	closed   bool
	trigMu   sync.Mutex

	// Identity from the connection token.
	userID string
	role   auth.Role
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub. Trigger subscriptions are attached
// through triggers.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, triggers TriggerAttacher) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		triggers: triggers,
		clients:  make(map[*WSClient]struct{}),
	}
}

// newClient creates a client bound to the hub. conn may be nil in tests.
func (h *Hub) newClient(conn *websocket.Conn, userID string, role auth.Role) *WSClient {
	return &WSClient{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		triggers:      make(map[string]core.DetachFunc),
		userID:        userID,
		role:          role,
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub and detaches its triggers.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		client.detachAll()
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event to all clients subscribed to the given channel.
// Lock ordering: hub lock is acquired first, then released before per-client
// subscription checks.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sentCount := 0
	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sentCount)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TriggerCount returns the number of attached trigger subscriptions across
// all clients.
func (h *Hub) TriggerCount() int {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range clients {
		c.trigMu.Lock()
		n += len(c.triggers)
		c.trigMu.Unlock()
	}
	return n
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.detachAll()
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// stateChangedPayload is the state_changed event body.
func stateChangedPayload(t core.Transition) map[string]any {
	return map[string]any{
		"entity_id":  t.EntityID,
		"from_state": t.From,
		"to_state":   t.To,
		"context":    t.Context,
		"changed_at": t.At.Format(time.RFC3339Nano),
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authentication is via the token query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := s.parseToken(token)
	if err != nil {
		writeUnauthorized(w, tokenErrorMessage(err))
		return
	}
	if !auth.HasPermission(claims.Role, auth.PermAutomationRead) {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := s.hub.newClient(conn, claims.Subject, claims.Role)
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypeSubscribeTrigger:
		c.handleSubscribeTrigger(msg)
	case WSTypeUnsubscribeTrigger:
		c.handleUnsubscribeTrigger(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodePayload re-decodes the generic payload into out.
func decodePayload(msg WSMessage, out any) error {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(payloadBytes, out)
}

// handleSubscribe adds channels to the client's subscription list.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	var sub WSSubscribePayload
	if err := decodePayload(msg, &sub); err != nil {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed", "channels", sub.Channels, "user_id", c.userID)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
	})
}

// handleUnsubscribe removes channels from the client's subscription list.
func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	var sub WSSubscribePayload
	if err := decodePayload(msg, &sub); err != nil {
		c.sendError(msg.ID, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"unsubscribed": sub.Channels,
	})
}

// handleSubscribeTrigger attaches a device trigger whose firings are
// delivered to this client as "trigger" events.
func (c *WSClient) handleSubscribeTrigger(msg WSMessage) {
	var sub WSTriggerPayload
	if err := decodePayload(msg, &sub); err != nil || len(sub.Config) == 0 {
		c.sendError(msg.ID, "invalid subscribe_trigger payload")
		return
	}

	subID := uuid.NewString()
	action := func(_ context.Context, ev automation.TriggerEvent) {
		c.sendMessage(WSMessage{
			Type:      WSTypeEvent,
			ID:        subID,
			EventType: EventTrigger,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Payload:   ev,
		})
	}

	detach, err := c.hub.triggers.AttachTrigger(context.Background(), sub.Config, action, automation.AutomationInfo{
		Name: "websocket:" + subID,
	})
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.trigMu.Lock()
	if c.closed {
		c.trigMu.Unlock()
		detach()
		return
	}
	c.triggers[subID] = detach
	c.trigMu.Unlock()

	c.hub.logger.Info("websocket trigger subscribed", "subscription", subID, "user_id", c.userID)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"subscription": subID,
	})
}

// handleUnsubscribeTrigger detaches one trigger subscription.
func (c *WSClient) handleUnsubscribeTrigger(msg WSMessage) {
	var sub WSUnsubscribeTriggerPayload
	if err := decodePayload(msg, &sub); err != nil {
		c.sendError(msg.ID, "invalid unsubscribe_trigger payload")
		return
	}

	c.trigMu.Lock()
	detach, ok := c.triggers[sub.Subscription]
	delete(c.triggers, sub.Subscription)
	c.trigMu.Unlock()

	if !ok {
		c.sendError(msg.ID, "unknown subscription: "+sub.Subscription)
		return
	}
	detach()

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"unsubscribed": sub.Subscription,
	})
}

// detachAll detaches every trigger the client attached and refuses
// further ones.
func (c *WSClient) detachAll() {
	c.trigMu.Lock()
	c.closed = true
	detaches := make([]core.DetachFunc, 0, len(c.triggers))
	for id, detach := range c.triggers {
		detaches = append(detaches, detach)
		delete(c.triggers, id)
	}
	c.trigMu.Unlock()

	for _, detach := range detaches {
		detach()
	}
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// isSubscribed checks if the client is subscribed to a channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket message", "type", msg.Type, "error", err)
		return
	}
	c.trySend(data)
}

// sendResponse sends a response message to the client.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	c.sendMessage(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
