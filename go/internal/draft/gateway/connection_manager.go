package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft/events"
)

// MessageHandler handles one inbound frame from a connection.
type MessageHandler func(conn *Connection, msg Inbound)

// ConnectHandler runs once per connection, after it is registered and before
// any of its frames are read.
type ConnectHandler func(conn *Connection)

// DisconnectHandler runs once per connection after it is unregistered, with
// the topics it had joined.
type DisconnectHandler func(conn *Connection, topics []string)

// ConnectionManager manages WebSocket connections grouped by topic. A topic
// is a room id or a lobby topic.
type ConnectionManager struct {
	// Connection pools organized by topic and by user
	topics map[string]map[*Connection]bool
	users  map[string]map[*Connection]bool
	conns  map[*Connection]bool
	mu     sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock

	broadcastCh chan BroadcastMessage

	onConnect    ConnectHandler
	onMessage    MessageHandler
	onDisconnect DisconnectHandler
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	// joined topics, guarded by Manager.mu
	joined map[string]bool
	closed bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a frame queued for delivery. Exactly one of Topic,
// UserID or Conn selects the recipients.
type BroadcastMessage struct {
	Topic    string
	UserID   string
	Conn     *Connection
	Envelope *Envelope
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		topics: make(map[string]map[*Connection]bool),
		users:  make(map[string]map[*Connection]bool),
		conns:  make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// OnConnect sets the connect handler. Call before serving connections.
func (cm *ConnectionManager) OnConnect(h ConnectHandler) { cm.onConnect = h }

// OnMessage sets the inbound frame handler. Call before serving connections.
func (cm *ConnectionManager) OnMessage(h MessageHandler) { cm.onMessage = h }

// OnDisconnect sets the disconnect handler. Call before serving connections.
func (cm *ConnectionManager) OnDisconnect(h DisconnectHandler) { cm.onDisconnect = h }

// Start processes queued broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        ws,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		ctx:         ctx,
		cancel:      cancel,
		joined:      make(map[string]bool),
	}
	cm.register(conn)
	if cm.onConnect != nil {
		cm.onConnect(conn)
	}

	go conn.writePump()
	go conn.readPump()

	cm.Send(conn, events.Connected, map[string]bool{"ok": true})

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", userID).
		Msg("WebSocket connection established")

	return conn, nil
}

func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.conns[conn] = true
	if cm.users[conn.UserID] == nil {
		cm.users[conn.UserID] = make(map[*Connection]bool)
	}
	cm.users[conn.UserID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.conns)).
		Msg("connection registered")
}

// unregister removes conn from every pool and runs the disconnect handler
// the first time it is called for conn.
func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	if conn.closed {
		cm.mu.Unlock()
		return
	}
	conn.closed = true
	delete(cm.conns, conn)
	removeFrom(cm.users, conn.UserID, conn)
	topics := make([]string, 0, len(conn.joined))
	for topic := range conn.joined {
		removeFrom(cm.topics, topic, conn)
		topics = append(topics, topic)
	}
	conn.joined = map[string]bool{}
	close(conn.Send)
	cm.mu.Unlock()

	conn.cancel()
	sort.Strings(topics)

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Strs("topics", topics).
		Msg("connection unregistered")

	if cm.onDisconnect != nil {
		cm.onDisconnect(conn, topics)
	}
}

func removeFrom(pool map[string]map[*Connection]bool, key string, conn *Connection) {
	set, ok := pool[key]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(pool, key)
	}
}

// Join subscribes conn to topic. It reports false if conn already left.
func (cm *ConnectionManager) Join(conn *Connection, topic string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if conn.closed {
		return false
	}
	if cm.topics[topic] == nil {
		cm.topics[topic] = make(map[*Connection]bool)
	}
	cm.topics[topic][conn] = true
	conn.joined[topic] = true
	return true
}

// Leave unsubscribes conn from topic.
func (cm *ConnectionManager) Leave(conn *Connection, topic string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	removeFrom(cm.topics, topic, conn)
	delete(conn.joined, topic)
}

// Joined reports whether conn is subscribed to topic.
func (cm *ConnectionManager) Joined(conn *Connection, topic string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.joined[topic]
}

// UserInTopic reports whether any of userID's connections is subscribed to topic.
func (cm *ConnectionManager) UserInTopic(topic, userID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for conn := range cm.topics[topic] {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}

// Broadcast queues a message for every connection subscribed to topic.
func (cm *ConnectionManager) Broadcast(topic, eventType string, data any) {
	cm.queue(BroadcastMessage{Topic: topic}, eventType, data)
}

// SendToUser queues a message for every connection of userID.
func (cm *ConnectionManager) SendToUser(userID, eventType string, data any) {
	cm.queue(BroadcastMessage{UserID: userID}, eventType, data)
}

// Send queues a message for a single connection.
func (cm *ConnectionManager) Send(conn *Connection, eventType string, data any) {
	cm.queue(BroadcastMessage{Conn: conn}, eventType, data)
}

func (cm *ConnectionManager) queue(msg BroadcastMessage, eventType string, data any) {
	env, err := NewEnvelope(eventType, data, cm.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build envelope")
		return
	}
	msg.Envelope = env
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().
			Str("event_type", eventType).
			Str("topic", msg.Topic).
			Str("user_id", msg.UserID).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) targets(message BroadcastMessage) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if message.Conn != nil {
		if cm.conns[message.Conn] {
			return []*Connection{message.Conn}
		}
		return nil
	}
	pool := cm.topics[message.Topic]
	if message.UserID != "" {
		pool = cm.users[message.UserID]
	}
	out := make([]*Connection, 0, len(pool))
	for conn := range pool {
		out = append(out, conn)
	}
	return out
}

// handleBroadcast delivers one queued message.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	targets := cm.targets(message)
	if len(targets) == 0 {
		return
	}

	// Marshal the envelope once
	data, err := json.Marshal(message.Envelope)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal envelope for broadcast")
		return
	}

	var slow []*Connection
	cm.mu.RLock()
	for _, conn := range targets {
		if conn.closed {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	// Connection is slow or dead, close it
	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Msg("connection send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", message.Envelope.Type).
		Str("topic", message.Topic).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.conns))
	for conn := range cm.conns {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	for _, conn := range conns {
		conn.Conn.Close()
	}
}

// ConnectionStats summarizes active connections.
type ConnectionStats struct {
	TotalConnections int            `json:"totalConnections"`
	Users            int            `json:"users"`
	Topics           map[string]int `json:"topics"`
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.conns),
		Users:            len(cm.users),
		Topics:           make(map[string]int, len(cm.topics)),
	}
	for topic, conns := range cm.topics {
		stats.Topics[topic] = len(conns)
	}
	return stats
}

// Context is cancelled when the connection closes.
func (c *Connection) Context() context.Context { return c.ctx }

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client frames and hands them to the message handler in order.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg Inbound
	if err := json.Unmarshal(message, &msg); err != nil || msg.Type == "" {
		c.Manager.Send(c, events.DraftError, events.ErrorPayload{Message: "Invalid message"})
		return
	}
	log.Debug().
		Str("connection_id", c.ID).
		Str("user_id", c.UserID).
		Str("type", msg.Type).
		Msg("received client message")
	if c.Manager.onMessage != nil {
		c.Manager.onMessage(c, msg)
	}
}
