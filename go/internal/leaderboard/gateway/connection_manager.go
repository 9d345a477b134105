package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/dashboard"
	"github.com/rs/zerolog/log"
)

// ConnectionManager fans leaderboard snapshots out to websocket viewers.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	board    Board

	broadcastCh chan dashboard.Snapshot
}

// Connection represents a WebSocket connection to a viewer
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	// newest snapshot version queued on Send
	versionMu sync.Mutex
	version   uint64
	delivered bool
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

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, board Board) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		board:       board,
		broadcastCh: make(chan dashboard.Snapshot, 1000),
	}
}

// Start processes broadcasts until ctx is cancelled, then closes every
// connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case snapshot := <-cm.broadcastCh:
			cm.handleBroadcast(snapshot)
		}
	}
}

// Publish queues a snapshot for every viewer. It never blocks.
func (cm *ConnectionManager) Publish(snapshot dashboard.Snapshot) {
	select {
	case cm.broadcastCh <- snapshot:
	default:
		log.Warn().Uint64("version", snapshot.Version).Msg("broadcast channel full, dropping snapshot")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and sends the
// current snapshot. The connection is registered before that snapshot is read,
// so no broadcast falls between them.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	current, err := cm.board.Snapshot(r.Context())
	if err != nil {
		return fmt.Errorf("failed to read leaderboard snapshot: %w", err)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("%w: %v", errUpgrade, err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	if latest, err := cm.board.Snapshot(r.Context()); err == nil {
		current = latest
	}
	cm.sendSnapshot(connection, current)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for conn := range cm.connections {
		all = append(all, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// send queues data for one connection and reports whether it fit.
// Unregistered connections are skipped.
func (cm *ConnectionManager) send(conn *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.connections[conn] {
		return true
	}
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

// sendSnapshot queues a snapshot for one registered connection.
func (cm *ConnectionManager) sendSnapshot(conn *Connection, snapshot dashboard.Snapshot) {
	data, err := snapshotMessage(snapshot)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal snapshot")
		return
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.connections[conn] {
		conn.queueSnapshot(snapshot.Version, data)
	}
}

// queueSnapshot queues data unless a newer snapshot is already queued. It
// reports false only when the send buffer is full.
func (c *Connection) queueSnapshot(version uint64, data []byte) bool {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()

	if c.delivered && version < c.version {
		return true
	}
	select {
	case c.Send <- data:
		c.version = version
		c.delivered = true
		return true
	default:
		return false
	}
}

func (cm *ConnectionManager) handleBroadcast(snapshot dashboard.Snapshot) {
	data, err := snapshotMessage(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot for broadcast")
		return
	}

	cm.mu.RLock()
	var slow []*Connection
	for conn := range cm.connections {
		if !conn.queueSnapshot(snapshot.Version, data) {
			slow = append(slow, conn)
		}
	}
	total := len(cm.connections)
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
	}

	log.Debug().
		Uint64("version", snapshot.Version).
		Int("connections", total-len(slow)).
		Msg("snapshot broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": len(cm.connections),
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
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
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if err := c.handleClientMessage(message); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("rejected client message")
			c.Manager.send(c, errorMessage(err))
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

var (
	errUpgrade        = errors.New("failed to upgrade connection")
	errUnknownMessage = errors.New("unknown message type")
)

// handleClientMessage forwards a viewer command to the board.
func (c *Connection) handleClientMessage(message []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("type", string(msg.Type)).
		Msg("received client message")

	board := c.Manager.board
	switch msg.Type {
	case MessageTypeRefresh:
		return board.Refresh()
	case MessageTypeSearch:
		return board.SetSearchText(msg.Text)
	case MessageTypeGroup:
		return board.SetGroupByCountry(msg.Enabled)
	case MessageTypeFilter:
		return board.SetFilter(msg.Text)
	default:
		return fmt.Errorf("%w: %q", errUnknownMessage, msg.Type)
	}
}
