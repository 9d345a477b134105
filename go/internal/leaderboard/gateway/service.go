// Package gateway exposes a dashboard to browsers over websocket, REST and
// Connect RPC.
package gateway

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/dashboard"
	"github.com/rs/zerolog/log"
)

// Service is the leaderboard gateway: websocket fan-out plus request APIs.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	rpcService        *RPCService
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, board Board, suggester Suggester) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, board)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(board, suggester),
		rpcService:        NewRPCService(board, suggester),
	}
}

var _ dashboard.Publisher = (*Service)(nil)

// Publish pushes a snapshot to every connected viewer.
func (s *Service) Publish(snapshot dashboard.Snapshot) {
	s.connectionManager.Publish(snapshot)
}

// Start runs the broadcaster until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting leaderboard gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("leaderboard gateway service stopped")
}

// RegisterRoutes registers the websocket, REST and RPC routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterStateRoutes(r)

	path, handler := NewDashboardServiceHandler(s.rpcService)
	r.Mount(path, handler)

	log.Info().Msg("leaderboard gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "leaderboard_gateway"
	stats["status"] = "running"
	return stats
}
