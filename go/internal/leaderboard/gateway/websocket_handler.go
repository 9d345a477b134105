package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/unrolled/render"
)

// WebSocketHandler handles WebSocket upgrade requests from viewers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	render            *render.Render
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		render:            render.New(),
	}
}

// HandleConnection upgrades a viewer connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// The upgrader has already replied when the handshake itself failed.
		log.Error().Err(err).Msg("failed to open viewer connection")
		if !errors.Is(err, errUpgrade) {
			h.render.JSON(w, http.StatusServiceUnavailable, errorResponse{Error: "leaderboard unavailable"})
		}
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	h.render.JSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/leaderboard", h.HandleConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
