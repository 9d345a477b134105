package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/prizeboard/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/unrolled/render"
)

type errorResponse struct {
	Error string `json:"error"`
}

// StateHandler serves the leaderboard over plain HTTP.
type StateHandler struct {
	board     Board
	suggester Suggester
	render    *render.Render
}

// NewStateHandler creates a new state handler
func NewStateHandler(board Board, suggester Suggester) *StateHandler {
	return &StateHandler{
		board:     board,
		suggester: suggester,
		render:    render.New(render.Options{IndentJSON: false}),
	}
}

// HandleGetState handles GET /api/leaderboard/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.board.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get leaderboard state")
		h.render.JSON(w, statusFor(err), errorResponse{Error: "failed to get leaderboard state"})
		return
	}
	h.render.JSON(w, http.StatusOK, snapshot)
}

// HandleRefresh handles POST /api/leaderboard/refresh
func (h *StateHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Refresh(); err != nil {
		log.Error().Err(err).Msg("failed to refresh leaderboard")
		h.render.JSON(w, statusFor(err), errorResponse{Error: "failed to refresh leaderboard"})
		return
	}
	h.render.JSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// HandleAutocomplete handles GET /api/leaderboard/autocomplete?q=
func (h *StateHandler) HandleAutocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")

	players, err := h.suggester.GetAutoCompleteSuggestions(r.Context(), prefix)
	if err != nil {
		log.Error().Err(err).Str("prefix", prefix).Msg("failed to get autocomplete suggestions")
		h.render.JSON(w, http.StatusBadGateway, errorResponse{Error: "failed to get suggestions"})
		return
	}
	if players == nil {
		players = []models.Player{}
	}
	h.render.JSON(w, http.StatusOK, players)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Route("/api/leaderboard", func(r chi.Router) {
		r.Get("/state", h.HandleGetState)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/autocomplete", h.HandleAutocomplete)
	})
}

func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusServiceUnavailable
}
