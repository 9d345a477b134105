package leaderboard_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/mcdev12/prizeboard/go/internal/models"
)

func (c *LeaderboardClient) GetLeaderboard(ctx context.Context, searchTerm string) (*models.LeaderboardResponse, error) {
	query := url.Values{}
	query.Set(SearchTermParam, searchTerm)

	resp, err := c.Get(ctx, LeaderboardEndpoint, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	var response models.LeaderboardResponse
	if err := json.Unmarshal(resp.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(resp.Body))
	}
	response.ServerTime = resp.ServerTime()

	return &response, nil
}

// GetAutoCompleteSuggestions returns players whose names start with prefix.
// Prefixes shorter than MinAutocompleteLength return nothing without a request.
func (c *LeaderboardClient) GetAutoCompleteSuggestions(ctx context.Context, prefix string) ([]models.Player, error) {
	if utf8.RuneCountInString(prefix) < MinAutocompleteLength {
		return []models.Player{}, nil
	}

	query := url.Values{}
	query.Set(AutocompleteParam, prefix)

	resp, err := c.Get(ctx, AutocompleteEndpoint, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get autocomplete suggestions: %w", err)
	}

	var players []models.Player
	if err := json.Unmarshal(resp.Body, &players); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(resp.Body))
	}
	if players == nil {
		players = []models.Player{}
	}

	return players, nil
}
