package mockleaderboard

import (
	"context"

	"github.com/mcdev12/prizeboard/go/internal/models"
	"github.com/stretchr/testify/mock"
)

type Client struct {
	mock.Mock
}

func (c *Client) GetLeaderboard(ctx context.Context, searchTerm string) (*models.LeaderboardResponse, error) {
	args := c.Called(ctx, searchTerm)

	var res *models.LeaderboardResponse
	if args.Get(0) != nil {
		res = args.Get(0).(*models.LeaderboardResponse)
	}

	return res, args.Error(1)
}

func (c *Client) GetAutoCompleteSuggestions(ctx context.Context, prefix string) ([]models.Player, error) {
	args := c.Called(ctx, prefix)

	var res []models.Player
	if args.Get(0) != nil {
		res = args.Get(0).([]models.Player)
	}

	return res, args.Error(1)
}
