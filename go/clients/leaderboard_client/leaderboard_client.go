package leaderboard_client

import (
	"strings"

	"github.com/mcdev12/prizeboard/go/clients"
)

type LeaderboardClient struct {
	*clients.BaseClient
}

func NewLeaderboardClient(baseURL string) *LeaderboardClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &LeaderboardClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}
	c.SetHeader("Accept", "application/json")
	return c
}

// AuthEndpoint is the private channel authorization URL served by the same API.
func (c *LeaderboardClient) AuthEndpoint() string {
	return c.BaseURL() + BroadcastAuthPath
}
