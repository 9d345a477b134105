package models

import "time"

// Player is one ranked row of the leaderboard.
type Player struct {
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Rank     int    `json:"rank"`
	Money    int64  `json:"money"`

	// JustWon is set while an award animation is running for the player.
	// Its presence matters, not its value.
	JustWon *int64 `json:"justWon,omitempty"`
}

// Animating reports whether an award animation is in flight for the player.
func (p Player) Animating() bool {
	return p.JustWon != nil
}

// LeaderboardResponse is the payload of the leaderboard endpoint.
type LeaderboardResponse struct {
	Data        []Player  `json:"data"`
	Pool        int64     `json:"pool"`
	NextResetAt time.Time `json:"nextResetAt"`

	// ServerTime is taken from the response Date header, zero when absent.
	ServerTime time.Time `json:"-"`
}
