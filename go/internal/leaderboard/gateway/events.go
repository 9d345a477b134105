package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcdev12/prizeboard/go/internal/leaderboard/dashboard"
	"github.com/mcdev12/prizeboard/go/internal/models"
)

// Board is the leaderboard the gateway serves.
type Board interface {
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
	Refresh() error
	SetSearchText(text string) error
	SetGroupByCountry(enabled bool) error
	SetFilter(filter string) error
}

// Suggester answers autocomplete queries.
type Suggester interface {
	GetAutoCompleteSuggestions(ctx context.Context, prefix string) ([]models.Player, error)
}

// MessageType is the type of a websocket message in either direction.
type MessageType string

const (
	// Server to client
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeError    MessageType = "error"

	// Client to server
	MessageTypeRefresh MessageType = "refresh"
	MessageTypeSearch  MessageType = "search"
	MessageTypeGroup   MessageType = "group"
	MessageTypeFilter  MessageType = "filter"
)

// ServerMessage is sent to websocket clients.
type ServerMessage struct {
	Type      MessageType         `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Snapshot  *dashboard.Snapshot `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ClientMessage is received from websocket clients.
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Text    string      `json:"text,omitempty"`
	Enabled bool        `json:"enabled,omitempty"`
}

func snapshotMessage(s dashboard.Snapshot) ([]byte, error) {
	return json.Marshal(ServerMessage{
		Type:      MessageTypeSnapshot,
		Timestamp: time.Now().UTC(),
		Snapshot:  &s,
	})
}

func errorMessage(err error) []byte {
	data, _ := json.Marshal(ServerMessage{
		Type:      MessageTypeError,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	})
	return data
}
