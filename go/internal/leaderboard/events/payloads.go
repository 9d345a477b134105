package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names on the leaderboard channel
const (
	EventUpdate = "update"
	EventPrize  = "prize"
)

// ErrMalformedPayload is returned when a payload lacks a required field.
var ErrMalformedPayload = errors.New("malformed payload")

// UpdatePayload is the payload for an update event: a player's new balance.
type UpdatePayload struct {
	PlayerID *int   `json:"playerId"`
	Money    *int64 `json:"money"`
	Pool     *int64 `json:"pool,omitempty"`
}

// PrizePayload is the payload for a prize event, one per winner of a
// distribution. IsFirst and IsLast mark the first and last winner.
type PrizePayload struct {
	PlayerID *int   `json:"playerId"`
	Award    *int64 `json:"award"`
	Pool     *int64 `json:"pool,omitempty"`
	IsFirst  bool   `json:"isFirst"`
	IsLast   bool   `json:"isLast"`
}

// Validate checks the required fields.
func (p UpdatePayload) Validate() error {
	if p.PlayerID == nil {
		return fmt.Errorf("%w: update missing playerId", ErrMalformedPayload)
	}
	if p.Money == nil {
		return fmt.Errorf("%w: update missing money", ErrMalformedPayload)
	}
	return nil
}

// Validate checks the required fields.
func (p PrizePayload) Validate() error {
	if p.PlayerID == nil {
		return fmt.Errorf("%w: prize missing playerId", ErrMalformedPayload)
	}
	if p.Award == nil {
		return fmt.Errorf("%w: prize missing award", ErrMalformedPayload)
	}
	return nil
}

// DecodeUpdate parses and validates an update payload.
func DecodeUpdate(data []byte) (UpdatePayload, error) {
	var p UpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return UpdatePayload{}, fmt.Errorf("failed to decode update payload: %w", err)
	}
	return p, p.Validate()
}

// DecodePrize parses and validates a prize payload.
func DecodePrize(data []byte) (PrizePayload, error) {
	var p PrizePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PrizePayload{}, fmt.Errorf("failed to decode prize payload: %w", err)
	}
	return p, p.Validate()
}
