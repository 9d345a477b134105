package pusher

import (
	"encoding/json"
	"strings"
)

const (
	protocolVersion = 7
	clientName      = "prizeboard-go"
	clientVersion   = "1.0.0"
)

const (
	eventConnectionEstablished = "pusher:connection_established"
	eventError                 = "pusher:error"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventSubscribe             = "pusher:subscribe"
	eventUnsubscribe           = "pusher:unsubscribe"
	eventSubscriptionError     = "pusher:subscription_error"
	eventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
)

// message is the frame every Pusher event travels in.
type message struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type connectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type authResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// payload returns the event data as raw JSON. The server usually sends data
// as a JSON-encoded string; objects are passed through untouched.
func payload(data json.RawMessage) []byte {
	if len(data) == 0 || data[0] != '"' {
		return data
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return data
	}
	return []byte(s)
}

// decodeData unmarshals event data that may be string-wrapped.
func decodeData(data json.RawMessage, v any) error {
	return json.Unmarshal(payload(data), v)
}

func requiresAuth(channel string) bool {
	return strings.HasPrefix(channel, "private-") || strings.HasPrefix(channel, "presence-")
}
