// Package natsbus is a realtime.Transport over core NATS subjects of the form
// <prefix>.<channel>.<event>.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcdev12/prizeboard/go/internal/realtime"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns the default NATS settings.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "leaderboard",
		Name:          "prizeboard",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Transport subscribes to leaderboard events on NATS.
type Transport struct {
	config Config

	mu sync.Mutex
	nc *nats.Conn
}

// New creates a disconnected transport.
func New(config Config) *Transport {
	return &Transport{config: config}
}

// Connect dials the NATS server. Reconnects are handled by the client.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nc != nil {
		return nil
	}

	opts := []nats.Option{
		nats.Name(t.config.Name),
		nats.MaxReconnects(t.config.MaxReconnects),
		nats.ReconnectWait(t.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(t.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	t.nc = nc

	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")
	return nil
}

// Subscribe listens on every event of channel.
func (t *Transport) Subscribe(ctx context.Context, channel string) (realtime.Channel, error) {
	t.mu.Lock()
	nc := t.nc
	t.mu.Unlock()
	if nc == nil {
		return nil, realtime.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := &subscription{name: channel, prefix: t.config.SubjectPrefix}
	sub, err := nc.Subscribe(ChannelSubject(t.config.SubjectPrefix, channel), ch.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription to %s: %w", channel, err)
	}
	ch.sub = sub

	log.Info().Str("subject", sub.Subject).Msg("subscribed to NATS subject")
	return ch, nil
}

// Publish sends an event to a channel.
func (t *Transport) Publish(channel, event string, data []byte) error {
	t.mu.Lock()
	nc := t.nc
	t.mu.Unlock()
	if nc == nil {
		return realtime.ErrNotConnected
	}
	if err := nc.Publish(EventSubject(t.config.SubjectPrefix, channel, event), data); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Disconnect drains subscriptions and closes the connection.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	nc := t.nc
	t.nc = nil
	t.mu.Unlock()

	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	log.Info().Msg("NATS connection drained")
	return nil
}

// EventSubject is the subject one event of a channel is published on.
func EventSubject(prefix, channel, event string) string {
	return join(prefix, channel, event)
}

// ChannelSubject matches every event of a channel.
func ChannelSubject(prefix, channel string) string {
	return join(prefix, channel, ">")
}

// ParseEvent extracts the event name from a subject under prefix.channel.
func ParseEvent(prefix, channel, subject string) (string, bool) {
	base := join(prefix, channel, "")
	if !strings.HasPrefix(subject, base) {
		return "", false
	}
	event := strings.TrimPrefix(subject, base)
	if event == "" {
		return "", false
	}
	return event, true
}

func join(parts ...string) string {
	var nonEmpty []string
	for i, p := range parts {
		if p == "" && i < len(parts)-1 {
			continue
		}
		nonEmpty = append(nonEmpty, p)
	}
	return strings.Join(nonEmpty, ".")
}

type subscription struct {
	realtime.Bindings

	name   string
	prefix string
	sub    *nats.Subscription
}

func (s *subscription) Name() string {
	return s.name
}

func (s *subscription) Unsubscribe() error {
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("unsubscribe from %s: %w", s.name, err)
	}
	s.sub = nil
	return nil
}

func (s *subscription) handle(msg *nats.Msg) {
	event, ok := ParseEvent(s.prefix, s.name, msg.Subject)
	if !ok {
		log.Warn().Str("subject", msg.Subject).Msg("ignoring message on unexpected subject")
		return
	}
	s.Dispatch(s.name, event, msg.Data)
}
