// Package pusher is a realtime.Transport speaking the Pusher Channels
// websocket protocol.
package pusher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/prizeboard/go/clients"
	"github.com/mcdev12/prizeboard/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Config holds Pusher connection settings.
type Config struct {
	AppKey string
	// Cluster picks ws-{cluster}.pusher.com when Host is empty.
	Cluster string
	Host    string
	Port    int
	Path    string
	TLS     bool

	// AuthEndpoint signs private channel subscriptions.
	AuthEndpoint string

	DialTimeout     time.Duration
	ActivityTimeout time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
}

// DefaultConfig returns the default Pusher settings.
func DefaultConfig() Config {
	return Config{
		Cluster:         "mt1",
		TLS:             true,
		DialTimeout:     10 * time.Second,
		ActivityTimeout: 120 * time.Second,
		PongTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Second,
	}
}

// URL builds the websocket address for the configured app.
func (c Config) URL() string {
	scheme := "ws"
	port := 80
	if c.TLS {
		scheme = "wss"
		port = 443
	}
	if c.Port != 0 {
		port = c.Port
	}

	host := c.Host
	if host == "" {
		host = "ws-" + c.Cluster + ".pusher.com"
	}

	q := url.Values{}
	q.Set("protocol", strconv.Itoa(protocolVersion))
	q.Set("client", clientName)
	q.Set("version", clientVersion)
	q.Set("flash", "false")

	u := url.URL{
		Scheme:   scheme,
		Host:     host + ":" + strconv.Itoa(port),
		Path:     c.Path + "/app/" + c.AppKey,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Client is one Pusher connection. It is safe for concurrent use.
type Client struct {
	config Config
	dialer *websocket.Dialer
	auth   *clients.BaseClient

	writeMu sync.Mutex

	mu       sync.Mutex
	conn     *websocket.Conn
	socketID string
	channels map[string]*channel
	pending  map[string]chan error
	done     chan struct{}
	closing  bool
}

// New creates a disconnected client.
func New(config Config) *Client {
	c := &Client{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.DialTimeout,
		},
		channels: make(map[string]*channel),
		pending:  make(map[string]chan error),
	}
	if config.AuthEndpoint != "" {
		c.auth = clients.NewBaseClient(config.AuthEndpoint)
		if config.DialTimeout > 0 {
			c.auth.SetTimeout(config.DialTimeout)
		}
	}
	return c
}

// SocketID returns the id the server assigned to this connection.
func (c *Client) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// Connect dials the server and waits for the connection handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	endpoint := c.config.URL()
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial pusher: %w", err)
	}

	established, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	activity := c.config.ActivityTimeout
	if established.ActivityTimeout > 0 {
		server := time.Duration(established.ActivityTimeout) * time.Second
		if activity <= 0 || server < activity {
			activity = server
		}
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.socketID = established.SocketID
	c.done = done
	c.closing = false
	c.mu.Unlock()

	go c.readLoop(conn, done, activity)
	go c.keepAlive(conn, done, activity)

	log.Info().
		Str("socket_id", established.SocketID).
		Str("host", c.config.Host).
		Str("cluster", c.config.Cluster).
		Msg("connected to pusher")
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (connectionEstablished, error) {
	var established connectionEstablished

	deadline := time.Now().Add(c.config.DialTimeout)
	if d, ok := ctx.Deadline(); ok && (c.config.DialTimeout <= 0 || d.Before(deadline)) {
		deadline = d
	}
	if !deadline.IsZero() && deadline.After(time.Now()) {
		conn.SetReadDeadline(deadline)
	}

	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		return established, fmt.Errorf("failed to read pusher handshake: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	switch msg.Event {
	case eventConnectionEstablished:
		if err := decodeData(msg.Data, &established); err != nil {
			return established, fmt.Errorf("failed to decode pusher handshake: %w", err)
		}
		if established.SocketID == "" {
			return established, errors.New("pusher handshake carried no socket id")
		}
		return established, nil
	case eventError:
		var e errorData
		decodeData(msg.Data, &e)
		return established, fmt.Errorf("pusher refused connection: %s (code %d)", e.Message, e.Code)
	default:
		return established, fmt.Errorf("unexpected pusher handshake event %q", msg.Event)
	}
}

// Subscribe joins a channel, signing private channels through the auth
// endpoint, and waits for the server to confirm.
func (c *Client) Subscribe(ctx context.Context, name string) (realtime.Channel, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, realtime.ErrNotConnected
	}
	if ch, ok := c.channels[name]; ok {
		c.mu.Unlock()
		return ch, nil
	}
	socketID := c.socketID
	result := make(chan error, 1)
	c.pending[name] = result
	c.mu.Unlock()

	cancelPending := func() {
		c.mu.Lock()
		if c.pending[name] == result {
			delete(c.pending, name)
		}
		c.mu.Unlock()
	}

	data := subscribeData{Channel: name}
	if requiresAuth(name) {
		auth, err := c.authorize(ctx, socketID, name)
		if err != nil {
			cancelPending()
			return nil, err
		}
		data.Auth = auth.Auth
		data.ChannelData = auth.ChannelData
	}

	ch := &channel{name: name, client: c}
	c.mu.Lock()
	c.channels[name] = ch
	c.mu.Unlock()

	if err := c.send(eventSubscribe, "", data); err != nil {
		c.forget(name)
		cancelPending()
		return nil, err
	}

	select {
	case err := <-result:
		if err != nil {
			c.forget(name)
			return nil, err
		}
	case <-ctx.Done():
		c.forget(name)
		cancelPending()
		return nil, ctx.Err()
	}

	log.Info().Str("channel", name).Msg("subscribed to pusher channel")
	return ch, nil
}

func (c *Client) authorize(ctx context.Context, socketID, name string) (authResponse, error) {
	var auth authResponse
	if c.auth == nil {
		return auth, fmt.Errorf("channel %s requires an auth endpoint", name)
	}

	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", name)

	resp, err := c.auth.PostForm(ctx, "", form)
	if err != nil {
		return auth, fmt.Errorf("failed to authorize channel %s: %w", name, err)
	}
	if err := json.Unmarshal(resp.Body, &auth); err != nil {
		return auth, fmt.Errorf("failed to decode channel authorization: %w", err)
	}
	if auth.Auth == "" {
		return auth, fmt.Errorf("empty authorization for channel %s", name)
	}
	return auth, nil
}

func (c *Client) unsubscribe(name string) error {
	if !c.forget(name) {
		return nil
	}
	if err := c.send(eventUnsubscribe, "", subscribeData{Channel: name}); err != nil {
		if errors.Is(err, realtime.ErrNotConnected) {
			return nil
		}
		return err
	}
	log.Info().Str("channel", name).Msg("unsubscribed from pusher channel")
	return nil
}

func (c *Client) forget(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[name]; !ok {
		return false
	}
	delete(c.channels, name)
	return true
}

// Disconnect closes the socket. Subscriptions are dropped.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.socketID = ""
	c.closing = true
	c.channels = make(map[string]*channel)
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := conn.Close()
	<-done

	log.Info().Msg("disconnected from pusher")
	return err
}

func (c *Client) send(event, channel string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return realtime.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := conn.WriteJSON(message{Event: event, Channel: channel, Data: raw}); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}, activity time.Duration) {
	defer close(done)
	defer c.failPending(errors.New("pusher connection closed"))

	idle := activity + c.config.PongTimeout
	for {
		if idle > 0 {
			conn.SetReadDeadline(time.Now().Add(idle))
		}

		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closing := c.closing
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			if !closing {
				log.Error().Err(err).Msg("pusher connection lost")
			}
			return
		}

		c.handle(msg)
	}
}

// keepAlive pings the server whenever the activity timeout elapses.
func (c *Client) keepAlive(conn *websocket.Conn, done chan struct{}, activity time.Duration) {
	if activity <= 0 {
		return
	}
	ticker := time.NewTicker(activity)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(eventPing, "", struct{}{}); err != nil {
				log.Warn().Err(err).Msg("failed to ping pusher")
				return
			}
		}
	}
}

func (c *Client) handle(msg message) {
	switch msg.Event {
	case eventPing:
		if err := c.send(eventPong, "", struct{}{}); err != nil {
			log.Warn().Err(err).Msg("failed to answer pusher ping")
		}
	case eventPong:
	case eventError:
		var e errorData
		decodeData(msg.Data, &e)
		log.Error().Str("message", e.Message).Int("code", e.Code).Msg("pusher error")
	case eventSubscriptionSucceeded:
		c.resolve(msg.Channel, nil)
	case eventSubscriptionError:
		var e struct {
			Error  string `json:"error"`
			Status int    `json:"status"`
		}
		decodeData(msg.Data, &e)
		c.resolve(msg.Channel, fmt.Errorf("subscription to %s rejected: %s (status %d)", msg.Channel, e.Error, e.Status))
	default:
		c.mu.Lock()
		ch := c.channels[msg.Channel]
		c.mu.Unlock()
		if ch == nil {
			log.Debug().Str("event", msg.Event).Str("channel", msg.Channel).Msg("event for unknown channel")
			return
		}
		ch.Dispatch(msg.Channel, msg.Event, payload(msg.Data))
	}
}

func (c *Client) resolve(name string, err error) {
	c.mu.Lock()
	result, ok := c.pending[name]
	delete(c.pending, name)
	c.mu.Unlock()

	if ok {
		result <- err
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan error)
	c.mu.Unlock()

	for _, result := range pending {
		result <- err
	}
}

type channel struct {
	realtime.Bindings

	name   string
	client *Client
}

func (ch *channel) Name() string {
	return ch.name
}

func (ch *channel) Unsubscribe() error {
	return ch.client.unsubscribe(ch.name)
}
