package mockrealtime

import (
	"context"

	"github.com/mcdev12/prizeboard/go/internal/realtime"
	"github.com/stretchr/testify/mock"
)

type Transport struct {
	mock.Mock
}

func (t *Transport) Connect(ctx context.Context) error {
	args := t.Called(ctx)
	return args.Error(0)
}

func (t *Transport) Subscribe(ctx context.Context, channel string) (realtime.Channel, error) {
	args := t.Called(ctx, channel)

	var res realtime.Channel
	if args.Get(0) != nil {
		res = args.Get(0).(realtime.Channel)
	}

	return res, args.Error(1)
}

func (t *Transport) Disconnect() error {
	args := t.Called()
	return args.Error(0)
}

// Channel records bindings for real so tests can Emit events through them.
type Channel struct {
	mock.Mock
	realtime.Bindings

	name string
}

func NewChannel(name string) *Channel {
	return &Channel{name: name}
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) UnbindAll() {
	c.Called()
	c.Bindings.UnbindAll()
}

func (c *Channel) Unsubscribe() error {
	args := c.Called()
	return args.Error(0)
}

// Emit delivers an event to the bound handlers on the calling goroutine.
func (c *Channel) Emit(event string, data []byte) int {
	return c.Dispatch(c.name, event, data)
}
