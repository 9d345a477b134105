package main

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/prizeboard/go/clients/leaderboard_client"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/dashboard"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/gateway"
	"github.com/mcdev12/prizeboard/go/internal/realtime"
	"github.com/mcdev12/prizeboard/go/internal/realtime/natsbus"
	"github.com/mcdev12/prizeboard/go/internal/realtime/pusher"
)

type Services struct {
	Client    *leaderboard_client.LeaderboardClient
	Dashboard *dashboard.Dashboard
	Gateway   *gateway.Service
}

func setupServices(ctx context.Context, config *Config) *Services {
	// API client → transport → dashboard → gateway
	client := leaderboard_client.NewLeaderboardClient(config.APIURL)
	transport := newTransport(config, client)

	var gw *gateway.Service
	publisher := dashboard.PublisherFunc(func(s dashboard.Snapshot) {
		gw.Publish(s)
	})

	board := dashboard.New(ctx, clockwork.NewRealClock(), client, transport, config.dashboardConfig(),
		dashboard.WithPublisher(publisher),
	)
	gw = gateway.NewService(gateway.DefaultConfig(), board, client)

	return &Services{
		Client:    client,
		Dashboard: board,
		Gateway:   gw,
	}
}

// newTransport picks the push driver. Without one the board only polls.
func newTransport(config *Config, client *leaderboard_client.LeaderboardClient) realtime.Transport {
	switch config.Driver {
	case DriverPusher:
		pc := config.Pusher
		if pc.AuthEndpoint == "" {
			pc.AuthEndpoint = client.AuthEndpoint()
		}
		return pusher.New(pc)
	case DriverNATS:
		return natsbus.New(config.NATS)
	default:
		return nil
	}
}
