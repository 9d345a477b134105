package leaderboard_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/prizeboard/go/clients"
	"github.com/mcdev12/prizeboard/go/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLeaderboard(t *testing.T) {
	fake := testutils.NewFakeLeaderboardServer()
	defer fake.Close()

	c := NewLeaderboardClient(fake.URL())
	resp, err := c.GetLeaderboard(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, resp.Data, 4)
	assert.Equal(t, 11, resp.Data[0].PlayerID)
	assert.Equal(t, "Ayla Kaya", resp.Data[0].Name)
	assert.Equal(t, int64(125000), resp.Pool)
	assert.Equal(t, 2030, resp.NextResetAt.Year())
	assert.False(t, resp.ServerTime.IsZero(), "server time comes from the Date header")
	assert.Equal(t, 1, fake.Requests(LeaderboardEndpoint))
}

func TestGetLeaderboard_SearchTerm(t *testing.T) {
	fake := testutils.NewFakeLeaderboardServer()
	defer fake.Close()

	c := NewLeaderboardClient(fake.URL())
	resp, err := c.GetLeaderboard(context.Background(), "tr")
	require.NoError(t, err)

	require.Len(t, resp.Data, 2)
	for _, p := range resp.Data {
		assert.Equal(t, "TR", p.Country)
	}
}

func TestGetLeaderboard_ServerError(t *testing.T) {
	fake := testutils.NewFakeLeaderboardServer()
	defer fake.Close()
	fake.FailNext(1)

	c := NewLeaderboardClient(fake.URL())
	_, err := c.GetLeaderboard(context.Background(), "")
	require.Error(t, err)

	var statusErr *clients.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 500, statusErr.StatusCode)
}

func TestGetLeaderboard_CancelledContext(t *testing.T) {
	fake := testutils.NewFakeLeaderboardServer()
	defer fake.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewLeaderboardClient(fake.URL())
	_, err := c.GetLeaderboard(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetAutoCompleteSuggestions(t *testing.T) {
	fake := testutils.NewFakeLeaderboardServer()
	defer fake.Close()

	c := NewLeaderboardClient(fake.URL())

	players, err := c.GetAutoCompleteSuggestions(context.Background(), "ay")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "Ayla Kaya", players[0].Name)
	assert.Equal(t, "Aylin Demir", players[1].Name)

	players, err = c.GetAutoCompleteSuggestions(context.Background(), "zz")
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestGetAutoCompleteSuggestions_ShortPrefixSkipsRequest(t *testing.T) {
	fake := testutils.NewFakeLeaderboardServer()
	defer fake.Close()

	c := NewLeaderboardClient(fake.URL())
	for _, prefix := range []string{"", "a"} {
		players, err := c.GetAutoCompleteSuggestions(context.Background(), prefix)
		require.NoError(t, err)
		assert.Empty(t, players)
	}
	assert.Equal(t, 0, fake.Requests(AutocompleteEndpoint))
}

func TestAuthEndpoint(t *testing.T) {
	c := NewLeaderboardClient("https://api.example.com/")
	assert.Equal(t, "https://api.example.com/api/v1/broadcast/channel", c.AuthEndpoint())
}

func TestRequestsAcceptJSON(t *testing.T) {
	accept := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept <- r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"pool":0,"nextResetAt":"2030-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	_, err := NewLeaderboardClient(srv.URL).GetLeaderboard(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "application/json", <-accept)
}
