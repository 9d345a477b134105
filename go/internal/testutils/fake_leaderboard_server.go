package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/prizeboard/go/internal/models"
)

// FakeLeaderboardServer serves the leaderboard API from memory.
type FakeLeaderboardServer struct {
	s *httptest.Server

	mu          sync.Mutex
	players     []models.Player
	pool        int64
	nextResetAt time.Time
	requests    map[string]int
	authForms   []map[string]string
	failNext    int
}

func NewFakeLeaderboardServer() *FakeLeaderboardServer {
	f := &FakeLeaderboardServer{
		players:     DefaultPlayers(),
		pool:        125000,
		nextResetAt: time.Date(2030, 1, 6, 0, 0, 0, 0, time.UTC),
		requests:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", f.leaderboardHandler)
			r.Get("/autocomplete", f.autocompleteHandler)
		})
		r.Post("/broadcast/channel", f.channelAuthHandler)
	})

	f.s = httptest.NewServer(r)
	return f
}

// DefaultPlayers is the roster the fake server starts with.
func DefaultPlayers() []models.Player {
	return []models.Player{
		{PlayerID: 11, Name: "Ayla Kaya", Country: "TR", Money: 98000},
		{PlayerID: 12, Name: "Bruno Vogel", Country: "DE", Money: 87000},
		{PlayerID: 13, Name: "Aylin Demir", Country: "TR", Money: 76000},
		{PlayerID: 14, Name: "Casey Hart", Country: "US", Money: 65000},
	}
}

func (f *FakeLeaderboardServer) Close() {
	f.s.Close()
}

func (f *FakeLeaderboardServer) URL() string {
	return f.s.URL
}

// SetPlayers replaces the served roster.
func (f *FakeLeaderboardServer) SetPlayers(players []models.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players = players
}

// FailNext makes the next n leaderboard requests return 500.
func (f *FakeLeaderboardServer) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

// Requests returns how many times a path was hit.
func (f *FakeLeaderboardServer) Requests(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

// AuthForms returns the submitted channel authorization forms.
func (f *FakeLeaderboardServer) AuthForms() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.authForms...)
}

func (f *FakeLeaderboardServer) count(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[strings.TrimSuffix(r.URL.Path, "/")]++
}

func (f *FakeLeaderboardServer) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	f.count(r)

	f.mu.Lock()
	if f.failNext > 0 {
		f.failNext--
		f.mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	term := strings.ToLower(r.URL.Query().Get("searchTerm"))
	var data []models.Player
	for _, p := range f.players {
		if term == "" || strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Country), term) {
			data = append(data, p)
		}
	}
	resp := models.LeaderboardResponse{Data: data, Pool: f.pool, NextResetAt: f.nextResetAt}
	f.mu.Unlock()

	writeJSON(w, resp)
}

func (f *FakeLeaderboardServer) autocompleteHandler(w http.ResponseWriter, r *http.Request) {
	f.count(r)

	prefix := strings.ToLower(r.URL.Query().Get("q"))
	f.mu.Lock()
	matches := []models.Player{}
	for _, p := range f.players {
		if strings.HasPrefix(strings.ToLower(p.Name), prefix) {
			matches = append(matches, p)
		}
	}
	f.mu.Unlock()

	writeJSON(w, matches)
}

func (f *FakeLeaderboardServer) channelAuthHandler(w http.ResponseWriter, r *http.Request) {
	f.count(r)

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	socketID := r.PostForm.Get("socket_id")
	channel := r.PostForm.Get("channel_name")
	if socketID == "" || channel == "" {
		http.Error(w, "missing socket_id or channel_name", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.authForms = append(f.authForms, map[string]string{"socket_id": socketID, "channel_name": channel})
	f.mu.Unlock()

	writeJSON(w, map[string]string{"auth": FakeAuthSignature(socketID, channel)})
}

// FakeAuthSignature is the auth string the fake server hands out.
func FakeAuthSignature(socketID, channel string) string {
	return "app-key:" + socketID + ":" + channel
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
