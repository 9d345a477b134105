// Package roster holds the in-memory leaderboard roster.
package roster

import (
	"time"

	"github.com/mcdev12/prizeboard/go/internal/models"
)

// Patch is a partial update to a single player. Nil fields are left alone.
type Patch struct {
	Money   *int64
	JustWon *int64

	// ClearJustWon unsets the animation marker. It wins over JustWon.
	ClearJustWon bool
}

// Store is the keyed roster plus the prize pool and the next reset time.
//
// A Store is owned by a single goroutine (the dashboard's event loop) and is
// not safe for concurrent use.
type Store struct {
	players     map[int]*models.Player
	order       []int
	pool        int64
	nextResetAt *time.Time
	version     uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		players: make(map[int]*models.Player),
	}
}

// ReplaceAll overwrites the roster with a freshly fetched list. Ranks are
// dense and follow list position starting at 1. A repeated id keeps its
// first position and takes the values of its last occurrence. Players with
// an award animation in flight keep their JustWon marker.
func (s *Store) ReplaceAll(players []models.Player) {
	next := make(map[int]*models.Player, len(players))
	order := make([]int, 0, len(players))

	for _, p := range players {
		p := p
		p.JustWon = nil

		if existing, ok := next[p.PlayerID]; ok {
			p.Rank = existing.Rank
		} else {
			order = append(order, p.PlayerID)
			p.Rank = len(order)
		}
		if prev, ok := s.players[p.PlayerID]; ok && prev.JustWon != nil {
			won := *prev.JustWon
			p.JustWon = &won
		}
		next[p.PlayerID] = &p
	}

	s.players = next
	s.order = order
	s.version++
}

// Patch merges the non-nil fields of patch into the player. Unknown ids are
// ignored and Patch reports false.
func (s *Store) Patch(playerID int, patch Patch) bool {
	p, ok := s.players[playerID]
	if !ok {
		return false
	}

	if patch.Money != nil {
		p.Money = *patch.Money
	}
	if patch.ClearJustWon {
		p.JustWon = nil
	} else if patch.JustWon != nil {
		won := *patch.JustWon
		p.JustWon = &won
	}

	s.version++
	return true
}

// AddMoney adds delta to the player's balance.
func (s *Store) AddMoney(playerID int, delta int64) bool {
	p, ok := s.players[playerID]
	if !ok {
		return false
	}
	money := p.Money + delta
	return s.Patch(playerID, Patch{Money: &money})
}

// SetPool replaces the prize pool value.
func (s *Store) SetPool(pool int64) {
	if s.pool == pool {
		return
	}
	s.pool = pool
	s.version++
}

// SetNextResetAt records the server-provided reset time.
func (s *Store) SetNextResetAt(t time.Time) {
	s.nextResetAt = &t
	s.version++
}

// Get returns a copy of the player.
func (s *Store) Get(playerID int) (models.Player, bool) {
	p, ok := s.players[playerID]
	if !ok {
		return models.Player{}, false
	}
	return copyPlayer(p), true
}

// Has reports whether the player is on the roster.
func (s *Store) Has(playerID int) bool {
	_, ok := s.players[playerID]
	return ok
}

// Len returns the number of players.
func (s *Store) Len() int {
	return len(s.order)
}

// Players returns copies of all players in arrival order.
func (s *Store) Players() []models.Player {
	out := make([]models.Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyPlayer(s.players[id]))
	}
	return out
}

// Pool returns the current prize pool.
func (s *Store) Pool() int64 {
	return s.pool
}

// NextResetAt returns the next reset time, or nil before the first fetch.
func (s *Store) NextResetAt() *time.Time {
	if s.nextResetAt == nil {
		return nil
	}
	t := *s.nextResetAt
	return &t
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	return s.version
}

func copyPlayer(p *models.Player) models.Player {
	out := *p
	if p.JustWon != nil {
		won := *p.JustWon
		out.JustWon = &won
	}
	return out
}
