package roster

import (
	"sort"
	"strings"

	"github.com/mcdev12/prizeboard/go/internal/models"
)

// ViewOptions controls how the roster is presented.
type ViewOptions struct {
	GroupByCountry bool

	// Filter keeps players whose name or country contains it, ignoring case.
	Filter string
}

// View derives the displayed groups from the store.
//
// Ungrouped, every player lands in one group and keeps its global rank.
// Grouped, countries appear in the order their first player arrived and each
// group is ranked from 1.
func (s *Store) View(opts ViewOptions) []models.RosterGroup {
	players := filterPlayers(s.Players(), opts.Filter)

	if !opts.GroupByCountry {
		sortByRank(players)
		rows := make([]models.RosterRow, 0, len(players))
		for _, p := range players {
			rows = append(rows, models.RosterRow{Player: p, DisplayRank: p.Rank})
		}
		return []models.RosterGroup{{Country: models.UngroupedCountry, Rows: rows}}
	}

	var countries []string
	byCountry := make(map[string][]models.Player)
	for _, p := range players {
		if _, seen := byCountry[p.Country]; !seen {
			countries = append(countries, p.Country)
		}
		byCountry[p.Country] = append(byCountry[p.Country], p)
	}

	groups := make([]models.RosterGroup, 0, len(countries))
	for _, country := range countries {
		members := byCountry[country]
		sortByRank(members)

		rows := make([]models.RosterRow, 0, len(members))
		for i, p := range members {
			rows = append(rows, models.RosterRow{Player: p, DisplayRank: i + 1})
		}
		groups = append(groups, models.RosterGroup{Country: country, Rows: rows})
	}
	return groups
}

func filterPlayers(players []models.Player, filter string) []models.Player {
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return players
	}

	out := players[:0]
	for _, p := range players {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Country), needle) {
			out = append(out, p)
		}
	}
	return out
}

func sortByRank(players []models.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Rank < players[j].Rank
	})
}
