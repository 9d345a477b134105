package models

// UngroupedCountry labels the single group of an ungrouped view.
const UngroupedCountry = "ALL"

// RosterRow is a player as displayed, with the rank shown in its group.
type RosterRow struct {
	Player
	DisplayRank int `json:"displayRank"`
}

// RosterGroup is a run of rows sharing a country, or every row when the
// view is not grouped.
type RosterGroup struct {
	Country string      `json:"country"`
	Rows    []RosterRow `json:"rows"`
}
