package leaderboard_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:3333"

	// API Endpoints
	LeaderboardEndpoint  = "/api/v1/leaderboard"
	AutocompleteEndpoint = "/api/v1/leaderboard/autocomplete"
	BroadcastAuthPath    = "/api/v1/broadcast/channel"

	// Query parameters
	SearchTermParam   = "searchTerm"
	AutocompleteParam = "q"

	// MinAutocompleteLength is the shortest prefix the server will search.
	MinAutocompleteLength = 2
)
