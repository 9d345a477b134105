package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/dashboard"
	"github.com/mcdev12/prizeboard/go/internal/models"
)

const (
	// DashboardServiceName is the fully-qualified name of the dashboard service.
	DashboardServiceName = "leaderboard.v1.DashboardService"

	DashboardServiceGetStateProcedure    = "/leaderboard.v1.DashboardService/GetState"
	DashboardServiceRefreshProcedure     = "/leaderboard.v1.DashboardService/Refresh"
	DashboardServiceSearchProcedure      = "/leaderboard.v1.DashboardService/Search"
	DashboardServiceSetGroupingProcedure = "/leaderboard.v1.DashboardService/SetGrouping"
)

type GetStateRequest struct{}

type GetStateResponse struct {
	Snapshot dashboard.Snapshot `json:"snapshot"`
}

type RefreshRequest struct{}

type RefreshResponse struct{}

// SearchRequest sets the server-side search term. When Suggest is set the
// response also carries autocomplete suggestions for Text.
type SearchRequest struct {
	Text    string `json:"text"`
	Suggest bool   `json:"suggest,omitempty"`
}

type SearchResponse struct {
	Suggestions []models.Player `json:"suggestions,omitempty"`
}

type SetGroupingRequest struct {
	GroupByCountry bool `json:"groupByCountry"`
}

type SetGroupingResponse struct{}

// DashboardServiceHandler is the server side of the dashboard service.
type DashboardServiceHandler interface {
	GetState(context.Context, *connect.Request[GetStateRequest]) (*connect.Response[GetStateResponse], error)
	Refresh(context.Context, *connect.Request[RefreshRequest]) (*connect.Response[RefreshResponse], error)
	Search(context.Context, *connect.Request[SearchRequest]) (*connect.Response[SearchResponse], error)
	SetGrouping(context.Context, *connect.Request[SetGroupingRequest]) (*connect.Response[SetGroupingResponse], error)
}

// JSONCodec carries plain Go structs as JSON, standing in for generated
// protobuf messages.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// NewDashboardServiceHandler builds an HTTP handler for every dashboard
// procedure and returns the path to mount it on.
func NewDashboardServiceHandler(svc DashboardServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	getState := connect.NewUnaryHandler(DashboardServiceGetStateProcedure, svc.GetState, opts...)
	refresh := connect.NewUnaryHandler(DashboardServiceRefreshProcedure, svc.Refresh, opts...)
	search := connect.NewUnaryHandler(DashboardServiceSearchProcedure, svc.Search, opts...)
	setGrouping := connect.NewUnaryHandler(DashboardServiceSetGroupingProcedure, svc.SetGrouping, opts...)

	return "/" + DashboardServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case DashboardServiceGetStateProcedure:
			getState.ServeHTTP(w, r)
		case DashboardServiceRefreshProcedure:
			refresh.ServeHTTP(w, r)
		case DashboardServiceSearchProcedure:
			search.ServeHTTP(w, r)
		case DashboardServiceSetGroupingProcedure:
			setGrouping.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// RPCService implements DashboardServiceHandler on top of a Board.
type RPCService struct {
	board     Board
	suggester Suggester
}

// NewRPCService creates the Connect service.
func NewRPCService(board Board, suggester Suggester) *RPCService {
	return &RPCService{
		board:     board,
		suggester: suggester,
	}
}

var _ DashboardServiceHandler = (*RPCService)(nil)

// GetState returns the current snapshot
func (s *RPCService) GetState(ctx context.Context, req *connect.Request[GetStateRequest]) (*connect.Response[GetStateResponse], error) {
	snapshot, err := s.board.Snapshot(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetStateResponse{Snapshot: snapshot}), nil
}

// Refresh starts a fetch
func (s *RPCService) Refresh(ctx context.Context, req *connect.Request[RefreshRequest]) (*connect.Response[RefreshResponse], error) {
	if err := s.board.Refresh(); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&RefreshResponse{}), nil
}

// Search updates the search term and optionally returns suggestions
func (s *RPCService) Search(ctx context.Context, req *connect.Request[SearchRequest]) (*connect.Response[SearchResponse], error) {
	if err := s.board.SetSearchText(req.Msg.Text); err != nil {
		return nil, connectError(err)
	}

	resp := &SearchResponse{}
	if req.Msg.Suggest && s.suggester != nil {
		players, err := s.suggester.GetAutoCompleteSuggestions(ctx, req.Msg.Text)
		if err != nil {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		resp.Suggestions = players
	}
	return connect.NewResponse(resp), nil
}

// SetGrouping toggles grouping by country
func (s *RPCService) SetGrouping(ctx context.Context, req *connect.Request[SetGroupingRequest]) (*connect.Response[SetGroupingResponse], error) {
	if err := s.board.SetGroupByCountry(req.Msg.GroupByCountry); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&SetGroupingResponse{}), nil
}

func connectError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeUnavailable, err)
	}
}
