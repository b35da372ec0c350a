package server

import (
	"context"
	"strings"

	"github.com/elvirus/virus-server-go/internal/auth"
	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/repository"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "virus.v1.MatchService"

// Full method names, as seen by interceptors.
const (
	MethodStartMatch       = "/" + ServiceName + "/StartMatch"
	MethodPlayCard         = "/" + ServiceName + "/PlayCard"
	MethodEndTurn          = "/" + ServiceName + "/EndTurn"
	MethodMarkDisconnected = "/" + ServiceName + "/MarkDisconnected"
	MethodGetState         = "/" + ServiceName + "/GetState"
	MethodWatch            = "/" + ServiceName + "/Watch"
	MethodAbandonMatch     = "/" + ServiceName + "/AbandonMatch"
	MethodListMatches      = "/" + ServiceName + "/ListMatches"
	MethodGetAnalytics     = "/" + ServiceName + "/GetAnalytics"
)

var adminMethods = map[string]bool{
	MethodStartMatch:   true,
	MethodAbandonMatch: true,
	MethodListMatches:  true,
	MethodGetAnalytics: true,
}

// IsAdminMethod reports whether fullMethod requires the admin credential instead of a ticket.
func IsAdminMethod(fullMethod string) bool {
	return adminMethods[fullMethod]
}

// MatchServiceServer is the server API of virus.v1.MatchService.
type MatchServiceServer interface {
	StartMatch(context.Context, *StartMatchRequest) (*StartMatchResponse, error)
	PlayCard(context.Context, *PlayCardRequest) (*StateResponse, error)
	EndTurn(context.Context, *EndTurnRequest) (*StateResponse, error)
	MarkDisconnected(context.Context, *MarkDisconnectedRequest) (*StateResponse, error)
	GetState(context.Context, *GetStateRequest) (*StateResponse, error)
	Watch(*WatchRequest, MatchServiceWatchServer) error
	AbandonMatch(context.Context, *AbandonMatchRequest) (*AbandonMatchResponse, error)
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
	GetAnalytics(context.Context, *GetAnalyticsRequest) (*GetAnalyticsResponse, error)
}

// MatchServiceWatchServer is the server side of the Watch stream.
type MatchServiceWatchServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type watchServerStream struct {
	grpc.ServerStream
}

func (x *watchServerStream) Send(m *Event) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterMatchServiceServer registers srv on s.
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&MatchServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](fullMethod string, call func(MatchServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MatchServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MatchServiceServer).Watch(in, &watchServerStream{stream})
}

// MatchServiceDesc describes virus.v1.MatchService for grpc.Server.RegisterService.
var MatchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartMatch", Handler: unaryHandler(MethodStartMatch, MatchServiceServer.StartMatch)},
		{MethodName: "PlayCard", Handler: unaryHandler(MethodPlayCard, MatchServiceServer.PlayCard)},
		{MethodName: "EndTurn", Handler: unaryHandler(MethodEndTurn, MatchServiceServer.EndTurn)},
		{MethodName: "MarkDisconnected", Handler: unaryHandler(MethodMarkDisconnected, MatchServiceServer.MarkDisconnected)},
		{MethodName: "GetState", Handler: unaryHandler(MethodGetState, MatchServiceServer.GetState)},
		{MethodName: "AbandonMatch", Handler: unaryHandler(MethodAbandonMatch, MatchServiceServer.AbandonMatch)},
		{MethodName: "ListMatches", Handler: unaryHandler(MethodListMatches, MatchServiceServer.ListMatches)},
		{MethodName: "GetAnalytics", Handler: unaryHandler(MethodGetAnalytics, MatchServiceServer.GetAnalytics)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "virus/v1/match_service",
}

// matchServer implements MatchServiceServer on top of the game engine.
type matchServer struct {
	engine  *game.Engine
	hub     *Hub
	tickets *auth.TicketIssuer
	logger  *zap.Logger
}

// NewMatchServer creates the gRPC service implementation.
func NewMatchServer(engine *game.Engine, hub *Hub, tickets *auth.TicketIssuer, logger *zap.Logger) MatchServiceServer {
	return &matchServer{
		engine:  engine,
		hub:     hub,
		tickets: tickets,
		logger:  logger,
	}
}

// caller resolves the ticket holder and checks the requested match against the ticket.
func caller(ctx context.Context, requestedMatchID string) (*auth.TicketClaims, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "player ticket required")
	}
	matchID := strings.TrimSpace(requestedMatchID)
	if matchID != "" && matchID != claims.MatchID {
		return nil, status.Errorf(codes.PermissionDenied, "ticket is not valid for match %s", matchID)
	}
	return claims, nil
}

// StartMatch opens a match and issues a ticket for every seat.
func (s *matchServer) StartMatch(ctx context.Context, req *StartMatchRequest) (*StartMatchResponse, error) {
	if strings.TrimSpace(req.RoomID) == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}

	m, err := s.engine.StartMatch(ctx, game.StartRequest{
		MatchID: strings.TrimSpace(req.MatchID),
		RoomID:  req.RoomID,
		Players: req.Players,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	tickets := make(map[string]string, len(m.Players))
	for _, p := range m.Players {
		ticket, err := s.tickets.Issue(m.ID, p.UserID, p.Username)
		if err != nil {
			s.logger.Error("failed to issue ticket",
				zap.String("match_id", m.ID),
				zap.String("player_id", p.UserID),
				zap.Error(err),
			)
			return nil, status.Error(codes.Internal, "failed to issue tickets")
		}
		tickets[p.UserID] = ticket
	}

	return &StartMatchResponse{
		MatchID:         m.ID,
		CurrentPlayerID: m.CurrentPlayer().UserID,
		TurnGeneration:  m.TurnGeneration,
		Tickets:         tickets,
	}, nil
}

// PlayCard plays a card for the ticket holder.
func (s *matchServer) PlayCard(ctx context.Context, req *PlayCardRequest) (*StateResponse, error) {
	claims, err := caller(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CardID) == "" {
		return nil, status.Error(codes.InvalidArgument, "card_id is required")
	}

	view, err := s.engine.ApplyAction(ctx, claims.MatchID, rules.Action{
		PlayerID: claims.UserID(),
		CardID:   req.CardID,
		Kind:     req.Kind,
		Target:   req.Target,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &StateResponse{View: view}, nil
}

// EndTurn ends the ticket holder's turn.
func (s *matchServer) EndTurn(ctx context.Context, req *EndTurnRequest) (*StateResponse, error) {
	claims, err := caller(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	view, err := s.engine.EndTurn(ctx, claims.MatchID, claims.UserID(), req.DiscardIDs)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StateResponse{View: view}, nil
}

// MarkDisconnected takes the ticket holder out of the rotation.
func (s *matchServer) MarkDisconnected(ctx context.Context, req *MarkDisconnectedRequest) (*StateResponse, error) {
	claims, err := caller(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	view, err := s.engine.MarkDisconnected(ctx, claims.MatchID, claims.UserID())
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("player left match",
		zap.String("match_id", claims.MatchID),
		zap.String("player_id", claims.UserID()),
		zap.String("host", extractHostFromContext(ctx)),
	)
	return &StateResponse{View: view}, nil
}

// GetState returns the ticket holder's view.
func (s *matchServer) GetState(ctx context.Context, req *GetStateRequest) (*StateResponse, error) {
	claims, err := caller(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	view, err := s.engine.GetStateForPlayer(claims.MatchID, claims.UserID())
	if err != nil {
		return nil, toStatus(err)
	}
	return &StateResponse{View: view}, nil
}

// Watch streams the notifications addressed to the ticket holder until the match ends, the
// client goes away, or the subscriber falls too far behind.
func (s *matchServer) Watch(req *WatchRequest, stream MatchServiceWatchServer) error {
	ctx := stream.Context()
	claims, err := caller(ctx, req.MatchID)
	if err != nil {
		return err
	}
	if _, err := s.engine.GetStateForPlayer(claims.MatchID, claims.UserID()); err != nil {
		return toStatus(err)
	}

	sub := s.hub.Subscribe(claims.MatchID, claims.UserID())
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C():
			if !ok {
				return status.Error(codes.ResourceExhausted, "subscriber fell behind")
			}
			if err := stream.Send(&n); err != nil {
				return err
			}
			if n.Type == game.NotificationMatchEnded {
				return nil
			}
		}
	}
}

// AbandonMatch force-finishes a match.
func (s *matchServer) AbandonMatch(ctx context.Context, req *AbandonMatchRequest) (*AbandonMatchResponse, error) {
	if strings.TrimSpace(req.MatchID) == "" {
		return nil, status.Error(codes.InvalidArgument, "match_id is required")
	}
	if err := s.engine.AbandonMatch(ctx, req.MatchID, req.Reason); err != nil {
		return nil, toStatus(err)
	}
	return &AbandonMatchResponse{}, nil
}

// ListMatches lists stored matches.
func (s *matchServer) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	matches, err := s.engine.ListMatches(ctx, repository.ListFilter{Status: req.Status, Limit: req.Limit})
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListMatchesResponse{Matches: matches}, nil
}

// GetAnalytics returns the event statistics of a live match.
func (s *matchServer) GetAnalytics(_ context.Context, req *GetAnalyticsRequest) (*GetAnalyticsResponse, error) {
	stats, err := s.engine.GetMatchAnalytics(req.MatchID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetAnalyticsResponse{Stats: stats}, nil
}
