package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// MatchServiceClient is the client API of virus.v1.MatchService. Every call uses the JSON codec.
type MatchServiceClient interface {
	StartMatch(ctx context.Context, in *StartMatchRequest, opts ...grpc.CallOption) (*StartMatchResponse, error)
	PlayCard(ctx context.Context, in *PlayCardRequest, opts ...grpc.CallOption) (*StateResponse, error)
	EndTurn(ctx context.Context, in *EndTurnRequest, opts ...grpc.CallOption) (*StateResponse, error)
	MarkDisconnected(ctx context.Context, in *MarkDisconnectedRequest, opts ...grpc.CallOption) (*StateResponse, error)
	GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*StateResponse, error)
	Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (MatchServiceWatchClient, error)
	AbandonMatch(ctx context.Context, in *AbandonMatchRequest, opts ...grpc.CallOption) (*AbandonMatchResponse, error)
	ListMatches(ctx context.Context, in *ListMatchesRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error)
	GetAnalytics(ctx context.Context, in *GetAnalyticsRequest, opts ...grpc.CallOption) (*GetAnalyticsResponse, error)
}

// MatchServiceWatchClient receives the Watch stream.
type MatchServiceWatchClient interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type matchServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMatchServiceClient wraps a client connection.
func NewMatchServiceClient(cc grpc.ClientConnInterface) MatchServiceClient {
	return &matchServiceClient{cc: cc}
}

// WithTicket attaches a player ticket to outgoing calls.
func WithTicket(ctx context.Context, ticket string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, AuthorizationHeader, "Bearer "+ticket)
}

// WithAdminPassword attaches the admin credential to outgoing calls.
func WithAdminPassword(ctx context.Context, password string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, AdminPasswordHeader, password)
}

func (c *matchServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, method, in, out, append([]grpc.CallOption{CallOption()}, opts...)...)
}

func (c *matchServiceClient) StartMatch(ctx context.Context, in *StartMatchRequest, opts ...grpc.CallOption) (*StartMatchResponse, error) {
	out := new(StartMatchResponse)
	if err := c.invoke(ctx, MethodStartMatch, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) PlayCard(ctx context.Context, in *PlayCardRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, MethodPlayCard, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) EndTurn(ctx context.Context, in *EndTurnRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, MethodEndTurn, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) MarkDisconnected(ctx context.Context, in *MarkDisconnectedRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, MethodMarkDisconnected, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, MethodGetState, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (MatchServiceWatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &MatchServiceDesc.Streams[0], MethodWatch, append([]grpc.CallOption{CallOption()}, opts...)...)
	if err != nil {
		return nil, err
	}
	x := &watchClientStream{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type watchClientStream struct {
	grpc.ClientStream
}

func (x *watchClientStream) Recv() (*Event, error) {
	m := new(Event)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *matchServiceClient) AbandonMatch(ctx context.Context, in *AbandonMatchRequest, opts ...grpc.CallOption) (*AbandonMatchResponse, error) {
	out := new(AbandonMatchResponse)
	if err := c.invoke(ctx, MethodAbandonMatch, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) ListMatches(ctx context.Context, in *ListMatchesRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	out := new(ListMatchesResponse)
	if err := c.invoke(ctx, MethodListMatches, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) GetAnalytics(ctx context.Context, in *GetAnalyticsRequest, opts ...grpc.CallOption) (*GetAnalyticsResponse, error) {
	out := new(GetAnalyticsResponse)
	if err := c.invoke(ctx, MethodGetAnalytics, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
