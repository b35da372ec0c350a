package server

import (
	"time"

	"github.com/elvirus/virus-server-go/internal/auth"
	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/game"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Deps are the collaborators shared by the gRPC and WebSocket listeners.
type Deps struct {
	Engine  *game.Engine
	Hub     *Hub
	Tickets *auth.TicketIssuer
	Admin   *auth.AdminChecker
	Logger  *zap.Logger
}

// NewGRPCServer builds a gRPC server exposing MatchService and the standard health service.
func NewGRPCServer(cfg config.GRPCConfig, deps Deps) *grpc.Server {
	logger := deps.Logger

	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
			AdminInterceptor(deps.Admin),
			AuthInterceptor(deps.Tickets),
		)),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor(logger),
			StreamLoggingInterceptor(logger),
			StreamAuthInterceptor(deps.Tickets),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}

	grpcServer := grpc.NewServer(opts...)
	RegisterMatchServiceServer(grpcServer, NewMatchServer(deps.Engine, deps.Hub, deps.Tickets, logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return grpcServer
}
