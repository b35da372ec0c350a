package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elvirus/virus-server-go/internal/auth"
	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/repository"
	"github.com/elvirus/virus-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting virus server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	admin := auth.NewAdminChecker(cfg.Auth.AdminPasswordHash)
	if !admin.Enabled() {
		logger.Warn("admin password not configured; admin RPC access disabled")
	}
	tickets, err := auth.NewTicketIssuer(cfg.Auth.TicketSecret, cfg.Auth.TicketTTL)
	if err != nil {
		logger.Fatal("failed to initialize ticket issuer", zap.Error(err))
	}

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize match store
	store, closeStore, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open match store", zap.Error(err))
	}
	defer closeStore()

	// Initialize engine and notification hub
	engine := game.NewEngine(logger, game.OptionsFromConfig(cfg), store)
	hub := server.NewHub(logger, 0)
	engine.SetNotificationHandler(hub.Publish)
	logger.Info("game engine initialized",
		zap.Int("min_players", cfg.Game.MinPlayers),
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Duration("turn_time_limit", cfg.Game.TurnTimeLimit),
		zap.String("replay_dir", cfg.Game.ReplayDir),
	)

	resumed, err := engine.Resume(ctx)
	if err != nil {
		logger.Error("failed to resume matches", zap.Error(err))
	}
	logger.Info("resumed active matches", zap.Int("count", resumed))

	deps := server.Deps{
		Engine:  engine,
		Hub:     hub,
		Tickets: tickets,
		Admin:   admin,
		Logger:  logger,
	}
	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, deps)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	go func() {
		if wsErr := server.StartWebSocketServer(ctx, cfg.Server.WebSocket, deps); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("virus server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.String("database_driver", cfg.Database.Driver),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()
	engine.Shutdown()
	hub.CloseAll()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("graceful stop timed out, forcing", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		grpcServer.Stop()
	}

	logger.Info("virus server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
