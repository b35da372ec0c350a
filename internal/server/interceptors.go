package server

import (
	"context"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"github.com/elvirus/virus-server-go/internal/auth"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Metadata keys read by the interceptors.
const (
	AuthorizationHeader = "authorization"
	AdminPasswordHeader = "x-admin-password"
)

type claimsKey struct{}

// ClaimsFromContext returns the verified ticket of the caller.
func ClaimsFromContext(ctx context.Context) (*auth.TicketClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.TicketClaims)
	return claims, ok
}

func withClaims(ctx context.Context, claims *auth.TicketClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ChainUnaryInterceptors runs interceptors in order, the first one outermost.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor, next := interceptors[i], chained
			chained = func(ctx context.Context, req interface{}) (interface{}, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// RecoveryInterceptor turns handler panics into codes.Internal.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in gRPC handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor is RecoveryInterceptor for streams.
func StreamRecoveryInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in gRPC stream",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

// LoggingInterceptor logs every call with its status code and latency.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, ctx, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor logs every stream when it ends.
func StreamLoggingInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, ss.Context(), info.FullMethod, start, err)
		return err
	}
}

func logCall(logger *zap.Logger, ctx context.Context, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)),
		zap.String("host", extractHostFromContext(ctx)),
	}
	if claims, ok := ClaimsFromContext(ctx); ok {
		fields = append(fields,
			zap.String("match_id", claims.MatchID),
			zap.String("player_id", claims.UserID()),
		)
	}

	switch status.Code(err) {
	case codes.OK:
		logger.Debug("gRPC call", fields...)
	case codes.Internal, codes.Unknown, codes.Unavailable:
		logger.Error("gRPC call failed", append(fields, zap.Error(err))...)
	default:
		logger.Info("gRPC call rejected", append(fields, zap.Error(err))...)
	}
}

// AuthInterceptor verifies the player ticket of every non-admin method and stores its claims
// in the context.
func AuthInterceptor(tickets *auth.TicketIssuer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if IsAdminMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		claims, err := verifyTicket(ctx, tickets)
		if err != nil {
			return nil, err
		}
		return handler(withClaims(ctx, claims), req)
	}
}

// StreamAuthInterceptor is AuthInterceptor for streams.
func StreamAuthInterceptor(tickets *auth.TicketIssuer) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if IsAdminMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		claims, err := verifyTicket(ss.Context(), tickets)
		if err != nil {
			return err
		}
		return handler(srv, &contextStream{ServerStream: ss, ctx: withClaims(ss.Context(), claims)})
	}
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}

func verifyTicket(ctx context.Context, tickets *auth.TicketIssuer) (*auth.TicketClaims, error) {
	raw := firstMetadata(ctx, AuthorizationHeader)
	ticket := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if ticket == "" {
		return nil, status.Error(codes.Unauthenticated, "missing player ticket")
	}
	claims, err := tickets.Verify(ticket)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid player ticket")
	}
	return claims, nil
}

// AdminInterceptor requires the admin password on admin methods.
func AdminInterceptor(admin *auth.AdminChecker) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !IsAdminMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		if !admin.Enabled() {
			return nil, status.Error(codes.PermissionDenied, "admin access is disabled")
		}
		password := firstMetadata(ctx, AdminPasswordHeader)
		if password == "" {
			return nil, status.Error(codes.Unauthenticated, "missing admin password")
		}
		if err := admin.Check(password); err != nil {
			return nil, status.Error(codes.PermissionDenied, "invalid admin password")
		}
		return handler(ctx, req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
