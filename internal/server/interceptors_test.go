package server

import (
	"context"
	"testing"
	"time"

	"github.com/elvirus/virus-server-go/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func newIssuer(t *testing.T) *auth.TicketIssuer {
	t.Helper()
	issuer, err := auth.NewTicketIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mark("first"), mark("second"), mark("third"))

	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: MethodGetState},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			order = append(order, "handler")
			return "resp", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)
	assert.Equal(t, []string{"first", "second", "third", "handler"}, order)
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodPlayCard},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			panic("kaboom")
		})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestAuthInterceptor(t *testing.T) {
	issuer := newIssuer(t)
	interceptor := AuthInterceptor(issuer)
	ticket, err := issuer.Issue("m1", "alice", "Alice")
	require.NoError(t, err)

	var seen *auth.TicketClaims
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen, _ = ClaimsFromContext(ctx)
		return nil, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: MethodPlayCard}

	t.Run("valid ticket", func(t *testing.T) {
		_, err := interceptor(incoming(AuthorizationHeader, "Bearer "+ticket), nil, info, handler)
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, "alice", seen.UserID())
		assert.Equal(t, "m1", seen.MatchID)
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("forged ticket", func(t *testing.T) {
		_, err := interceptor(incoming(AuthorizationHeader, "Bearer "+ticket+"x"), nil, info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("admin methods skip tickets", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodListMatches}, handler)
		assert.NoError(t, err)
	})
}

func TestAdminInterceptor(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	interceptor := AdminInterceptor(auth.NewAdminChecker(hash))
	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	admin := &grpc.UnaryServerInfo{FullMethod: MethodAbandonMatch}

	_, err = interceptor(incoming(AdminPasswordHeader, "hunter2"), nil, admin, ok)
	assert.NoError(t, err)

	_, err = interceptor(incoming(AdminPasswordHeader, "wrong"), nil, admin, ok)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = interceptor(context.Background(), nil, admin, ok)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodGetState}, ok)
	assert.NoError(t, err, "player methods pass through")

	disabled := AdminInterceptor(auth.NewAdminChecker(""))
	_, err = disabled(incoming(AdminPasswordHeader, "hunter2"), nil, admin, ok)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestExtractHostFromContextWithoutPeer(t *testing.T) {
	assert.Equal(t, "unknown", extractHostFromContext(context.Background()))
}
