package server

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusMapsKinds(t *testing.T) {
	tests := []struct {
		kind rules.ErrorKind
		code codes.Code
	}{
		{rules.KindInvalidConfiguration, codes.InvalidArgument},
		{rules.KindMatchNotActive, codes.FailedPrecondition},
		{rules.KindNotYourTurn, codes.FailedPrecondition},
		{rules.KindCardNotInHand, codes.InvalidArgument},
		{rules.KindIllegalTarget, codes.InvalidArgument},
		{rules.KindMatchNotFound, codes.NotFound},
		{rules.KindPlayerNotInMatch, codes.PermissionDenied},
		{rules.KindDeckExhaustedUnrecoverable, codes.Aborted},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := toStatus(&rules.ActionError{Kind: tt.kind, Reason: "nope"})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestToStatusCarriesErrorInfo(t *testing.T) {
	original := &rules.ActionError{
		Kind:     rules.KindIllegalTarget,
		CardID:   "c-12",
		TargetID: "o-3",
		Reason:   "organ is immunized",
		Details:  map[string]string{"color": "red"},
	}
	err := toStatus(fmt.Errorf("play card: %w", original))

	decoded := ActionErrorFromStatus(err)
	require.NotNil(t, decoded)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, "c-12", decoded.CardID)
	assert.Equal(t, "o-3", decoded.TargetID)
	assert.Equal(t, "organ is immunized", decoded.Reason)
	assert.Equal(t, map[string]string{"color": "red"}, decoded.Details)
	assert.True(t, errors.Is(decoded, rules.ErrIllegalTarget))
}

func TestToStatusOtherErrors(t *testing.T) {
	assert.Nil(t, toStatus(nil))
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(game.ErrEngineClosed)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(toStatus(fmt.Errorf("%w: m1", game.ErrMatchStillActive))))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(errors.New("boom"))))

	existing := status.Error(codes.Unauthenticated, "who are you")
	assert.Equal(t, existing, toStatus(existing))
	assert.Nil(t, ActionErrorFromStatus(existing))
}
