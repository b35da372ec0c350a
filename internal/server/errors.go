package server

import (
	"context"
	"errors"

	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/repository"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the errdetails.ErrorInfo domain of rule violations.
const ErrorDomain = "virus.elvirus.dev"

var kindCodes = map[rules.ErrorKind]codes.Code{
	rules.KindInvalidConfiguration:       codes.InvalidArgument,
	rules.KindMatchNotActive:             codes.FailedPrecondition,
	rules.KindNotYourTurn:                codes.FailedPrecondition,
	rules.KindCardNotInHand:              codes.InvalidArgument,
	rules.KindIllegalTarget:              codes.InvalidArgument,
	rules.KindMatchNotFound:              codes.NotFound,
	rules.KindPlayerNotInMatch:           codes.PermissionDenied,
	rules.KindDeckExhaustedUnrecoverable: codes.Aborted,
}

// toStatus converts engine errors into gRPC status errors. Rule violations carry an ErrorInfo
// whose reason is the error kind.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var ae *rules.ActionError
	if errors.As(err, &ae) {
		code, ok := kindCodes[ae.Kind]
		if !ok {
			code = codes.Unknown
		}
		st := status.New(code, ae.Error())
		info := &errdetails.ErrorInfo{
			Reason:   string(ae.Kind),
			Domain:   ErrorDomain,
			Metadata: errorMetadata(ae),
		}
		if detailed, derr := st.WithDetails(info); derr == nil {
			st = detailed
		}
		return st.Err()
	}

	switch {
	case errors.Is(err, game.ErrEngineClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, game.ErrMatchStillActive):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func errorMetadata(ae *rules.ActionError) map[string]string {
	md := make(map[string]string, len(ae.Details)+3)
	for k, v := range ae.Details {
		md[k] = v
	}
	if ae.CardID != "" {
		md["card_id"] = ae.CardID
	}
	if ae.TargetID != "" {
		md["target_id"] = ae.TargetID
	}
	if ae.Reason != "" {
		md["reason"] = ae.Reason
	}
	return md
}

// ActionErrorFromStatus rebuilds the rule violation carried by a status error returned from
// MatchService. It returns nil for errors without an ErrorInfo of this domain.
func ActionErrorFromStatus(err error) *rules.ActionError {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return nil
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		md := info.GetMetadata()
		ae := &rules.ActionError{
			Kind:     rules.ErrorKind(info.GetReason()),
			CardID:   md["card_id"],
			TargetID: md["target_id"],
			Reason:   md["reason"],
		}
		for k, v := range md {
			switch k {
			case "card_id", "target_id", "reason":
			default:
				if ae.Details == nil {
					ae.Details = make(map[string]string)
				}
				ae.Details[k] = v
			}
		}
		return ae
	}
	return nil
}
