package rules

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an operation on a match was rejected.
type ErrorKind string

const (
	KindInvalidConfiguration       ErrorKind = "INVALID_CONFIGURATION"
	KindMatchNotActive             ErrorKind = "MATCH_NOT_ACTIVE"
	KindNotYourTurn                ErrorKind = "NOT_YOUR_TURN"
	KindCardNotInHand              ErrorKind = "CARD_NOT_IN_HAND"
	KindIllegalTarget              ErrorKind = "ILLEGAL_TARGET"
	KindMatchNotFound              ErrorKind = "MATCH_NOT_FOUND"
	KindPlayerNotInMatch           ErrorKind = "PLAYER_NOT_IN_MATCH"
	KindDeckExhaustedUnrecoverable ErrorKind = "DECK_EXHAUSTED_UNRECOVERABLE"
)

// Sentinels for errors.Is. Any *ActionError of the same kind matches.
var (
	ErrInvalidConfiguration       = &ActionError{Kind: KindInvalidConfiguration}
	ErrMatchNotActive             = &ActionError{Kind: KindMatchNotActive}
	ErrNotYourTurn                = &ActionError{Kind: KindNotYourTurn}
	ErrCardNotInHand              = &ActionError{Kind: KindCardNotInHand}
	ErrIllegalTarget              = &ActionError{Kind: KindIllegalTarget}
	ErrMatchNotFound              = &ActionError{Kind: KindMatchNotFound}
	ErrPlayerNotInMatch           = &ActionError{Kind: KindPlayerNotInMatch}
	ErrDeckExhaustedUnrecoverable = &ActionError{Kind: KindDeckExhaustedUnrecoverable}
)

// ActionError is the typed failure returned for rejected actions. It carries enough context
// for a client to re-prompt the player.
type ActionError struct {
	Kind     ErrorKind
	CardID   string
	TargetID string
	Reason   string
	Details  map[string]string
}

func (e *ActionError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.CardID != "" {
		msg += fmt.Sprintf(" (card %s", e.CardID)
		if e.TargetID != "" {
			msg += fmt.Sprintf(", target %s", e.TargetID)
		}
		msg += ")"
	}
	return msg
}

// Is matches any ActionError with the same kind.
func (e *ActionError) Is(target error) bool {
	t, ok := target.(*ActionError)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the error kind from err.
func KindOf(err error) (ErrorKind, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

func newError(kind ErrorKind, reason string, args ...interface{}) *ActionError {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &ActionError{Kind: kind, Reason: reason}
}

func (e *ActionError) withCard(cardID, targetID string) *ActionError {
	e.CardID = cardID
	e.TargetID = targetID
	return e
}

func (e *ActionError) with(key, value string) *ActionError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}
