package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTicketRoundTrip(t *testing.T) {
	issuer, err := NewTicketIssuer("secret", time.Hour)
	require.NoError(t, err)

	ticket, err := issuer.Issue("m1", "alice", "Alice")
	require.NoError(t, err)

	claims, err := issuer.Verify(ticket)
	require.NoError(t, err)
	assert.Equal(t, "m1", claims.MatchID)
	assert.Equal(t, "alice", claims.UserID())
	assert.Equal(t, "Alice", claims.Username)
}

func TestTicketRejectsForgery(t *testing.T) {
	issuer, err := NewTicketIssuer("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTicketIssuer("other-secret", time.Hour)
	require.NoError(t, err)

	ticket, err := other.Issue("m1", "alice", "Alice")
	require.NoError(t, err)

	_, err = issuer.Verify(ticket)
	assert.True(t, errors.Is(err, ErrInvalidTicket))

	_, err = issuer.Verify("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidTicket))
}

func TestTicketRejectsNoneAlgorithm(t *testing.T) {
	issuer, err := NewTicketIssuer("secret", time.Hour)
	require.NoError(t, err)

	claims := TicketClaims{MatchID: "m1", StandardClaims: jwt.StandardClaims{
		Issuer: ticketIssuer, Subject: "alice", ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(unsigned)
	assert.True(t, errors.Is(err, ErrInvalidTicket))
}

func TestTicketExpires(t *testing.T) {
	issuer, err := NewTicketIssuer("secret", time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	ticket, err := issuer.Issue("m1", "alice", "Alice")
	require.NoError(t, err)

	_, err = issuer.Verify(ticket)
	assert.True(t, errors.Is(err, ErrInvalidTicket))
}

func TestNewTicketIssuerValidation(t *testing.T) {
	_, err := NewTicketIssuer("", time.Hour)
	assert.Error(t, err)
	_, err = NewTicketIssuer("secret", 0)
	assert.Error(t, err)

	issuer, err := NewTicketIssuer("secret", time.Hour)
	require.NoError(t, err)
	_, err = issuer.Issue("", "alice", "Alice")
	assert.Error(t, err)
}

func TestAdminChecker(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	checker := NewAdminChecker(string(hash))
	assert.True(t, checker.Enabled())
	assert.NoError(t, checker.Check("hunter2"))
	assert.ErrorIs(t, checker.Check("wrong"), ErrUnauthorized)
	assert.ErrorIs(t, checker.Check(""), ErrUnauthorized)

	disabled := NewAdminChecker("")
	assert.False(t, disabled.Enabled())
	assert.ErrorIs(t, disabled.Check("hunter2"), ErrUnauthorized)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, NewAdminChecker(hash).Check("hunter2"))
}
