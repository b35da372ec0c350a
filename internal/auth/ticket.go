package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const ticketIssuer = "virus-server"

var (
	// ErrInvalidTicket is returned for malformed, forged or expired tickets.
	ErrInvalidTicket = errors.New("invalid ticket")
	// ErrUnauthorized is returned when an admin credential does not match.
	ErrUnauthorized = errors.New("unauthorized")
)

// TicketClaims identify a seated player of one match.
type TicketClaims struct {
	MatchID  string `json:"mid"`
	Username string `json:"name"`
	jwt.StandardClaims
}

// UserID returns the player the ticket was issued to.
func (c *TicketClaims) UserID() string {
	return c.Subject
}

// TicketIssuer signs and verifies HS256 player tickets.
type TicketIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTicketIssuer creates an issuer. The secret must not be empty.
func NewTicketIssuer(secret string, ttl time.Duration) (*TicketIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("ticket secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ticket ttl must be positive")
	}
	return &TicketIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a ticket for userID in matchID.
func (i *TicketIssuer) Issue(matchID, userID, username string) (string, error) {
	if matchID == "" || userID == "" {
		return "", fmt.Errorf("match id and user id are required")
	}
	now := i.now()
	claims := TicketClaims{
		MatchID:  matchID,
		Username: username,
		StandardClaims: jwt.StandardClaims{
			Issuer:    ticketIssuer,
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses a ticket and checks its signature, issuer and expiry.
func (i *TicketIssuer) Verify(ticket string) (*TicketClaims, error) {
	claims := &TicketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if !token.Valid || claims.Issuer != ticketIssuer || claims.Subject == "" || claims.MatchID == "" {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
