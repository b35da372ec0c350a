package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elvirus/virus-server-go/internal/game/cards"
)

// ChecksumVersion is bumped whenever the canonical representation changes.
const ChecksumVersion = 1

// Checksum is a deterministic digest of a match's game-relevant state.
type Checksum struct {
	Hash    string `json:"hash"`
	Version int    `json:"version"`
}

// ComputeChecksum hashes the canonical representation of the match. Timestamps are excluded so
// two servers replaying the same actions agree on the digest.
func (m *Match) ComputeChecksum() Checksum {
	sum := sha256.Sum256([]byte(m.canonical()))
	return Checksum{Hash: hex.EncodeToString(sum[:]), Version: ChecksumVersion}
}

// VerifyChecksum reports whether the match still hashes to expected.
func (m *Match) VerifyChecksum(expected Checksum) bool {
	return expected.Version == ChecksumVersion && m.ComputeChecksum().Hash == expected.Hash
}

func (m *Match) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "MATCH:%s|%s|%s|%d|%d|%d|%d|%d\n",
		m.ID, m.RoomID, m.Status, m.CurrentPlayerIndex, m.TurnGeneration,
		m.TurnTimeLimitSeconds, m.RequiredOrgansToWin, m.DeckSize)

	if m.Winner != nil {
		fmt.Fprintf(&buf, "WINNER:%s\n", m.Winner.UserID)
	}
	if m.LastAction != nil {
		fmt.Fprintf(&buf, "LAST:%s|%s|%s|%s\n",
			m.LastAction.PlayerID, m.LastAction.Action, m.LastAction.CardID, m.LastAction.TargetID)
	}

	// Seat order matters, so players are not sorted.
	for _, p := range m.Players {
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%t\n", p.UserID, p.Username, p.IsActive)
		buf.WriteString("  HAND:" + cardIDs(p.Hand) + "\n")
		for _, organ := range p.Organs {
			fmt.Fprintf(&buf, "  ORGAN:%s|%s|%s\n", organ.ID(), organ.Status, cardIDs(organ.Attachments))
		}
	}

	// Deck and discard order matter: draws pop from the end.
	buf.WriteString("DECK:" + cardIDs(m.Deck) + "\n")
	buf.WriteString("DISCARD:" + cardIDs(m.DiscardPile) + "\n")

	return buf.String()
}

func cardIDs(in []cards.Card) string {
	ids := make([]string, len(in))
	for i, c := range in {
		ids[i] = c.ID
	}
	return strings.Join(ids, ",")
}

// Marshal encodes the full match aggregate as the persisted JSON record.
func Marshal(m *Match) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode match %s: %w", m.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a persisted match record and verifies its invariants.
func Unmarshal(data []byte) (*Match, error) {
	var m Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	if err := m.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("decoded match %s violates invariants: %w", m.ID, err)
	}
	return &m, nil
}

// ValidateRoundtrip checks that a match survives encode/decode without changing its checksum.
func ValidateRoundtrip(m *Match) error {
	original := m.ComputeChecksum()

	data, err := Marshal(m)
	if err != nil {
		return err
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}

	if got := decoded.ComputeChecksum(); got.Hash != original.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, decoded=%s", original.Hash, got.Hash)
	}
	return nil
}
