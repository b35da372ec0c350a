package cards

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Shuffle permutes deck in place with Fisher-Yates and returns it. Every permutation is
// equally likely given a uniform rng.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// NewRand returns a PCG-backed generator. A zero seed draws both halves from crypto/rand.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		var buf [16]byte
		if _, err := crand.Read(buf[:]); err == nil {
			return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(buf[:8]), binary.LittleEndian.Uint64(buf[8:])))
		}
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
