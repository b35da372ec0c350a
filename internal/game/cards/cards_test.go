package cards

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeckMatchesDistribution(t *testing.T) {
	dist := DefaultDistribution()
	require.NoError(t, dist.Validate())

	deck := BuildDeck(dist)
	require.Len(t, deck, dist.Total())
	assert.Equal(t, 69, len(deck))

	ids := make(map[string]bool, len(deck))
	counts := make(map[string]int)
	for _, card := range deck {
		assert.False(t, ids[card.ID], "duplicate card id %s", card.ID)
		ids[card.ID] = true
		counts[string(card.Kind)+"/"+string(card.Color)+"/"+string(card.Effect)]++
	}

	for _, entry := range dist {
		color := entry.Color
		if entry.Kind == KindTreatment {
			color = ColorNone
		}
		assert.Equal(t, entry.Count, counts[string(entry.Kind)+"/"+string(color)+"/"+string(entry.Effect)],
			"count mismatch for %+v", entry)
	}
}

func TestBuildDeckIsDeterministic(t *testing.T) {
	assert.Equal(t, BuildDeck(DefaultDistribution()), BuildDeck(DefaultDistribution()))
}

func TestBuildDeckNamesCards(t *testing.T) {
	deck := BuildDeck(Distribution{
		{Kind: KindOrgan, Color: ColorRed, Count: 1},
		{Kind: KindTreatment, Effect: EffectDrawThree, Count: 1},
	})
	require.Len(t, deck, 2)
	assert.Equal(t, "organ-red-0", deck[0].ID)
	assert.Equal(t, "Red Organ", deck[0].Name)
	assert.Equal(t, "treatment-draw-three-0", deck[1].ID)
	assert.Equal(t, ColorNone, deck[1].Color)
	assert.Equal(t, "Draw Three", deck[1].Name)
}

func TestDistributionValidate(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
		want string
	}{
		{"empty", Distribution{}, "empty"},
		{"unknown kind", Distribution{{Kind: "joker", Color: ColorRed, Count: 1}}, "unknown card kind"},
		{"treatment without effect", Distribution{{Kind: KindTreatment, Count: 1}}, "known effect"},
		{"colored treatment", Distribution{{Kind: KindTreatment, Color: ColorRed, Effect: EffectDrawThree, Count: 1}}, "no color"},
		{"organ with effect", Distribution{{Kind: KindOrgan, Color: ColorRed, Effect: EffectDrawThree, Count: 1}}, "only treatments"},
		{"colorless organ", Distribution{{Kind: KindOrgan, Color: ColorNone, Count: 1}}, "needs a color"},
		{"negative", Distribution{{Kind: KindOrgan, Color: ColorRed, Count: -1}}, "negative"},
		{"duplicate", Distribution{{Kind: KindOrgan, Color: ColorRed, Count: 1}, {Kind: KindOrgan, Color: ColorRed, Count: 2}}, "duplicate"},
		{"zero cards", Distribution{{Kind: KindOrgan, Color: ColorRed, Count: 0}}, "no cards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dist.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}
}

func TestColorMatches(t *testing.T) {
	assert.True(t, ColorRed.Matches(ColorRed))
	assert.False(t, ColorRed.Matches(ColorBlue))
	assert.True(t, ColorMulti.Matches(ColorBlue))
	assert.True(t, ColorGreen.Matches(ColorMulti))
	assert.False(t, ColorNone.Matches(ColorMulti))
}

func TestShuffleKeepsCards(t *testing.T) {
	deck := BuildDeck(DefaultDistribution())
	shuffled := Shuffle(append([]Card(nil), deck...), NewRand(7))

	require.Len(t, shuffled, len(deck))
	assert.ElementsMatch(t, deck, shuffled)
	assert.NotEqual(t, deck, shuffled)
}

// TestShuffleUniformity tabulates the 24 permutations of a 4-card deck and runs a
// chi-square goodness-of-fit test against the uniform distribution.
func TestShuffleUniformity(t *testing.T) {
	const trials = 48000
	rng := NewRand(42)
	base := BuildDeck(Distribution{
		{Kind: KindOrgan, Color: ColorRed, Count: 1},
		{Kind: KindOrgan, Color: ColorBlue, Count: 1},
		{Kind: KindOrgan, Color: ColorGreen, Count: 1},
		{Kind: KindOrgan, Color: ColorYellow, Count: 1},
	})

	freq := make(map[string]int)
	for i := 0; i < trials; i++ {
		deck := Shuffle(append([]Card(nil), base...), rng)
		key := make([]string, len(deck))
		for j, c := range deck {
			key[j] = c.ID
		}
		freq[strings.Join(key, ",")]++
	}
	require.Len(t, freq, 24, "every permutation should appear")

	expected := float64(trials) / 24
	chi := 0.0
	for _, observed := range freq {
		diff := float64(observed) - expected
		chi += diff * diff / expected
	}
	// 23 degrees of freedom; 60 is far beyond the 0.999 quantile (49.7).
	assert.Less(t, chi, 60.0, "chi-square statistic too large: %f", chi)
}

func TestIndexOfAndRemove(t *testing.T) {
	deck := BuildDeck(Distribution{{Kind: KindRemedy, Color: ColorRed, Count: 3}})
	assert.Equal(t, 1, IndexOf(deck, "remedy-red-1"))
	assert.Equal(t, -1, IndexOf(deck, "missing"))

	deck = Remove(deck, 1)
	require.Len(t, deck, 2)
	assert.Equal(t, "remedy-red-2", deck[1].ID)
}
