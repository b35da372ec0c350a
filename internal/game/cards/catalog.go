package cards

import (
	"fmt"
	"strings"
)

// DeckEntry describes how many cards of one (kind, color, effect) combination a deck holds.
type DeckEntry struct {
	Kind   Kind            `mapstructure:"kind" json:"kind"`
	Color  Color           `mapstructure:"color" json:"color"`
	Effect TreatmentEffect `mapstructure:"effect" json:"effect,omitempty"`
	Count  int             `mapstructure:"count" json:"count"`
}

// Distribution is the full deck composition.
type Distribution []DeckEntry

// DefaultDistribution returns the standard 69-card composition: organs, pathogens and remedies
// for the four base colors plus one multicolor card of each, and a mix of treatments.
func DefaultDistribution() Distribution {
	dist := make(Distribution, 0, 22)
	for _, color := range BaseColors {
		dist = append(dist, DeckEntry{Kind: KindOrgan, Color: color, Count: 5})
	}
	dist = append(dist, DeckEntry{Kind: KindOrgan, Color: ColorMulti, Count: 1})
	for _, color := range BaseColors {
		dist = append(dist, DeckEntry{Kind: KindPathogen, Color: color, Count: 4})
	}
	dist = append(dist, DeckEntry{Kind: KindPathogen, Color: ColorMulti, Count: 1})
	for _, color := range BaseColors {
		dist = append(dist, DeckEntry{Kind: KindRemedy, Color: color, Count: 4})
	}
	dist = append(dist, DeckEntry{Kind: KindRemedy, Color: ColorMulti, Count: 1})

	dist = append(dist,
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectOrganTheft, Count: 3},
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectOrganExchange, Count: 2},
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectTransplant, Count: 2},
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectDiscardHand, Count: 2},
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectDrawThree, Count: 2},
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectMedicalError, Count: 1},
		DeckEntry{Kind: KindTreatment, Color: ColorNone, Effect: EffectSpreading, Count: 2},
	)
	return dist
}

// Total returns the number of cards the distribution produces.
func (d Distribution) Total() int {
	total := 0
	for _, entry := range d {
		total += entry.Count
	}
	return total
}

// Validate checks every entry for a coherent kind/color/effect combination.
func (d Distribution) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("deck distribution is empty")
	}
	seen := make(map[string]bool, len(d))
	for i, entry := range d {
		if !entry.Kind.Valid() {
			return fmt.Errorf("entry %d: unknown card kind %q", i, entry.Kind)
		}
		if entry.Count < 0 {
			return fmt.Errorf("entry %d: negative count %d", i, entry.Count)
		}
		switch entry.Kind {
		case KindTreatment:
			if !entry.Effect.Valid() {
				return fmt.Errorf("entry %d: treatment needs a known effect, got %q", i, entry.Effect)
			}
			if entry.Color != ColorNone && entry.Color != "" {
				return fmt.Errorf("entry %d: treatment cards have no color", i)
			}
		default:
			if entry.Effect != EffectNone {
				return fmt.Errorf("entry %d: only treatments carry an effect", i)
			}
			if !entry.Color.Valid() || entry.Color == ColorNone {
				return fmt.Errorf("entry %d: %s needs a color, got %q", i, entry.Kind, entry.Color)
			}
		}
		key := entryPrefix(entry)
		if seen[key] {
			return fmt.Errorf("entry %d: duplicate entry %s", i, key)
		}
		seen[key] = true
	}
	if d.Total() == 0 {
		return fmt.Errorf("deck distribution produces no cards")
	}
	return nil
}

// BuildDeck deterministically produces the configured cards in distribution order.
// Ids are derived from kind, color or effect and a per-entry sequence number, so they are
// unique within the deck and stable across builds.
func BuildDeck(dist Distribution) []Card {
	deck := make([]Card, 0, dist.Total())
	for _, entry := range dist {
		prefix := entryPrefix(entry)
		color := entry.Color
		if entry.Kind == KindTreatment {
			color = ColorNone
		}
		for i := 0; i < entry.Count; i++ {
			deck = append(deck, Card{
				ID:     fmt.Sprintf("%s-%d", prefix, i),
				Kind:   entry.Kind,
				Color:  color,
				Effect: entry.Effect,
				Name:   cardName(entry),
			})
		}
	}
	return deck
}

func entryPrefix(entry DeckEntry) string {
	if entry.Kind == KindTreatment {
		return fmt.Sprintf("%s-%s", entry.Kind, strings.ReplaceAll(string(entry.Effect), "_", "-"))
	}
	return fmt.Sprintf("%s-%s", entry.Kind, entry.Color)
}

var effectNames = map[TreatmentEffect]string{
	EffectOrganTheft:    "Organ Thief",
	EffectOrganExchange: "Organ Exchange",
	EffectDiscardHand:   "Discard Hand",
	EffectDrawThree:     "Draw Three",
	EffectTransplant:    "Transplant",
	EffectContagion:     "Contagion",
	EffectLatexGlove:    "Latex Glove",
	EffectSpreading:     "Spreading",
	EffectMedicalError:  "Medical Error",
}

func cardName(entry DeckEntry) string {
	if entry.Kind == KindTreatment {
		return effectNames[entry.Effect]
	}
	color := strings.ToUpper(string(entry.Color[:1])) + string(entry.Color[1:])
	switch entry.Kind {
	case KindOrgan:
		return color + " Organ"
	case KindPathogen:
		return color + " Virus"
	default:
		return color + " Medicine"
	}
}
