package targeting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elvirus/virus-server-go/internal/game/cards"
)

// TargetType represents the shape of target a card needs.
type TargetType string

const (
	// TargetTypeNone is used by organs and draw-style treatments
	TargetTypeNone TargetType = "NONE"
	// TargetTypeOrgan targets one organ slot
	TargetTypeOrgan TargetType = "ORGAN"
	// TargetTypePlayer targets a player
	TargetTypePlayer TargetType = "PLAYER"
	// TargetTypeOrganPair targets one of the actor's organs and one organ of another player
	TargetTypeOrganPair TargetType = "ORGAN_PAIR"
)

// Owner restricts whose organs or seat may be targeted.
type Owner int

const (
	// OwnerAny allows the acting player and everyone else.
	OwnerAny Owner = iota
	// OwnerOther excludes the acting player.
	OwnerOther
)

// TargetRequirement defines what targets a card requires.
type TargetRequirement struct {
	Type        TargetType
	Owner       Owner
	Description string
}

// OrganRef points at an organ slot. PlayerID may be left empty and is resolved from the board.
type OrganRef struct {
	PlayerID string `json:"player_id,omitempty"`
	OrganID  string `json:"organ_id"`
}

// Target is a player's target selection for a card play.
type Target struct {
	PlayerID string     `json:"player_id,omitempty"`
	Organs   []OrganRef `json:"organs,omitempty"`
}

// IsZero reports whether no target was selected.
func (t Target) IsZero() bool {
	return t.PlayerID == "" && len(t.Organs) == 0
}

// String renders the target id recorded in audit entries and error payloads.
func (t Target) String() string {
	if len(t.Organs) > 0 {
		ids := make([]string, len(t.Organs))
		for i, ref := range t.Organs {
			ids[i] = ref.OrganID
		}
		return strings.Join(ids, ",")
	}
	return t.PlayerID
}

// Organ returns the single organ reference of an organ target.
func (t Target) Organ() OrganRef {
	if len(t.Organs) == 0 {
		return OrganRef{}
	}
	return t.Organs[0]
}

// Pair returns the two organ references of an organ-pair target.
func (t Target) Pair() (own, other OrganRef) {
	if len(t.Organs) < 2 {
		return OrganRef{}, OrganRef{}
	}
	return t.Organs[0], t.Organs[1]
}

// ErrUnsupportedEffect is returned for treatment effects this server does not play.
var ErrUnsupportedEffect = errors.New("effect not supported")

// RequirementFor returns the target requirement for playing card.
func RequirementFor(card cards.Card) (TargetRequirement, error) {
	switch card.Kind {
	case cards.KindOrgan:
		return TargetRequirement{Type: TargetTypeNone, Description: "no target"}, nil
	case cards.KindPathogen:
		return TargetRequirement{Type: TargetTypeOrgan, Owner: OwnerOther, Description: "an organ of another player"}, nil
	case cards.KindRemedy:
		return TargetRequirement{Type: TargetTypeOrgan, Owner: OwnerAny, Description: "any organ"}, nil
	case cards.KindTreatment:
		switch card.Effect {
		case cards.EffectOrganTheft:
			return TargetRequirement{Type: TargetTypeOrgan, Owner: OwnerOther, Description: "an organ of another player"}, nil
		case cards.EffectOrganExchange, cards.EffectMedicalError:
			return TargetRequirement{Type: TargetTypePlayer, Owner: OwnerOther, Description: "another player"}, nil
		case cards.EffectDiscardHand:
			return TargetRequirement{Type: TargetTypePlayer, Owner: OwnerAny, Description: "any player"}, nil
		case cards.EffectDrawThree:
			return TargetRequirement{Type: TargetTypeNone, Description: "no target"}, nil
		case cards.EffectTransplant, cards.EffectSpreading:
			return TargetRequirement{Type: TargetTypeOrganPair, Owner: OwnerOther, Description: "one of your organs and an organ of another player"}, nil
		default:
			return TargetRequirement{}, fmt.Errorf("%s: %w", card.Effect, ErrUnsupportedEffect)
		}
	default:
		return TargetRequirement{}, fmt.Errorf("unknown card kind %q", card.Kind)
	}
}

// Validate checks that the selection has the shape the requirement asks for.
func (t Target) Validate(req TargetRequirement) error {
	switch req.Type {
	case TargetTypeNone:
		if !t.IsZero() {
			return fmt.Errorf("card takes no target")
		}
	case TargetTypeOrgan:
		if t.PlayerID != "" || len(t.Organs) != 1 || t.Organs[0].OrganID == "" {
			return fmt.Errorf("need exactly one organ target")
		}
	case TargetTypePlayer:
		if t.PlayerID == "" || len(t.Organs) != 0 {
			return fmt.Errorf("need exactly one player target")
		}
	case TargetTypeOrganPair:
		if t.PlayerID != "" || len(t.Organs) != 2 || t.Organs[0].OrganID == "" || t.Organs[1].OrganID == "" {
			return fmt.Errorf("need exactly two organ targets")
		}
		if t.Organs[0].OrganID == t.Organs[1].OrganID {
			return fmt.Errorf("duplicate target: %s", t.Organs[0].OrganID)
		}
	default:
		return fmt.Errorf("unknown target type %s", req.Type)
	}
	return nil
}
