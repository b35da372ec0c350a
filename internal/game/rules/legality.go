package rules

import (
	"errors"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/elvirus/virus-server-go/internal/game/targeting"
)

// Action is a card play requested by a player.
type Action struct {
	PlayerID string           `json:"player_id"`
	CardID   string           `json:"card_id"`
	Kind     cards.Kind       `json:"kind,omitempty"` // optional; must match the card when set
	Target   targeting.Target `json:"target"`
}

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal   bool
	Kind    ErrorKind
	Reason  string
	Details map[string]string
}

// plan is a fully validated action. Applying it cannot fail.
type plan struct {
	actor     *state.Player
	card      cards.Card
	handIndex int
	target    targeting.Target

	// single organ targets
	owner *state.Player
	slot  *state.OrganSlot

	// player targets
	victim *state.Player

	// exchange, transplant and spreading
	otherPlayer *state.Player
	ownIndex    int
	otherIndex  int
}

// Check reports whether the action is legal without touching the match.
func Check(m *state.Match, a Action) LegalityResult {
	_, err := check(m, a)
	if err == nil {
		return LegalityResult{Legal: true}
	}
	var ae *ActionError
	if !errors.As(err, &ae) {
		return LegalityResult{Legal: false, Reason: err.Error()}
	}
	return LegalityResult{Legal: false, Kind: ae.Kind, Reason: ae.Reason, Details: ae.Details}
}

// Validate returns the typed error Apply would fail with, or nil.
func Validate(m *state.Match, a Action) error {
	_, err := check(m, a)
	return err
}

// check runs the preconditions in order: match status, turn, hand, target.
func check(m *state.Match, a Action) (*plan, error) {
	targetID := a.Target.String()
	if m.Status != state.StatusActive {
		return nil, newError(KindMatchNotActive, "match is %s", m.Status).withCard(a.CardID, targetID)
	}
	actor := m.CurrentPlayer()
	if actor == nil || actor.UserID != a.PlayerID {
		err := newError(KindNotYourTurn, "it is not %s's turn", a.PlayerID).withCard(a.CardID, targetID)
		if actor != nil {
			err.with("current_player_id", actor.UserID)
		}
		return nil, err
	}
	idx := cards.IndexOf(actor.Hand, a.CardID)
	if idx < 0 {
		return nil, newError(KindCardNotInHand, "card %s is not in your hand", a.CardID).withCard(a.CardID, targetID)
	}

	p := &plan{actor: actor, card: actor.Hand[idx], handIndex: idx}
	if err := p.checkTarget(m, a); err != nil {
		return nil, err.withCard(a.CardID, targetID)
	}
	return p, nil
}

func illegal(reason string, args ...interface{}) *ActionError {
	return newError(KindIllegalTarget, reason, args...)
}

func (p *plan) checkTarget(m *state.Match, a Action) *ActionError {
	if a.Kind != "" && a.Kind != p.card.Kind {
		return illegal("card %s is a %s, not a %s", p.card.ID, p.card.Kind, a.Kind)
	}
	req, err := targeting.RequirementFor(p.card)
	if err != nil {
		return illegal("%v", err).with("effect", string(p.card.Effect))
	}
	resolved, err := targeting.NewTargetValidator(m).Resolve(p.actor.UserID, req, a.Target)
	if err != nil {
		return illegal("%v", err).with("requires", req.Description)
	}
	p.target = resolved

	switch p.card.Kind {
	case cards.KindOrgan:
		return p.checkOrgan()
	case cards.KindPathogen:
		p.bindOrgan(m)
		return p.checkPathogen()
	case cards.KindRemedy:
		p.bindOrgan(m)
		return p.checkRemedy()
	}

	switch p.card.Effect {
	case cards.EffectOrganTheft:
		p.bindOrgan(m)
		return p.checkTheft()
	case cards.EffectOrganExchange:
		p.victim, _ = m.Player(resolved.PlayerID)
		return p.checkExchange()
	case cards.EffectTransplant:
		p.bindPair(m)
		return p.checkTransplant()
	case cards.EffectSpreading:
		p.bindPair(m)
		return p.checkSpreading()
	case cards.EffectDiscardHand:
		p.victim, _ = m.Player(resolved.PlayerID)
		return p.checkDiscardHand()
	case cards.EffectMedicalError:
		p.victim, _ = m.Player(resolved.PlayerID)
		return nil
	case cards.EffectDrawThree:
		return nil
	}
	return illegal("effect %s not supported", p.card.Effect)
}

func (p *plan) bindOrgan(m *state.Match) {
	ref := p.target.Organ()
	p.owner, _ = m.Player(ref.PlayerID)
	p.slot, _ = p.owner.Organ(ref.OrganID)
}

func (p *plan) bindPair(m *state.Match) {
	own, other := p.target.Pair()
	p.otherPlayer, _ = m.Player(other.PlayerID)
	p.ownIndex = p.actor.OrganIndex(own.OrganID)
	p.otherIndex = p.otherPlayer.OrganIndex(other.OrganID)
}

func (p *plan) checkOrgan() *ActionError {
	if p.actor.HasColor(p.card.Color, "") {
		return illegal("you already have a %s organ", p.card.Color)
	}
	return nil
}

func (p *plan) checkPathogen() *ActionError {
	if !p.card.Color.Matches(p.slot.Color()) {
		return illegal("%s pathogen cannot infect a %s organ", p.card.Color, p.slot.Color())
	}
	if p.slot.Status == state.OrganImmunized {
		return illegal("organ %s is immunized", p.slot.ID())
	}
	return nil
}

func (p *plan) checkRemedy() *ActionError {
	if !p.card.Color.Matches(p.slot.Color()) {
		return illegal("%s remedy cannot treat a %s organ", p.card.Color, p.slot.Color())
	}
	if p.slot.Status == state.OrganImmunized {
		return illegal("organ %s is already immunized", p.slot.ID())
	}
	return nil
}

func (p *plan) checkTheft() *ActionError {
	if !p.slot.Status.Intact() {
		return illegal("cannot steal infected organ %s", p.slot.ID())
	}
	if p.actor.HasColor(p.slot.Color(), "") {
		return illegal("you already have a %s organ", p.slot.Color())
	}
	return nil
}

// swappable reports whether a and b may change owners without either body holding two organs
// of one color afterwards.
func swappable(actor, other *state.Player, a, b *state.OrganSlot) bool {
	if !a.Status.Intact() || !b.Status.Intact() {
		return false
	}
	return !actor.HasColor(b.Color(), a.ID()) && !other.HasColor(a.Color(), b.ID())
}

func (p *plan) checkExchange() *ActionError {
	for i, own := range p.actor.Organs {
		for j, theirs := range p.victim.Organs {
			if swappable(p.actor, p.victim, own, theirs) {
				p.otherPlayer = p.victim
				p.ownIndex, p.otherIndex = i, j
				return nil
			}
		}
	}
	return illegal("no organs can be exchanged with %s", p.victim.UserID)
}

func (p *plan) checkTransplant() *ActionError {
	own, theirs := p.actor.Organs[p.ownIndex], p.otherPlayer.Organs[p.otherIndex]
	if !swappable(p.actor, p.otherPlayer, own, theirs) {
		return illegal("organs %s and %s cannot be transplanted", own.ID(), theirs.ID())
	}
	return nil
}

func (p *plan) checkSpreading() *ActionError {
	source, dest := p.actor.Organs[p.ownIndex], p.otherPlayer.Organs[p.otherIndex]
	if source.Status != state.OrganInfected {
		return illegal("organ %s is not infected", source.ID())
	}
	if dest.Status != state.OrganHealthy {
		return illegal("organ %s is not healthy", dest.ID())
	}
	pathogen := source.Attachments[0]
	if !pathogen.Color.Matches(dest.Color()) {
		return illegal("%s pathogen cannot spread to a %s organ", pathogen.Color, dest.Color())
	}
	return nil
}

func (p *plan) checkDiscardHand() *ActionError {
	count := len(p.victim.Hand)
	if p.victim == p.actor {
		count--
	}
	if count == 0 {
		return illegal("%s has no cards to discard", p.victim.UserID)
	}
	return nil
}

// LegalActions enumerates every legal play for playerID. Exchanges are listed once per target
// player since the organ pair is chosen by the engine.
func LegalActions(m *state.Match, playerID string) []Action {
	actor := m.CurrentPlayer()
	if m.Status != state.StatusActive || actor == nil || actor.UserID != playerID {
		return nil
	}

	var organs []targeting.OrganRef
	for _, p := range m.Players {
		for _, organ := range p.Organs {
			organs = append(organs, targeting.OrganRef{PlayerID: p.UserID, OrganID: organ.ID()})
		}
	}

	var legal []Action
	for _, c := range actor.Hand {
		req, err := targeting.RequirementFor(c)
		if err != nil {
			continue
		}
		var candidates []targeting.Target
		switch req.Type {
		case targeting.TargetTypeNone:
			candidates = []targeting.Target{{}}
		case targeting.TargetTypeOrgan:
			for _, ref := range organs {
				candidates = append(candidates, targeting.Target{Organs: []targeting.OrganRef{ref}})
			}
		case targeting.TargetTypePlayer:
			for _, p := range m.Players {
				candidates = append(candidates, targeting.Target{PlayerID: p.UserID})
			}
		case targeting.TargetTypeOrganPair:
			for _, own := range actor.Organs {
				for _, ref := range organs {
					if ref.PlayerID == actor.UserID {
						continue
					}
					candidates = append(candidates, targeting.Target{Organs: []targeting.OrganRef{
						{PlayerID: actor.UserID, OrganID: own.ID()}, ref,
					}})
				}
			}
		}
		for _, target := range candidates {
			a := Action{PlayerID: playerID, CardID: c.ID, Kind: c.Kind, Target: target}
			if Validate(m, a) == nil {
				legal = append(legal, a)
			}
		}
	}
	return legal
}
