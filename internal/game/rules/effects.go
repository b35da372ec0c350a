package rules

import (
	"strconv"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
)

// effectResult describes what a resolved card did.
type effectResult struct {
	action   state.ActionType
	consumed bool // the played card now lives in an organ slot
	drew     bool // the effect already refilled the actor's hand
	events   []Event
}

// resolve mutates the match. The played card has already left the actor's hand.
func (p *plan) resolve(m *state.Match, env Env) effectResult {
	switch p.card.Kind {
	case cards.KindOrgan:
		return p.resolveOrgan(m, env)
	case cards.KindPathogen:
		return p.resolvePathogen(m, env)
	case cards.KindRemedy:
		return p.resolveRemedy(m, env)
	}

	switch p.card.Effect {
	case cards.EffectOrganTheft:
		return p.resolveTheft(m, env)
	case cards.EffectOrganExchange:
		res := p.resolveSwap(m, env)
		res.action = state.ActionOrganExchange
		return res
	case cards.EffectTransplant:
		res := p.resolveSwap(m, env)
		res.action = state.ActionTransplant
		return res
	case cards.EffectSpreading:
		return p.resolveSpreading(m, env)
	case cards.EffectDiscardHand:
		return p.resolveDiscardHand(m, env)
	case cards.EffectDrawThree:
		return p.resolveDrawThree(m, env)
	case cards.EffectMedicalError:
		return p.resolveMedicalError(m, env)
	}
	return effectResult{}
}

func (p *plan) event(m *state.Match, t EventType, targetID string, env Env) Event {
	return NewEvent(t, m.ID, p.actor.UserID, targetID, p.card.ID, env.Now)
}

func (p *plan) resolveOrgan(m *state.Match, env Env) effectResult {
	p.actor.Organs = append(p.actor.Organs, &state.OrganSlot{Card: p.card, Status: state.OrganHealthy})
	return effectResult{
		action:   state.ActionPlayOrgan,
		consumed: true,
		events:   []Event{p.event(m, EventOrganPlaced, p.card.ID, env)},
	}
}

func (p *plan) resolvePathogen(m *state.Match, env Env) effectResult {
	res := effectResult{action: state.ActionPlayPathogen}
	slot := p.slot
	switch slot.Status {
	case state.OrganHealthy:
		slot.Status = state.OrganInfected
		slot.Attachments = append(slot.Attachments, p.card)
		res.consumed = true
		res.events = append(res.events, p.event(m, EventOrganInfected, slot.ID(), env))
	case state.OrganVaccinated:
		// The pathogen and the vaccine cancel out.
		m.Discard(slot.Attachments...)
		slot.Attachments = nil
		slot.Status = state.OrganHealthy
		res.events = append(res.events, p.event(m, EventVaccineDestroyed, slot.ID(), env))
	case state.OrganInfected:
		idx := p.owner.OrganIndex(slot.ID())
		p.owner.Organs = append(p.owner.Organs[:idx], p.owner.Organs[idx+1:]...)
		m.Discard(slot.Attachments...)
		m.Discard(slot.Card)
		evt := p.event(m, EventOrganDestroyed, slot.ID(), env)
		evt.Metadata["owner_id"] = p.owner.UserID
		res.events = append(res.events, evt)
	}
	return res
}

func (p *plan) resolveRemedy(m *state.Match, env Env) effectResult {
	res := effectResult{action: state.ActionPlayRemedy}
	slot := p.slot
	switch slot.Status {
	case state.OrganHealthy:
		slot.Status = state.OrganVaccinated
		slot.Attachments = append(slot.Attachments, p.card)
		res.consumed = true
		res.events = append(res.events, p.event(m, EventOrganVaccinated, slot.ID(), env))
	case state.OrganVaccinated:
		slot.Status = state.OrganImmunized
		slot.Attachments = append(slot.Attachments, p.card)
		res.consumed = true
		res.events = append(res.events, p.event(m, EventOrganImmunized, slot.ID(), env))
	case state.OrganInfected:
		m.Discard(slot.Attachments...)
		slot.Attachments = nil
		slot.Status = state.OrganHealthy
		res.events = append(res.events, p.event(m, EventOrganCured, slot.ID(), env))
	}
	return res
}

func (p *plan) resolveTheft(m *state.Match, env Env) effectResult {
	idx := p.owner.OrganIndex(p.slot.ID())
	p.owner.Organs = append(p.owner.Organs[:idx], p.owner.Organs[idx+1:]...)
	p.actor.Organs = append(p.actor.Organs, p.slot)

	evt := p.event(m, EventOrganStolen, p.slot.ID(), env)
	evt.Metadata["victim_id"] = p.owner.UserID
	return effectResult{action: state.ActionOrganTheft, events: []Event{evt}}
}

// resolveSwap exchanges two organ slots in place, so each keeps its position on the new body.
func (p *plan) resolveSwap(m *state.Match, env Env) effectResult {
	own := p.actor.Organs[p.ownIndex]
	theirs := p.otherPlayer.Organs[p.otherIndex]
	p.actor.Organs[p.ownIndex] = theirs
	p.otherPlayer.Organs[p.otherIndex] = own

	evt := p.event(m, EventOrgansExchanged, p.otherPlayer.UserID, env)
	evt.Metadata["given_organ_id"] = own.ID()
	evt.Metadata["received_organ_id"] = theirs.ID()
	return effectResult{events: []Event{evt}}
}

func (p *plan) resolveSpreading(m *state.Match, env Env) effectResult {
	source := p.actor.Organs[p.ownIndex]
	dest := p.otherPlayer.Organs[p.otherIndex]

	dest.Attachments = append(dest.Attachments, source.Attachments...)
	dest.Status = state.OrganInfected
	source.Attachments = nil
	source.Status = state.OrganHealthy

	evt := p.event(m, EventInfectionSpread, dest.ID(), env)
	evt.Metadata["source_organ_id"] = source.ID()
	evt.Metadata["victim_id"] = p.otherPlayer.UserID
	return effectResult{action: state.ActionSpreading, events: []Event{evt}}
}

func (p *plan) resolveDiscardHand(m *state.Match, env Env) effectResult {
	victim := p.victim
	lost := len(victim.Hand)
	m.Discard(victim.Hand...)
	victim.Hand = []cards.Card{}

	evt := NewEventWithAmount(EventHandDiscarded, m.ID, p.actor.UserID, victim.UserID, p.card.ID, lost, env.Now)
	res := effectResult{action: state.ActionDiscardHand, drew: true, events: []Event{evt}}
	res.events = append(res.events, drawEvents(m, victim, lost, env)...)
	return res
}

func (p *plan) resolveDrawThree(m *state.Match, env Env) effectResult {
	return effectResult{
		action: state.ActionDrawThree,
		drew:   true,
		events: drawEvents(m, p.actor, 3, env),
	}
}

func (p *plan) resolveMedicalError(m *state.Match, env Env) effectResult {
	p.actor.Hand, p.victim.Hand = p.victim.Hand, p.actor.Hand

	evt := p.event(m, EventHandsSwapped, p.victim.UserID, env)
	evt.Metadata["received_cards"] = strconv.Itoa(len(p.actor.Hand))
	return effectResult{action: state.ActionMedicalError, events: []Event{evt}}
}

// drawEvents draws n cards for player and reports draws, reshuffles and exhaustion.
func drawEvents(m *state.Match, player *state.Player, n int, env Env) []Event {
	result := m.DrawInto(player, n, env.Rand)

	var events []Event
	for i := 0; i < result.Reshuffles; i++ {
		events = append(events, NewEventWithAmount(EventDeckReshuffled, m.ID, player.UserID, "", "", len(m.Deck), env.Now))
	}
	if len(result.Drawn) > 0 {
		events = append(events, NewEventWithAmount(EventCardsDrawn, m.ID, player.UserID, "", "", len(result.Drawn), env.Now))
	}
	if result.Exhausted() {
		evt := NewEventWithAmount(EventDeckExhausted, m.ID, player.UserID, "", "", result.Requested-len(result.Drawn), env.Now)
		evt.Metadata["error_kind"] = string(KindDeckExhaustedUnrecoverable)
		events = append(events, evt)
	}
	return events
}
