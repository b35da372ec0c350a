package rules

import (
	"math/rand/v2"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
)

// Env carries the non-deterministic inputs of a state transition.
type Env struct {
	Now  time.Time
	Rand *rand.Rand
}

func (e Env) normalize() Env {
	e.Now = e.Now.UTC()
	return e
}

// Outcome reports the events produced by a committed transition.
type Outcome struct {
	Events      []Event
	TurnChanged bool
	Finished    bool
}

func (o *Outcome) add(events ...Event) {
	for _, evt := range events {
		switch evt.Type {
		case EventTurnChanged:
			o.TurnChanged = true
		case EventMatchCompleted, EventMatchAbandoned:
			o.Finished = true
		}
	}
	o.Events = append(o.Events, events...)
}

// Apply validates and resolves a card play. On error the match is left untouched. On success the
// played card is discarded unless it became part of an organ slot, the win condition is
// evaluated, the actor draws a replacement card for non-drawing plays and the turn advances.
func Apply(m *state.Match, a Action, env Env) (*Outcome, error) {
	p, err := check(m, a)
	if err != nil {
		return nil, err
	}
	env = env.normalize()

	p.actor.Hand = cards.Remove(p.actor.Hand, p.handIndex)
	res := p.resolve(m, env)
	if !res.consumed {
		m.Discard(p.card)
	}

	targetID := p.target.String()
	if p.otherPlayer != nil && p.card.Effect == cards.EffectOrganExchange {
		targetID = p.otherPlayer.UserID
	}
	m.LastAction = &state.LastAction{
		PlayerID:  p.actor.UserID,
		Action:    res.action,
		CardID:    p.card.ID,
		TargetID:  targetID,
		Timestamp: env.Now,
	}
	m.UpdatedAt = env.Now

	out := &Outcome{}
	played := p.event(m, EventCardPlayed, targetID, env)
	played.Metadata["action"] = string(res.action)
	played.Metadata["kind"] = string(p.card.Kind)
	out.add(played)
	out.add(res.events...)

	if w := EvaluateWin(m); w != nil {
		out.add(complete(m, w, env.Now)...)
		return out, nil
	}
	if !res.drew {
		out.add(drawEvents(m, p.actor, 1, env)...)
	}
	out.add(AdvanceTurn(m, env.Now)...)
	return out, nil
}
