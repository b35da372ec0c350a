package targeting

import (
	"fmt"
)

// BoardAccessor provides access to the table state needed for target validation.
type BoardAccessor interface {
	// HasPlayer reports whether userID holds a seat in the match
	HasPlayer(userID string) bool
	// OrganOwner returns the player currently holding the organ slot
	OrganOwner(organID string) (string, bool)
}

// TargetValidator resolves and validates target selections against a board.
type TargetValidator struct {
	board BoardAccessor
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(board BoardAccessor) *TargetValidator {
	return &TargetValidator{
		board: board,
	}
}

// Resolve validates the selection made by actorID and returns it with every organ owner filled
// in. Only existence and ownership are checked here; card-specific color and status rules belong
// to the rules engine.
func (tv *TargetValidator) Resolve(actorID string, req TargetRequirement, target Target) (Target, error) {
	if tv == nil || tv.board == nil {
		return Target{}, fmt.Errorf("target validator not initialized")
	}
	if err := target.Validate(req); err != nil {
		return Target{}, err
	}

	switch req.Type {
	case TargetTypePlayer:
		if !tv.board.HasPlayer(target.PlayerID) {
			return Target{}, fmt.Errorf("target player %s not in match", target.PlayerID)
		}
		if req.Owner == OwnerOther && target.PlayerID == actorID {
			return Target{}, fmt.Errorf("cannot target yourself")
		}
		return Target{PlayerID: target.PlayerID}, nil

	case TargetTypeOrgan:
		ref, err := tv.resolveOrgan(target.Organs[0])
		if err != nil {
			return Target{}, err
		}
		if req.Owner == OwnerOther && ref.PlayerID == actorID {
			return Target{}, fmt.Errorf("cannot target your own organ")
		}
		return Target{Organs: []OrganRef{ref}}, nil

	case TargetTypeOrganPair:
		own, err := tv.resolveOrgan(target.Organs[0])
		if err != nil {
			return Target{}, err
		}
		other, err := tv.resolveOrgan(target.Organs[1])
		if err != nil {
			return Target{}, err
		}
		if own.PlayerID != actorID {
			return Target{}, fmt.Errorf("first organ %s is not yours", own.OrganID)
		}
		if other.PlayerID == actorID {
			return Target{}, fmt.Errorf("second organ %s must belong to another player", other.OrganID)
		}
		return Target{Organs: []OrganRef{own, other}}, nil
	}

	return Target{}, nil
}

func (tv *TargetValidator) resolveOrgan(ref OrganRef) (OrganRef, error) {
	owner, ok := tv.board.OrganOwner(ref.OrganID)
	if !ok {
		return OrganRef{}, fmt.Errorf("target organ %s not found", ref.OrganID)
	}
	if ref.PlayerID != "" && ref.PlayerID != owner {
		return OrganRef{}, fmt.Errorf("organ %s does not belong to %s", ref.OrganID, ref.PlayerID)
	}
	return OrganRef{PlayerID: owner, OrganID: ref.OrganID}, nil
}
