package cards

import "fmt"

// Kind identifies what a card does when played.
type Kind string

const (
	KindOrgan     Kind = "organ"
	KindPathogen  Kind = "pathogen"
	KindRemedy    Kind = "remedy"
	KindTreatment Kind = "treatment"
)

// Valid reports whether k is one of the known card kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOrgan, KindPathogen, KindRemedy, KindTreatment:
		return true
	default:
		return false
	}
}

// Color is the body-part color of organs and the colors pathogens and remedies act on.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	// ColorMulti is the wildcard color; it matches every other color.
	ColorMulti Color = "multi"
	// ColorNone is used by treatment cards.
	ColorNone Color = "none"
)

// BaseColors lists the four organ colors in catalog order.
var BaseColors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// Valid reports whether c is a known color.
func (c Color) Valid() bool {
	switch c {
	case ColorRed, ColorBlue, ColorGreen, ColorYellow, ColorMulti, ColorNone:
		return true
	default:
		return false
	}
}

// Matches reports whether a card of color c may act on an organ of color other.
func (c Color) Matches(other Color) bool {
	if c == ColorNone || other == ColorNone {
		return false
	}
	return c == other || c == ColorMulti || other == ColorMulti
}

// TreatmentEffect tags the special effect of a treatment card.
type TreatmentEffect string

const (
	EffectNone          TreatmentEffect = ""
	EffectOrganTheft    TreatmentEffect = "organ_theft"
	EffectOrganExchange TreatmentEffect = "organ_exchange"
	EffectDiscardHand   TreatmentEffect = "discard_hand"
	EffectDrawThree     TreatmentEffect = "draw_three"
	EffectTransplant    TreatmentEffect = "transplant"
	EffectContagion     TreatmentEffect = "contagion"
	EffectLatexGlove    TreatmentEffect = "latex_glove"
	EffectSpreading     TreatmentEffect = "spreading"
	EffectMedicalError  TreatmentEffect = "medical_error"
)

// Valid reports whether e is a known treatment effect (EffectNone excluded).
func (e TreatmentEffect) Valid() bool {
	switch e {
	case EffectOrganTheft, EffectOrganExchange, EffectDiscardHand, EffectDrawThree,
		EffectTransplant, EffectContagion, EffectLatexGlove, EffectSpreading, EffectMedicalError:
		return true
	default:
		return false
	}
}

// Card is an immutable card instance. Cards move between containers, they are never duplicated.
type Card struct {
	ID     string          `json:"id"`
	Kind   Kind            `json:"kind"`
	Color  Color           `json:"color"`
	Effect TreatmentEffect `json:"effect,omitempty"`
	Name   string          `json:"name"`
}

func (c Card) String() string {
	if c.Kind == KindTreatment {
		return fmt.Sprintf("%s(%s)", c.ID, c.Effect)
	}
	return fmt.Sprintf("%s(%s %s)", c.ID, c.Color, c.Kind)
}

// IndexOf returns the position of the card with the given id, or -1.
func IndexOf(cards []Card, cardID string) int {
	for i, c := range cards {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// Remove returns cards without the element at index i. The backing array is reused.
func Remove(cards []Card, i int) []Card {
	return append(cards[:i], cards[i+1:]...)
}
