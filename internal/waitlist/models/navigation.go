package models

// Direction records which way the last transition went. Renderers use it to
// pick a slide animation; validation never looks at it.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// NavigationState is the position of a form session.
//
// Invariants:
//   - CurrentStepIndex is in [0, step count-1]
//   - CurrentStepIndex only changes through a validated transition, a retreat,
//     or a successful submission
type NavigationState struct {
	CurrentStepIndex int       `json:"current_step_index"`
	Direction        Direction `json:"direction"`
	LastError        string    `json:"last_error"`
}

// InitialNavigation is the state of a fresh session.
func InitialNavigation() NavigationState {
	return NavigationState{CurrentStepIndex: 0, Direction: DirectionForward}
}
