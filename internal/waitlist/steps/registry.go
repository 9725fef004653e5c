package steps

import (
	"fmt"

	"waitlist/internal/waitlist/models"
	dErrors "waitlist/pkg/domain-errors"
)

// Registry is the fixed, ordered sequence of question screens.
//
// Invariants:
//   - at least two steps (one question and the success screen)
//   - indices are contiguous from 0
//   - exactly one terminal step, and it is last
//   - every non-terminal step has a validator
type Registry struct {
	steps []models.StepDefinition
}

// New builds a registry, assigning indices in the given order.
func New(defs ...models.StepDefinition) (*Registry, error) {
	if len(defs) < 2 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry needs at least one question and a terminal step")
	}
	steps := make([]models.StepDefinition, len(defs))
	for i, d := range defs {
		d.Index = i
		d.Fields = append([]models.FieldKey(nil), d.Fields...)
		d.Choices = append([]models.Choice(nil), d.Choices...)
		last := i == len(defs)-1
		switch {
		case d.IsTerminal() && !last:
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("terminal step %q must be last", d.ID))
		case !d.IsTerminal() && last:
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "last step must be terminal")
		case !d.IsTerminal() && d.Validate == nil:
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("step %q has no validator", d.ID))
		}
		steps[i] = d
	}
	return &Registry{steps: steps}, nil
}

// MustNew is New for static definitions known to be valid.
func MustNew(defs ...models.StepDefinition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.steps)
}

// At returns the step at index i. It panics on an out-of-range index, which is
// a programming error since the state machine bounds its index.
func (r *Registry) At(i int) models.StepDefinition {
	return r.steps[i]
}

// Steps returns a copy of all definitions in order.
func (r *Registry) Steps() []models.StepDefinition {
	out := make([]models.StepDefinition, len(r.steps))
	copy(out, r.steps)
	return out
}

// Terminal is the index of the success screen.
func (r *Registry) Terminal() int {
	return len(r.steps) - 1
}

// PreTerminal is the index of the step from which submission is allowed.
func (r *Registry) PreTerminal() int {
	return len(r.steps) - 2
}

// ByField finds the step that edits key.
func (r *Registry) ByField(key models.FieldKey) (models.StepDefinition, bool) {
	for _, s := range r.steps {
		if s.Edits(key) {
			return s, true
		}
	}
	return models.StepDefinition{}, false
}

// Validate runs the validator of the step at index i. The terminal step is
// always valid.
func (r *Registry) Validate(i int, answers models.AnswerRecord) models.ValidationResult {
	step := r.At(i)
	if step.Validate == nil {
		return models.Pass()
	}
	return step.Validate(answers)
}

// Progress is the completion percentage shown above step i: 100 on the last
// step, otherwise proportional to the index.
func (r *Registry) Progress(i int) int {
	last := r.Terminal()
	if i >= last {
		return 100
	}
	if i <= 0 {
		return 0
	}
	return i * 100 / last
}
