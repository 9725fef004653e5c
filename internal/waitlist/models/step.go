package models

// StepKind selects the input control and validation family of a step.
type StepKind string

const (
	StepKindFreeText        StepKind = "free_text"
	StepKindEmail           StepKind = "email"
	StepKindPhoneWithRegion StepKind = "phone_with_region"
	StepKindMultilineText   StepKind = "multiline_text"
	StepKindSingleChoice    StepKind = "single_choice"
	StepKindAcknowledgement StepKind = "acknowledgement"
	StepKindTerminal        StepKind = "terminal"
)

// Validator checks the slice of the record a step edits.
type Validator func(AnswerRecord) ValidationResult

// Choice is one option of a single-choice step.
type Choice struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// StepDefinition describes one question screen. Definitions are immutable once
// a registry is built.
type StepDefinition struct {
	Index       int        `json:"index"`
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Placeholder string     `json:"placeholder,omitempty"`
	Kind        StepKind   `json:"kind"`
	Fields      []FieldKey `json:"fields,omitempty"`
	Choices     []Choice   `json:"choices,omitempty"`
	Validate    Validator  `json:"-"`
}

// IsTerminal reports whether this is the success screen.
func (d StepDefinition) IsTerminal() bool {
	return d.Kind == StepKindTerminal
}

// Edits reports whether the step owns the given field.
func (d StepDefinition) Edits(key FieldKey) bool {
	for _, f := range d.Fields {
		if f == key {
			return true
		}
	}
	return false
}

// ChoiceKeys returns the keys of the step's choices in display order.
func (d StepDefinition) ChoiceKeys() []string {
	keys := make([]string, 0, len(d.Choices))
	for _, c := range d.Choices {
		keys = append(keys, c.Key)
	}
	return keys
}
