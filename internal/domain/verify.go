package domain

import "strings"

// Validate checks a submitted value against the question type's
// requirements. It only judges shape, not correctness.
func (q Question) Validate(values []string) error {
	switch q.Type {
	case TypeRadio:
		if len(values) != 1 || values[0] == "" {
			return ValidationError{QuestionID: q.ID, Reason: "exactly one option must be selected"}
		}
		if !q.hasOption(values[0]) {
			return ValidationError{QuestionID: q.ID, Reason: "unknown option"}
		}
	case TypeCheckbox:
		if len(values) == 0 {
			return ValidationError{QuestionID: q.ID, Reason: "at least one option must be selected"}
		}
		for _, v := range values {
			if !q.hasOption(v) {
				return ValidationError{QuestionID: q.ID, Reason: "unknown option"}
			}
		}
	case TypeText:
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			return ValidationError{QuestionID: q.ID, Reason: "an answer is required"}
		}
	default:
		return ValidationError{QuestionID: q.ID, Reason: "unsupported question type"}
	}
	return nil
}

// Score verifies a submitted value and returns a correctness score in
// [0,1]. Single-answer questions score 0 or 1. Multi-choice questions with
// partial credit score the fraction of expected correct options that were
// selected; without partial credit the selected set must match the correct
// set exactly.
func (q Question) Score(values []string) float64 {
	switch q.Type {
	case TypeRadio:
		if len(values) != 1 {
			return 0
		}
		for _, opt := range q.Options {
			if opt.ID == values[0] && opt.Correct {
				return 1
			}
		}
		return 0
	case TypeCheckbox:
		return q.scoreCheckbox(values)
	case TypeText:
		if len(values) != 1 {
			return 0
		}
		want := strings.TrimSpace(strings.ToLower(values[0]))
		for _, opt := range q.Options {
			if opt.Correct && strings.TrimSpace(strings.ToLower(opt.Value)) == want {
				return 1
			}
		}
		return 0
	}
	return 0
}

func (q Question) scoreCheckbox(values []string) float64 {
	correct := make(map[string]bool)
	for _, opt := range q.Options {
		if opt.Correct {
			correct[opt.ID] = true
		}
	}
	if len(correct) == 0 {
		return 0
	}

	selected := make(map[string]bool, len(values))
	for _, v := range values {
		selected[v] = true
	}

	hits := 0
	wrong := 0
	for id := range selected {
		if correct[id] {
			hits++
		} else {
			wrong++
		}
	}

	if !q.PartialCredit {
		if wrong == 0 && hits == len(correct) {
			return 1
		}
		return 0
	}
	return float64(hits) / float64(len(correct))
}

func (q Question) hasOption(id string) bool {
	for _, opt := range q.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}
