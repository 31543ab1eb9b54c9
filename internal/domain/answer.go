package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// AnswerKind tags the variant held by an Answer.
type AnswerKind int

const (
	// AnswerUnanswered marks a question the user never answered.
	AnswerUnanswered AnswerKind = iota
	// AnswerOption is a 0-based option index for multiple choice.
	AnswerOption
	// AnswerBool is a true/false selection.
	AnswerBool
)

// Answer is a tagged variant: an option index, a boolean, or unanswered.
// The zero value is unanswered.
type Answer struct {
	Kind   AnswerKind
	Option int
	Bool   bool
}

func OptionAnswer(index int) Answer { return Answer{Kind: AnswerOption, Option: index} }
func BoolAnswer(value bool) Answer  { return Answer{Kind: AnswerBool, Bool: value} }
func Unanswered() Answer            { return Answer{} }

// IsAnswered reports whether the user selected anything.
func (a Answer) IsAnswered() bool { return a.Kind != AnswerUnanswered }

// Matches compares the answer against a question's key. Unanswered never
// matches. String comparison is case-insensitive, mirroring how keys are
// stored ("true"/"false" or a decimal index).
func (a Answer) Matches(q Question) bool {
	key := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	switch a.Kind {
	case AnswerOption:
		return strconv.Itoa(a.Option) == key
	case AnswerBool:
		return strconv.FormatBool(a.Bool) == key
	default:
		return false
	}
}

// MarshalJSON encodes the variant as a bare JSON value: a number for an
// option index, a boolean for true-false, null for unanswered.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerOption:
		return json.Marshal(a.Option)
	case AnswerBool:
		return json.Marshal(a.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a boolean, a string spelling of either,
// or null. Anything unrecognized decodes as unanswered rather than
// failing the whole submission.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*a = Unanswered()
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = BoolAnswer(b)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*a = OptionAnswer(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			*a = BoolAnswer(true)
			return nil
		case "false":
			*a = BoolAnswer(false)
			return nil
		default:
			if idx, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				*a = OptionAnswer(idx)
				return nil
			}
		}
	}
	*a = Unanswered()
	return nil
}
