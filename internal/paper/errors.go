package paper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownExamType is returned for exam types other than CIE and SEE.
	ErrUnknownExamType = errors.New("unknown exam type")
	// ErrInvalidMarksTotal matches validation failures on section/question totals.
	ErrInvalidMarksTotal = errors.New("invalid marks total")
	// ErrMissingTopic matches validation failures on empty topics.
	ErrMissingTopic = errors.New("missing topic")
)

// MalformedSlotError reports a slot that cannot be placed in the exam template.
type MalformedSlotError struct {
	SlotID string
	Reason string
}

func (e *MalformedSlotError) Error() string {
	return fmt.Sprintf("malformed slot %q: %s", e.SlotID, e.Reason)
}

// ValidationKind identifies a configuration rule.
type ValidationKind string

const (
	KindInvalidMarksTotal ValidationKind = "invalid_marks_total"
	KindMissingTopic      ValidationKind = "missing_topic"
)

// ValidationError carries enough detail for the caller to point at the
// failing field: the group and its actual total, or the slots without topic.
type ValidationError struct {
	Kind     ValidationKind `json:"kind"`
	Scope    string         `json:"scope,omitempty"` // "section" or "question"
	Group    string         `json:"group,omitempty"`
	Actual   int            `json:"actual"`
	Expected int            `json:"expected,omitempty"`
	SlotIDs  []string       `json:"slot_ids,omitempty"`
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindInvalidMarksTotal:
		return fmt.Sprintf("%s %s: marks total is %d, must be %d", e.Scope, e.Group, e.Actual, e.Expected)
	case KindMissingTopic:
		return "topic required for slots " + strings.Join(e.SlotIDs, ", ")
	}
	return string(e.Kind)
}

func (e *ValidationError) Unwrap() error {
	switch e.Kind {
	case KindInvalidMarksTotal:
		return ErrInvalidMarksTotal
	case KindMissingTopic:
		return ErrMissingTopic
	}
	return nil
}
