package paper

import (
	"strconv"

	"github.com/pavelanni/papergen/internal/model"
)

// Validate checks a slot configuration before generation.
//
// Every section (CIE) or full question (SEE) of the template must have
// included slots whose marks add up to the template total, and every
// included slot needs a topic. The first failing rule is returned as
// *ValidationError; malformed slots as *MalformedSlotError.
func Validate(examType model.ExamType, slots []model.QuestionSlot) error {
	tmpl, err := TemplateFor(examType)
	if err != nil {
		return err
	}
	normalized, refs, err := tmpl.normalize(slots)
	if err != nil {
		return err
	}

	totals := make([]int, tmpl.Groups+1)
	for i, s := range normalized {
		if s.Included {
			totals[refs[i].Number] += s.MarksTarget
		}
	}
	for n := 1; n <= tmpl.Groups; n++ {
		if totals[n] != tmpl.GroupTotal {
			return &ValidationError{
				Kind:     KindInvalidMarksTotal,
				Scope:    tmpl.GroupScope,
				Group:    strconv.Itoa(n),
				Actual:   totals[n],
				Expected: tmpl.GroupTotal,
			}
		}
	}

	var missing []string
	for _, s := range normalized {
		if s.Included && s.TopicFilter == "" {
			missing = append(missing, s.SlotID)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: KindMissingTopic, SlotIDs: missing}
	}
	return nil
}
