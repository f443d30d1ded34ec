package paper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/papergen/internal/model"
)

// ExamTemplate is the fixed structural shape of an exam type.
type ExamTemplate struct {
	Type  model.ExamType
	Title string
	// Groups is the number of mark-bearing groups: sections for CIE,
	// full questions for SEE.
	Groups int
	// Alternatives is the number of groups rendered together in one block.
	// SEE offers two alternative full questions per module.
	Alternatives   int
	GroupTotal     int
	GroupScope     string
	BlockLabel     string
	PartMarks      [3]int
	PartDifficulty [3]model.Difficulty
	MaxMarks       int
	Duration       string
	Tolerance      int
	Instructions   []string
}

// Blocks returns the number of rendered blocks (3 sections or 5 modules).
func (t ExamTemplate) Blocks() int {
	return t.Groups / t.Alternatives
}

// Hint returns the structural hint used when matching slots of a block.
// Only CIE sections map onto syllabus units.
func (t ExamTemplate) Hint(block int) string {
	if t.Type == model.ExamCIE {
		return fmt.Sprintf("Unit %d", block)
	}
	return ""
}

// BlockHeading is the heading line printed at the top of a block.
func (t ExamTemplate) BlockHeading(block int) string {
	if t.Type == model.ExamSEE {
		return fmt.Sprintf("%s %d (CO%d)", t.BlockLabel, block, block)
	}
	return fmt.Sprintf("%s %d (%s)", t.BlockLabel, block, t.Hint(block))
}

var parts = [3]string{"a", "b", "c"}

var (
	cieTemplate = ExamTemplate{
		Type:           model.ExamCIE,
		Title:          "CONTINUOUS INTERNAL EVALUATION (CIE)",
		Groups:         3,
		Alternatives:   1,
		GroupTotal:     15,
		GroupScope:     "section",
		BlockLabel:     "SECTION",
		PartMarks:      [3]int{5, 5, 5},
		PartDifficulty: [3]model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard},
		MaxMarks:       45,
		Duration:       "1 Hour 30 Minutes",
		Tolerance:      2,
		Instructions: []string{
			"Answer all questions.",
			"Each section carries 15 marks.",
			"Marks, difficulty and Bloom's level are indicated below each question.",
		},
	}
	seeTemplate = ExamTemplate{
		Type:           model.ExamSEE,
		Title:          "SEMESTER END EXAMINATION (SEE)",
		Groups:         10,
		Alternatives:   2,
		GroupTotal:     20,
		GroupScope:     "question",
		BlockLabel:     "MODULE",
		PartMarks:      [3]int{5, 7, 8},
		PartDifficulty: [3]model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard},
		MaxMarks:       100,
		Duration:       "3 Hours",
		Tolerance:      3,
		Instructions: []string{
			"Answer any FIVE full questions, choosing ONE full question from each module.",
			"Each full question carries 20 marks.",
			"Missing data, if any, may be suitably assumed.",
		},
	}
)

// TemplateFor returns the template of an exam type.
func TemplateFor(t model.ExamType) (ExamTemplate, error) {
	switch t {
	case model.ExamCIE:
		return cieTemplate, nil
	case model.ExamSEE:
		return seeTemplate, nil
	}
	return ExamTemplate{}, fmt.Errorf("%w: %q", ErrUnknownExamType, string(t))
}

// DefaultSlots creates the structural defaults for an exam type: every part
// included, template marks and difficulty, empty topic.
func DefaultSlots(t model.ExamType) ([]model.QuestionSlot, error) {
	tmpl, err := TemplateFor(t)
	if err != nil {
		return nil, err
	}
	slots := make([]model.QuestionSlot, 0, tmpl.Groups*len(parts))
	for n := 1; n <= tmpl.Groups; n++ {
		for i, p := range parts {
			ref := tmpl.ref(n, p)
			slots = append(slots, model.QuestionSlot{
				SlotID:           ref.ID,
				DifficultyTarget: tmpl.PartDifficulty[i],
				MarksTarget:      tmpl.PartMarks[i],
				Included:         true,
				CourseOutcome:    ref.CourseOutcome(),
			})
		}
	}
	return slots, nil
}

var slotIDPattern = regexp.MustCompile(`^([1-9][0-9]?)([abc])$`)

// SlotRef is the structural position a slot id encodes.
type SlotRef struct {
	ID          string
	Number      int    // section (CIE) or full question number (SEE)
	Part        string // a, b or c
	Block       int    // section (CIE) or module/course outcome (SEE)
	Alternative int    // 1 or 2 within an SEE module; always 1 for CIE
	examType    model.ExamType
}

// CourseOutcome returns the course outcome of an SEE slot, 0 for CIE.
func (r SlotRef) CourseOutcome() int {
	if r.examType == model.ExamSEE {
		return r.Block
	}
	return 0
}

func (t ExamTemplate) ref(number int, part string) SlotRef {
	return SlotRef{
		ID:          strconv.Itoa(number) + part,
		Number:      number,
		Part:        part,
		Block:       (number-1)/t.Alternatives + 1,
		Alternative: (number-1)%t.Alternatives + 1,
		examType:    t.Type,
	}
}

// ParseSlotID resolves a slot id such as "1a" or "7C" against the template.
func (t ExamTemplate) ParseSlotID(id string) (SlotRef, error) {
	norm := strings.ToLower(strings.TrimSpace(id))
	m := slotIDPattern.FindStringSubmatch(norm)
	if m == nil {
		return SlotRef{}, &MalformedSlotError{SlotID: id, Reason: "expected a question number followed by a, b or c"}
	}
	n, _ := strconv.Atoi(m[1])
	if n > t.Groups {
		return SlotRef{}, &MalformedSlotError{
			SlotID: id,
			Reason: fmt.Sprintf("%s %d is outside the %s template (1-%d)", t.GroupScope, n, t.Type, t.Groups),
		}
	}
	return t.ref(n, m[2]), nil
}

// NormalizeSlots returns copies of the slots with lowercase ids and derived
// course outcomes, together with their parsed positions. Duplicate ids,
// unknown difficulties and non-positive marks on included slots are
// reported as malformed.
func NormalizeSlots(t model.ExamType, slots []model.QuestionSlot) ([]model.QuestionSlot, []SlotRef, error) {
	tmpl, err := TemplateFor(t)
	if err != nil {
		return nil, nil, err
	}
	return tmpl.normalize(slots)
}

func (t ExamTemplate) normalize(slots []model.QuestionSlot) ([]model.QuestionSlot, []SlotRef, error) {
	out := make([]model.QuestionSlot, len(slots))
	refs := make([]SlotRef, len(slots))
	seen := make(map[string]bool, len(slots))
	for i, s := range slots {
		ref, err := t.ParseSlotID(s.SlotID)
		if err != nil {
			return nil, nil, err
		}
		if seen[ref.ID] {
			return nil, nil, &MalformedSlotError{SlotID: s.SlotID, Reason: "duplicate slot id"}
		}
		seen[ref.ID] = true

		s.SlotID = ref.ID
		s.CourseOutcome = ref.CourseOutcome()
		s.DifficultyTarget = model.Difficulty(strings.ToLower(strings.TrimSpace(string(s.DifficultyTarget))))
		s.TopicFilter = strings.TrimSpace(s.TopicFilter)
		if !s.Included {
			s.TopicFilter = ""
		} else {
			switch s.DifficultyTarget {
			case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
			default:
				return nil, nil, &MalformedSlotError{SlotID: s.SlotID, Reason: fmt.Sprintf("unknown difficulty %q", s.DifficultyTarget)}
			}
			if s.MarksTarget <= 0 {
				return nil, nil, &MalformedSlotError{SlotID: s.SlotID, Reason: "marks must be positive"}
			}
		}
		out[i] = s
		refs[i] = ref
	}
	return out, refs, nil
}
