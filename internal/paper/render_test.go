package paper

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/papergen/internal/model"
)

func renderFixture() []model.AssignedQuestion {
	return []model.AssignedQuestion{
		{
			SlotID: "1a", MarksTarget: 5, DifficultyTarget: model.DifficultyMedium, TopicFilter: "Process Management",
			Source: model.SourceBank, Text: "Explain the process life cycle.", BloomLevel: model.BloomL2,
			CandidateID: "q1", Similarity: 0.9,
		},
		{
			SlotID: "2b", MarksTarget: 5, DifficultyTarget: model.DifficultyHard, TopicFilter: "Deadlocks",
			Source: model.SourceGenerated, Text: "Critically examine deadlocks.", BloomLevel: model.BloomL5,
		},
	}
}

func TestRenderCIE(t *testing.T) {
	header := RenderHeader{Course: "CS501", Semester: "5", Date: "2026-10-15"}
	out, err := Render(model.ExamCIE, header, renderFixture())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"CONTINUOUS INTERNAL EVALUATION (CIE)",
		"Course: CS501\n",
		"Semester: 5\n",
		"Date: 2026-10-15\n",
		"Duration: 1 Hour 30 Minutes\n",
		"Max Marks: 45\n",
		"INSTRUCTIONS:\n1. Answer all questions.\n",
		"SECTION 1 (Unit 1)\n",
		"\n1A. Explain the process life cycle.\n    [5 Marks | Medium | L2]\n    [Source: Question Bank | Similarity: 90.0%]\n",
		"\n2B. Critically examine deadlocks.\n    [5 Marks | Hard | L5]\n",
		"*** END OF QUESTION PAPER ***",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered paper missing %q", want)
		}
	}
	if strings.Count(out, "[Source: Question Bank") != 1 {
		t.Error("only bank questions should carry a source line")
	}

	blocks := SplitBlocks(out)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if !strings.Contains(blocks[0], "1A.") || !strings.Contains(blocks[1], "2B.") {
		t.Error("questions rendered in the wrong section")
	}
	if strings.Contains(blocks[2], "Marks |") {
		t.Error("section 3 should be empty")
	}

	again, _ := Render(model.ExamCIE, header, renderFixture())
	if again != out {
		t.Error("rendering is not byte-identical for identical input")
	}
}

func TestRenderSEE(t *testing.T) {
	a := NewAssembler(DefaultOptions())
	slots := defaultSlotsWithTopic(t, model.ExamSEE, "Compilers")
	assigned, err := a.Assemble(model.ExamSEE, slots, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out, err := Render(model.ExamSEE, RenderHeader{Course: "CS601", Semester: "6", Date: "2026-12-01"}, assigned)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	blocks := SplitBlocks(out)
	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}
	for i, b := range blocks {
		if strings.Count(b, center("OR")+"\n") != 1 {
			t.Errorf("module %d: expected one OR separator", i+1)
		}
	}
	if !strings.Contains(blocks[3], "MODULE 4 (CO4)") || !strings.Contains(blocks[3], "8C.") {
		t.Error("module 4 should hold questions 7 and 8")
	}
	if !strings.Contains(out, "Max Marks: 100") || !strings.Contains(out, "Duration: 3 Hours") {
		t.Error("missing SEE header lines")
	}
}

func TestRenderSingleAlternativeHasNoOR(t *testing.T) {
	assigned := []model.AssignedQuestion{
		{SlotID: "1a", MarksTarget: 20, DifficultyTarget: model.DifficultyEasy, Source: model.SourceGenerated, Text: "Q", BloomLevel: model.BloomL1},
	}
	out, err := Render(model.ExamSEE, RenderHeader{}, assigned)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(out, center("OR")+"\n") {
		t.Error("OR separator needs both alternatives")
	}
	if len(SplitBlocks(out)) != 5 {
		t.Error("expected 5 blocks even when modules are empty")
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render("XYZ", RenderHeader{}, nil); !errors.Is(err, ErrUnknownExamType) {
		t.Errorf("expected ErrUnknownExamType, got %v", err)
	}
	bad := []model.AssignedQuestion{{SlotID: "9z"}}
	var malformed *MalformedSlotError
	if _, err := Render(model.ExamCIE, RenderHeader{}, bad); !errors.As(err, &malformed) {
		t.Errorf("expected MalformedSlotError, got %v", err)
	}
}

func TestComputeStats(t *testing.T) {
	stats, err := ComputeStats(model.ExamCIE, renderFixture())
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	if stats.Total != 2 || stats.FromBank != 1 || stats.Generated != 1 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if len(stats.Breakdown) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(stats.Breakdown))
	}
	if stats.Breakdown[0].Group != "SECTION 1" || stats.Breakdown[0].FromBank != 1 || stats.Breakdown[0].Marks != 5 {
		t.Errorf("unexpected section 1: %+v", stats.Breakdown[0])
	}
	if stats.Breakdown[1].Generated != 1 {
		t.Errorf("unexpected section 2: %+v", stats.Breakdown[1])
	}
}

func TestRenderFreeTextKeepsBlockShape(t *testing.T) {
	texts := []struct {
		name string
		text string
	}{
		{"delimiter line inside text", "line1\n" + BlockDelimiter + "\nline2"},
		{"trailing underscore run", "Fill in the blank: " + BlockDelimiter},
		{"carriage returns and tabs", "first\r\n\tsecond\n\nthird"},
	}
	for _, tt := range texts {
		t.Run(tt.name, func(t *testing.T) {
			tests := []struct {
				examType model.ExamType
				slotID   string
				blocks   int
			}{
				{model.ExamCIE, "2a", 3},
				{model.ExamSEE, "5b", 5},
			}
			for _, tc := range tests {
				assigned := []model.AssignedQuestion{{
					SlotID: tc.slotID, MarksTarget: 5, DifficultyTarget: model.DifficultyEasy,
					Source: model.SourceBank, Text: tt.text, BloomLevel: model.BloomL1, Similarity: 0.5,
				}}
				header := RenderHeader{Course: "CS501\n" + BlockDelimiter, Semester: "5", Date: "2026-10-15"}
				out, err := Render(tc.examType, header, assigned)
				if err != nil {
					t.Fatalf("Render: %v", err)
				}
				if got := len(SplitBlocks(out)); got != tc.blocks {
					t.Errorf("%s: expected %d blocks, got %d", tc.examType, tc.blocks, got)
				}
				want := strings.ToUpper(tc.slotID) + ". " + strings.Join(strings.Fields(tt.text), " ") + "\n"
				if !strings.Contains(out, "\n"+want) {
					t.Errorf("%s: expected question on one line %q", tc.examType, want)
				}
				for _, line := range strings.Split(out, "\n") {
					if strings.Contains(line, "\r") || strings.Contains(line, "\t") {
						t.Errorf("%s: unexpected control character in line %q", tc.examType, line)
					}
				}
			}
		})
	}
}
