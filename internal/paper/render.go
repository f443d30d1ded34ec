package paper

import (
	"fmt"
	"strings"

	"github.com/pavelanni/papergen/internal/model"
)

const lineWidth = 80

var (
	banner  = strings.Repeat("=", lineWidth)
	divider = strings.Repeat("-", lineWidth)
	// BlockDelimiter opens every section (CIE) or module (SEE) block.
	BlockDelimiter = strings.Repeat("_", lineWidth)
)

const endOfPaper = "*** END OF QUESTION PAPER ***"

// RenderHeader holds the descriptive lines printed under the title.
type RenderHeader struct {
	Course   string
	Semester string
	Date     string
}

// Render formats assigned questions into the fixed plain-text paper layout.
// The same input always produces the same text.
func Render(examType model.ExamType, header RenderHeader, assigned []model.AssignedQuestion) (string, error) {
	tmpl, err := TemplateFor(examType)
	if err != nil {
		return "", err
	}

	// Bucket questions by full question number, keeping input order.
	byNumber := make(map[int][]model.AssignedQuestion)
	for _, q := range assigned {
		ref, err := tmpl.ParseSlotID(q.SlotID)
		if err != nil {
			return "", err
		}
		byNumber[ref.Number] = append(byNumber[ref.Number], q)
	}

	var sb strings.Builder
	sb.WriteString(banner + "\n")
	sb.WriteString(center(tmpl.Title) + "\n")
	sb.WriteString(banner + "\n")
	fmt.Fprintf(&sb, "Course: %s\n", singleLine(header.Course))
	fmt.Fprintf(&sb, "Semester: %s\n", singleLine(header.Semester))
	fmt.Fprintf(&sb, "Date: %s\n", singleLine(header.Date))
	fmt.Fprintf(&sb, "Duration: %s\n", tmpl.Duration)
	fmt.Fprintf(&sb, "Max Marks: %d\n", tmpl.MaxMarks)
	sb.WriteString(divider + "\n")
	sb.WriteString("INSTRUCTIONS:\n")
	for i, line := range tmpl.Instructions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	sb.WriteString(divider + "\n")

	for block := 1; block <= tmpl.Blocks(); block++ {
		sb.WriteString(BlockDelimiter + "\n")
		sb.WriteString(tmpl.BlockHeading(block) + "\n")
		written := 0
		for alt := 1; alt <= tmpl.Alternatives; alt++ {
			qs := byNumber[(block-1)*tmpl.Alternatives+alt]
			if len(qs) == 0 {
				continue
			}
			if written > 0 {
				sb.WriteString("\n" + center("OR") + "\n")
			}
			for _, q := range qs {
				writeQuestion(&sb, q)
			}
			written++
		}
		sb.WriteString("\n")
	}

	sb.WriteString(banner + "\n")
	sb.WriteString(center(endOfPaper) + "\n")
	sb.WriteString(banner + "\n")
	return sb.String(), nil
}

func writeQuestion(sb *strings.Builder, q model.AssignedQuestion) {
	fmt.Fprintf(sb, "\n%s. %s\n", strings.ToUpper(q.SlotID), singleLine(q.Text))
	fmt.Fprintf(sb, "    [%d Marks | %s | %s]\n", q.MarksTarget, q.DifficultyTarget.Title(), q.BloomLevel)
	if q.Source == model.SourceBank {
		fmt.Fprintf(sb, "    [Source: Question Bank | Similarity: %.1f%%]\n", q.Similarity*100)
	}
}

// singleLine collapses runs of whitespace, line breaks included, to single
// spaces so that free text always stays on the line it starts.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func center(s string) string {
	pad := (lineWidth - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

// SplitBlocks returns the section or module blocks of a rendered paper,
// without the header before the first block. Only a delimiter standing on
// its own line starts a block.
func SplitBlocks(rendered string) []string {
	parts := strings.Split(rendered, "\n"+BlockDelimiter+"\n")
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}
