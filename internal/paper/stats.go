package paper

import (
	"fmt"

	"github.com/pavelanni/papergen/internal/model"
)

// ComputeStats counts bank and generated questions overall and per
// section or module.
func ComputeStats(examType model.ExamType, assigned []model.AssignedQuestion) (model.PaperStats, error) {
	tmpl, err := TemplateFor(examType)
	if err != nil {
		return model.PaperStats{}, err
	}
	breakdown := make([]model.GroupStats, tmpl.Blocks())
	for i := range breakdown {
		breakdown[i].Group = fmt.Sprintf("%s %d", tmpl.BlockLabel, i+1)
	}

	var stats model.PaperStats
	for _, q := range assigned {
		ref, err := tmpl.ParseSlotID(q.SlotID)
		if err != nil {
			return model.PaperStats{}, err
		}
		g := &breakdown[ref.Block-1]
		g.Total++
		g.Marks += q.MarksTarget
		stats.Total++
		if q.Source == model.SourceBank {
			g.FromBank++
			stats.FromBank++
		} else {
			g.Generated++
			stats.Generated++
		}
	}
	stats.Breakdown = breakdown
	return stats, nil
}
