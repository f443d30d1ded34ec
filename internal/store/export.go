package store

import (
	"fmt"

	"github.com/pavelanni/papergen/internal/model"
)

// ExportAllPapers builds export-ready results from all stored papers.
func (s *Store) ExportAllPapers() ([]model.PaperResult, error) {
	papers, err := s.ListAllPapers()
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}

	educators := make(map[int64]string)
	results := make([]model.PaperResult, 0, len(papers))
	for _, p := range papers {
		name, ok := educators[p.OwnerID]
		if !ok {
			user, err := s.GetUserByID(p.OwnerID)
			if err != nil {
				return nil, fmt.Errorf("get user %d: %w", p.OwnerID, err)
			}
			if user != nil {
				name = user.DisplayName
			}
			educators[p.OwnerID] = name
		}

		questions := make([]model.QuestionResult, 0, len(p.Assigned))
		for _, q := range p.Assigned {
			questions = append(questions, model.QuestionResult{
				SlotID:     q.SlotID,
				Text:       q.Text,
				Topic:      q.TopicFilter,
				Difficulty: q.DifficultyTarget,
				Marks:      q.MarksTarget,
				BloomLevel: q.BloomLevel,
				Source:     q.Source,
				Similarity: q.Similarity,
			})
		}

		results = append(results, model.PaperResult{
			ID:          p.ID,
			CourseCode:  p.CourseCode,
			Educator:    name,
			ExamType:    p.ExamType,
			Semester:    p.Semester,
			CreatedAt:   p.CreatedAt,
			Stats:       p.Stats,
			Questions:   questions,
			Rendered:    p.RenderedText,
			BankVersion: p.BankVersionID,
		})
	}
	return results, nil
}
