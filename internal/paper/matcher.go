package paper

import (
	"sort"
	"strings"

	"github.com/pavelanni/papergen/internal/model"
)

const (
	similarityWeight = 100
	exactMarksBonus  = 50
	unitMatchBonus   = 25
)

// FindCandidates returns the pool entries that fit the slot, best first.
//
// A candidate fits when its difficulty equals the slot's (ignoring case),
// its predicted marks are within tolerance of the target, and its matched
// topic contains the slot's topic filter. With a non-empty hint the
// candidate must also match either the hint by unit or the filter by topic.
// Equal scores keep pool order. An empty result means fallback is needed.
func FindCandidates(slot model.QuestionSlot, pool []model.CandidateQuestion, hint string, tolerance int) []model.CandidateQuestion {
	type scored struct {
		c     model.CandidateQuestion
		score float64
	}
	var found []scored
	for _, c := range pool {
		if !fits(slot, c, hint, tolerance) {
			continue
		}
		found = append(found, scored{c: c, score: Score(slot, c, hint)})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].score > found[j].score
	})

	out := make([]model.CandidateQuestion, len(found))
	for i, f := range found {
		out[i] = f.c
	}
	return out
}

// Score ranks a candidate for a slot: similarity scaled to 0-100, plus a
// bonus for exact marks and another for a unit matching the hint.
func Score(slot model.QuestionSlot, c model.CandidateQuestion, hint string) float64 {
	score := c.TopicSimilarity * similarityWeight
	if c.PredictedMarks == slot.MarksTarget {
		score += exactMarksBonus
	}
	if hint != "" && containsFold(c.MatchedUnit, hint) {
		score += unitMatchBonus
	}
	return score
}

func fits(slot model.QuestionSlot, c model.CandidateQuestion, hint string, tolerance int) bool {
	if !strings.EqualFold(strings.TrimSpace(c.Difficulty), string(slot.DifficultyTarget)) {
		return false
	}
	if abs(c.PredictedMarks-slot.MarksTarget) > tolerance {
		return false
	}
	topicMatch := slot.TopicFilter != "" && containsFold(c.MatchedTopic, slot.TopicFilter)
	if slot.TopicFilter != "" && !topicMatch {
		return false
	}
	if hint != "" && !topicMatch && !containsFold(c.MatchedUnit, hint) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
