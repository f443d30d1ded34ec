package paper

import (
	"math"
	"testing"

	"github.com/pavelanni/papergen/internal/model"
)

func candidate(id, difficulty string, marks int, topic, unit string, sim float64) model.CandidateQuestion {
	return model.CandidateQuestion{
		ID:              id,
		Text:            "Question " + id,
		PredictedMarks:  marks,
		BloomLevel:      model.BloomL2,
		Difficulty:      difficulty,
		MatchedTopic:    topic,
		MatchedUnit:     unit,
		TopicSimilarity: sim,
	}
}

func ids(cs []model.CandidateQuestion) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindCandidatesFiltering(t *testing.T) {
	slot := model.QuestionSlot{
		SlotID:           "1a",
		DifficultyTarget: model.DifficultyMedium,
		MarksTarget:      5,
		Included:         true,
		TopicFilter:      "Process Management",
	}

	tests := []struct {
		name      string
		pool      []model.CandidateQuestion
		hint      string
		tolerance int
		want      []string
	}{
		{
			name: "difficulty case-insensitive",
			pool: []model.CandidateQuestion{
				candidate("a", "MEDIUM", 5, "Process Management", "Unit 1", 0.5),
				candidate("b", "Hard", 5, "Process Management", "Unit 1", 0.9),
			},
			tolerance: 2,
			want:      []string{"a"},
		},
		{
			name: "marks tolerance",
			pool: []model.CandidateQuestion{
				candidate("in", "Medium", 7, "Process Management", "", 0.5),
				candidate("out", "Medium", 8, "Process Management", "", 0.5),
			},
			tolerance: 2,
			want:      []string{"in"},
		},
		{
			name: "wider tolerance",
			pool: []model.CandidateQuestion{
				candidate("in", "Medium", 7, "Process Management", "", 0.5),
				candidate("out", "Medium", 8, "Process Management", "", 0.5),
			},
			tolerance: 3,
			want:      []string{"in", "out"},
		},
		{
			name: "topic substring",
			pool: []model.CandidateQuestion{
				candidate("sub", "Medium", 5, "process management and scheduling", "", 0.5),
				candidate("other", "Medium", 5, "Memory Management", "", 0.5),
			},
			tolerance: 2,
			want:      []string{"sub"},
		},
		{
			name: "hint satisfied by topic",
			pool: []model.CandidateQuestion{
				candidate("x", "Medium", 5, "Process Management", "Unit 3", 0.5),
			},
			hint:      "Unit 1",
			tolerance: 2,
			want:      []string{"x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(FindCandidates(slot, tt.pool, tt.hint, tt.tolerance))
			if !equalIDs(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFindCandidatesHintWithoutTopic(t *testing.T) {
	slot := model.QuestionSlot{SlotID: "2a", DifficultyTarget: model.DifficultyEasy, MarksTarget: 5, Included: true}
	pool := []model.CandidateQuestion{
		candidate("u3", "Easy", 5, "Deadlocks", "Unit 3", 0.9),
		candidate("u2", "Easy", 5, "Threads", "UNIT 2", 0.1),
	}

	got := ids(FindCandidates(slot, pool, "Unit 2", 2))
	if !equalIDs(got, []string{"u2"}) {
		t.Errorf("expected only the unit match, got %v", got)
	}

	got = ids(FindCandidates(slot, pool, "", 2))
	if !equalIDs(got, []string{"u3", "u2"}) {
		t.Errorf("without hint expected both by similarity, got %v", got)
	}
}

func TestFindCandidatesRanking(t *testing.T) {
	slot := model.QuestionSlot{SlotID: "1b", DifficultyTarget: model.DifficultyHard, MarksTarget: 5, Included: true, TopicFilter: "Paging"}
	pool := []model.CandidateQuestion{
		candidate("near-high-sim", "Hard", 6, "Paging", "Unit 1", 0.9), // 90 + 25
		candidate("exact-low-sim", "Hard", 5, "Paging", "Unit 2", 0.3), // 30 + 50
		candidate("exact-unit", "Hard", 5, "Paging", "Unit 1", 0.2),    // 20 + 50 + 25
		candidate("tie-first", "Hard", 4, "Paging", "Unit 4", 0.5),     // 50
		candidate("tie-second", "Hard", 4, "Paging", "Unit 5", 0.5),    // 50
	}
	got := ids(FindCandidates(slot, pool, "Unit 1", 2))
	want := []string{"near-high-sim", "exact-unit", "exact-low-sim", "tie-first", "tie-second"}
	if !equalIDs(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if len(pool) != 5 || pool[0].ID != "near-high-sim" {
		t.Error("pool must not be modified")
	}
}

func TestFindCandidatesSimilarityMonotonic(t *testing.T) {
	slot := model.QuestionSlot{SlotID: "3a", DifficultyTarget: model.DifficultyEasy, MarksTarget: 5, Included: true, TopicFilter: "Trees"}
	for _, sims := range [][2]float64{{0.1, 0.2}, {0.5, 0.51}, {0, 1}, {0.7, 0.7}} {
		low := candidate("low", "Easy", 5, "Trees", "", sims[0])
		high := candidate("high", "Easy", 5, "Trees", "", sims[1])
		got := ids(FindCandidates(slot, []model.CandidateQuestion{low, high}, "", 2))
		if sims[0] < sims[1] && got[0] != "high" {
			t.Errorf("sims %v: higher similarity should rank first, got %v", sims, got)
		}
		if sims[0] == sims[1] && got[0] != "low" {
			t.Errorf("sims %v: ties should keep pool order, got %v", sims, got)
		}
	}
}

func TestFindCandidatesExample(t *testing.T) {
	slot := model.QuestionSlot{
		SlotID:           "1a",
		DifficultyTarget: model.DifficultyMedium,
		MarksTarget:      5,
		Included:         true,
		TopicFilter:      "Process Management",
	}
	pool := []model.CandidateQuestion{
		candidate("q1", "Medium", 5, "Process Management and Scheduling", "", 0.9),
	}
	got := FindCandidates(slot, pool, "Unit 1", 2)
	if len(got) != 1 || got[0].ID != "q1" {
		t.Fatalf("expected q1, got %v", ids(got))
	}
	if s := Score(slot, got[0], "Unit 1"); math.Abs(s-140) > 1e-9 {
		t.Errorf("expected score 140, got %v", s)
	}
}

func TestFindCandidatesEmptyPool(t *testing.T) {
	slot := model.QuestionSlot{SlotID: "1a", DifficultyTarget: model.DifficultyEasy, MarksTarget: 5, Included: true}
	if got := FindCandidates(slot, nil, "Unit 1", 2); len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}
