package processing

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pavelanni/papergen/internal/model"
)

// wireQuestion is one question as emitted by the processing pipeline.
type wireQuestion struct {
	ID              string  `json:"id"`
	Text            string  `json:"text"`
	PredictedMarks  float64 `json:"predictedMarks"`
	BloomLevel      string  `json:"bloomLevel"`
	Difficulty      string  `json:"difficulty"`
	MatchedTopic    string  `json:"matchedTopic"`
	MatchedUnit     string  `json:"matchedUnit"`
	TopicSimilarity float64 `json:"topicSimilarity"`
}

type wireTopic struct {
	Unit      string `json:"unit"`
	TopicID   string `json:"topicId"`
	TopicName string `json:"topicName"`
}

type wirePool struct {
	Questions []wireQuestion `json:"questions"`
	Topics    []wireTopic    `json:"topics"`
}

// DecodePool parses a processing result into a candidate pool. Questions
// without text are dropped. Predicted marks are rounded to whole marks and
// similarity is clamped to [0, 1].
func DecodePool(r io.Reader) (model.CandidatePool, error) {
	var w wirePool
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return model.CandidatePool{}, fmt.Errorf("decode question bank: %w", err)
	}

	pool := model.CandidatePool{
		Questions: make([]model.CandidateQuestion, 0, len(w.Questions)),
		Topics:    make([]model.Topic, 0, len(w.Topics)),
	}
	skipped := 0
	for _, q := range w.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			skipped++
			continue
		}
		pool.Questions = append(pool.Questions, model.CandidateQuestion{
			ID:              strings.TrimSpace(q.ID),
			Text:            text,
			PredictedMarks:  int(q.PredictedMarks + 0.5),
			BloomLevel:      model.BloomLevel(strings.ToUpper(strings.TrimSpace(q.BloomLevel))),
			Difficulty:      strings.TrimSpace(q.Difficulty),
			MatchedTopic:    strings.TrimSpace(q.MatchedTopic),
			MatchedUnit:     strings.TrimSpace(q.MatchedUnit),
			TopicSimilarity: clamp01(q.TopicSimilarity),
		})
	}
	for _, t := range w.Topics {
		pool.Topics = append(pool.Topics, model.Topic{
			Unit:      strings.TrimSpace(t.Unit),
			TopicID:   strings.TrimSpace(t.TopicID),
			TopicName: strings.TrimSpace(t.TopicName),
		})
	}
	if skipped > 0 {
		slog.Warn("skipped bank questions without text", "count", skipped)
	}
	return pool, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
