package paper

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/papergen/internal/model"
)

const topicPlaceholder = "{topic}"

var phrasings = map[model.Difficulty][]string{
	model.DifficultyEasy: {
		"Define {topic} and list its key characteristics.",
		"What is meant by {topic}? Explain briefly.",
		"State the basic principles of {topic} with a suitable example.",
		"List and briefly describe the main components of {topic}.",
	},
	model.DifficultyMedium: {
		"Explain {topic} in detail with a neat diagram.",
		"Describe the working of {topic} with a suitable example.",
		"Compare and contrast the different approaches used in {topic}.",
		"Illustrate the role of {topic} with an example and explain its significance.",
	},
	model.DifficultyHard: {
		"Analyze the design trade-offs involved in {topic} and justify an appropriate approach.",
		"Evaluate the effectiveness of {topic} in solving a real-world problem with a case study.",
		"Design a solution based on {topic} for a given scenario and critically assess its limitations.",
		"Critically examine the open challenges in {topic} and propose suitable improvements.",
	},
}

var bloomByDifficulty = map[model.Difficulty]model.BloomLevel{
	model.DifficultyEasy:   model.BloomL1,
	model.DifficultyMedium: model.BloomL3,
	model.DifficultyHard:   model.BloomL5,
}

// DefaultTopics are used when a slot reaches the generator without a topic.
var DefaultTopics = []string{
	"Fundamental Concepts",
	"Design Principles",
	"Algorithms and Techniques",
	"Applications",
	"Recent Trends",
}

// BloomFor returns the Bloom level generated questions get for a difficulty.
func BloomFor(d model.Difficulty) model.BloomLevel {
	if b, ok := bloomByDifficulty[d]; ok {
		return b
	}
	return model.BloomL3
}

// Generator fills slots that have no bank match with templated text.
type Generator struct {
	deterministic bool
	topics        []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. With deterministic set, the phrasing is
// chosen from the slot's position and marks; otherwise uniformly at random
// from rng (a time-seeded source when rng is nil).
func NewGenerator(deterministic bool, topics []string, rng *rand.Rand) *Generator {
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Generator{
		deterministic: deterministic,
		topics:        append([]string(nil), topics...),
		rng:           rng,
	}
}

// Generate produces a templated question for the slot.
func (g *Generator) Generate(slot model.QuestionSlot, hint string) model.AssignedQuestion {
	tier, ok := phrasings[slot.DifficultyTarget]
	if !ok {
		tier = phrasings[model.DifficultyMedium]
	}
	seed := fallbackSeed(slot)

	var idx int
	if g.deterministic {
		idx = seed % len(tier)
	} else {
		g.mu.Lock()
		idx = g.rng.IntN(len(tier))
		g.mu.Unlock()
	}

	topic := slot.TopicFilter
	if topic == "" {
		topic = g.topics[seed%len(g.topics)]
	}
	if topic == "" {
		topic = hint
	}

	return model.AssignedQuestion{
		SlotID:           slot.SlotID,
		MarksTarget:      slot.MarksTarget,
		DifficultyTarget: slot.DifficultyTarget,
		TopicFilter:      slot.TopicFilter,
		CourseOutcome:    slot.CourseOutcome,
		Source:           model.SourceGenerated,
		Text:             strings.ReplaceAll(tier[idx], topicPlaceholder, topic),
		BloomLevel:       BloomFor(slot.DifficultyTarget),
	}
}

// fallbackSeed is len(slotId) + marks + (course outcome or section number).
func fallbackSeed(slot model.QuestionSlot) int {
	group := slot.CourseOutcome
	if group == 0 {
		group = leadingNumber(slot.SlotID)
	}
	seed := len(slot.SlotID) + slot.MarksTarget + group
	if seed < 0 {
		seed = -seed
	}
	return seed
}

func leadingNumber(id string) int {
	n := 0
	for _, r := range id {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
