package paper

import (
	"math/rand/v2"

	"github.com/pavelanni/papergen/internal/model"
)

// Options tunes matching and fallback behavior.
type Options struct {
	// Tolerance is the allowed gap between predicted and target marks per
	// exam type. Missing entries use the template default.
	Tolerance             map[model.ExamType]int
	DeterministicFallback bool
	// UniqueCandidates keeps a bank question from filling more than one slot
	// of the same paper.
	UniqueCandidates bool
	DefaultTopics    []string
	// Rand drives non-deterministic fallback; nil means a time-seeded source.
	Rand *rand.Rand
}

// DefaultOptions returns the options used by the server and CLI defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance: map[model.ExamType]int{
			model.ExamCIE: cieTemplate.Tolerance,
			model.ExamSEE: seeTemplate.Tolerance,
		},
		DeterministicFallback: true,
	}
}

// OptionsFrom applies runtime configuration on top of DefaultOptions.
// Negative tolerances keep the template default.
func OptionsFrom(cfg model.GenerationConfig) Options {
	opts := DefaultOptions()
	if cfg.CIETolerance >= 0 {
		opts.Tolerance[model.ExamCIE] = cfg.CIETolerance
	}
	if cfg.SEETolerance >= 0 {
		opts.Tolerance[model.ExamSEE] = cfg.SEETolerance
	}
	opts.DeterministicFallback = cfg.DeterministicFallback
	opts.UniqueCandidates = cfg.UniqueCandidates
	opts.DefaultTopics = cfg.DefaultTopics
	return opts
}

// Assembler selects one question per included slot.
// It holds no per-call state and is safe for concurrent use.
type Assembler struct {
	opts Options
	gen  *Generator
}

// NewAssembler creates an Assembler.
func NewAssembler(opts Options) *Assembler {
	return &Assembler{
		opts: opts,
		gen:  NewGenerator(opts.DeterministicFallback, opts.DefaultTopics, opts.Rand),
	}
}

func (a *Assembler) tolerance(tmpl ExamTemplate) int {
	if tol, ok := a.opts.Tolerance[tmpl.Type]; ok {
		return tol
	}
	return tmpl.Tolerance
}

// Assemble walks the exam structure in document order (CIE sections 1-3;
// SEE modules 1-5, alternatives 1-2) and fills every included slot from the
// pool, falling back to a generated question when nothing matches.
// Excluded slots are skipped. An empty slot list yields an empty result.
func (a *Assembler) Assemble(examType model.ExamType, slots []model.QuestionSlot, pool []model.CandidateQuestion) ([]model.AssignedQuestion, error) {
	tmpl, err := TemplateFor(examType)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return []model.AssignedQuestion{}, nil
	}
	normalized, refs, err := tmpl.normalize(slots)
	if err != nil {
		return nil, err
	}

	tol := a.tolerance(tmpl)
	var used map[string]bool
	if a.opts.UniqueCandidates {
		used = make(map[string]bool)
	}

	out := make([]model.AssignedQuestion, 0, len(normalized))
	for block := 1; block <= tmpl.Blocks(); block++ {
		hint := tmpl.Hint(block)
		for alt := 1; alt <= tmpl.Alternatives; alt++ {
			number := (block-1)*tmpl.Alternatives + alt
			for i, s := range normalized {
				if !s.Included || refs[i].Number != number {
					continue
				}
				out = append(out, a.fill(s, pool, hint, tol, used))
			}
		}
	}
	return out, nil
}

func (a *Assembler) fill(s model.QuestionSlot, pool []model.CandidateQuestion, hint string, tol int, used map[string]bool) model.AssignedQuestion {
	if used != nil {
		pool = unused(pool, used)
	}
	matches := FindCandidates(s, pool, hint, tol)
	if len(matches) == 0 {
		return a.gen.Generate(s, hint)
	}
	c := matches[0]
	if used != nil {
		used[candidateKey(c)] = true
	}
	bloom := c.BloomLevel
	if bloom == "" {
		bloom = BloomFor(s.DifficultyTarget)
	}
	return model.AssignedQuestion{
		SlotID:           s.SlotID,
		MarksTarget:      s.MarksTarget,
		DifficultyTarget: s.DifficultyTarget,
		TopicFilter:      s.TopicFilter,
		CourseOutcome:    s.CourseOutcome,
		Source:           model.SourceBank,
		Text:             c.Text,
		BloomLevel:       bloom,
		CandidateID:      c.ID,
		MatchedTopic:     c.MatchedTopic,
		MatchedUnit:      c.MatchedUnit,
		Similarity:       c.TopicSimilarity,
	}
}

// candidateKey falls back to the text for processors that omit ids.
func candidateKey(c model.CandidateQuestion) string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	return "text:" + c.Text
}

func unused(pool []model.CandidateQuestion, used map[string]bool) []model.CandidateQuestion {
	if len(used) == 0 {
		return pool
	}
	out := make([]model.CandidateQuestion, 0, len(pool))
	for _, c := range pool {
		if !used[candidateKey(c)] {
			out = append(out, c)
		}
	}
	return out
}

// Generate runs the whole pipeline for one configuration: validation,
// assembly, rendering and stats. Validation failures are returned as
// *ValidationError and nothing is assembled.
func (a *Assembler) Generate(cfg model.ExamConfiguration, pool model.CandidatePool, header RenderHeader) (model.GeneratedPaper, error) {
	if err := Validate(cfg.ExamType, cfg.Slots); err != nil {
		return model.GeneratedPaper{}, err
	}
	assigned, err := a.Assemble(cfg.ExamType, cfg.Slots, pool.Questions)
	if err != nil {
		return model.GeneratedPaper{}, err
	}
	if header.Course == "" {
		header.Course = cfg.CourseCode
	}
	if header.Semester == "" {
		header.Semester = cfg.Semester
	}
	text, err := Render(cfg.ExamType, header, assigned)
	if err != nil {
		return model.GeneratedPaper{}, err
	}
	stats, err := ComputeStats(cfg.ExamType, assigned)
	if err != nil {
		return model.GeneratedPaper{}, err
	}
	return model.GeneratedPaper{
		Assigned:     assigned,
		RenderedText: text,
		Stats:        stats,
	}, nil
}
