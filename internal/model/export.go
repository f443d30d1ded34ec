package model

import "time"

// PaperExport is the top-level JSON structure for paper export.
type PaperExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	NumPapers  int           `json:"num_papers"`
	Papers     []PaperResult `json:"papers"`
}

// PaperResult holds one generated paper for export.
type PaperResult struct {
	ID          string           `json:"id"`
	CourseCode  string           `json:"course_code"`
	Educator    string           `json:"educator"`
	ExamType    ExamType         `json:"exam_type"`
	Semester    string           `json:"semester"`
	CreatedAt   time.Time        `json:"created_at"`
	Stats       PaperStats       `json:"stats"`
	Questions   []QuestionResult `json:"questions"`
	Rendered    string           `json:"rendered_text"`
	BankVersion string           `json:"bank_version_id,omitempty"`
}

// QuestionResult holds per-slot data for export.
type QuestionResult struct {
	SlotID     string     `json:"slot_id"`
	Text       string     `json:"text"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Marks      int        `json:"marks"`
	BloomLevel BloomLevel `json:"bloom_level"`
	Source     Source     `json:"source"`
	Similarity float64    `json:"similarity,omitempty"`
}
