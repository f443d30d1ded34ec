package model

import (
	"context"
	"strings"
	"time"
)

// UserRole represents an educator's access level.
type UserRole string

const (
	// UserRoleEducator can manage own courses and generate papers.
	UserRoleEducator UserRole = "educator"
	// UserRoleAdmin can additionally manage educators.
	UserRoleAdmin UserRole = "admin"
)

// User represents a registered educator.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// ExamType selects the structural template of a question paper.
type ExamType string

const (
	// ExamCIE is Continuous Internal Evaluation: 3 sections of 15 marks.
	ExamCIE ExamType = "CIE"
	// ExamSEE is Semester End Examination: 5 modules, 2 alternatives of 20 marks each.
	ExamSEE ExamType = "SEE"
)

// ParseExamType normalizes user input; ok is false for anything but CIE or SEE.
func ParseExamType(s string) (ExamType, bool) {
	switch ExamType(strings.ToUpper(strings.TrimSpace(s))) {
	case ExamCIE:
		return ExamCIE, true
	case ExamSEE:
		return ExamSEE, true
	}
	return ExamType(s), false
}

// Difficulty represents the targeted difficulty of a slot.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Title returns the capitalized form used in rendered papers.
func (d Difficulty) Title() string {
	s := strings.ToLower(string(d))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// BloomLevel is the cognitive-complexity tag L1 (recall) to L6 (create).
type BloomLevel string

const (
	BloomL1 BloomLevel = "L1"
	BloomL2 BloomLevel = "L2"
	BloomL3 BloomLevel = "L3"
	BloomL4 BloomLevel = "L4"
	BloomL5 BloomLevel = "L5"
	BloomL6 BloomLevel = "L6"
)

// Source tells where an assigned question came from.
type Source string

const (
	SourceBank      Source = "bank"
	SourceGenerated Source = "generated"
)

// QuestionSlot is a single required position in the exam template.
type QuestionSlot struct {
	SlotID           string     `json:"slot_id" validate:"required"`
	DifficultyTarget Difficulty `json:"difficulty_target" validate:"required,oneof=easy medium hard"`
	MarksTarget      int        `json:"marks_target" validate:"gte=0"`
	Included         bool       `json:"included"`
	TopicFilter      string     `json:"topic_filter"`
	CourseOutcome    int        `json:"course_outcome,omitempty"` // SEE only, derived from SlotID
}

// CandidateQuestion is one entry of a processed question bank.
type CandidateQuestion struct {
	ID              string     `json:"id"`
	Text            string     `json:"text"`
	PredictedMarks  int        `json:"predicted_marks"`
	BloomLevel      BloomLevel `json:"bloom_level"`
	Difficulty      string     `json:"difficulty"` // as produced by the processor, e.g. "Medium"
	MatchedTopic    string     `json:"matched_topic"`
	MatchedUnit     string     `json:"matched_unit"`
	TopicSimilarity float64    `json:"topic_similarity"`
}

// Topic is a syllabus topic extracted by the processor.
type Topic struct {
	Unit      string `json:"unit"`
	TopicID   string `json:"topic_id"`
	TopicName string `json:"topic_name"`
}

// CandidatePool is one snapshot of a course's question bank.
type CandidatePool struct {
	Questions []CandidateQuestion `json:"questions"`
	Topics    []Topic             `json:"topics"`
}

// AssignedQuestion is the result of filling one slot.
type AssignedQuestion struct {
	SlotID           string     `json:"slot_id"`
	MarksTarget      int        `json:"marks_target"`
	DifficultyTarget Difficulty `json:"difficulty_target"`
	TopicFilter      string     `json:"topic_filter"`
	CourseOutcome    int        `json:"course_outcome,omitempty"`
	Source           Source     `json:"source"`
	Text             string     `json:"text"`
	BloomLevel       BloomLevel `json:"bloom_level"`
	CandidateID      string     `json:"candidate_id,omitempty"`
	MatchedTopic     string     `json:"matched_topic,omitempty"`
	MatchedUnit      string     `json:"matched_unit,omitempty"`
	Similarity       float64    `json:"similarity,omitempty"`
}

// ExamConfiguration is an educator's request to generate a paper.
type ExamConfiguration struct {
	ExamType   ExamType       `json:"exam_type" validate:"required"`
	Semester   string         `json:"semester" validate:"required"`
	CourseCode string         `json:"course_code" validate:"required"`
	Slots      []QuestionSlot `json:"slots" validate:"required,dive"`
}

// GroupStats summarizes one section (CIE) or module (SEE).
type GroupStats struct {
	Group     string `json:"group"`
	Total     int    `json:"total"`
	FromBank  int    `json:"from_bank"`
	Generated int    `json:"generated"`
	Marks     int    `json:"marks"`
}

// PaperStats summarizes where the questions of a paper came from.
type PaperStats struct {
	Total     int          `json:"total"`
	FromBank  int          `json:"from_bank"`
	Generated int          `json:"generated"`
	Breakdown []GroupStats `json:"breakdown"`
}

// GeneratedPaper is the output of one generation run.
type GeneratedPaper struct {
	Assigned     []AssignedQuestion `json:"assigned"`
	RenderedText string             `json:"rendered_text"`
	Stats        PaperStats         `json:"stats"`
}

// Course is an educator's course.
type Course struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Semester  string    `json:"semester"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus is the state of an external processing job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change state anymore.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ProcessingJob tracks one hand-off to the document-processing service.
type ProcessingJob struct {
	ID           string    `json:"id"`
	CourseID     int64     `json:"course_id"`
	ExternalID   string    `json:"external_id"`
	Status       JobStatus `json:"status"`
	Message      string    `json:"message,omitempty"`
	BankFile     string    `json:"bank_file"`
	SyllabusFile string    `json:"syllabus_file"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BankVersion is one stored snapshot of a course's processed question bank.
type BankVersion struct {
	ID        string    `json:"id"`
	CourseID  int64     `json:"course_id"`
	Version   int       `json:"version"`
	Status    JobStatus `json:"status"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// PaperRecord is a persisted generated paper.
type PaperRecord struct {
	ID            string             `json:"id"`
	CourseID      int64              `json:"course_id"`
	CourseCode    string             `json:"course_code"`
	OwnerID       int64              `json:"owner_id"`
	ExamType      ExamType           `json:"exam_type"`
	Semester      string             `json:"semester"`
	BankVersionID string             `json:"bank_version_id,omitempty"`
	Assigned      []AssignedQuestion `json:"assigned"`
	RenderedText  string             `json:"rendered_text"`
	Stats         PaperStats         `json:"stats"`
	CreatedAt     time.Time          `json:"created_at"`
}

// GenerationConfig holds runtime generation parameters set via CLI flags.
type GenerationConfig struct {
	CIETolerance          int
	SEETolerance          int
	DeterministicFallback bool
	UniqueCandidates      bool
	DefaultTopics         []string
	SecureCookies         bool
}
