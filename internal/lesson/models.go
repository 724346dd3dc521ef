package lesson

type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

type Lesson struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Status      Status `json:"status"`
	ProgressPct int    `json:"progress_pct"`
	ProgressMsg string `json:"progress_msg"`
	ErrorMsg    string `json:"error_msg,omitempty"`
	TotalPages  int    `json:"total_pages"`
	Threshold   int    `json:"threshold"`
	CreatedAt   int64  `json:"created_at"`
}

type DocCategory string

const (
	DocContent   DocCategory = "content"
	DocAnswerKey DocCategory = "answer_key"
	DocQuiz      DocCategory = "quiz"
)

// Document is immutable after upload except for the derived page count.
type Document struct {
	ID        string      `json:"id"`
	LessonID  string      `json:"lesson_id,omitempty"`
	SetID     string      `json:"set_id,omitempty"`
	Category  DocCategory `json:"category"`
	Filename  string      `json:"filename"`
	BlobKey   string      `json:"blob_key"`
	PageCount int         `json:"page_count"`
	CreatedAt int64       `json:"created_at"`
}

// Transcript is owned by exactly one (document, page) pair and is only ever
// written by a transcription worker, upserted by its key.
type Transcript struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	ImageKey   string `json:"image_key"`
	Content    string `json:"content"`
	HasVisuals bool   `json:"has_visuals"`
}

// Section is an ordered, page-range-bounded unit of curriculum. Sections are
// created in bulk by synthesis and never mutated by progress tracking.
type Section struct {
	ID         string `json:"id"`
	LessonID   string `json:"lesson_id"`
	OrderIndex int    `json:"order_index"`
	Title      string `json:"title"`
	StartPage  int    `json:"start_page"`
	EndPage    int    `json:"end_page"`
	Summary    string `json:"summary"`
	Threshold  int    `json:"threshold"`
}

type Question struct {
	ID          string   `json:"id"`
	SectionID   string   `json:"section_id,omitempty"`
	SetID       string   `json:"set_id,omitempty"`
	Position    int      `json:"position"`
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	Correct     []int    `json:"correct,omitempty"` // 0-based choice indices
	Explanation string   `json:"explanation,omitempty"`
	Multi       bool     `json:"multi"`
}

// ChoiceLabel returns the letter label for a 0-based choice index ("A"...).
func ChoiceLabel(i int) string { return string(rune('A' + i)) }

type QuizSet struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Status    Status `json:"status"`
	ErrorMsg  string `json:"error_msg,omitempty"`
	CreatedAt int64  `json:"created_at"`
}
