package lesson

import "context"

type Store interface {
	CreateLesson(ctx context.Context, l Lesson) error
	GetLesson(ctx context.Context, id string) (Lesson, error)
	ListLessons(ctx context.Context, ownerID string) ([]Lesson, error)
	// SetLessonState writes the coarse pipeline milestone. Concurrent page
	// workers race on this row and the last writer wins; the message is
	// advisory, not authoritative.
	SetLessonState(ctx context.Context, id string, status Status, pct int, msg string) error
	SetLessonError(ctx context.Context, id, msg string) error
	SetLessonTotalPages(ctx context.Context, id string, n int) error

	CreateDocument(ctx context.Context, d Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	ListLessonDocuments(ctx context.Context, lessonID string) ([]Document, error)
	ListSetDocuments(ctx context.Context, setID string) ([]Document, error)
	SetDocumentPageCount(ctx context.Context, id string, n int) error

	// UpsertTranscript overwrites by (document_id, page_number); re-running a
	// page never duplicates rows.
	UpsertTranscript(ctx context.Context, t Transcript) error
	ListTranscripts(ctx context.Context, documentID string) ([]Transcript, error)

	// ReplaceSections atomically swaps a lesson's curriculum for the given
	// ordered sections and their questions.
	ReplaceSections(ctx context.Context, lessonID string, secs []Section, qs []Question) error
	ListSections(ctx context.Context, lessonID string) ([]Section, error)
	GetSection(ctx context.Context, id string) (Section, error)
	ListSectionQuestions(ctx context.Context, sectionID string) ([]Question, error)

	CreateQuizSet(ctx context.Context, s QuizSet) error
	GetQuizSet(ctx context.Context, id string) (QuizSet, error)
	SetQuizSetState(ctx context.Context, id string, status Status, errMsg string) error
	ReplaceSetQuestions(ctx context.Context, setID string, qs []Question) error
	ListSetQuestions(ctx context.Context, setID string) ([]Question, error)
	UpdateQuestionAnswers(ctx context.Context, questionID string, correct []int, multi bool) error
}
