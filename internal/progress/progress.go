// Package progress tracks per-(user, section) mastery state and scores quiz
// submissions against it. The machine is monotonic: the set of non-locked
// sections for a user never shrinks.
package progress

import "context"

const (
	StatusLocked    = "locked"
	StatusCurrent   = "current"
	StatusCompleted = "completed"
)

// Row is one (user, section) progress record.
type Row struct {
	UserID    string `json:"user_id"`
	SectionID string `json:"section_id"`
	LessonID  string `json:"lesson_id"`
	Status    string `json:"status"`
	LastScore int    `json:"score"`
	Attempts  int    `json:"attempts"`
}

// Store exposes the primitive, individually-atomic operations the state
// machine is built on. Transition decisions live in Engine.
type Store interface {
	// Seed inserts rows that do not exist yet; existing rows are untouched.
	Seed(ctx context.Context, rows []Row) error
	ListByLesson(ctx context.Context, userID, lessonID string) ([]Row, error)
	Get(ctx context.Context, userID, sectionID string) (Row, bool, error)
	// ApplyAttempt increments the attempt count, records the score and, on a
	// pass, completes the section in one atomic update, so two concurrent
	// submissions cannot lose an attempt increment.
	ApplyAttempt(ctx context.Context, userID, sectionID string, score int, passed bool) (attempts int, err error)
	// Promote moves a section to current if it is locked (or absent),
	// creating the row if needed. Completed sections are left alone.
	Promote(ctx context.Context, userID, sectionID, lessonID string) error
}
