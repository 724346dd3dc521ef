package progress

import (
	"context"
	"math"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
)

// Engine is the mastery gate: it seeds progress, scores submissions and
// drives the locked/current/completed transitions.
type Engine struct {
	store   Store
	lessons lesson.Store
}

func NewEngine(store Store, lessons lesson.Store) *Engine {
	return &Engine{store: store, lessons: lessons}
}

type SubmitResult struct {
	Score          int                       `json:"score"`
	Passed         bool                      `json:"passed"`
	CorrectCount   int                       `json:"correctCount"`
	TotalQuestions int                       `json:"totalQuestions"`
	Threshold      int                       `json:"threshold"`
	Attempts       int                       `json:"attempts"`
	Results        map[string]QuestionResult `json:"results"`
}

// QuestionResult carries the correct answer so the caller can render
// explanations after the attempt.
type QuestionResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer []int  `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

// Init seeds a progress row for every section of the lesson: the first
// section current, the rest locked. Re-initializing never regresses existing
// rows. Returns the rows in section order. Another user's lesson is reported
// as not found so its existence stays hidden.
func (e *Engine) Init(ctx context.Context, userID, lessonID string) ([]Row, error) {
	l, err := e.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != userID {
		return nil, errs.NotFound("lesson %s not found", lessonID)
	}
	secs, err := e.lessons.ListSections(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(secs))
	for _, sec := range secs {
		status := StatusLocked
		if sec.OrderIndex == 0 {
			status = StatusCurrent
		}
		rows = append(rows, Row{UserID: userID, SectionID: sec.ID, LessonID: lessonID, Status: status})
	}
	if err := e.store.Seed(ctx, rows); err != nil {
		return nil, err
	}
	return e.store.ListByLesson(ctx, userID, lessonID)
}

// Submit scores one quiz attempt against a section. A submission against a
// locked section is denied; a submission missing an answer for any question
// is rejected before scoring and records no attempt. Per question only an
// exact match of the correct-answer set counts. Passing completes the
// section and promotes the next one; failing leaves the section current and
// the learner may retry indefinitely.
func (e *Engine) Submit(ctx context.Context, userID, sectionID string, answers map[string][]int) (*SubmitResult, error) {
	sec, err := e.lessons.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	l, err := e.lessons.GetLesson(ctx, sec.LessonID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != userID {
		return nil, errs.NotFound("section %s not found", sectionID)
	}

	row, found, err := e.store.Get(ctx, userID, sectionID)
	if err != nil {
		return nil, err
	}
	switch {
	case found && row.Status == StatusLocked:
		return nil, errs.AccessDenied("section is locked")
	case !found && sec.OrderIndex > 0:
		return nil, errs.AccessDenied("section is locked")
	case !found:
		// The first section is implicitly unlocked even absent a row.
		seed := Row{UserID: userID, SectionID: sectionID, LessonID: sec.LessonID, Status: StatusCurrent}
		if err := e.store.Seed(ctx, []Row{seed}); err != nil {
			return nil, err
		}
	}

	questions, err := e.lessons.ListSectionQuestions(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, errs.Validation("section has no questions")
	}
	for _, q := range questions {
		if len(answers[q.ID]) == 0 {
			return nil, errs.IncompleteSubmission("missing answer for question %s", q.ID)
		}
	}

	results := make(map[string]QuestionResult, len(questions))
	correctCount := 0
	for _, q := range questions {
		ok := sameAnswerSet(answers[q.ID], q.Correct)
		if ok {
			correctCount++
		}
		results[q.ID] = QuestionResult{Correct: ok, CorrectAnswer: q.Correct, Explanation: q.Explanation}
	}
	score := int(math.Round(100 * float64(correctCount) / float64(len(questions))))
	passed := score >= sec.Threshold

	attempts, err := e.store.ApplyAttempt(ctx, userID, sectionID, score, passed)
	if err != nil {
		return nil, err
	}
	if passed {
		if next, ok, err := e.nextSection(ctx, sec); err != nil {
			return nil, err
		} else if ok {
			if err := e.store.Promote(ctx, userID, next.ID, sec.LessonID); err != nil {
				return nil, err
			}
		}
	}

	return &SubmitResult{
		Score:          score,
		Passed:         passed,
		CorrectCount:   correctCount,
		TotalQuestions: len(questions),
		Threshold:      sec.Threshold,
		Attempts:       attempts,
		Results:        results,
	}, nil
}

func (e *Engine) nextSection(ctx context.Context, sec lesson.Section) (lesson.Section, bool, error) {
	secs, err := e.lessons.ListSections(ctx, sec.LessonID)
	if err != nil {
		return lesson.Section{}, false, err
	}
	for _, s := range secs {
		if s.OrderIndex == sec.OrderIndex+1 {
			return s, true, nil
		}
	}
	return lesson.Section{}, false, nil
}

// sameAnswerSet compares submissions as sets: no partial credit, no credit
// for supersets.
func sameAnswerSet(got, want []int) bool {
	if len(want) == 0 {
		return false
	}
	gs := make(map[int]struct{}, len(got))
	for _, g := range got {
		gs[g] = struct{}{}
	}
	if len(gs) != len(want) {
		return false
	}
	for _, w := range want {
		if _, ok := gs[w]; !ok {
			return false
		}
	}
	return true
}
