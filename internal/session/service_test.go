package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/study-gate/studygate/internal/db"
	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
)

func newTestService(t *testing.T) (*Service, lesson.Store) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	lessons := lesson.NewSQLStore(dbh)
	return NewService(dbh, lessons), lessons
}

func seedReadySet(t *testing.T, lessons lesson.Store) {
	t.Helper()
	ctx := context.Background()
	if err := lessons.CreateQuizSet(ctx, lesson.QuizSet{ID: "set1", OwnerID: "u1", Title: "Mock", Status: lesson.StatusReady}); err != nil {
		t.Fatal(err)
	}
	qs := []lesson.Question{
		{ID: "q1", SetID: "set1", Position: 0, Prompt: "p1", Choices: []string{"a", "b"}, Correct: []int{0}},
		{ID: "q2", SetID: "set1", Position: 1, Prompt: "p2", Choices: []string{"a", "b", "c"}, Correct: []int{0, 2}, Multi: true},
		{ID: "q3", SetID: "set1", Position: 2, Prompt: "p3", Choices: []string{"a", "b"}},
	}
	if err := lessons.ReplaceSetQuestions(ctx, "set1", qs); err != nil {
		t.Fatal(err)
	}
}

func TestCreateRequiresReadySet(t *testing.T) {
	ctx := context.Background()
	svc, lessons := newTestService(t)
	if err := lessons.CreateQuizSet(ctx, lesson.QuizSet{ID: "draft", OwnerID: "u1", Status: lesson.StatusDraft}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, "u1", "draft", CreateParams{Mode: "practice"}); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("err = %v, want Validation", err)
	}
	if _, err := svc.Create(ctx, "u1", "missing", CreateParams{Mode: "practice"}); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}

	seedReadySet(t, lessons)
	// Another user's set is indistinguishable from a missing one.
	if _, err := svc.Create(ctx, "mallory", "set1", CreateParams{}); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("err = %v, want NotFound for foreign set", err)
	}
	sess, err := svc.Create(ctx, "u1", "set1", CreateParams{})
	if err != nil {
		t.Fatal(err)
	}
	if sess.TotalQuestions != 3 || sess.Status != StatusActive || sess.Mode != "practice" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestCreateWithQuestionSubsetAndCount(t *testing.T) {
	ctx := context.Background()
	svc, lessons := newTestService(t)
	seedReadySet(t, lessons)

	sess, err := svc.Create(ctx, "u1", "set1", CreateParams{QuestionIDs: []string{"q1", "q3"}})
	if err != nil {
		t.Fatal(err)
	}
	if sess.TotalQuestions != 2 {
		t.Fatalf("total = %d, want 2", sess.TotalQuestions)
	}

	// The subset round-trips through the store.
	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.QuestionIDs) != 2 || got.QuestionIDs[0] != "q1" || got.QuestionIDs[1] != "q3" {
		t.Fatalf("question ids = %v", got.QuestionIDs)
	}

	// Only subset members accept answers.
	if _, err := svc.RecordAnswer(ctx, "u1", sess.ID, "q2", []int{0}, 1); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("err = %v, want Validation for question outside subset", err)
	}
	ans, err := svc.RecordAnswer(ctx, "u1", sess.ID, "q1", []int{0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Correct {
		t.Fatal("q1 answer {0} must be correct")
	}

	if _, err := svc.Create(ctx, "u1", "set1", CreateParams{QuestionIDs: []string{"ghost"}}); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("err = %v, want Validation for unknown question", err)
	}
	if _, err := svc.Create(ctx, "u1", "set1", CreateParams{QuestionIDs: []string{"q1", "q1"}}); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("err = %v, want Validation for duplicate question", err)
	}

	// A bare count caps at the set size.
	capped, err := svc.Create(ctx, "u1", "set1", CreateParams{TotalQuestions: 2})
	if err != nil {
		t.Fatal(err)
	}
	if capped.TotalQuestions != 2 {
		t.Fatalf("total = %d, want 2", capped.TotalQuestions)
	}
	over, err := svc.Create(ctx, "u1", "set1", CreateParams{TotalQuestions: 9})
	if err != nil {
		t.Fatal(err)
	}
	if over.TotalQuestions != 3 {
		t.Fatalf("total = %d, want clamped 3", over.TotalQuestions)
	}
}

func TestRecordAnswerGradesAndCounts(t *testing.T) {
	ctx := context.Background()
	svc, lessons := newTestService(t)
	seedReadySet(t, lessons)

	sess, err := svc.Create(ctx, "u1", "set1", CreateParams{Mode: "practice"})
	if err != nil {
		t.Fatal(err)
	}

	ans, err := svc.RecordAnswer(ctx, "u1", sess.ID, "q1", []int{0}, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Correct {
		t.Fatal("q1 answer {0} must be correct")
	}

	// Multi-answer: partial set is wrong, exact set right.
	ans, err = svc.RecordAnswer(ctx, "u1", sess.ID, "q2", []int{0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Correct {
		t.Fatal("partial multi-answer must be wrong")
	}

	// Unmarked question never grades correct.
	ans, err = svc.RecordAnswer(ctx, "u1", sess.ID, "q3", []int{0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Correct {
		t.Fatal("question without a key must not grade correct")
	}

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AnsweredCount != 3 || got.CorrectCount != 1 || got.TotalTimeSec != 20 {
		t.Fatalf("session = %+v", got)
	}

	// Re-answering q2 with the exact set replaces the answer and fixes the
	// counters instead of double-counting.
	ans, err = svc.RecordAnswer(ctx, "u1", sess.ID, "q2", []int{2, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Correct {
		t.Fatal("exact multi-answer set must be correct")
	}
	got, _ = svc.Get(ctx, sess.ID)
	if got.AnsweredCount != 3 || got.CorrectCount != 2 {
		t.Fatalf("session after re-answer = %+v", got)
	}

	if _, err := svc.RecordAnswer(ctx, "u1", sess.ID, "ghost", []int{0}, 1); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("err = %v, want NotFound for unknown question", err)
	}
	if _, err := svc.RecordAnswer(ctx, "intruder", sess.ID, "q1", []int{0}, 1); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("err = %v, want NotFound for other user's session", err)
	}
}

func TestCompleteIsTerminalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, lessons := newTestService(t)
	seedReadySet(t, lessons)

	sess, err := svc.Create(ctx, "u1", "set1", CreateParams{Mode: "practice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordAnswer(ctx, "u1", sess.ID, "q1", []int{0}, 2); err != nil {
		t.Fatal(err)
	}

	done, err := svc.Complete(ctx, "u1", sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == 0 {
		t.Fatalf("session = %+v", done)
	}

	again, err := svc.Complete(ctx, "u1", sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != StatusCompleted {
		t.Fatalf("second complete = %+v", again)
	}

	if _, err := svc.RecordAnswer(ctx, "u1", sess.ID, "q2", []int{0, 2}, 2); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("err = %v, want Validation after completion", err)
	}
}
