package lesson

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/study-gate/studygate/internal/db"
	"github.com/study-gate/studygate/internal/errs"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh)
}

func TestLessonRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	l := Lesson{ID: "l1", OwnerID: "u1", Title: "Physics", Status: StatusDraft, Threshold: 70, CreatedAt: 100}
	if err := store.CreateLesson(ctx, l); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetLesson(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Physics" || got.Status != StatusDraft || got.Threshold != 70 {
		t.Fatalf("got %+v", got)
	}

	if err := store.SetLessonState(ctx, "l1", StatusProcessing, 30, "Transcribing"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetLessonTotalPages(ctx, "l1", 12); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetLesson(ctx, "l1")
	if got.Status != StatusProcessing || got.ProgressPct != 30 || got.TotalPages != 12 {
		t.Fatalf("got %+v", got)
	}

	if _, err := store.GetLesson(ctx, "missing"); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}

	owned, err := store.ListLessons(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 1 {
		t.Fatalf("lessons = %d, want 1", len(owned))
	}
	other, _ := store.ListLessons(ctx, "someone-else")
	if len(other) != 0 {
		t.Fatalf("foreign owner sees %d lessons", len(other))
	}
}

func TestTranscriptUpsertKeepsSecondContent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.CreateLesson(ctx, Lesson{ID: "l1", OwnerID: "u1", Title: "T", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateDocument(ctx, Document{ID: "d1", LessonID: "l1", Category: DocContent, Filename: "f.pdf", BlobKey: "k", PageCount: 2, CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	first := Transcript{DocumentID: "d1", PageNumber: 1, ImageKey: "img1", Content: "first pass"}
	second := Transcript{DocumentID: "d1", PageNumber: 1, ImageKey: "img1", Content: "second pass", HasVisuals: true}
	if err := store.UpsertTranscript(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertTranscript(ctx, second); err != nil {
		t.Fatal(err)
	}

	ts, err := store.ListTranscripts(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 {
		t.Fatalf("transcripts = %d, want exactly 1", len(ts))
	}
	if ts[0].Content != "second pass" || !ts[0].HasVisuals {
		t.Fatalf("got %+v, want second call's content", ts[0])
	}
}

func TestReplaceSectionsSwapsCurriculum(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.CreateLesson(ctx, Lesson{ID: "l1", OwnerID: "u1", Title: "T", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	old := []Section{{ID: "sOld", LessonID: "l1", OrderIndex: 0, Title: "Old", StartPage: 1, EndPage: 5, Threshold: 70}}
	oldQ := []Question{{ID: "qOld", SectionID: "sOld", Position: 0, Prompt: "p", Choices: []string{"a", "b"}, Correct: []int{0}}}
	if err := store.ReplaceSections(ctx, "l1", old, oldQ); err != nil {
		t.Fatal(err)
	}

	fresh := []Section{
		{ID: "sA", LessonID: "l1", OrderIndex: 0, Title: "A", StartPage: 1, EndPage: 2, Threshold: 70},
		{ID: "sB", LessonID: "l1", OrderIndex: 1, Title: "B", StartPage: 3, EndPage: 5, Threshold: 70},
	}
	freshQ := []Question{
		{ID: "qA", SectionID: "sA", Position: 0, Prompt: "pa", Choices: []string{"a", "b", "c"}, Correct: []int{0, 2}, Multi: true},
		{ID: "qB", SectionID: "sB", Position: 0, Prompt: "pb", Choices: []string{"a", "b"}, Correct: []int{1}},
	}
	if err := store.ReplaceSections(ctx, "l1", fresh, freshQ); err != nil {
		t.Fatal(err)
	}

	secs, err := store.ListSections(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 || secs[0].ID != "sA" || secs[1].ID != "sB" {
		t.Fatalf("sections = %+v", secs)
	}
	if _, err := store.GetSection(ctx, "sOld"); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("old section survived replace: %v", err)
	}

	qs, err := store.ListSectionQuestions(ctx, "sA")
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 1 || !qs[0].Multi || len(qs[0].Correct) != 2 {
		t.Fatalf("questions = %+v", qs)
	}
}

func TestSetQuestionsAndAnswerUpdate(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.CreateQuizSet(ctx, QuizSet{ID: "set1", OwnerID: "u1", Title: "Mock", Status: StatusDraft, CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	qs := []Question{
		{ID: "q1", SetID: "set1", Position: 0, Prompt: "p1", Choices: []string{"a", "b", "c"}},
		{ID: "q2", SetID: "set1", Position: 1, Prompt: "p2", Choices: []string{"a", "b"}, Correct: []int{0}},
	}
	if err := store.ReplaceSetQuestions(ctx, "set1", qs); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateQuestionAnswers(ctx, "q1", []int{0, 2}, true); err != nil {
		t.Fatal(err)
	}
	got, err := store.ListSetQuestions(ctx, "set1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "q1" {
		t.Fatalf("questions = %+v", got)
	}
	if len(got[0].Correct) != 2 || !got[0].Multi {
		t.Fatalf("q1 after update = %+v", got[0])
	}

	if err := store.SetQuizSetState(ctx, "set1", StatusReady, ""); err != nil {
		t.Fatal(err)
	}
	set, err := store.GetQuizSet(ctx, "set1")
	if err != nil {
		t.Fatal(err)
	}
	if set.Status != StatusReady {
		t.Fatalf("set = %+v", set)
	}
}
