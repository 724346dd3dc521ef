package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/llm"
)

func seedSet(t *testing.T, store lesson.Store) string {
	t.Helper()
	ctx := context.Background()
	set := lesson.QuizSet{ID: "set-1", OwnerID: "u1", Title: "Mock exam", Status: lesson.StatusReady}
	if err := store.CreateQuizSet(ctx, set); err != nil {
		t.Fatal(err)
	}
	qs := []lesson.Question{
		{ID: "q1", SetID: set.ID, Position: 0, Prompt: "p1", Choices: []string{"a", "b", "c", "d"}, Correct: []int{0}},
		{ID: "q2", SetID: set.ID, Position: 1, Prompt: "p2", Choices: []string{"a", "b", "c"}, Correct: []int{1}},
		{ID: "q3", SetID: set.ID, Position: 2, Prompt: "p3", Choices: []string{"a", "b"}, Correct: nil},
	}
	if err := store.ReplaceSetQuestions(ctx, set.ID, qs); err != nil {
		t.Fatal(err)
	}
	return set.ID
}

func TestReconcileAppliesSkipsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	setID := seedSet(t, store)

	// Question 1: valid multi answer with duplicate and lowercase labels.
	// Question 2: label "D" names a choice q2 does not have -> skippedInvalid.
	// Question 3: absent from the key -> skippedMissing.
	keyJSON := `{"answers":[
		{"number":1,"options":["c","A","C"]},
		{"number":2,"options":["D"]}
	]}`
	completion := &fakeLLM{
		answerKey: func([]llm.Blob) (string, error) { return keyJSON, nil },
	}
	orch := New(store, newFakeBlobs(), completion, &fakeRenderer{}, nil, Config{})

	pages := []KeyPage{{PageNumber: 2, Data: []byte("k2"), MIMEType: "image/png"}, {PageNumber: 1, Data: []byte("k1"), MIMEType: "image/png"}}

	var summaries []ReconcileSummary
	for i := 0; i < 2; i++ {
		s, err := orch.ReconcileAnswerKey(ctx, setID, pages)
		if err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
		summaries = append(summaries, s)
	}
	if summaries[0] != summaries[1] {
		t.Fatalf("summaries differ across runs: %+v vs %+v", summaries[0], summaries[1])
	}

	s := summaries[0]
	if s.TotalQuestions != 3 || s.ExtractedAnswers != 2 || s.Updated != 1 || s.SkippedMissing != 1 || s.SkippedInvalid != 1 {
		t.Fatalf("summary = %+v", s)
	}

	qs, err := store.ListSetQuestions(ctx, setID)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]lesson.Question{}
	for _, q := range qs {
		byID[q.ID] = q
	}
	// "c","A","C" dedupes to {A,C} -> sorted indices {0,2}, multi.
	if got := byID["q1"].Correct; !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("q1 correct = %v, want [0 2]", got)
	}
	if !byID["q1"].Multi {
		t.Fatal("q1 should be marked multi")
	}
	// Skipped questions keep their previous answers.
	if got := byID["q2"].Correct; !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("q2 correct = %v, want [1] (untouched)", got)
	}
	if len(byID["q3"].Correct) != 0 {
		t.Fatalf("q3 correct = %v, want empty (untouched)", byID["q3"].Correct)
	}
}

func TestReconcileEmptySetIsNoop(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	if err := store.CreateQuizSet(ctx, lesson.QuizSet{ID: "empty-set", OwnerID: "u1"}); err != nil {
		t.Fatal(err)
	}
	called := false
	completion := &fakeLLM{
		answerKey: func([]llm.Blob) (string, error) { called = true; return "{}", nil },
	}
	orch := New(store, newFakeBlobs(), completion, &fakeRenderer{}, nil, Config{})

	s, err := orch.ReconcileAnswerKey(ctx, "empty-set", []KeyPage{{PageNumber: 1, Data: []byte("x")}})
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalQuestions != 0 || called {
		t.Fatalf("empty set must short-circuit before the extraction call (summary %+v, called %v)", s, called)
	}
}

func TestNormalizeLabelsAndIndices(t *testing.T) {
	got := normalizeLabels([]string{" a ", "C", "a", "", "c"})
	if !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("normalizeLabels = %v", got)
	}

	if _, ok := labelsToIndices([]string{"AB"}, 4); ok {
		t.Fatal("multi-letter label must be invalid")
	}
	if _, ok := labelsToIndices([]string{"E"}, 4); ok {
		t.Fatal("label beyond choice count must be invalid")
	}
	if _, ok := labelsToIndices(nil, 4); ok {
		t.Fatal("empty labels must be invalid")
	}
	idx, ok := labelsToIndices([]string{"D", "A"}, 4)
	if !ok || !reflect.DeepEqual(idx, []int{0, 3}) {
		t.Fatalf("labelsToIndices = %v, %v", idx, ok)
	}
}
