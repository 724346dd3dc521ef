package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/llm"
)

type fakeBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{data: map[string][]byte{}} }

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = b
	return key, nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("no blob %s", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobs) SignedURL(_ context.Context, key string) (string, error) {
	return "fake://" + key, nil
}

// fakeRenderer splits into n pages whose files contain "page N".
type fakeRenderer struct {
	pages int
}

func (f *fakeRenderer) PageCount(string) (int, error) { return f.pages, nil }

func (f *fakeRenderer) SplitPages(_ string, outDir string) ([]string, error) {
	paths := make([]string, 0, f.pages)
	for i := 1; i <= f.pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("source_%d.pdf", i))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("page %d", i)), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type fakeLLM struct {
	transcribe func(page llm.Blob) (string, error)
	synthesize func(transcript string, n int) (string, error)
	answerKey  func(pages []llm.Blob) (string, error)
	extract    func(transcript string) (string, error)
}

func (f *fakeLLM) TranscribePage(_ context.Context, page llm.Blob) (string, error) {
	return f.transcribe(page)
}

func (f *fakeLLM) SynthesizeCurriculum(_ context.Context, transcript string, n int) (string, error) {
	return f.synthesize(transcript, n)
}

func (f *fakeLLM) ExtractAnswerKey(_ context.Context, pages []llm.Blob) (string, error) {
	return f.answerKey(pages)
}

func (f *fakeLLM) ExtractQuestions(_ context.Context, transcript string) (string, error) {
	return f.extract(transcript)
}

func seedLesson(t *testing.T, store lesson.Store, blobs *fakeBlobs, pages int) (string, string) {
	t.Helper()
	ctx := context.Background()
	l := lesson.Lesson{ID: "les-1", OwnerID: "u1", Title: "Algebra", Status: lesson.StatusDraft, Threshold: 70}
	if err := store.CreateLesson(ctx, l); err != nil {
		t.Fatal(err)
	}
	doc := lesson.Document{
		ID: "doc-1", LessonID: l.ID, Category: lesson.DocContent,
		Filename: "algebra.pdf", BlobKey: "lessons/les-1/docs/doc-1/source.pdf", PageCount: pages,
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if _, err := blobs.Put(ctx, doc.BlobKey, strings.NewReader("%PDF-fake")); err != nil {
		t.Fatal(err)
	}
	return l.ID, doc.ID
}

func curriculumJSON(totalPages int) string {
	half := totalPages / 2
	if half < 1 {
		half = 1
	}
	return fmt.Sprintf(`{"sections":[
		{"title":"Basics","startPage":1,"endPage":%d,"summary":"s1","questions":[
			{"question":"q1","choices":["a","b","c"],"correctIndex":0}]},
		{"title":"Advanced","startPage":%d,"endPage":%d,"summary":"s2","questions":[
			{"question":"q2","choices":["a","b"],"correctIndices":[0,1]}]}
	]}`, half, half+1, totalPages)
}

func TestRunSkipsFailedPageAndReachesReady(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	blobs := newFakeBlobs()
	lessonID, docID := seedLesson(t, store, blobs, 3)

	var synthInput string
	completion := &fakeLLM{
		transcribe: func(page llm.Blob) (string, error) {
			if string(page.Data) == "page 2" {
				return "", errs.Upstream(fmt.Errorf("boom"), "vision call")
			}
			return "transcript of " + string(page.Data), nil
		},
		synthesize: func(transcript string, _ int) (string, error) {
			synthInput = transcript
			return curriculumJSON(3), nil
		},
	}

	orch := New(store, blobs, completion, &fakeRenderer{pages: 3}, nil, Config{Workers: 2})
	totalPages, err := orch.Run(ctx, lessonID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if totalPages != 3 {
		t.Fatalf("totalPages = %d, want 3", totalPages)
	}

	l, err := store.GetLesson(ctx, lessonID)
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != lesson.StatusReady {
		t.Fatalf("status = %s, want ready", l.Status)
	}

	ts, err := store.ListTranscripts(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 {
		t.Fatalf("transcripts = %d, want 2 (page 2 skipped)", len(ts))
	}

	if !strings.Contains(synthInput, "--- Page 1 ---") || !strings.Contains(synthInput, "--- Page 3 ---") {
		t.Fatalf("synthesis input missing surviving pages: %q", synthInput)
	}
	if strings.Contains(synthInput, "--- Page 2 ---") {
		t.Fatalf("synthesis input contains failed page: %q", synthInput)
	}

	secs, err := store.ListSections(ctx, lessonID)
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 {
		t.Fatalf("sections = %d, want 2", len(secs))
	}
}

func TestRunTwiceLeavesOneTranscriptPerPage(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	blobs := newFakeBlobs()
	lessonID, docID := seedLesson(t, store, blobs, 2)

	call := 0
	completion := &fakeLLM{
		transcribe: func(page llm.Blob) (string, error) {
			call++
			return fmt.Sprintf("run content %d for %s", call, page.Data), nil
		},
		synthesize: func(string, int) (string, error) { return curriculumJSON(2), nil },
	}
	orch := New(store, blobs, completion, &fakeRenderer{pages: 2}, nil, Config{Workers: 1})

	for i := 0; i < 2; i++ {
		if _, err := orch.Run(ctx, lessonID); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	ts, err := store.ListTranscripts(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 {
		t.Fatalf("transcripts = %d, want 2 after two runs", len(ts))
	}
	for _, tr := range ts {
		if !strings.HasPrefix(tr.Content, "run content") {
			t.Fatalf("unexpected content %q", tr.Content)
		}
		// Second run's content must have won the upsert.
		if !strings.Contains(tr.Content, "3") && !strings.Contains(tr.Content, "4") {
			t.Fatalf("transcript not overwritten by second run: %q", tr.Content)
		}
	}
}

func TestRunDerivedPageCountCorrectsOffsets(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	blobs := newFakeBlobs()

	// doc-1 claims 3 pages but renders 2; doc-2 renders its declared 2.
	lessonID, _ := seedLesson(t, store, blobs, 3)
	doc2 := lesson.Document{
		ID: "doc-2", LessonID: lessonID, Category: lesson.DocContent,
		Filename: "extra.pdf", BlobKey: "lessons/les-1/docs/doc-2/source.pdf", PageCount: 2,
	}
	if err := store.CreateDocument(ctx, doc2); err != nil {
		t.Fatal(err)
	}
	if _, err := blobs.Put(ctx, doc2.BlobKey, strings.NewReader("%PDF-fake")); err != nil {
		t.Fatal(err)
	}

	var synthInput string
	completion := &fakeLLM{
		transcribe: func(page llm.Blob) (string, error) { return "text of " + string(page.Data), nil },
		synthesize: func(transcript string, _ int) (string, error) {
			synthInput = transcript
			return curriculumJSON(4), nil
		},
	}
	orch := New(store, blobs, completion, &fakeRenderer{pages: 2}, nil, Config{Workers: 2})

	totalPages, err := orch.Run(ctx, lessonID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if totalPages != 4 {
		t.Fatalf("totalPages = %d, want 4 (derived, not declared 5)", totalPages)
	}

	// doc-2's pages must follow doc-1's rendered count, not its claim.
	if !strings.Contains(synthInput, "--- Page 3 ---") || !strings.Contains(synthInput, "--- Page 4 ---") {
		t.Fatalf("second document misnumbered: %q", synthInput)
	}
	if strings.Contains(synthInput, "--- Page 5 ---") {
		t.Fatalf("stale declared count leaked into numbering: %q", synthInput)
	}

	l, err := store.GetLesson(ctx, lessonID)
	if err != nil {
		t.Fatal(err)
	}
	if l.TotalPages != 4 {
		t.Fatalf("stored total pages = %d, want 4", l.TotalPages)
	}
	docs, err := store.ListLessonDocuments(ctx, lessonID)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range docs {
		if d.ID == "doc-1" && d.PageCount != 2 {
			t.Fatalf("doc-1 page count = %d, want corrected 2", d.PageCount)
		}
	}

	// Coverage validated against the corrected total, so sections persisted.
	secs, err := store.ListSections(ctx, lessonID)
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 {
		t.Fatalf("sections = %d, want 2", len(secs))
	}
}

func TestRunNoContentDocuments(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	if err := store.CreateLesson(ctx, lesson.Lesson{ID: "empty", OwnerID: "u1", Title: "Empty"}); err != nil {
		t.Fatal(err)
	}
	orch := New(store, newFakeBlobs(), &fakeLLM{}, &fakeRenderer{}, nil, Config{})

	_, err := orch.Run(ctx, "empty")
	if errs.KindOf(err) != errs.KindNoContent {
		t.Fatalf("err = %v, want NoContent", err)
	}
	// NoContent must not move the lesson to error.
	l, err2 := store.GetLesson(ctx, "empty")
	if err2 != nil {
		t.Fatal(err2)
	}
	if l.Status == lesson.StatusError {
		t.Fatalf("lesson moved to error on NoContent")
	}
}

func TestRunDocumentFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	store := lesson.NewInMemoryStore()
	blobs := newFakeBlobs()
	lessonID, _ := seedLesson(t, store, blobs, 3)
	// Remove the source blob so the download fails at document level.
	blobs.mu.Lock()
	delete(blobs.data, "lessons/les-1/docs/doc-1/source.pdf")
	blobs.mu.Unlock()

	orch := New(store, blobs, &fakeLLM{}, &fakeRenderer{pages: 3}, nil, Config{})
	if _, err := orch.Run(ctx, lessonID); err == nil {
		t.Fatal("want error for missing source document")
	}
	l, err := store.GetLesson(ctx, lessonID)
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != lesson.StatusError {
		t.Fatalf("status = %s, want error", l.Status)
	}
	if l.ErrorMsg == "" {
		t.Fatal("error message not recorded")
	}
}
