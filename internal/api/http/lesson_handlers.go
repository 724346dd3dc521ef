package http

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/pipeline"
	"github.com/study-gate/studygate/internal/progress"
	"github.com/study-gate/studygate/internal/storage"
)

// UploadLimits caps what a single upload may carry. Page counts are checked
// against the rendered document, not the client's claim.
type UploadLimits struct {
	MaxBytes        int64
	MaxContentPages int
	MaxQuizPages    int
}

// CreateLessonHandler accepts multipart form data: a title field and a PDF
// file, stores the blob and registers the lesson with its first content
// document. The pipeline is not started here; POST /lessons/{id}/process does
// that explicitly.
func CreateLessonHandler(store lesson.Store, blobs storage.BlobStore, renderer pipeline.Renderer, limits UploadLimits, defaultThreshold int) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		title, doc, tmpPath, err := receiveUpload(r, limits, limits.MaxContentPages, renderer)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer os.Remove(tmpPath)

		l := lesson.Lesson{
			ID:        uuid.NewString(),
			OwnerID:   sub,
			Title:     title,
			Status:    lesson.StatusDraft,
			Threshold: defaultThreshold,
			CreatedAt: time.Now().Unix(),
		}
		doc.LessonID = l.ID
		doc.Category = lesson.DocContent
		doc.BlobKey = fmt.Sprintf("lessons/%s/docs/%s/source.pdf", l.ID, doc.ID)

		if err := storeUpload(r, blobs, tmpPath, doc.BlobKey); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.CreateLesson(r.Context(), l); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.CreateDocument(r.Context(), doc); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, map[string]any{"lesson": l, "document": doc})
	}
}

// UploadDocumentHandler adds a document to an existing lesson. The category
// field selects content or answer_key; answer-key pages share the quiz cap.
func UploadDocumentHandler(store lesson.Store, blobs storage.BlobStore, renderer pipeline.Renderer, limits UploadLimits) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		lessonID := chi.URLParam(r, "id")
		l, err := store.GetLesson(r.Context(), lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, l.OwnerID, "lesson", lessonID); err != nil {
			writeErr(w, err)
			return
		}

		// Parse the (byte-capped) form before reading the category field.
		_, doc, tmpPath, err := receiveUpload(r, limits, limits.MaxContentPages, renderer)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer os.Remove(tmpPath)

		category := lesson.DocCategory(r.FormValue("category"))
		switch category {
		case "", lesson.DocContent:
			category = lesson.DocContent
		case lesson.DocAnswerKey:
			// Answer keys share the quiz page cap, which is stricter than
			// the content cap already applied during receive.
			if doc.PageCount > limits.MaxQuizPages {
				writeErr(w, errs.Validation("document has %d pages, limit is %d", doc.PageCount, limits.MaxQuizPages))
				return
			}
		default:
			writeErr(w, errs.Validation("unknown document category %q", category))
			return
		}

		doc.LessonID = lessonID
		doc.Category = category
		doc.BlobKey = fmt.Sprintf("lessons/%s/docs/%s/source.pdf", lessonID, doc.ID)
		if err := storeUpload(r, blobs, tmpPath, doc.BlobKey); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.CreateDocument(r.Context(), doc); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, map[string]any{"document": doc})
	}
}

func ListLessonsHandler(store lesson.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		out, err := store.ListLessons(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		if out == nil {
			out = []lesson.Lesson{}
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{"lessons": out})
	}
}

// ProcessLessonHandler runs the full pipeline synchronously and reports the
// derived total page count. Safe to re-run: transcripts upsert and sections
// are replaced wholesale.
func ProcessLessonHandler(store lesson.Store, orch *pipeline.Orchestrator) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		lessonID := chi.URLParam(r, "id")
		l, err := store.GetLesson(r.Context(), lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, l.OwnerID, "lesson", lessonID); err != nil {
			writeErr(w, err)
			return
		}
		totalPages, err := orch.Run(r.Context(), lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{"totalPages": totalPages})
	}
}

// GetLessonDataHandler assembles the learner view: lesson, curriculum,
// per-section progress, signed document URLs and the generated questions with
// correct answers stripped.
func GetLessonDataHandler(store lesson.Store, prog progress.Store, blobs storage.BlobStore) nethttp.HandlerFunc {
	type sectionView struct {
		lesson.Section
		Questions []lesson.Question `json:"questions"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx := r.Context()
		lessonID := chi.URLParam(r, "id")
		sub := authmw.SubjectFromContext(ctx)

		l, err := store.GetLesson(ctx, lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, l.OwnerID, "lesson", lessonID); err != nil {
			writeErr(w, err)
			return
		}
		secs, err := store.ListSections(ctx, lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		views := make([]sectionView, 0, len(secs))
		for _, sec := range secs {
			qs, err := store.ListSectionQuestions(ctx, sec.ID)
			if err != nil {
				writeErr(w, err)
				return
			}
			views = append(views, sectionView{Section: sec, Questions: stripAnswers(qs)})
		}

		rows, err := prog.ListByLesson(ctx, sub, lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if rows == nil {
			rows = []progress.Row{}
		}

		docs, err := store.ListLessonDocuments(ctx, lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		urls := make(map[string]string, len(docs))
		for _, d := range docs {
			u, err := blobs.SignedURL(ctx, d.BlobKey)
			if err != nil {
				writeErr(w, err)
				return
			}
			urls[d.ID] = u
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"lesson":           l,
			"sections":         views,
			"progress":         rows,
			"documentUrls":     urls,
			"generatedContent": len(secs) > 0,
		})
	}
}

// stripAnswers clears correct indices and explanations before questions leave
// the server; explanations come back only in submit results.
func stripAnswers(qs []lesson.Question) []lesson.Question {
	out := make([]lesson.Question, len(qs))
	for i, q := range qs {
		q.Correct = nil
		q.Explanation = ""
		out[i] = q
	}
	return out
}

// receiveUpload reads the multipart file into a temp path under the byte cap
// and returns the title field plus a partially filled document with the
// derived page count. Callers enforce their own page cap and clean up the
// temp file.
func receiveUpload(r *nethttp.Request, limits UploadLimits, maxPages int, renderer pipeline.Renderer) (string, lesson.Document, string, error) {
	r.Body = nethttp.MaxBytesReader(nil, r.Body, limits.MaxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *nethttp.MaxBytesError
		if errors.As(err, &maxErr) {
			// ContentLength may be -1 (chunked); the constructor copes.
			return "", lesson.Document{}, "", errs.PayloadTooLarge(limits.MaxBytes, r.ContentLength)
		}
		return "", lesson.Document{}, "", errs.Validation("invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", lesson.Document{}, "", errs.Validation("missing file field")
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return "", lesson.Document{}, "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", lesson.Document{}, "", err
	}
	tmp.Close()

	pages, err := renderer.PageCount(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return "", lesson.Document{}, "", errs.Validation("unreadable PDF: %v", err)
	}
	if pages > maxPages {
		os.Remove(tmp.Name())
		return "", lesson.Document{}, "", errs.Validation("document has %d pages, limit is %d", pages, maxPages)
	}

	doc := lesson.Document{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(header.Filename),
		PageCount: pages,
		CreatedAt: time.Now().Unix(),
	}
	return r.FormValue("title"), doc, tmp.Name(), nil
}

func storeUpload(r *nethttp.Request, blobs storage.BlobStore, tmpPath, key string) error {
	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = blobs.Put(r.Context(), key, f)
	return err
}
