package http

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/pipeline"
	"github.com/study-gate/studygate/internal/storage"
)

// CreateSetHandler accepts a multipart quiz PDF, registers the set and runs
// quiz extraction synchronously. The quiz page cap applies.
func CreateSetHandler(store lesson.Store, blobs storage.BlobStore, renderer pipeline.Renderer, orch *pipeline.Orchestrator, limits UploadLimits) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		title, doc, tmpPath, err := receiveUpload(r, limits, limits.MaxQuizPages, renderer)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer os.Remove(tmpPath)

		set := lesson.QuizSet{
			ID:        uuid.NewString(),
			OwnerID:   sub,
			Title:     title,
			Status:    lesson.StatusDraft,
			CreatedAt: time.Now().Unix(),
		}
		doc.SetID = set.ID
		doc.Category = lesson.DocQuiz
		doc.BlobKey = fmt.Sprintf("sets/%s/docs/%s/source.pdf", set.ID, doc.ID)

		if err := storeUpload(r, blobs, tmpPath, doc.BlobKey); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.CreateQuizSet(r.Context(), set); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.CreateDocument(r.Context(), doc); err != nil {
			writeErr(w, err)
			return
		}
		if err := orch.RunSetExtraction(r.Context(), set.ID); err != nil {
			writeErr(w, err)
			return
		}
		out, err := store.GetQuizSet(r.Context(), set.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, map[string]any{"set": out})
	}
}

// GetSetHandler returns the set with its questions, answers stripped.
func GetSetHandler(store lesson.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		setID := chi.URLParam(r, "id")
		set, err := store.GetQuizSet(r.Context(), setID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, set.OwnerID, "quiz set", setID); err != nil {
			writeErr(w, err)
			return
		}
		qs, err := store.ListSetQuestions(r.Context(), setID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"set":       set,
			"questions": stripAnswers(qs),
		})
	}
}

// RecorrectHandler overrides a set's answers from uploaded answer-key page
// images, supplied as data URLs.
func RecorrectHandler(store lesson.Store, orch *pipeline.Orchestrator, limits UploadLimits) nethttp.HandlerFunc {
	type pageReq struct {
		PageNumber int    `json:"pageNumber"`
		DataURL    string `json:"dataUrl"`
	}
	type request struct {
		Pages []pageReq `json:"pages"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		setID := chi.URLParam(r, "id")
		set, err := store.GetQuizSet(r.Context(), setID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := requireOwner(r, set.OwnerID, "quiz set", setID); err != nil {
			writeErr(w, err)
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if len(req.Pages) == 0 {
			writeErr(w, errs.Validation("pages is required"))
			return
		}
		if len(req.Pages) > limits.MaxQuizPages {
			writeErr(w, errs.Validation("got %d pages, limit is %d", len(req.Pages), limits.MaxQuizPages))
			return
		}

		pages := make([]pipeline.KeyPage, 0, len(req.Pages))
		var total int64
		for _, p := range req.Pages {
			mime, data, err := decodeDataURL(p.DataURL)
			if err != nil {
				writeErr(w, errs.Validation("page %d: %v", p.PageNumber, err))
				return
			}
			total += int64(len(data))
			if total > limits.MaxBytes {
				writeErr(w, errs.PayloadTooLarge(limits.MaxBytes, total))
				return
			}
			pages = append(pages, pipeline.KeyPage{PageNumber: p.PageNumber, Data: data, MIMEType: mime})
		}

		summary, err := orch.ReconcileAnswerKey(r.Context(), setID, pages)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{"summary": summary})
	}
}

// decodeDataURL parses "data:<mime>;base64,<payload>".
func decodeDataURL(s string) (mime string, data []byte, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(s, prefix) {
		return "", nil, fmt.Errorf("not a data URL")
	}
	rest := s[len(prefix):]
	sep := strings.IndexByte(rest, ',')
	if sep < 0 {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	meta, payload := rest[:sep], rest[sep+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("data URL must be base64 encoded")
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return mime, data, nil
}
