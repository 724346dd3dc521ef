package http

import (
	"encoding/json"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/progress"
)

// InitProgressHandler seeds the caller's progress rows for a lesson: first
// section current, the rest locked. Idempotent.
func InitProgressHandler(engine *progress.Engine) nethttp.HandlerFunc {
	type sectionStatus struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Score  int    `json:"score"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		rows, err := engine.Init(r.Context(), sub, chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]sectionStatus, 0, len(rows))
		for _, row := range rows {
			out = append(out, sectionStatus{ID: row.SectionID, Status: row.Status, Score: row.LastScore})
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{"sections": out})
	}
}

// SubmitQuizHandler scores one attempt. Answers accept either a single index
// or an index array per question.
func SubmitQuizHandler(engine *progress.Engine) nethttp.HandlerFunc {
	type request struct {
		SectionID string               `json:"sectionId"`
		Answers   map[string]answerVal `json:"answers"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if req.SectionID == "" {
			writeErr(w, errs.Validation("sectionId is required"))
			return
		}
		answers := make(map[string][]int, len(req.Answers))
		for qid, v := range req.Answers {
			answers[qid] = v.indices
		}
		sub := authmw.SubjectFromContext(r.Context())
		res, err := engine.Submit(r.Context(), sub, req.SectionID, answers)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, res)
	}
}

// answerVal unmarshals either 2 or [0,2].
type answerVal struct {
	indices []int
}

func (a *answerVal) UnmarshalJSON(b []byte) error {
	var single int
	if err := json.Unmarshal(b, &single); err == nil {
		a.indices = []int{single}
		return nil
	}
	var many []int
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	a.indices = many
	return nil
}
