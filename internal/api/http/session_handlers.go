package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/session"
)

// CreateSessionHandler starts a practice session. Optional totalQuestions and
// questionIds narrow the session to a count or an explicit question subset.
func CreateSessionHandler(svc *session.Service) nethttp.HandlerFunc {
	type request struct {
		Mode           string   `json:"mode"`
		TotalQuestions int      `json:"totalQuestions"`
		QuestionIDs    []string `json:"questionIds"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		sub := authmw.SubjectFromContext(r.Context())
		sess, err := svc.Create(r.Context(), sub, chi.URLParam(r, "id"), session.CreateParams{
			Mode:           req.Mode,
			TotalQuestions: req.TotalQuestions,
			QuestionIDs:    req.QuestionIDs,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, map[string]any{"session": sess})
	}
}

// UpdateSessionHandler serves both session mutations on one PATCH route:
// an answer record, or completion when complete=true. Grading happens
// server-side; any correctness claim in the request is ignored.
func UpdateSessionHandler(svc *session.Service) nethttp.HandlerFunc {
	type answerReq struct {
		QuestionID       string    `json:"questionId"`
		SelectedOption   answerVal `json:"selectedOption"`
		TimeSpentSeconds int       `json:"timeSpentSeconds"`
	}
	type request struct {
		SessionID string     `json:"sessionId"`
		Answer    *answerReq `json:"answer,omitempty"`
		Complete  bool       `json:"complete,omitempty"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if req.SessionID == "" {
			writeErr(w, errs.Validation("sessionId is required"))
			return
		}
		sub := authmw.SubjectFromContext(r.Context())

		switch {
		case req.Complete:
			sess, err := svc.Complete(r.Context(), sub, req.SessionID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"session": sess})
		case req.Answer != nil:
			if req.Answer.QuestionID == "" {
				writeErr(w, errs.Validation("answer.questionId is required"))
				return
			}
			ans, err := svc.RecordAnswer(r.Context(), sub, req.SessionID,
				req.Answer.QuestionID, req.Answer.SelectedOption.indices, req.Answer.TimeSpentSeconds)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"success": true, "correct": ans.Correct})
		default:
			writeErr(w, errs.Validation("body must carry an answer or complete=true"))
		}
	}
}
