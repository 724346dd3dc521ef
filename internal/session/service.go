// Package session manages practice sessions against a quiz set: answers are
// recorded one at a time and graded immediately, with running counters kept
// on the session row.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Session struct {
	ID             string   `json:"id"`
	SetID          string   `json:"set_id"`
	UserID         string   `json:"user_id"`
	Mode           string   `json:"mode"`
	QuestionIDs    []string `json:"question_ids,omitempty"`
	TotalQuestions int      `json:"total_questions"`
	AnsweredCount  int      `json:"answered_count"`
	CorrectCount   int      `json:"correct_count"`
	TotalTimeSec   int      `json:"total_time_sec"`
	Status         string   `json:"status"`
	CreatedAt      int64    `json:"created_at"`
	CompletedAt    int64    `json:"completed_at,omitempty"`
}

type Answer struct {
	SessionID    string `json:"session_id"`
	QuestionID   string `json:"question_id"`
	Selected     []int  `json:"selected"`
	Correct      bool   `json:"correct"`
	TimeSpentSec int    `json:"time_spent_sec"`
}

type Service struct {
	db      *sql.DB
	lessons lesson.Store
}

func NewService(db *sql.DB, lessons lesson.Store) *Service {
	return &Service{db: db, lessons: lessons}
}

// CreateParams narrows a session to a chosen question subset or count; zero
// values mean the whole set.
type CreateParams struct {
	Mode           string
	TotalQuestions int
	QuestionIDs    []string
}

// Create starts a session over a ready quiz set the caller owns. A question
// subset restricts which questions the session will accept answers for.
func (s *Service) Create(ctx context.Context, userID, setID string, p CreateParams) (*Session, error) {
	set, err := s.lessons.GetQuizSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set.OwnerID != userID {
		return nil, errs.NotFound("quiz set %s not found", setID)
	}
	if set.Status != lesson.StatusReady {
		return nil, errs.Validation("quiz set is not ready")
	}
	qs, err := s.lessons.ListSetQuestions(ctx, setID)
	if err != nil {
		return nil, err
	}
	mode := p.Mode
	if mode == "" {
		mode = "practice"
	}

	total := len(qs)
	if len(p.QuestionIDs) > 0 {
		known := make(map[string]struct{}, len(qs))
		for _, q := range qs {
			known[q.ID] = struct{}{}
		}
		seen := make(map[string]struct{}, len(p.QuestionIDs))
		for _, id := range p.QuestionIDs {
			if _, ok := known[id]; !ok {
				return nil, errs.Validation("question %s not in set", id)
			}
			if _, dup := seen[id]; dup {
				return nil, errs.Validation("duplicate question %s", id)
			}
			seen[id] = struct{}{}
		}
		total = len(p.QuestionIDs)
	} else if p.TotalQuestions > 0 && p.TotalQuestions < total {
		total = p.TotalQuestions
	}

	var subsetJSON sql.NullString
	if len(p.QuestionIDs) > 0 {
		b, err := json.Marshal(p.QuestionIDs)
		if err != nil {
			return nil, err
		}
		subsetJSON = sql.NullString{String: string(b), Valid: true}
	}

	sess := &Session{
		ID:             uuid.NewString(),
		SetID:          setID,
		UserID:         userID,
		Mode:           mode,
		QuestionIDs:    p.QuestionIDs,
		TotalQuestions: total,
		Status:         StatusActive,
		CreatedAt:      time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO practice_sessions (id,set_id,user_id,mode,question_ids,total_questions,answered_count,correct_count,total_time_sec,status,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,0,0,0,$7,$8)`,
		sess.ID, sess.SetID, sess.UserID, sess.Mode, subsetJSON, sess.TotalQuestions, sess.Status, sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,set_id,user_id,mode,question_ids,total_questions,answered_count,correct_count,total_time_sec,status,created_at,completed_at
		 FROM practice_sessions WHERE id=$1`, sessionID)
	var sess Session
	var subsetJSON sql.NullString
	var completedAt sql.NullInt64
	err := row.Scan(&sess.ID, &sess.SetID, &sess.UserID, &sess.Mode, &subsetJSON, &sess.TotalQuestions,
		&sess.AnsweredCount, &sess.CorrectCount, &sess.TotalTimeSec, &sess.Status, &sess.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("session %s not found", sessionID)
	}
	if err != nil {
		return nil, err
	}
	if subsetJSON.Valid && subsetJSON.String != "" {
		if err := json.Unmarshal([]byte(subsetJSON.String), &sess.QuestionIDs); err != nil {
			return nil, err
		}
	}
	sess.CompletedAt = completedAt.Int64
	return &sess, nil
}

// RecordAnswer grades one answer and folds it into the session counters. The
// upsert and the counter update run in one transaction; re-answering the same
// question replaces the previous answer and adjusts counters instead of
// double-counting.
func (s *Service) RecordAnswer(ctx context.Context, userID, sessionID, questionID string, selected []int, timeSpentSec int) (*Answer, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, errs.NotFound("session %s not found", sessionID)
	}
	if sess.Status != StatusActive {
		return nil, errs.Validation("session is already completed")
	}
	if len(selected) == 0 {
		return nil, errs.Validation("no choices selected")
	}
	if len(sess.QuestionIDs) > 0 && !containsID(sess.QuestionIDs, questionID) {
		return nil, errs.Validation("question %s is not part of this session", questionID)
	}

	q, err := s.setQuestion(ctx, sess.SetID, questionID)
	if err != nil {
		return nil, err
	}
	correct := len(q.Correct) > 0 && sameSet(selected, q.Correct)

	selJSON, err := json.Marshal(selected)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevCorrect bool
	prevExists := true
	err = tx.QueryRowContext(ctx,
		`SELECT is_correct FROM session_answers WHERE session_id=$1 AND question_id=$2`,
		sessionID, questionID).Scan(&prevCorrect)
	if errors.Is(err, sql.ErrNoRows) {
		prevExists = false
	} else if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_answers (session_id,question_id,selected_json,is_correct,time_spent_sec)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (session_id,question_id) DO UPDATE
		 SET selected_json=EXCLUDED.selected_json, is_correct=EXCLUDED.is_correct, time_spent_sec=EXCLUDED.time_spent_sec`,
		sessionID, questionID, string(selJSON), correct, timeSpentSec); err != nil {
		return nil, err
	}

	answeredDelta := 0
	if !prevExists {
		answeredDelta = 1
	}
	correctDelta := 0
	switch {
	case correct && (!prevExists || !prevCorrect):
		correctDelta = 1
	case !correct && prevExists && prevCorrect:
		correctDelta = -1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE practice_sessions
		 SET answered_count = answered_count + $1,
		     correct_count = correct_count + $2,
		     total_time_sec = total_time_sec + $3
		 WHERE id=$4`,
		answeredDelta, correctDelta, timeSpentSec, sessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Answer{
		SessionID:    sessionID,
		QuestionID:   questionID,
		Selected:     selected,
		Correct:      correct,
		TimeSpentSec: timeSpentSec,
	}, nil
}

// Complete closes the session. Completing twice is a no-op returning the
// stored state.
func (s *Service) Complete(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, errs.NotFound("session %s not found", sessionID)
	}
	if sess.Status == StatusCompleted {
		return sess, nil
	}
	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE practice_sessions SET status=$1, completed_at=$2 WHERE id=$3 AND status=$4`,
		StatusCompleted, now, sessionID, StatusActive); err != nil {
		return nil, err
	}
	sess.Status = StatusCompleted
	sess.CompletedAt = now
	return sess, nil
}

func (s *Service) setQuestion(ctx context.Context, setID, questionID string) (lesson.Question, error) {
	qs, err := s.lessons.ListSetQuestions(ctx, setID)
	if err != nil {
		return lesson.Question{}, err
	}
	for _, q := range qs {
		if q.ID == questionID {
			return q, nil
		}
	}
	return lesson.Question{}, errs.NotFound("question %s not in set", questionID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sameSet(got, want []int) bool {
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
