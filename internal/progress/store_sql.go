package progress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/study-gate/studygate/internal/errs"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Seed(ctx context.Context, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().Unix()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (user_id,section_id,lesson_id,status,last_score,attempts,updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)
			 ON CONFLICT (user_id,section_id) DO NOTHING`,
			r.UserID, r.SectionID, r.LessonID, r.Status, r.LastScore, r.Attempts, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListByLesson(ctx context.Context, userID, lessonID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.user_id, p.section_id, p.lesson_id, p.status, p.last_score, p.attempts
		 FROM progress p
		 JOIN sections s ON s.id = p.section_id
		 WHERE p.user_id=$1 AND p.lesson_id=$2
		 ORDER BY s.order_index`, userID, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.UserID, &r.SectionID, &r.LessonID, &r.Status, &r.LastScore, &r.Attempts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, userID, sectionID string) (Row, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, section_id, lesson_id, status, last_score, attempts
		 FROM progress WHERE user_id=$1 AND section_id=$2`, userID, sectionID)
	var r Row
	if err := row.Scan(&r.UserID, &r.SectionID, &r.LessonID, &r.Status, &r.LastScore, &r.Attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, false, nil
		}
		return Row{}, false, err
	}
	return r, true, nil
}

func (s *SQLStore) ApplyAttempt(ctx context.Context, userID, sectionID string, score int, passed bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE progress
		 SET attempts = attempts + 1,
		     last_score = $1,
		     status = CASE WHEN $2 THEN 'completed' ELSE status END,
		     updated_at = $3
		 WHERE user_id=$4 AND section_id=$5`,
		score, passed, time.Now().Unix(), userID, sectionID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, errs.NotFound("progress row not found")
	}

	var attempts int
	if err := tx.QueryRowContext(ctx,
		`SELECT attempts FROM progress WHERE user_id=$1 AND section_id=$2`,
		userID, sectionID).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, tx.Commit()
}

func (s *SQLStore) Promote(ctx context.Context, userID, sectionID, lessonID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (user_id,section_id,lesson_id,status,last_score,attempts,updated_at)
		 VALUES ($1,$2,$3,'current',0,0,$4)
		 ON CONFLICT (user_id,section_id) DO UPDATE SET status='current', updated_at=EXCLUDED.updated_at
		 WHERE progress.status='locked'`,
		userID, sectionID, lessonID, time.Now().Unix())
	return err
}
