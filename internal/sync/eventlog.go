package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Event is one append-only pipeline milestone. The lessons row carries only
// the latest advisory message; the log keeps the full history.
type Event struct {
	Offset    int64
	LessonID  string
	Type      string
	Message   string
	Pct       int
	CreatedAt int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lesson_events (lesson_id, typ, message, pct, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.LessonID, e.Type, e.Message, e.Pct, time.Now().Unix())
	return err
}

func (r *EventRepo) ListByLesson(ctx context.Context, lessonID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", lesson_id, typ, message, pct, created_at
		 FROM lesson_events WHERE lesson_id=$1 ORDER BY "offset"`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.LessonID, &e.Type, &e.Message, &e.Pct, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
