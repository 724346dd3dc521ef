package lesson

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/study-gate/studygate/internal/errs"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) CreateLesson(ctx context.Context, l Lesson) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id,owner_id,title,status,progress_pct,progress_msg,error_msg,total_pages,threshold,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		l.ID, l.OwnerID, l.Title, string(l.Status), l.ProgressPct, l.ProgressMsg, l.ErrorMsg, l.TotalPages, l.Threshold, time.Now().Unix())
	return err
}

func (s *SQLStore) GetLesson(ctx context.Context, id string) (Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,owner_id,title,status,progress_pct,progress_msg,error_msg,total_pages,threshold,created_at
		 FROM lessons WHERE id=$1`, id)
	var l Lesson
	var status string
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &status, &l.ProgressPct, &l.ProgressMsg, &l.ErrorMsg, &l.TotalPages, &l.Threshold, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lesson{}, errs.NotFound("lesson not found")
		}
		return Lesson{}, err
	}
	l.Status = Status(status)
	return l, nil
}

func (s *SQLStore) ListLessons(ctx context.Context, ownerID string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,owner_id,title,status,progress_pct,progress_msg,error_msg,total_pages,threshold,created_at
		 FROM lessons WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		var status string
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.Title, &status, &l.ProgressPct, &l.ProgressMsg, &l.ErrorMsg, &l.TotalPages, &l.Threshold, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Status = Status(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetLessonState(ctx context.Context, id string, status Status, pct int, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET status=$1, progress_pct=$2, progress_msg=$3 WHERE id=$4`,
		string(status), pct, msg, id)
	return err
}

func (s *SQLStore) SetLessonError(ctx context.Context, id, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET status='error', error_msg=$1 WHERE id=$2`, msg, id)
	return err
}

func (s *SQLStore) SetLessonTotalPages(ctx context.Context, id string, n int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE lessons SET total_pages=$1 WHERE id=$2`, n, id)
	return err
}

func (s *SQLStore) CreateDocument(ctx context.Context, d Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id,lesson_id,set_id,category,filename,blob_key,page_count,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, nullable(d.LessonID), nullable(d.SetID), string(d.Category), d.Filename, d.BlobKey, d.PageCount, time.Now().Unix())
	return err
}

func (s *SQLStore) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,lesson_id,set_id,category,filename,blob_key,page_count,created_at
		 FROM documents WHERE id=$1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, errs.NotFound("document not found")
	}
	return d, err
}

func (s *SQLStore) ListLessonDocuments(ctx context.Context, lessonID string) ([]Document, error) {
	return s.listDocuments(ctx, `lesson_id`, lessonID)
}

func (s *SQLStore) ListSetDocuments(ctx context.Context, setID string) ([]Document, error) {
	return s.listDocuments(ctx, `set_id`, setID)
}

func (s *SQLStore) listDocuments(ctx context.Context, col, id string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id,lesson_id,set_id,category,filename,blob_key,page_count,created_at
		 FROM documents WHERE %s=$1 ORDER BY created_at`, col), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetDocumentPageCount(ctx context.Context, id string, n int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET page_count=$1 WHERE id=$2`, n, id)
	return err
}

func (s *SQLStore) UpsertTranscript(ctx context.Context, t Transcript) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (document_id,page_number,image_key,content,has_visuals,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (document_id,page_number) DO UPDATE SET
		   image_key=EXCLUDED.image_key, content=EXCLUDED.content,
		   has_visuals=EXCLUDED.has_visuals, updated_at=EXCLUDED.updated_at`,
		t.DocumentID, t.PageNumber, t.ImageKey, t.Content, t.HasVisuals, time.Now().Unix())
	return err
}

func (s *SQLStore) ListTranscripts(ctx context.Context, documentID string) ([]Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id,page_number,image_key,content,has_visuals
		 FROM transcripts WHERE document_id=$1 ORDER BY page_number`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transcript
	for rows.Next() {
		var t Transcript
		if err := rows.Scan(&t.DocumentID, &t.PageNumber, &t.ImageKey, &t.Content, &t.HasVisuals); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReplaceSections(ctx context.Context, lessonID string, secs []Section, qs []Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Questions are removed explicitly rather than via FK cascade; SQLite
	// does not enforce cascades unless foreign_keys is on per connection.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM questions WHERE section_id IN (SELECT id FROM sections WHERE lesson_id=$1)`, lessonID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE lesson_id=$1`, lessonID); err != nil {
		return err
	}
	for _, sec := range secs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (id,lesson_id,order_index,title,start_page,end_page,summary,threshold)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			sec.ID, lessonID, sec.OrderIndex, sec.Title, sec.StartPage, sec.EndPage, sec.Summary, sec.Threshold); err != nil {
			return err
		}
	}
	for _, q := range qs {
		if err := insertQuestion(ctx, tx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListSections(ctx context.Context, lessonID string) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,lesson_id,order_index,title,start_page,end_page,summary,threshold
		 FROM sections WHERE lesson_id=$1 ORDER BY order_index`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.LessonID, &sec.OrderIndex, &sec.Title, &sec.StartPage, &sec.EndPage, &sec.Summary, &sec.Threshold); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetSection(ctx context.Context, id string) (Section, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,lesson_id,order_index,title,start_page,end_page,summary,threshold
		 FROM sections WHERE id=$1`, id)
	var sec Section
	if err := row.Scan(&sec.ID, &sec.LessonID, &sec.OrderIndex, &sec.Title, &sec.StartPage, &sec.EndPage, &sec.Summary, &sec.Threshold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Section{}, errs.NotFound("section not found")
		}
		return Section{}, err
	}
	return sec, nil
}

func (s *SQLStore) ListSectionQuestions(ctx context.Context, sectionID string) ([]Question, error) {
	return s.listQuestions(ctx, `section_id`, sectionID)
}

func (s *SQLStore) CreateQuizSet(ctx context.Context, q QuizSet) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_sets (id,owner_id,title,status,error_msg,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		q.ID, q.OwnerID, q.Title, string(q.Status), q.ErrorMsg, time.Now().Unix())
	return err
}

func (s *SQLStore) GetQuizSet(ctx context.Context, id string) (QuizSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,owner_id,title,status,error_msg,created_at FROM quiz_sets WHERE id=$1`, id)
	var q QuizSet
	var status string
	if err := row.Scan(&q.ID, &q.OwnerID, &q.Title, &status, &q.ErrorMsg, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuizSet{}, errs.NotFound("quiz set not found")
		}
		return QuizSet{}, err
	}
	q.Status = Status(status)
	return q, nil
}

func (s *SQLStore) SetQuizSetState(ctx context.Context, id string, status Status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE quiz_sets SET status=$1, error_msg=$2 WHERE id=$3`, string(status), errMsg, id)
	return err
}

func (s *SQLStore) ReplaceSetQuestions(ctx context.Context, setID string, qs []Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE set_id=$1`, setID); err != nil {
		return err
	}
	for _, q := range qs {
		if err := insertQuestion(ctx, tx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListSetQuestions(ctx context.Context, setID string) ([]Question, error) {
	return s.listQuestions(ctx, `set_id`, setID)
}

func (s *SQLStore) UpdateQuestionAnswers(ctx context.Context, questionID string, correct []int, multi bool) error {
	cj, err := json.Marshal(correct)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE questions SET correct_json=$1, multi=$2 WHERE id=$3`, string(cj), multi, questionID)
	return err
}

func (s *SQLStore) listQuestions(ctx context.Context, col, id string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id,section_id,set_id,position,prompt,choices_json,correct_json,explanation,multi
		 FROM questions WHERE %s=$1 ORDER BY position`, col), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var q Question
		var sectionID, setID sql.NullString
		var choicesJSON, correctJSON string
		if err := rows.Scan(&q.ID, &sectionID, &setID, &q.Position, &q.Prompt, &choicesJSON, &correctJSON, &q.Explanation, &q.Multi); err != nil {
			return nil, err
		}
		q.SectionID = sectionID.String
		q.SetID = setID.String
		if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
			return nil, fmt.Errorf("question %s choices: %w", q.ID, err)
		}
		if err := json.Unmarshal([]byte(correctJSON), &q.Correct); err != nil {
			return nil, fmt.Errorf("question %s answers: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestion(ctx context.Context, e execer, q Question) error {
	chj, err := json.Marshal(q.Choices)
	if err != nil {
		return err
	}
	coj, err := json.Marshal(q.Correct)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO questions (id,section_id,set_id,position,prompt,choices_json,correct_json,explanation,multi)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		q.ID, nullable(q.SectionID), nullable(q.SetID), q.Position, q.Prompt, string(chj), string(coj), q.Explanation, q.Multi)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDocument(r rowScanner) (Document, error) {
	var d Document
	var lessonID, setID sql.NullString
	var category string
	if err := r.Scan(&d.ID, &lessonID, &setID, &category, &d.Filename, &d.BlobKey, &d.PageCount, &d.CreatedAt); err != nil {
		return Document{}, err
	}
	d.LessonID = lessonID.String
	d.SetID = setID.String
	d.Category = DocCategory(category)
	return d, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
