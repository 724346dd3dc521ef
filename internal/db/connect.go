package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:studygate.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/studygate?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  pass_hash TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',       -- draft|processing|ready|error
  progress_pct INTEGER NOT NULL DEFAULT 0,
  progress_msg TEXT NOT NULL DEFAULT '',
  error_msg TEXT NOT NULL DEFAULT '',
  total_pages INTEGER NOT NULL DEFAULT 0,
  threshold INTEGER NOT NULL DEFAULT 70,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_sets (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  error_msg TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  lesson_id TEXT REFERENCES lessons(id) ON DELETE CASCADE,
  set_id TEXT REFERENCES quiz_sets(id) ON DELETE CASCADE,
  category TEXT NOT NULL,                     -- content|answer_key|quiz
  filename TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  page_count INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
  document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  page_number INTEGER NOT NULL,
  image_key TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL,
  has_visuals INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (document_id, page_number)
);

CREATE TABLE IF NOT EXISTS sections (
  id TEXT PRIMARY KEY,
  lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
  order_index INTEGER NOT NULL,
  title TEXT NOT NULL,
  start_page INTEGER NOT NULL,
  end_page INTEGER NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  threshold INTEGER NOT NULL DEFAULT 70,
  UNIQUE (lesson_id, order_index)
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  section_id TEXT REFERENCES sections(id) ON DELETE CASCADE,
  set_id TEXT REFERENCES quiz_sets(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  prompt TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  correct_json TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  multi INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS progress (
  user_id TEXT NOT NULL,
  section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  lesson_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'locked',      -- locked|current|completed
  last_score INTEGER NOT NULL DEFAULT 0,
  attempts INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, section_id)
);

CREATE TABLE IF NOT EXISTS practice_sessions (
  id TEXT PRIMARY KEY,
  set_id TEXT NOT NULL REFERENCES quiz_sets(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  question_ids TEXT,                          -- JSON array; NULL = whole set
  total_questions INTEGER NOT NULL DEFAULT 0,
  answered_count INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER NOT NULL DEFAULT 0,
  total_time_sec INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',      -- active|completed
  created_at INTEGER NOT NULL,
  completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS session_answers (
  session_id TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_json TEXT NOT NULL,
  is_correct INTEGER NOT NULL,
  time_spent_sec INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS lesson_events (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  lesson_id TEXT NOT NULL,
  typ TEXT NOT NULL,                          -- e.g. PipelineMilestone
  message TEXT NOT NULL,
  pct INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  pass_hash TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  progress_pct INTEGER NOT NULL DEFAULT 0,
  progress_msg TEXT NOT NULL DEFAULT '',
  error_msg TEXT NOT NULL DEFAULT '',
  total_pages INTEGER NOT NULL DEFAULT 0,
  threshold INTEGER NOT NULL DEFAULT 70,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_sets (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  error_msg TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  lesson_id TEXT REFERENCES lessons(id) ON DELETE CASCADE,
  set_id TEXT REFERENCES quiz_sets(id) ON DELETE CASCADE,
  category TEXT NOT NULL,
  filename TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  page_count INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
  document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  page_number INTEGER NOT NULL,
  image_key TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL,
  has_visuals BOOLEAN NOT NULL DEFAULT FALSE,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (document_id, page_number)
);

CREATE TABLE IF NOT EXISTS sections (
  id TEXT PRIMARY KEY,
  lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
  order_index INTEGER NOT NULL,
  title TEXT NOT NULL,
  start_page INTEGER NOT NULL,
  end_page INTEGER NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  threshold INTEGER NOT NULL DEFAULT 70,
  UNIQUE (lesson_id, order_index)
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  section_id TEXT REFERENCES sections(id) ON DELETE CASCADE,
  set_id TEXT REFERENCES quiz_sets(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  prompt TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  correct_json TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  multi BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS progress (
  user_id TEXT NOT NULL,
  section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  lesson_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'locked',
  last_score INTEGER NOT NULL DEFAULT 0,
  attempts INTEGER NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, section_id)
);

CREATE TABLE IF NOT EXISTS practice_sessions (
  id TEXT PRIMARY KEY,
  set_id TEXT NOT NULL REFERENCES quiz_sets(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  question_ids TEXT,
  total_questions INTEGER NOT NULL DEFAULT 0,
  answered_count INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER NOT NULL DEFAULT 0,
  total_time_sec INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  created_at BIGINT NOT NULL,
  completed_at BIGINT
);

CREATE TABLE IF NOT EXISTS session_answers (
  session_id TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_json TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL,
  time_spent_sec INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS lesson_events (
  "offset" BIGSERIAL PRIMARY KEY,
  lesson_id TEXT NOT NULL,
  typ TEXT NOT NULL,
  message TEXT NOT NULL,
  pct INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);
`
