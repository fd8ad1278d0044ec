package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schemaStatements создают таблицы конвейера контента. Ссылки slides→headlines и
// quiz→slides допускают NULL, scores ссылается на quiz без каскада, поэтому
// удалить вопрос с результатами невозможно.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS headlines (
	id SERIAL PRIMARY KEY,
	title TEXT,
	description TEXT,
	link TEXT,
	timestamp TIMESTAMPTZ,
	source TEXT,
	published_date TIMESTAMPTZ,
	hash TEXT
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS headlines_hash_key ON headlines (hash)`,
	`CREATE TABLE IF NOT EXISTS slides (
	id SERIAL PRIMARY KEY,
	title TEXT,
	content TEXT,
	headline_id INTEGER REFERENCES headlines(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS quiz (
	id SERIAL PRIMARY KEY,
	question TEXT,
	options TEXT,
	correct INTEGER,
	explanation TEXT,
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
	slide_id INTEGER REFERENCES slides(id) ON DELETE SET NULL
)`,
	`CREATE TABLE IF NOT EXISTS scores (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL,
	quiz_id INTEGER REFERENCES quiz(id),
	score INTEGER,
	completed_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS user_totals (
	id SERIAL PRIMARY KEY,
	user_id INTEGER UNIQUE,
	total_score INTEGER DEFAULT 0,
	perfect_quizzes INTEGER DEFAULT 0,
	last_quiz TIMESTAMPTZ,
	quizzes_taken INTEGER DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS business_metrics (
	id BIGSERIAL PRIMARY KEY,
	event TEXT NOT NULL,
	user_id BIGINT,
	metadata JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS quiz_counts (
	id INTEGER PRIMARY KEY,
	count BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS slides_created_at_idx ON slides (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS quiz_created_at_idx ON quiz (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS headlines_timestamp_idx ON headlines (timestamp DESC)`,
}

// EnsureSchema создаёт недостающие таблицы и индексы.
func EnsureSchema(ctx context.Context, conn execer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for i, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
