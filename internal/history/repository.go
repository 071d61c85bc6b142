package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Entry is one recorded evaluation outcome.
type Entry struct {
	ID               int64     `db:"id"`
	Word             string    `db:"word"`
	PageContext      string    `db:"page_context"`
	Difficulty       string    `db:"difficulty"`
	Status           string    `db:"status"`
	Score            int       `db:"score"`
	Cached           bool      `db:"cached"`
	Fallback         bool      `db:"fallback"`
	EvaluationTimeMs int64     `db:"evaluation_time_ms"`
	CreatedAt        time.Time `db:"created_at"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const schema = `CREATE TABLE IF NOT EXISTS evaluation_logs (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	word VARCHAR(255) NOT NULL,
	page_context VARCHAR(32) NOT NULL,
	difficulty VARCHAR(32) NOT NULL,
	status VARCHAR(16) NOT NULL,
	score INT NOT NULL,
	cached BOOLEAN NOT NULL,
	fallback BOOLEAN NOT NULL,
	evaluation_time_ms BIGINT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	INDEX idx_evaluation_logs_created_at (created_at)
)`

// EnsureSchema creates the evaluation_logs table when it does not exist yet.
func (repository *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := repository.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db.ExecContext > %w", err)
	}
	return nil
}

func (repository *Repository) Insert(ctx context.Context, entry Entry) error {
	query := `INSERT INTO evaluation_logs
		(word, page_context, difficulty, status, score, cached, fallback, evaluation_time_ms)
		VALUES (:word, :page_context, :difficulty, :status, :score, :cached, :fallback, :evaluation_time_ms)`
	if _, err := repository.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("db.NamedExecContext > %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (repository *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, word, page_context, difficulty, status, score, cached, fallback, evaluation_time_ms, created_at
		FROM evaluation_logs ORDER BY created_at DESC, id DESC LIMIT ?`
	var entries []Entry
	if err := repository.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("db.SelectContext > %w", err)
	}
	return entries, nil
}
