package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job is one document translation run.
type Job struct {
	ID              string
	InputFile       string
	OutputFile      string
	SourceLang      string
	TargetLang      string
	Engine          string
	Strategy        string
	Status          string
	TokenCount      int
	CharacterCount  int
	TotalItems      int
	TranslatedItems int
	Error           string
	CreatedAt       time.Time
	FinishedAt      time.Time
}

// RecordJob stores j, assigning an id and timestamps when they are unset.
func (s *Store) RecordJob(ctx context.Context, j Job) (string, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	if j.FinishedAt.IsZero() {
		j.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_jobs (id, input_file, output_file, source_lang, target_lang, engine, strategy,
		 status, token_count, character_count, total_items, translated_items, error, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.InputFile, j.OutputFile, j.SourceLang, j.TargetLang, j.Engine, j.Strategy,
		j.Status, j.TokenCount, j.CharacterCount, j.TotalItems, j.TranslatedItems, j.Error, j.CreatedAt, j.FinishedAt)
	return j.ID, err
}

// ListJobs returns the most recent jobs first. limit <= 0 returns all.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT id, input_file, output_file, source_lang, target_lang, engine, strategy, status,
		token_count, character_count, total_items, translated_items, error, created_at, finished_at
		FROM translation_jobs ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j        Job
			finished sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.InputFile, &j.OutputFile, &j.SourceLang, &j.TargetLang, &j.Engine, &j.Strategy,
			&j.Status, &j.TokenCount, &j.CharacterCount, &j.TotalItems, &j.TranslatedItems, &j.Error,
			&j.CreatedAt, &finished); err != nil {
			return nil, err
		}
		j.FinishedAt = finished.Time
		out = append(out, j)
	}
	return out, rows.Err()
}
