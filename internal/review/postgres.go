package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL. It is the
// backend for shared multi-reviewer deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL review store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL review store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates a review verdict.
func (s *PostgresStore) Save(ctx context.Context, review *Review) error {
	now := time.Now()

	// Use upsert (INSERT ... ON CONFLICT)
	query := `
		INSERT INTO reviews (
			procedure_id, engine_category, engine_score,
			reviewer_id, reviewer_category, reviewer_agreed,
			notes, artifact_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (procedure_id, artifact_version) DO UPDATE SET
			engine_category = EXCLUDED.engine_category,
			engine_score = EXCLUDED.engine_score,
			reviewer_id = EXCLUDED.reviewer_id,
			reviewer_category = EXCLUDED.reviewer_category,
			reviewer_agreed = EXCLUDED.reviewer_agreed,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		review.ProcedureID,
		string(review.EngineCategory),
		review.EngineScore,
		review.ReviewerID,
		string(review.ReviewerCategory),
		review.ReviewerAgreed,
		review.Notes,
		review.ArtifactVersion,
		now,
		now,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}

	review.UpdatedAt = now
	return nil
}

// Get retrieves the verdict for a procedure under an artifact version.
func (s *PostgresStore) Get(ctx context.Context, procedureID, artifactVersion string) (*Review, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, procedure_id, engine_category, engine_score,
			reviewer_id, reviewer_category, reviewer_agreed,
			notes, artifact_version, created_at, updated_at
		FROM reviews
		WHERE procedure_id = $1 AND artifact_version = $2
		LIMIT 1
	`, procedureID, artifactVersion)

	rv, err := scanPostgresReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rv, nil
}

// List returns review verdicts with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, procedure_id, engine_category, engine_score,
			reviewer_id, reviewer_category, reviewer_agreed,
			notes, artifact_version, created_at, updated_at
		FROM reviews
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Review
	for rows.Next() {
		rv, err := scanPostgresReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

// Count returns the total number of verdicts.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&count)
	return count, err
}

// Delete removes a verdict by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", id)
	return err
}

// ExportJSON exports all verdicts to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Reviews:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports verdicts from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rv := range export.Reviews {
		existing, err := s.Get(ctx, rv.ProcedureID, rv.ArtifactVersion)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, rv); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// scanPostgresReview scans a row into a Review struct.
func scanPostgresReview(s scanner) (*Review, error) {
	rv := &Review{}
	var engineCategory, reviewerCategory string

	err := s.Scan(
		&rv.ID, &rv.ProcedureID, &engineCategory, &rv.EngineScore,
		&rv.ReviewerID, &reviewerCategory, &rv.ReviewerAgreed,
		&rv.Notes, &rv.ArtifactVersion, &rv.CreatedAt, &rv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rv.EngineCategory = domain.Category(engineCategory)
	rv.ReviewerCategory = domain.Category(reviewerCategory)
	return rv, nil
}
