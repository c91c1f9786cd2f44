package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite. It is the
// default backend for standalone operation: no server, one file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite review store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanReview scans a row into a Review struct.
func scanReview(s scanner) (*Review, error) {
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

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		procedure_id TEXT NOT NULL,
		engine_category TEXT NOT NULL,
		engine_score INTEGER NOT NULL,
		reviewer_id TEXT DEFAULT '',
		reviewer_category TEXT DEFAULT '',
		reviewer_agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		artifact_version TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(procedure_id, artifact_version)
	);

	CREATE INDEX IF NOT EXISTS idx_procedure_id ON reviews(procedure_id);
	CREATE INDEX IF NOT EXISTS idx_created_at ON reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates a review verdict.
func (s *SQLiteStore) Save(ctx context.Context, review *Review) error {
	now := time.Now()

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM reviews WHERE procedure_id = ? AND artifact_version = ?",
		review.ProcedureID, review.ArtifactVersion,
	).Scan(&existingID)

	if err == nil {
		// Update existing
		review.ID = existingID
		review.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE reviews SET
				engine_category = ?,
				engine_score = ?,
				reviewer_id = ?,
				reviewer_category = ?,
				reviewer_agreed = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			string(review.EngineCategory),
			review.EngineScore,
			review.ReviewerID,
			string(review.ReviewerCategory),
			review.ReviewerAgreed,
			review.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	review.CreatedAt = now
	review.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (
			procedure_id, engine_category, engine_score,
			reviewer_id, reviewer_category, reviewer_agreed,
			notes, artifact_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	review.ID = id

	return nil
}

// Get retrieves the verdict for a procedure under an artifact version.
func (s *SQLiteStore) Get(ctx context.Context, procedureID, artifactVersion string) (*Review, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, procedure_id, engine_category, engine_score,
			reviewer_id, reviewer_category, reviewer_agreed,
			notes, artifact_version, created_at, updated_at
		FROM reviews
		WHERE procedure_id = ? AND artifact_version = ?
		LIMIT 1
	`, procedureID, artifactVersion)

	rv, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rv, nil
}

// List returns review verdicts with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, procedure_id, engine_category, engine_score,
			reviewer_id, reviewer_category, reviewer_agreed,
			notes, artifact_version, created_at, updated_at
		FROM reviews
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

// Count returns the total number of verdicts.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&count)
	return count, err
}

// Delete removes a verdict by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all verdicts to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rv := range export.Reviews {
		// Check if exists
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
