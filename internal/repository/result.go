// Package repository persists classification results to the warehouse for
// cohort re-materialization.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// warehousePool is the subset of pgxpool.Pool the repository uses.
type warehousePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ResultRepository handles classification result persistence
type ResultRepository struct {
	db  warehousePool
	log *logrus.Logger
}

// NewResultRepository creates a new result repository
func NewResultRepository(db warehousePool, logger *logrus.Logger) *ResultRepository {
	return &ResultRepository{
		db:  db,
		log: logger,
	}
}

const resultColumns = `
	procedure_id, category, tier_used,
	has_supporting_context, has_contradicting_context,
	confidence_score, is_tumor_related, is_excluded,
	surgery_type, rationale, artifact_version, engine_version`

// Save upserts one classification result. Re-running a batch against the
// same or a newer artifact overwrites the prior row for the procedure; the
// warehouse holds exactly one current classification per procedure.
func (r *ResultRepository) Save(ctx context.Context, result *domain.ClassificationResult) error {
	query := `
		INSERT INTO classification_results (` + resultColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (procedure_id) DO UPDATE SET
			category = EXCLUDED.category,
			tier_used = EXCLUDED.tier_used,
			has_supporting_context = EXCLUDED.has_supporting_context,
			has_contradicting_context = EXCLUDED.has_contradicting_context,
			confidence_score = EXCLUDED.confidence_score,
			is_tumor_related = EXCLUDED.is_tumor_related,
			is_excluded = EXCLUDED.is_excluded,
			surgery_type = EXCLUDED.surgery_type,
			rationale = EXCLUDED.rationale,
			artifact_version = EXCLUDED.artifact_version,
			engine_version = EXCLUDED.engine_version,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		result.ProcedureID,
		result.Category,
		result.TierUsed,
		result.HasSupportingContext,
		result.HasContradictingContext,
		result.ConfidenceScore,
		result.IsTumorRelated,
		result.IsExcluded,
		result.SurgeryType,
		result.Rationale,
		result.ArtifactVersion,
		result.EngineVersion,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"procedure_id": result.ProcedureID,
			"category":     result.Category,
			"error":        err,
		}).Error("Failed to save classification result")
		return fmt.Errorf("saving classification result: %w", err)
	}

	return nil
}

// SaveBatch persists a batch of results inside one transaction and returns
// the number of rows written. The batch is all-or-nothing: a partial
// re-materialization would leave the warehouse mixing artifact versions.
func (r *ResultRepository) SaveBatch(ctx context.Context, results []*domain.ClassificationResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO classification_results (` + resultColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (procedure_id) DO UPDATE SET
			category = EXCLUDED.category,
			tier_used = EXCLUDED.tier_used,
			has_supporting_context = EXCLUDED.has_supporting_context,
			has_contradicting_context = EXCLUDED.has_contradicting_context,
			confidence_score = EXCLUDED.confidence_score,
			is_tumor_related = EXCLUDED.is_tumor_related,
			is_excluded = EXCLUDED.is_excluded,
			surgery_type = EXCLUDED.surgery_type,
			rationale = EXCLUDED.rationale,
			artifact_version = EXCLUDED.artifact_version,
			engine_version = EXCLUDED.engine_version,
			updated_at = NOW()`

	for _, result := range results {
		batch.Queue(query,
			result.ProcedureID,
			result.Category,
			result.TierUsed,
			result.HasSupportingContext,
			result.HasContradictingContext,
			result.ConfidenceScore,
			result.IsTumorRelated,
			result.IsExcluded,
			result.SurgeryType,
			result.Rationale,
			result.ArtifactVersion,
			result.EngineVersion,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("executing batch insert: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing batch transaction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"records":          len(results),
		"artifact_version": results[0].ArtifactVersion,
	}).Info("Classification batch persisted")

	return len(results), nil
}

// GetByProcedureID retrieves the current classification for a procedure
func (r *ResultRepository) GetByProcedureID(ctx context.Context, procedureID string) (*domain.ClassificationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM classification_results
		WHERE procedure_id = $1`

	result, err := r.scanResult(r.db.QueryRow(ctx, query, procedureID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("classification not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"procedure_id": procedureID,
			"error":        err,
		}).Error("Failed to get classification result")
		return nil, fmt.Errorf("getting classification result: %w", err)
	}

	return result, nil
}

// ListLowConfidence returns non-excluded results below the confidence
// threshold, lowest first. This is the human-review worklist.
func (r *ResultRepository) ListLowConfidence(ctx context.Context, threshold, limit, offset int) ([]*domain.ClassificationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM classification_results
		WHERE NOT is_excluded AND confidence_score < $1
		ORDER BY confidence_score ASC, procedure_id ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, threshold, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing low-confidence results: %w", err)
	}
	defer rows.Close()

	var results []*domain.ClassificationResult
	for rows.Next() {
		result, err := r.scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// CountByCategory returns per-category result counts for cohort reporting.
func (r *ResultRepository) CountByCategory(ctx context.Context) (map[domain.Category]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT category, COUNT(*) FROM classification_results GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("counting by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Category]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[domain.Category(category)] = count
	}

	return counts, rows.Err()
}

func (r *ResultRepository) scanResult(row pgx.Row) (*domain.ClassificationResult, error) {
	var result domain.ClassificationResult
	var category, tierUsed, surgeryType string

	err := row.Scan(
		&result.ProcedureID,
		&category,
		&tierUsed,
		&result.HasSupportingContext,
		&result.HasContradictingContext,
		&result.ConfidenceScore,
		&result.IsTumorRelated,
		&result.IsExcluded,
		&surgeryType,
		&result.Rationale,
		&result.ArtifactVersion,
		&result.EngineVersion,
	)
	if err != nil {
		return nil, err
	}

	result.Category = domain.Category(category)
	result.TierUsed = domain.TierSource(tierUsed)
	result.SurgeryType = domain.SurgeryType(surgeryType)
	return &result, nil
}
