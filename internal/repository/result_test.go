package repository

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

var resultRowColumns = []string{
	"procedure_id", "category", "tier_used",
	"has_supporting_context", "has_contradicting_context",
	"confidence_score", "is_tumor_related", "is_excluded",
	"surgery_type", "rationale", "artifact_version", "engine_version",
}

func newMockRepository(t *testing.T) (*ResultRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewResultRepository(mock, logger), mock
}

func sampleResult(procedureID string, score int) *domain.ClassificationResult {
	return &domain.ClassificationResult{
		ProcedureID:          procedureID,
		Category:             domain.CategoryCraniotomyTumorResection,
		TierUsed:             domain.SourcePrimaryCode,
		HasSupportingContext: true,
		ConfidenceScore:      score,
		IsTumorRelated:       true,
		SurgeryType:          domain.SurgeryTumorResection,
		Rationale:            "primary code 61510 matched definite_include",
		ArtifactVersion:      "2026.08.1",
		EngineVersion:        "1.0.0",
	}
}

func resultArgs(r *domain.ClassificationResult) []any {
	return []any{
		r.ProcedureID, r.Category, r.TierUsed,
		r.HasSupportingContext, r.HasContradictingContext,
		r.ConfidenceScore, r.IsTumorRelated, r.IsExcluded,
		r.SurgeryType, r.Rationale, r.ArtifactVersion, r.EngineVersion,
	}
}

func resultRow(r *domain.ClassificationResult) []any {
	return []any{
		r.ProcedureID, string(r.Category), string(r.TierUsed),
		r.HasSupportingContext, r.HasContradictingContext,
		r.ConfidenceScore, r.IsTumorRelated, r.IsExcluded,
		string(r.SurgeryType), r.Rationale, r.ArtifactVersion, r.EngineVersion,
	}
}

func TestResultRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t)
	result := sampleResult("P-1001", 90)

	mock.ExpectExec("INSERT INTO classification_results").
		WithArgs(resultArgs(result)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepository_Save_Error(t *testing.T) {
	repo, mock := newMockRepository(t)
	result := sampleResult("P-1001", 90)

	mock.ExpectExec("INSERT INTO classification_results").
		WithArgs(resultArgs(result)...).
		WillReturnError(errors.New("connection reset"))

	err := repo.Save(context.Background(), result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving classification result")
}

func TestResultRepository_SaveBatch(t *testing.T) {
	repo, mock := newMockRepository(t)
	results := []*domain.ClassificationResult{
		sampleResult("P-1001", 90),
		sampleResult("P-1002", 65),
	}

	mock.ExpectBegin()
	batch := mock.ExpectBatch()
	for _, r := range results {
		batch.ExpectExec("INSERT INTO classification_results").
			WithArgs(resultArgs(r)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	count, err := repo.SaveBatch(context.Background(), results)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failed row rolls back the whole batch: the warehouse must never hold a
// partially re-materialized run.
func TestResultRepository_SaveBatch_RollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	results := []*domain.ClassificationResult{
		sampleResult("P-1001", 90),
		sampleResult("P-1002", 65),
	}

	mock.ExpectBegin()
	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO classification_results").
		WithArgs(resultArgs(results[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO classification_results").
		WithArgs(resultArgs(results[1])...).
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	count, err := repo.SaveBatch(context.Background(), results)
	require.Error(t, err)
	assert.Equal(t, 0, count)
	assert.Contains(t, err.Error(), "executing batch insert")
}

func TestResultRepository_SaveBatch_Empty(t *testing.T) {
	repo, mock := newMockRepository(t)

	count, err := repo.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepository_GetByProcedureID(t *testing.T) {
	repo, mock := newMockRepository(t)
	stored := sampleResult("P-1001", 90)

	mock.ExpectQuery("SELECT (.+) FROM classification_results").
		WithArgs("P-1001").
		WillReturnRows(pgxmock.NewRows(resultRowColumns).AddRow(resultRow(stored)...))

	got, err := repo.GetByProcedureID(context.Background(), "P-1001")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestResultRepository_GetByProcedureID_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM classification_results").
		WithArgs("P-9999").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByProcedureID(context.Background(), "P-9999")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResultRepository_ListLowConfidence(t *testing.T) {
	repo, mock := newMockRepository(t)

	low := sampleResult("P-2001", 40)
	low.Category = domain.CategoryGenericCranialProcedure
	low.TierUsed = domain.SourceKeyword
	low.HasSupportingContext = false
	low.SurgeryType = domain.SurgeryUnknown
	mid := sampleResult("P-2002", 65)

	mock.ExpectQuery("SELECT (.+) FROM classification_results").
		WithArgs(70, 50, 0).
		WillReturnRows(pgxmock.NewRows(resultRowColumns).
			AddRow(resultRow(low)...).
			AddRow(resultRow(mid)...))

	results, err := repo.ListLowConfidence(context.Background(), 70, 50, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, low, results[0])
	assert.Equal(t, mid, results[1])
}

func TestResultRepository_CountByCategory(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT category, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"category", "count"}).
			AddRow("craniotomy_tumor_resection", int64(12)).
			AddRow("unclassified", int64(3)))

	counts, err := repo.CountByCategory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), counts[domain.CategoryCraniotomyTumorResection])
	assert.Equal(t, int64(3), counts[domain.CategoryUnclassified])
}
