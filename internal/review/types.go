// Package review provides reviewer-feedback storage for procedure
// classifications. Low-confidence engine outputs are routed here; clinical
// reviewers record whether they agree with the engine's category, and the
// stored verdicts feed reference-table maintenance.
package review

import (
	"context"
	"io"
	"time"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// Review represents one reviewer verdict on an engine classification.
type Review struct {
	ID               int64           `json:"id,omitempty"`
	ProcedureID      string          `json:"procedure_id"`
	EngineCategory   domain.Category `json:"engine_category"`
	EngineScore      int             `json:"engine_score"`
	ReviewerID       string          `json:"reviewer_id,omitempty"`
	ReviewerCategory domain.Category `json:"reviewer_category"`
	ReviewerAgreed   bool            `json:"reviewer_agreed"`
	Notes            string          `json:"notes,omitempty"`
	ArtifactVersion  string          `json:"artifact_version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Store defines the interface for review storage operations.
type Store interface {
	// Save stores or updates a review verdict. One verdict is kept per
	// procedure per artifact version; re-review updates in place.
	Save(ctx context.Context, review *Review) error

	// Get retrieves the verdict for a procedure under an artifact version.
	// Returns nil when no verdict has been recorded.
	Get(ctx context.Context, procedureID, artifactVersion string) (*Review, error)

	// List returns review verdicts with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Review, error)

	// Count returns the total number of verdicts.
	Count(ctx context.Context) (int64, error)

	// Delete removes a verdict by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all verdicts to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports verdicts from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Reviews    []*Review `json:"reviews"`
}
