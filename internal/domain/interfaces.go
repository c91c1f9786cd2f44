package domain

import (
	"context"
)

// ProcedureClassifier evaluates procedure signals into classification
// results. Implementations are pure functions over an immutable reference
// snapshot: no I/O, no cross-record state, safe for concurrent use.
type ProcedureClassifier interface {
	Classify(ctx context.Context, signal *ProcedureSignal) *ClassificationResult
	ClassifyBatch(ctx context.Context, signals []*ProcedureSignal) []*ClassificationResult
}

// ResultRepository persists classification results for warehouse
// re-materialization.
type ResultRepository interface {
	Save(ctx context.Context, result *ClassificationResult) error
	SaveBatch(ctx context.Context, results []*ClassificationResult) (int, error)
	GetByProcedureID(ctx context.Context, procedureID string) (*ClassificationResult, error)
	ListLowConfidence(ctx context.Context, threshold, limit, offset int) ([]*ClassificationResult, error)
}

// ConfigManager provides access to validated service configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
	IsProduction() bool
}
