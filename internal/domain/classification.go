package domain

// ClassificationResult is the per-record output of the classification
// engine. It is immutable once produced: downstream reporting and
// re-materialization consume it, nothing mutates it.
//
// The result intentionally carries no wall-clock timestamp so that repeated
// evaluations of the same signal against the same reference-artifact version
// are bit-identical; persistence layers stamp rows on write instead.
type ClassificationResult struct {
	ProcedureID string `json:"procedure_id"`

	Category Category   `json:"category"`
	TierUsed TierSource `json:"tier_used"`

	HasSupportingContext    bool `json:"has_supporting_context"`
	HasContradictingContext bool `json:"has_contradicting_context"`

	// ConfidenceScore is an integer in [0, 100].
	ConfidenceScore int `json:"confidence_score"`

	IsTumorRelated bool        `json:"is_tumor_related"`
	IsExcluded     bool        `json:"is_excluded"`
	SurgeryType    SurgeryType `json:"surgery_type"`

	// Rationale states which signals fired, in reviewer-readable form.
	Rationale string `json:"rationale"`

	// ArtifactVersion is the reference-table version the record was scored
	// against. In-flight evaluations finish against the snapshot they
	// started with, so this can lag a concurrent reload.
	ArtifactVersion string `json:"artifact_version"`

	// EngineVersion identifies the decision logic for audit trails.
	EngineVersion string `json:"engine_version"`
}

// NeedsReview reports whether the record should be routed to human review.
// The engine is a deterministic approximation of clinical judgment;
// low-confidence outputs are exactly the ones it cannot vouch for.
func (r *ClassificationResult) NeedsReview(threshold int) bool {
	return !r.IsExcluded && r.ConfidenceScore < threshold
}

// LogFields returns structured logging fields for audit trails.
func (r *ClassificationResult) LogFields() map[string]any {
	return map[string]any{
		"procedure_id":     r.ProcedureID,
		"category":         r.Category.String(),
		"tier_used":        r.TierUsed.String(),
		"confidence_score": r.ConfidenceScore,
		"is_tumor_related": r.IsTumorRelated,
		"is_excluded":      r.IsExcluded,
		"surgery_type":     r.SurgeryType.String(),
		"artifact_version": r.ArtifactVersion,
	}
}
