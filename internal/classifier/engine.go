package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/reference"
)

// EngineVersion identifies the decision logic in audit trails. Bump on any
// change to the scoring table or precedence rules.
const EngineVersion = "1.0.0"

// Engine evaluates procedure signals against the current reference
// snapshot. It is stateless between records and safe for concurrent use.
type Engine struct {
	log  *logrus.Logger
	refs *reference.Store
}

// New creates a classification engine over a reference store.
func New(refs *reference.Store, logger *logrus.Logger) *Engine {
	return &Engine{
		log:  logger,
		refs: refs,
	}
}

// Classify evaluates one procedure signal. It never returns an error:
// missing signals, unknown codes and ambiguous keyword matches are absorbed
// into the scoring model as defined outcomes, not failures.
func (e *Engine) Classify(ctx context.Context, sig *domain.ProcedureSignal) *domain.ClassificationResult {
	return e.classifyWith(e.refs.Current(), sig)
}

// ClassifyPinned evaluates one signal against a caller-pinned snapshot.
// Callers that derive cache keys or audit fields from the snapshot version
// pin it once, so a concurrent reload cannot split the version between the
// key and the result.
func (e *Engine) ClassifyPinned(ctx context.Context, snap *reference.Snapshot, sig *domain.ProcedureSignal) *domain.ClassificationResult {
	return e.classifyWith(snap, sig)
}

// classifyWith evaluates one signal against a pinned snapshot. Batch runs
// pin a single snapshot so every record in the run scores against the same
// reference-table version.
func (e *Engine) classifyWith(snap *reference.Snapshot, sig *domain.ProcedureSignal) *domain.ClassificationResult {
	norm := extractSignals(sig, e.log)

	if !sig.IsClassifiable() {
		// MissingSignal is a defined terminal outcome, never an error.
		return e.aggregate(snap, norm, scoreInput{}, "no coded or textual signal present")
	}

	primaryMatch, primaryOK := classifyPrimary(snap, norm.primary)
	instMatch, instOK := classifyInstitutional(snap, norm.institutional)

	// Free text is consulted only when no standardized code matched: a
	// coded signal always takes precedence over description text.
	var keywordMatch match
	keywordOK := false
	if !primaryOK {
		keywordMatch, keywordOK = classifyKeyword(snap, norm.description)
	}

	in := scoreInput{
		flags: validateContext(snap, norm.reason, norm.site),
	}

	// Acting classifier: first non-no-match in precedence order. Results
	// from lower-precedence classifiers are discarded, not blended.
	switch {
	case primaryOK:
		in.acting, in.hasActing = primaryMatch, true
	case instOK:
		in.acting, in.hasActing = instMatch, true
	case keywordOK:
		in.acting, in.hasActing = keywordMatch, true
	}

	// Institutional corroboration: an include-side institutional match
	// agreeing with a different acting classifier. When the institutional
	// classifier is itself acting, or disagrees by arguing inclusion
	// against an exclude-tier match, it leaves confidence unchanged.
	if instOK && in.hasActing && in.acting.Source != domain.SourceInstitutionalCode &&
		in.acting.Tier.IsIncludeSide() {
		in.corroborated = true
	}

	return e.aggregate(snap, norm, in, buildRationale(in, instOK, instMatch))
}

// aggregate is the Decision Aggregator: it derives the boolean/enum outputs
// from the scored category and assembles the immutable result. It never
// raises; unrecognized categories map to surgery type "unknown" and are
// logged for reference-table maintenance.
func (e *Engine) aggregate(snap *reference.Snapshot, norm normalizedSignal, in scoreInput, rationale string) *domain.ClassificationResult {
	score, category := scoreRecord(in)

	surgeryType, known := category.SurgeryType()
	if !known {
		e.log.WithFields(logrus.Fields{
			"procedure_id": norm.procedureID,
			"category":     category.String(),
		}).Warn("Category has no surgery type mapping, using unknown")
	}

	tierUsed := domain.SourceNone
	if in.hasActing {
		tierUsed = in.acting.Source
	}
	if in.flags.Contradicting {
		// The veto overrides whichever classifier fired, but tier_used
		// still records the acting classifier for audit.
		rationale = appendClause(rationale, "contradicting context vetoed the classification")
	}

	isExcluded := category.IsExcludeFamily() || score == 0

	result := &domain.ClassificationResult{
		ProcedureID:             norm.procedureID,
		Category:                category,
		TierUsed:                tierUsed,
		HasSupportingContext:    in.flags.Supporting,
		HasContradictingContext: in.flags.Contradicting,
		ConfidenceScore:         score,
		IsTumorRelated:          !isExcluded && category.IsTumorCategory(),
		IsExcluded:              isExcluded,
		SurgeryType:             surgeryType,
		Rationale:               rationale,
		ArtifactVersion:         snap.Version(),
		EngineVersion:           EngineVersion,
	}

	e.log.WithFields(logrus.Fields(result.LogFields())).Debug("Procedure classified")
	return result
}

// buildRationale produces the reviewer-readable audit line.
func buildRationale(in scoreInput, instOK bool, instMatch match) string {
	var parts []string

	if in.hasActing {
		parts = append(parts, fmt.Sprintf("%s matched %s (%s) via %s",
			in.acting.Source, in.acting.Category, in.acting.Tier, in.acting.Detail))
	} else {
		parts = append(parts, "no classifier matched")
	}

	switch {
	case in.corroborated:
		parts = append(parts, fmt.Sprintf("corroborated by %s (%s)", instMatch.Category, instMatch.Detail))
	case instOK && in.hasActing && in.acting.Source != domain.SourceInstitutionalCode:
		parts = append(parts, "institutional match present but not corroborating")
	}

	if in.flags.Supporting {
		parts = append(parts, "supporting context present")
	}

	return strings.Join(parts, "; ")
}

func appendClause(rationale, clause string) string {
	if rationale == "" {
		return clause
	}
	return rationale + "; " + clause
}
