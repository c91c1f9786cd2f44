// Package classifier implements the procedure classification and
// confidence-scoring engine: a layered, precedence-ordered rule evaluator
// that approximates a clinician's judgment from structured proxies.
//
// Evaluation is a pure function from one ProcedureSignal to one
// ClassificationResult over an immutable reference snapshot. There is no
// I/O, no cross-record state and no feedback loop; batch evaluation is
// embarrassingly parallel.
package classifier

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/pkg/coding"
)

// normalizedSignal is the Code Signal Extractor output: coded identifiers
// collapsed to canonical (system, value) pairs and free text lowercased for
// term matching.
type normalizedSignal struct {
	procedureID   string
	primary       *domain.Code
	institutional []domain.Code
	description   string
	reason        string
	site          string
}

// extractSignals normalizes one raw procedure signal. Malformed codes are
// kept (they will simply never match a table entry) and logged at debug
// level for source-system follow-up.
func extractSignals(sig *domain.ProcedureSignal, log *logrus.Logger) normalizedSignal {
	norm := normalizedSignal{
		procedureID: sig.ProcedureID,
		description: strings.ToLower(strings.TrimSpace(sig.DescriptionText)),
		reason:      strings.ToLower(strings.TrimSpace(sig.ReasonText)),
		site:        strings.ToLower(strings.TrimSpace(sig.AnatomicalSiteText)),
	}

	if sig.PrimaryCode != nil && strings.TrimSpace(sig.PrimaryCode.Value) != "" {
		code := coding.Normalize(*sig.PrimaryCode)
		if err := coding.Validate(code); err != nil {
			log.WithFields(logrus.Fields{
				"procedure_id": sig.ProcedureID,
				"system":       sig.PrimaryCode.System,
			}).WithError(err).Debug("Primary code failed syntax validation")
		}
		norm.primary = &code
	}

	for _, raw := range sig.InstitutionalCodes {
		if strings.TrimSpace(raw.Value) == "" {
			continue
		}
		code := coding.Normalize(raw)
		if err := coding.Validate(code); err != nil {
			log.WithFields(logrus.Fields{
				"procedure_id": sig.ProcedureID,
				"system":       raw.System,
			}).WithError(err).Debug("Institutional code failed syntax validation")
		}
		norm.institutional = append(norm.institutional, code)
	}

	return norm
}
