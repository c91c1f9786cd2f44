package classifier

import (
	"strings"

	"github.com/neuroonc-procedure-classifier/internal/reference"
)

// contextFlags are the Context Validator outputs. The validator is
// intentionally separated from classification: context modulates confidence
// but is never the sole basis for a category decision, so it has no access
// to the category vocabulary.
type contextFlags struct {
	Supporting    bool
	Contradicting bool
}

// validateContext tests the stated clinical reason and anatomical site
// against the two term sets. The two flags are independent: text can match
// both sets, and the scorer's veto handles that case (contradiction wins).
func validateContext(snap *reference.Snapshot, reason, site string) contextFlags {
	return contextFlags{
		Supporting:    matchesAnyTerm(snap.SupportingTerms(), reason, site),
		Contradicting: matchesAnyTerm(snap.ContradictingTerms(), reason, site),
	}
}

func matchesAnyTerm(terms []string, fields ...string) bool {
	for _, field := range fields {
		if field == "" {
			continue
		}
		for _, term := range terms {
			if strings.Contains(field, term) {
				return true
			}
		}
	}
	return false
}
