package classifier

import (
	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/reference"
)

// match is the tagged outcome of one classifier. Classifiers return
// (match, true) or (zero, false); there is no silent fallthrough inside a
// classifier.
type match struct {
	Source   domain.TierSource
	Category domain.Category
	Tier     domain.Tier

	// Group is the keyword pattern group for keyword matches, 0 otherwise.
	Group int

	// Detail names the code value or pattern that fired, for rationales.
	Detail string
}

// classifyPrimary resolves the standardized code against the primary code
// table. Exact match only; codes from unrecognized systems or absent from
// the table return no match and control falls through.
func classifyPrimary(snap *reference.Snapshot, code *domain.Code) (match, bool) {
	if code == nil {
		return match{}, false
	}
	rule, ok := snap.LookupPrimary(code.System, code.Value)
	if !ok {
		return match{}, false
	}
	return match{
		Source:   domain.SourcePrimaryCode,
		Category: rule.Category,
		Tier:     rule.Tier,
		Detail:   code.System + " " + code.Value,
	}, true
}

// classifyInstitutional resolves site-local codes against the institutional
// table, honoring source order: the first code with a mapping wins. The
// institutional classifier only ever corroborates: artifact validation
// guarantees its tiers are include-side, so it can never set is_excluded
// downstream.
func classifyInstitutional(snap *reference.Snapshot, codes []domain.Code) (match, bool) {
	for _, code := range codes {
		rule, ok := snap.LookupInstitutional(code.System, code.Value)
		if !ok {
			continue
		}
		return match{
			Source:   domain.SourceInstitutionalCode,
			Category: rule.Category,
			Tier:     rule.Tier,
			Detail:   code.System + " " + code.Value,
		}, true
	}
	return match{}, false
}
