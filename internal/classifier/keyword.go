package classifier

import (
	"strings"

	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/reference"
)

// classifyKeyword evaluates the ordered keyword rules against lowercased
// description text. It is only consulted when no coded signal matched: a
// structured code always outranks free text.
//
// Within each group the first matching pattern wins. Across groups, an
// exclusion match outranks an inclusion match on the same text (false
// inclusion is costlier than false exclusion in this cohort), and the
// generic group is a last resort behind both.
func classifyKeyword(snap *reference.Snapshot, text string) (match, bool) {
	if text == "" {
		return match{}, false
	}

	var inclusion, exclusion, generic *reference.CompiledKeywordRule
	for i := range snap.KeywordRules() {
		rule := &snap.KeywordRules()[i]
		if !strings.Contains(text, rule.Pattern) {
			continue
		}
		switch rule.Group {
		case reference.GroupInclusion:
			if inclusion == nil {
				inclusion = rule
			}
		case reference.GroupExclusion:
			if exclusion == nil {
				exclusion = rule
			}
		case reference.GroupGeneric:
			if generic == nil {
				generic = rule
			}
		}
	}

	chosen := exclusion
	if chosen == nil {
		chosen = inclusion
	}
	if chosen == nil {
		chosen = generic
	}
	if chosen == nil {
		return match{}, false
	}

	return match{
		Source:   domain.SourceKeyword,
		Category: chosen.Category,
		Tier:     chosen.Tier,
		Group:    chosen.Group,
		Detail:   "pattern \"" + chosen.Pattern + "\"",
	}, true
}
