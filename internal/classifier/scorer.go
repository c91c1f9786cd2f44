package classifier

import "github.com/neuroonc-procedure-classifier/internal/domain"

// Confidence scores, one constant per decision-table cell. The structure is
// monotone: more corroborating, independent signals never lower a score, so
// "why did this record get this score" is answerable by naming the bucket
// that fired.
const (
	scoreVeto = 0

	scoreDefiniteBoth   = 100
	scoreDefiniteSingle = 95
	scoreDefiniteAlone  = 90

	scoreContextualBoth   = 90
	scoreContextualSingle = 85
	scoreContextualAlone  = 75

	scoreAmbiguousBoth         = 70
	scoreAmbiguousContext      = 65
	scoreAmbiguousCorroborated = 60
	scoreAmbiguousAlone        = 50

	scoreKeywordSpecificContext = 75
	scoreKeywordSpecificAlone   = 65
	scoreKeywordGenericContext  = 65
	scoreKeywordGenericAlone    = 40

	scoreUnclassified = 30
)

// scoreInput is the Confidence Scorer's input: the acting classifier result
// (first non-no-match of primary > institutional > keyword; lower-precedence
// results are discarded, not blended), the institutional corroboration flag,
// and the two context flags.
type scoreInput struct {
	acting       match
	hasActing    bool
	corroborated bool
	flags        contextFlags
}

// scoreRecord is the priority-ordered decision table. The first matching
// bucket wins; the source conditions keep the buckets mutually exclusive
// (code-tier buckets never consume keyword matches and vice versa).
func scoreRecord(in scoreInput) (int, domain.Category) {
	// Bucket 1: contradicting context is an absolute veto, regardless of
	// any code-based category.
	if in.flags.Contradicting {
		return scoreVeto, domain.CategoryExcludedByContext
	}

	// Bucket 7 (checked early for clarity; exclusive with all others).
	if !in.hasActing {
		return scoreUnclassified, domain.CategoryUnclassified
	}

	// Bucket 2: a definite-exclude match zeroes confidence and keeps the
	// specific exclude sub-category.
	if in.acting.Tier == domain.TierDefiniteExclude {
		return scoreVeto, in.acting.Category
	}

	// Bucket 6: keyword matches are scored by pattern specificity, not by
	// the code-tier ladder.
	if in.acting.Source == domain.SourceKeyword {
		return scoreKeyword(in), in.acting.Category
	}

	supporting := in.flags.Supporting
	corroborated := in.corroborated

	switch in.acting.Tier {
	case domain.TierDefiniteInclude: // Bucket 3
		switch {
		case corroborated && supporting:
			return scoreDefiniteBoth, in.acting.Category
		case corroborated || supporting:
			return scoreDefiniteSingle, in.acting.Category
		default:
			return scoreDefiniteAlone, in.acting.Category
		}

	case domain.TierContextualInclude: // Bucket 4
		switch {
		case corroborated && supporting:
			return scoreContextualBoth, in.acting.Category
		case corroborated || supporting:
			return scoreContextualSingle, in.acting.Category
		default:
			return scoreContextualAlone, in.acting.Category
		}

	case domain.TierAmbiguous: // Bucket 5
		switch {
		case corroborated && supporting:
			return scoreAmbiguousBoth, in.acting.Category
		case supporting:
			return scoreAmbiguousContext, in.acting.Category
		case corroborated:
			return scoreAmbiguousCorroborated, in.acting.Category
		default:
			return scoreAmbiguousAlone, in.acting.Category
		}
	}

	// Unreachable for a validated artifact; scored as unclassified rather
	// than failing the record.
	return scoreUnclassified, domain.CategoryUnclassified
}

// scoreKeyword scales keyword-match confidence by pattern group: explicit
// inclusion patterns score higher than generic surgical-activity patterns,
// and supporting context raises either.
func scoreKeyword(in scoreInput) int {
	specific := in.acting.Group == 1
	switch {
	case specific && in.flags.Supporting:
		return scoreKeywordSpecificContext
	case specific:
		return scoreKeywordSpecificAlone
	case in.flags.Supporting:
		return scoreKeywordGenericContext
	default:
		return scoreKeywordGenericAlone
	}
}
