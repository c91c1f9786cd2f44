// Package reference loads and holds the versioned classification reference
// tables: the primary and institutional code tables, the ordered keyword
// rules, and the two context term sets.
//
// An artifact is a human-reviewable YAML document, loadable without any live
// warehouse connection. Integrity violations are fatal at load time; a batch
// run either starts against a well-formed snapshot or not at all.
package reference

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/pkg/coding"
)

// Artifact is the on-disk YAML schema for a reference-table version.
type Artifact struct {
	Version            string        `yaml:"version"`
	PrimaryCodes       []CodeRule    `yaml:"primary_codes"`
	InstitutionalCodes []CodeRule    `yaml:"institutional_codes"`
	KeywordRules       []KeywordRule `yaml:"keyword_rules"`
	ContextTerms       ContextTerms  `yaml:"context_terms"`
}

// CodeRule maps one (coding system, code value) pair to a category and tier.
type CodeRule struct {
	System   string `yaml:"system"`
	Code     string `yaml:"code"`
	Category string `yaml:"category"`
	Tier     string `yaml:"tier"`
}

// KeywordRule is one ordered free-text pattern rule. Group 1 holds explicit
// inclusion patterns, group 2 explicit exclusion patterns, group 3 generic
// surgical-activity patterns.
type KeywordRule struct {
	Pattern  string `yaml:"pattern"`
	Group    int    `yaml:"group"`
	Category string `yaml:"category"`
	Tier     string `yaml:"tier"`
}

// ContextTerms holds the two disjoint lowercase term sets for the context
// validator.
type ContextTerms struct {
	Supporting    []string `yaml:"supporting"`
	Contradicting []string `yaml:"contradicting"`
}

// Keyword pattern groups.
const (
	GroupInclusion = 1
	GroupExclusion = 2
	GroupGeneric   = 3
)

// LoadArtifact reads and validates a reference artifact from disk. Any
// integrity violation returns a *domain.ReferenceError and no snapshot.
func LoadArtifact(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewReferenceError(domain.RefErrUnreadable, "", "reading %s: %v", path, err)
	}

	var artifact Artifact
	if err := yaml.Unmarshal(raw, &artifact); err != nil {
		return nil, domain.NewReferenceError(domain.RefErrUnreadable, "", "decoding %s: %v", path, err)
	}

	return buildSnapshot(&artifact)
}

// buildSnapshot validates the artifact and freezes it into an immutable
// snapshot.
func buildSnapshot(a *Artifact) (*Snapshot, error) {
	if strings.TrimSpace(a.Version) == "" {
		return nil, domain.NewReferenceError(domain.RefErrMissingVersion, "", "artifact has no version")
	}
	if len(a.PrimaryCodes) == 0 && len(a.KeywordRules) == 0 {
		return nil, domain.NewReferenceError(domain.RefErrEmptyArtifact, a.Version, "artifact defines no primary code rules and no keyword rules")
	}

	snap := &Snapshot{
		version:       a.Version,
		primary:       make(map[codeKey]CategoryRule, len(a.PrimaryCodes)),
		institutional: make(map[codeKey]CategoryRule, len(a.InstitutionalCodes)),
	}

	for i, cr := range a.PrimaryCodes {
		rule, key, err := compileCodeRule(a.Version, "primary_codes", i, cr)
		if err != nil {
			return nil, err
		}
		if _, dup := snap.primary[key]; dup {
			return nil, domain.NewReferenceError(domain.RefErrDuplicateCode, a.Version,
				"primary_codes: duplicate mapping for %s %s", key.system, key.code)
		}
		snap.primary[key] = rule
	}

	for i, cr := range a.InstitutionalCodes {
		rule, key, err := compileCodeRule(a.Version, "institutional_codes", i, cr)
		if err != nil {
			return nil, err
		}
		// The institutional classifier corroborates; it never excludes.
		if !rule.Tier.IsIncludeSide() {
			return nil, domain.NewReferenceError(domain.RefErrInvalidRule, a.Version,
				"institutional_codes[%d]: tier %s is not allowed for institutional rules", i, rule.Tier)
		}
		if _, dup := snap.institutional[key]; dup {
			return nil, domain.NewReferenceError(domain.RefErrDuplicateCode, a.Version,
				"institutional_codes: duplicate mapping for %s %s", key.system, key.code)
		}
		snap.institutional[key] = rule
	}

	seenPatterns := make(map[string]bool, len(a.KeywordRules))
	for i, kr := range a.KeywordRules {
		compiled, err := compileKeywordRule(a.Version, i, kr)
		if err != nil {
			return nil, err
		}
		if seenPatterns[compiled.Pattern] {
			return nil, domain.NewReferenceError(domain.RefErrDuplicateCode, a.Version,
				"keyword_rules: duplicate pattern %q", compiled.Pattern)
		}
		seenPatterns[compiled.Pattern] = true
		snap.keywords = append(snap.keywords, compiled)
	}

	supporting, err := compileTermSet(a.Version, "supporting", a.ContextTerms.Supporting)
	if err != nil {
		return nil, err
	}
	contradicting, err := compileTermSet(a.Version, "contradicting", a.ContextTerms.Contradicting)
	if err != nil {
		return nil, err
	}
	for _, term := range contradicting {
		for _, sup := range supporting {
			if term == sup {
				return nil, domain.NewReferenceError(domain.RefErrTermOverlap, a.Version,
					"term %q appears in both context term sets", term)
			}
		}
	}
	snap.supporting = supporting
	snap.contradicting = contradicting

	return snap, nil
}

func compileCodeRule(version, section string, idx int, cr CodeRule) (CategoryRule, codeKey, error) {
	category, err := domain.ParseCategory(cr.Category)
	if err != nil {
		return CategoryRule{}, codeKey{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"%s[%d]: %v", section, idx, err)
	}
	tier, err := domain.ParseTier(cr.Tier)
	if err != nil {
		return CategoryRule{}, codeKey{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"%s[%d]: %v", section, idx, err)
	}

	system := coding.NormalizeSystem(cr.System)
	value := coding.NormalizeValue(cr.Code)
	if value == "" {
		return CategoryRule{}, codeKey{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"%s[%d]: empty code value", section, idx)
	}
	if system == coding.SystemUnknown {
		return CategoryRule{}, codeKey{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"%s[%d]: unrecognized coding system %q", section, idx, cr.System)
	}

	rule := CategoryRule{Category: category, Tier: tier}
	return rule, codeKey{system: system, code: value}, nil
}

func compileKeywordRule(version string, idx int, kr KeywordRule) (CompiledKeywordRule, error) {
	pattern := strings.ToLower(strings.TrimSpace(kr.Pattern))
	if pattern == "" {
		return CompiledKeywordRule{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"keyword_rules[%d]: empty pattern", idx)
	}
	if kr.Group < GroupInclusion || kr.Group > GroupGeneric {
		return CompiledKeywordRule{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"keyword_rules[%d]: group must be 1, 2 or 3, got %d", idx, kr.Group)
	}
	category, err := domain.ParseCategory(kr.Category)
	if err != nil {
		return CompiledKeywordRule{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"keyword_rules[%d]: %v", idx, err)
	}
	tier, err := domain.ParseTier(kr.Tier)
	if err != nil {
		return CompiledKeywordRule{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"keyword_rules[%d]: %v", idx, err)
	}
	// Exclusion patterns must carry the exclude tier so the scorer's veto
	// buckets see them; inclusion and generic patterns must not.
	if kr.Group == GroupExclusion && tier != domain.TierDefiniteExclude {
		return CompiledKeywordRule{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"keyword_rules[%d]: exclusion patterns require tier %s", idx, domain.TierDefiniteExclude)
	}
	if kr.Group != GroupExclusion && tier == domain.TierDefiniteExclude {
		return CompiledKeywordRule{}, domain.NewReferenceError(domain.RefErrInvalidRule, version,
			"keyword_rules[%d]: tier %s is only allowed in the exclusion group", idx, domain.TierDefiniteExclude)
	}

	return CompiledKeywordRule{
		Pattern:  pattern,
		Group:    kr.Group,
		Category: category,
		Tier:     tier,
	}, nil
}

func compileTermSet(version, name string, terms []string) ([]string, error) {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for i, t := range terms {
		term := strings.ToLower(strings.TrimSpace(t))
		if term == "" {
			return nil, domain.NewReferenceError(domain.RefErrInvalidRule, version,
				"context_terms.%s[%d]: empty term", name, i)
		}
		if seen[term] {
			return nil, domain.NewReferenceError(domain.RefErrInvalidRule, version,
				"context_terms.%s: duplicate term %q", name, term)
		}
		seen[term] = true
		out = append(out, term)
	}
	return out, nil
}

// Describe summarizes an artifact's tables, for the lint command and the
// reference API endpoint.
func (s *Snapshot) Describe() map[string]any {
	groups := map[int]int{}
	for _, kr := range s.keywords {
		groups[kr.Group]++
	}
	return map[string]any{
		"version":             s.version,
		"primary_codes":       len(s.primary),
		"institutional_codes": len(s.institutional),
		"keyword_rules":       len(s.keywords),
		"inclusion_patterns":  groups[GroupInclusion],
		"exclusion_patterns":  groups[GroupExclusion],
		"generic_patterns":    groups[GroupGeneric],
		"supporting_terms":    len(s.supporting),
		"contradicting_terms": len(s.contradicting),
	}
}
