// Package domain contains core business entities and types for surgical
// procedure classification in a pediatric brain-tumor research cohort.
//
// Raw procedure records carry weak, partially-overlapping signals of clinical
// intent (CPT codes, institution-local codes, free-text descriptions, stated
// reason, anatomical site). The types here define the fixed vocabularies the
// classification engine maps those signals into.
package domain

import (
	"errors"
	"fmt"
)

// Category is the categorical classification assigned to a procedure record.
// The vocabulary is closed: every category produced by the engine is listed
// here, including the two terminal outcomes excluded_by_context and
// unclassified.
type Category string

const (
	// Definite-include family: procedures that are tumor-directed on their
	// face, independent of clinical context.
	CategoryCraniotomyTumorResection Category = "craniotomy_tumor_resection"
	CategoryStereotacticTumorBiopsy  Category = "stereotactic_tumor_biopsy"
	CategoryNeuroendoscopicExcision  Category = "neuroendoscopic_tumor_excision"
	CategoryLaserAblationTumor       Category = "laser_ablation_tumor"

	// Contextual-include family: tumor-related only in this cohort context
	// (e.g. an Ommaya reservoir placed for intrathecal chemotherapy).
	CategoryBurrHoleAccess           Category = "burr_hole_access"
	CategoryOmmayaReservoirPlacement Category = "ommaya_reservoir_placement"
	CategoryThirdVentriculostomy     Category = "third_ventriculostomy"

	// Ambiguous family: surgical activity that may or may not be
	// tumor-directed; resolved by context and confidence scoring.
	CategoryCraniotomyUnspecified    Category = "craniotomy_unspecified"
	CategoryDecompressiveCraniectomy Category = "decompressive_craniectomy"
	CategoryGenericCranialProcedure  Category = "generic_cranial_procedure"

	// Definite-exclude family: superficially similar but clinically
	// unrelated procedures.
	CategoryCSFShuntProcedure    Category = "csf_shunt_procedure"
	CategorySpasticityManagement Category = "spasticity_management"
	CategoryVascularAccessDevice Category = "vascular_access_device"

	// Institutional corroboration categories. These never decide tumor
	// relevance on their own; they confirm which surgical service performed
	// the procedure.
	CategoryNeurosurgicalServiceConfirmed Category = "neurosurgical_service_confirmed"
	CategoryOncologyServiceConfirmed      Category = "oncology_service_confirmed"

	// Terminal outcomes.
	CategoryExcludedByContext Category = "excluded_by_context"
	CategoryUnclassified      Category = "unclassified"
)

// Tier is the coarse-grained strength assigned by a classifier before
// context adjustment.
type Tier string

const (
	TierDefiniteInclude   Tier = "definite_include"
	TierContextualInclude Tier = "contextual_include"
	TierAmbiguous         Tier = "ambiguous"
	TierDefiniteExclude   Tier = "definite_exclude"
	TierUnknown           Tier = "unknown"
)

// TierSource identifies which classifier ultimately determined the category.
type TierSource string

const (
	SourcePrimaryCode       TierSource = "primary_code"
	SourceInstitutionalCode TierSource = "institutional_code"
	SourceKeyword           TierSource = "keyword"
	SourceNone              TierSource = "none"
)

// SurgeryType is the smaller vocabulary derived from Category for cohort
// reporting.
type SurgeryType string

const (
	SurgeryTumorResection  SurgeryType = "tumor_resection"
	SurgeryBiopsy          SurgeryType = "biopsy"
	SurgeryCSFDiversion    SurgeryType = "csf_diversion"
	SurgeryDevicePlacement SurgeryType = "device_placement"
	SurgerySupportiveCare  SurgeryType = "supportive_care"
	SurgeryUnknown         SurgeryType = "unknown"
)

// Validation errors for reference-data and result integrity.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidCategory = errors.New("invalid procedure category")
	ErrInvalidTier     = errors.New("invalid classifier tier")
	ErrInvalidSource   = errors.New("invalid tier source")
)

// allCategories enumerates the closed category vocabulary.
var allCategories = map[Category]bool{
	CategoryCraniotomyTumorResection:      true,
	CategoryStereotacticTumorBiopsy:       true,
	CategoryNeuroendoscopicExcision:       true,
	CategoryLaserAblationTumor:            true,
	CategoryBurrHoleAccess:                true,
	CategoryOmmayaReservoirPlacement:      true,
	CategoryThirdVentriculostomy:          true,
	CategoryCraniotomyUnspecified:         true,
	CategoryDecompressiveCraniectomy:      true,
	CategoryGenericCranialProcedure:       true,
	CategoryCSFShuntProcedure:             true,
	CategorySpasticityManagement:          true,
	CategoryVascularAccessDevice:          true,
	CategoryNeurosurgicalServiceConfirmed: true,
	CategoryOncologyServiceConfirmed:      true,
	CategoryExcludedByContext:             true,
	CategoryUnclassified:                  true,
}

// tumorCategories is the tumor-category vocabulary consulted by the Decision
// Aggregator: a non-excluded record is tumor-related iff its category is in
// this set. Ambiguous and corroboration-only categories are intentionally
// absent; they are routed by confidence score, not flagged as tumor surgery.
var tumorCategories = map[Category]bool{
	CategoryCraniotomyTumorResection: true,
	CategoryStereotacticTumorBiopsy:  true,
	CategoryNeuroendoscopicExcision:  true,
	CategoryLaserAblationTumor:       true,
	CategoryBurrHoleAccess:           true,
	CategoryOmmayaReservoirPlacement: true,
	CategoryThirdVentriculostomy:     true,
}

// excludeCategories is the exclude-family vocabulary consulted by the
// Decision Aggregator.
var excludeCategories = map[Category]bool{
	CategoryCSFShuntProcedure:    true,
	CategorySpasticityManagement: true,
	CategoryVascularAccessDevice: true,
	CategoryExcludedByContext:    true,
}

// surgeryTypeByCategory is the total Category -> SurgeryType lookup.
// Categories absent from this table fall back to SurgeryUnknown; the
// aggregator logs the miss for reference-table maintenance instead of
// failing.
var surgeryTypeByCategory = map[Category]SurgeryType{
	CategoryCraniotomyTumorResection:      SurgeryTumorResection,
	CategoryStereotacticTumorBiopsy:       SurgeryBiopsy,
	CategoryNeuroendoscopicExcision:       SurgeryTumorResection,
	CategoryLaserAblationTumor:            SurgeryTumorResection,
	CategoryBurrHoleAccess:                SurgeryDevicePlacement,
	CategoryOmmayaReservoirPlacement:      SurgeryDevicePlacement,
	CategoryThirdVentriculostomy:          SurgeryCSFDiversion,
	CategoryCraniotomyUnspecified:         SurgeryUnknown,
	CategoryDecompressiveCraniectomy:      SurgerySupportiveCare,
	CategoryGenericCranialProcedure:       SurgeryUnknown,
	CategoryCSFShuntProcedure:             SurgeryCSFDiversion,
	CategorySpasticityManagement:          SurgerySupportiveCare,
	CategoryVascularAccessDevice:          SurgeryDevicePlacement,
	CategoryNeurosurgicalServiceConfirmed: SurgeryUnknown,
	CategoryOncologyServiceConfirmed:      SurgeryUnknown,
	CategoryExcludedByContext:             SurgeryUnknown,
	CategoryUnclassified:                  SurgeryUnknown,
}

// IsValid reports whether the category belongs to the closed vocabulary.
// Reference-table loading rejects artifacts that name categories outside it.
func (c Category) IsValid() bool {
	return allCategories[c]
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsTumorCategory reports whether the category is in the tumor-category
// vocabulary used by the Decision Aggregator.
func (c Category) IsTumorCategory() bool {
	return tumorCategories[c]
}

// IsExcludeFamily reports whether the category belongs to the exclude
// family.
func (c Category) IsExcludeFamily() bool {
	return excludeCategories[c]
}

// SurgeryType returns the surgery-type label for the category and whether
// the category was recognized. Callers that need the never-fails form should
// use the aggregator, which applies the SurgeryUnknown fallback and logs.
func (c Category) SurgeryType() (SurgeryType, bool) {
	st, ok := surgeryTypeByCategory[c]
	if !ok {
		return SurgeryUnknown, false
	}
	return st, true
}

// LogFields returns structured logging fields for audit trails. Every
// classification in this cohort may be challenged by a clinical reviewer, so
// category logging carries the derived flags alongside the raw label.
func (c Category) LogFields() map[string]any {
	st, _ := c.SurgeryType()
	return map[string]any{
		"category":       string(c),
		"is_valid":       c.IsValid(),
		"tumor_category": c.IsTumorCategory(),
		"exclude_family": c.IsExcludeFamily(),
		"surgery_type":   string(st),
	}
}

// IsValid validates the tier vocabulary.
func (t Tier) IsValid() bool {
	switch t {
	case TierDefiniteInclude, TierContextualInclude, TierAmbiguous, TierDefiniteExclude, TierUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// IsIncludeSide reports whether the tier argues for inclusion (or is at
// least compatible with it). Institutional code rules must carry
// include-side tiers: the institutional classifier corroborates, it never
// excludes.
func (t Tier) IsIncludeSide() bool {
	switch t {
	case TierDefiniteInclude, TierContextualInclude, TierAmbiguous:
		return true
	default:
		return false
	}
}

// IsValid validates the tier source vocabulary.
func (s TierSource) IsValid() bool {
	switch s {
	case SourcePrimaryCode, SourceInstitutionalCode, SourceKeyword, SourceNone:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier source.
func (s TierSource) String() string {
	return string(s)
}

// IsValid validates the surgery-type vocabulary.
func (st SurgeryType) IsValid() bool {
	switch st {
	case SurgeryTumorResection, SurgeryBiopsy, SurgeryCSFDiversion,
		SurgeryDevicePlacement, SurgerySupportiveCare, SurgeryUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the surgery type.
func (st SurgeryType) String() string {
	return string(st)
}

// ParseCategory converts a raw string into a Category, rejecting values
// outside the closed vocabulary.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.IsValid() {
		return "", fmt.Errorf("parse category %q: %w", raw, ErrInvalidCategory)
	}
	return c, nil
}

// ParseTier converts a raw string into a Tier, rejecting values outside the
// closed vocabulary.
func ParseTier(raw string) (Tier, error) {
	t := Tier(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("parse tier %q: %w", raw, ErrInvalidTier)
	}
	return t, nil
}
