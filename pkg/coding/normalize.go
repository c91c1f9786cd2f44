// Package coding normalizes procedure coding-system tags and code values
// before they reach the classification tables. Warehouse extracts carry the
// same nomenclature under several spellings (display names, FHIR system
// URIs, site-local abbreviations); the classifiers do exact-match lookup, so
// every spelling must collapse to one canonical tag.
package coding

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// Canonical coding-system tags.
const (
	SystemCPT      = "CPT"
	SystemICD10PCS = "ICD10PCS"
	SystemHCPCS    = "HCPCS"
	SystemLocal    = "LOCAL"
	SystemUnknown  = "UNKNOWN"
)

// Code value patterns per system.
var (
	// CPT: five digits, or four digits plus a modifier letter (category III).
	cptPattern = regexp.MustCompile(`^\d{5}$|^\d{4}[A-Z]$`)

	// ICD-10-PCS: seven alphanumeric characters, no I or O.
	icd10pcsPattern = regexp.MustCompile(`^[0-9A-HJ-NP-Z]{7}$`)

	// HCPCS level II: letter plus four digits.
	hcpcsPattern = regexp.MustCompile(`^[A-V]\d{4}$`)

	// Institution-local codes: free-form but bounded.
	localPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,31}$`)
)

// systemAliases maps observed system spellings to canonical tags.
var systemAliases = map[string]string{
	"cpt":                                SystemCPT,
	"cpt4":                               SystemCPT,
	"cpt-4":                              SystemCPT,
	"http://www.ama-assn.org/go/cpt":     SystemCPT,
	"urn:oid:2.16.840.1.113883.6.12":     SystemCPT,
	"icd10pcs":                           SystemICD10PCS,
	"icd-10-pcs":                         SystemICD10PCS,
	"http://www.cms.gov/medicare/coding/icd10": SystemICD10PCS,
	"hcpcs":                            SystemHCPCS,
	"hcpcs-level-ii":                   SystemHCPCS,
	"urn:oid:2.16.840.1.113883.6.285":  SystemHCPCS,
	"local":                            SystemLocal,
	"institutional":                    SystemLocal,
	"site":                             SystemLocal,
}

// NormalizeSystem collapses a raw coding-system tag to its canonical form.
// Unrecognized systems return SystemUnknown; the classifiers treat those as
// "no match" and fall through, they never fail the record.
func NormalizeSystem(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return SystemUnknown
	}
	if canonical, ok := systemAliases[key]; ok {
		return canonical
	}
	return SystemUnknown
}

// NormalizeValue canonicalizes a code value: trimmed, uppercased, with the
// stray punctuation some source systems append ("61510.", "61510 ") removed.
func NormalizeValue(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimRight(v, ".")
	return v
}

// Normalize returns the canonical (system, value) pair for a raw code.
func Normalize(code domain.Code) domain.Code {
	return domain.Code{
		System: NormalizeSystem(code.System),
		Value:  NormalizeValue(code.Value),
	}
}

// Validate checks whether a normalized code value is syntactically plausible
// for its system. Validation failures are advisory: a malformed code simply
// will not match any reference-table entry, so callers log and continue.
func Validate(code domain.Code) error {
	switch code.System {
	case SystemCPT:
		if !cptPattern.MatchString(code.Value) {
			return fmt.Errorf("code %q is not a valid CPT code", code.Value)
		}
	case SystemICD10PCS:
		if !icd10pcsPattern.MatchString(code.Value) {
			return fmt.Errorf("code %q is not a valid ICD-10-PCS code", code.Value)
		}
	case SystemHCPCS:
		if !hcpcsPattern.MatchString(code.Value) {
			return fmt.Errorf("code %q is not a valid HCPCS code", code.Value)
		}
	case SystemLocal:
		if !localPattern.MatchString(code.Value) {
			return fmt.Errorf("code %q is not a valid institutional code", code.Value)
		}
	case SystemUnknown:
		return fmt.Errorf("unrecognized coding system for code %q", code.Value)
	default:
		return fmt.Errorf("unrecognized coding system %q", code.System)
	}
	return nil
}
