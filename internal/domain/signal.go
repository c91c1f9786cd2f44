package domain

import "strings"

// Code is a (coding system, code value) pair. The system tag is normalized
// by pkg/coding before a signal reaches the classifiers.
type Code struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// ProcedureSignal is the per-record input to the classification engine. It
// is assembled by an external data-access layer; the engine performs no
// warehouse I/O of its own.
type ProcedureSignal struct {
	// ProcedureID identifies the source procedure record for audit joins.
	ProcedureID string `json:"procedure_id"`

	// PrimaryCode is the standardized procedure code (e.g. CPT), if any.
	PrimaryCode *Code `json:"primary_code,omitempty"`

	// InstitutionalCodes are site-local codes, in source order.
	InstitutionalCodes []Code `json:"institutional_codes,omitempty"`

	// DescriptionText is the free-text procedure description.
	DescriptionText string `json:"description_text,omitempty"`

	// ReasonText is the stated clinical indication.
	ReasonText string `json:"reason_text,omitempty"`

	// AnatomicalSiteText names the body site.
	AnatomicalSiteText string `json:"anatomical_site_text,omitempty"`
}

// IsClassifiable reports whether the record carries at least one signal the
// classifiers can act on. Records without any yield the unclassified
// terminal outcome; a missing signal is never an error.
func (s *ProcedureSignal) IsClassifiable() bool {
	if s == nil {
		return false
	}
	if s.PrimaryCode != nil && strings.TrimSpace(s.PrimaryCode.Value) != "" {
		return true
	}
	for _, c := range s.InstitutionalCodes {
		if strings.TrimSpace(c.Value) != "" {
			return true
		}
	}
	return strings.TrimSpace(s.DescriptionText) != ""
}

// HasContextText reports whether either context field is present.
func (s *ProcedureSignal) HasContextText() bool {
	if s == nil {
		return false
	}
	return strings.TrimSpace(s.ReasonText) != "" || strings.TrimSpace(s.AnatomicalSiteText) != ""
}
