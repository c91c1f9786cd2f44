package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

func validArtifact() *Artifact {
	return &Artifact{
		Version: "test-1",
		PrimaryCodes: []CodeRule{
			{System: "CPT", Code: "61510", Category: "craniotomy_tumor_resection", Tier: "definite_include"},
			{System: "CPT", Code: "61210", Category: "burr_hole_access", Tier: "contextual_include"},
			{System: "CPT", Code: "64642", Category: "spasticity_management", Tier: "definite_exclude"},
		},
		InstitutionalCodes: []CodeRule{
			{System: "LOCAL", Code: "NSGY-104", Category: "neurosurgical_service_confirmed", Tier: "contextual_include"},
		},
		KeywordRules: []KeywordRule{
			{Pattern: "Tumor Resection", Group: 1, Category: "craniotomy_tumor_resection", Tier: "definite_include"},
			{Pattern: "shunt", Group: 2, Category: "csf_shunt_procedure", Tier: "definite_exclude"},
			{Pattern: "craniotomy", Group: 3, Category: "generic_cranial_procedure", Tier: "ambiguous"},
		},
		ContextTerms: ContextTerms{
			Supporting:    []string{"tumor", "brain mass"},
			Contradicting: []string{"spasticity"},
		},
	}
}

func TestBuildSnapshot_Valid(t *testing.T) {
	snap, err := buildSnapshot(validArtifact())
	require.NoError(t, err)

	assert.Equal(t, "test-1", snap.Version())

	rule, ok := snap.LookupPrimary("CPT", "61510")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryCraniotomyTumorResection, rule.Category)
	assert.Equal(t, domain.TierDefiniteInclude, rule.Tier)

	_, ok = snap.LookupPrimary("CPT", "99999")
	assert.False(t, ok, "unknown codes must fall through, not match")

	inst, ok := snap.LookupInstitutional("LOCAL", "NSGY-104")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryNeurosurgicalServiceConfirmed, inst.Category)

	require.Len(t, snap.KeywordRules(), 3)
	assert.Equal(t, "tumor resection", snap.KeywordRules()[0].Pattern, "patterns are lowercased at load")
}

func TestBuildSnapshot_DuplicateCodeIsFatal(t *testing.T) {
	a := validArtifact()
	a.PrimaryCodes = append(a.PrimaryCodes, CodeRule{
		System: "cpt", Code: " 61510. ", Category: "csf_shunt_procedure", Tier: "definite_exclude",
	})

	_, err := buildSnapshot(a)
	require.Error(t, err)

	var refErr *domain.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, domain.RefErrDuplicateCode, refErr.Code, "duplicates must be detected after normalization")
}

func TestBuildSnapshot_TermOverlapIsFatal(t *testing.T) {
	a := validArtifact()
	a.ContextTerms.Contradicting = append(a.ContextTerms.Contradicting, "Tumor")

	_, err := buildSnapshot(a)
	require.Error(t, err)

	var refErr *domain.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, domain.RefErrTermOverlap, refErr.Code)
}

func TestBuildSnapshot_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"Missing version", func(a *Artifact) { a.Version = " " }},
		{"Unknown category", func(a *Artifact) { a.PrimaryCodes[0].Category = "appendectomy" }},
		{"Unknown tier", func(a *Artifact) { a.PrimaryCodes[0].Tier = "strong" }},
		{"Unknown coding system", func(a *Artifact) { a.PrimaryCodes[0].System = "snomed" }},
		{"Empty code value", func(a *Artifact) { a.PrimaryCodes[0].Code = "" }},
		{"Institutional exclude tier", func(a *Artifact) {
			a.InstitutionalCodes[0].Tier = "definite_exclude"
			a.InstitutionalCodes[0].Category = "csf_shunt_procedure"
		}},
		{"Keyword group out of range", func(a *Artifact) { a.KeywordRules[0].Group = 4 }},
		{"Empty keyword pattern", func(a *Artifact) { a.KeywordRules[0].Pattern = "  " }},
		{"Exclusion pattern without exclude tier", func(a *Artifact) { a.KeywordRules[1].Tier = "ambiguous" }},
		{"Inclusion pattern with exclude tier", func(a *Artifact) { a.KeywordRules[0].Tier = "definite_exclude" }},
		{"Duplicate keyword pattern", func(a *Artifact) {
			a.KeywordRules = append(a.KeywordRules, a.KeywordRules[0])
		}},
		{"Duplicate supporting term", func(a *Artifact) {
			a.ContextTerms.Supporting = append(a.ContextTerms.Supporting, "TUMOR")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validArtifact()
			tt.mutate(a)

			_, err := buildSnapshot(a)
			require.Error(t, err)

			var refErr *domain.ReferenceError
			assert.ErrorAs(t, err, &refErr)
		})
	}
}

func TestLoadArtifact_FromYAML(t *testing.T) {
	doc := `
version: "round-trip-1"
primary_codes:
  - {system: CPT, code: "61510", category: craniotomy_tumor_resection, tier: definite_include}
institutional_codes:
  - {system: LOCAL, code: "NSGY-OR", category: neurosurgical_service_confirmed, tier: contextual_include}
keyword_rules:
  - {pattern: "tumor resection", group: 1, category: craniotomy_tumor_resection, tier: definite_include}
context_terms:
  supporting: [tumor]
  contradicting: [spasticity]
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	snap, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip-1", snap.Version())

	_, ok := snap.LookupPrimary("CPT", "61510")
	assert.True(t, ok)
}

func TestLoadArtifact_MissingFile(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var refErr *domain.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, domain.RefErrUnreadable, refErr.Code)
}

func TestStore_ReloadSwapsAtomically(t *testing.T) {
	logger := logrus.New()

	first, err := buildSnapshot(validArtifact())
	require.NoError(t, err)
	store := NewStoreFromSnapshot(first, logger)
	assert.Equal(t, "test-1", store.Current().Version())

	doc := `
version: "test-2"
primary_codes:
  - {system: CPT, code: "61510", category: craniotomy_tumor_resection, tier: definite_include}
context_terms:
  supporting: [tumor]
  contradicting: [spasticity]
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	held := store.Current()
	_, err = store.Reload(path)
	require.NoError(t, err)

	assert.Equal(t, "test-2", store.Current().Version())
	assert.Equal(t, "test-1", held.Version(), "in-flight snapshot must be unaffected by the swap")

	// A malformed artifact never displaces the active snapshot.
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: ''\n"), 0o644))
	_, err = store.Reload(bad)
	require.Error(t, err)
	assert.Equal(t, "test-2", store.Current().Version())
}

func TestShippedArtifactIsValid(t *testing.T) {
	snap, err := LoadArtifact("../../config/rules.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Version())

	for _, code := range []string{"61510", "61210", "64642", "62223"} {
		_, ok := snap.LookupPrimary("CPT", code)
		assert.True(t, ok, "shipped artifact must map CPT %s", code)
	}
}
