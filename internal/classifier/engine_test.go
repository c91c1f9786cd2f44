package classifier

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/reference"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := reference.NewStore("../../config/rules.yaml", logger)
	require.NoError(t, err)

	return New(store, logger)
}

func cpt(value string) *domain.Code {
	return &domain.Code{System: "CPT", Value: value}
}

func TestClassify_Scenarios(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name   string
		signal *domain.ProcedureSignal

		wantCategory  domain.Category
		wantTier      domain.TierSource
		wantScore     int
		wantTumor     bool
		wantExcluded  bool
		wantSurgery   domain.SurgeryType
		wantSupCtx    bool
		wantContraCtx bool
	}{
		{
			name:         "Definite include code, no context",
			signal:       &domain.ProcedureSignal{ProcedureID: "P-1", PrimaryCode: cpt("61510")},
			wantCategory: domain.CategoryCraniotomyTumorResection,
			wantTier:     domain.SourcePrimaryCode,
			wantScore:    90,
			wantTumor:    true,
			wantSurgery:  domain.SurgeryTumorResection,
		},
		{
			name: "Contextual include code with supporting reason",
			signal: &domain.ProcedureSignal{
				ProcedureID: "P-2",
				PrimaryCode: cpt("61210"),
				ReasonText:  "Evaluation of brain mass",
			},
			wantCategory: domain.CategoryBurrHoleAccess,
			wantTier:     domain.SourcePrimaryCode,
			wantScore:    85,
			wantTumor:    true,
			wantSurgery:  domain.SurgeryDevicePlacement,
			wantSupCtx:   true,
		},
		{
			name:         "Definite exclude code",
			signal:       &domain.ProcedureSignal{ProcedureID: "P-3", PrimaryCode: cpt("64642")},
			wantCategory: domain.CategorySpasticityManagement,
			wantTier:     domain.SourcePrimaryCode,
			wantScore:    0,
			wantExcluded: true,
			wantSurgery:  domain.SurgerySupportiveCare,
		},
		{
			name: "Contradicting context vetoes before the exclude bucket",
			signal: &domain.ProcedureSignal{
				ProcedureID: "P-4",
				PrimaryCode: cpt("64642"),
				ReasonText:  "Chemodenervation for cerebral palsy spasticity",
			},
			wantCategory:  domain.CategoryExcludedByContext,
			wantTier:      domain.SourcePrimaryCode,
			wantScore:     0,
			wantExcluded:  true,
			wantSurgery:   domain.SurgeryUnknown,
			wantContraCtx: true,
		},
		{
			name: "Contradicting context vetoes a definite include",
			signal: &domain.ProcedureSignal{
				ProcedureID: "P-5",
				PrimaryCode: cpt("61510"),
				ReasonText:  "Decompression after skull fracture",
			},
			wantCategory:  domain.CategoryExcludedByContext,
			wantTier:      domain.SourcePrimaryCode,
			wantScore:     0,
			wantExcluded:  true,
			wantSurgery:   domain.SurgeryUnknown,
			wantContraCtx: true,
		},
		{
			name: "Institutional corroboration lifts a definite include",
			signal: &domain.ProcedureSignal{
				ProcedureID:        "P-6",
				PrimaryCode:        cpt("61510"),
				InstitutionalCodes: []domain.Code{{System: "LOCAL", Value: "NSGY-OR"}},
			},
			wantCategory: domain.CategoryCraniotomyTumorResection,
			wantTier:     domain.SourcePrimaryCode,
			wantScore:    95,
			wantTumor:    true,
			wantSurgery:  domain.SurgeryTumorResection,
		},
		{
			name: "All signals agree",
			signal: &domain.ProcedureSignal{
				ProcedureID:        "P-7",
				PrimaryCode:        cpt("61510"),
				InstitutionalCodes: []domain.Code{{System: "LOCAL", Value: "NSGY-OR"}},
				ReasonText:         "Resection of medulloblastoma",
			},
			wantCategory: domain.CategoryCraniotomyTumorResection,
			wantTier:     domain.SourcePrimaryCode,
			wantScore:    100,
			wantTumor:    true,
			wantSurgery:  domain.SurgeryTumorResection,
			wantSupCtx:   true,
		},
		{
			name: "Keyword fallback without context",
			signal: &domain.ProcedureSignal{
				ProcedureID:     "P-8",
				DescriptionText: "Craniotomy for brain tumor resection",
			},
			wantCategory: domain.CategoryCraniotomyTumorResection,
			wantTier:     domain.SourceKeyword,
			wantScore:    65,
			wantTumor:    true,
			wantSurgery:  domain.SurgeryTumorResection,
		},
		{
			name: "Keyword fallback with supporting context",
			signal: &domain.ProcedureSignal{
				ProcedureID:        "P-9",
				DescriptionText:    "Craniotomy for brain tumor resection",
				AnatomicalSiteText: "Posterior fossa mass",
			},
			wantCategory: domain.CategoryCraniotomyTumorResection,
			wantTier:     domain.SourceKeyword,
			wantScore:    75,
			wantTumor:    true,
			wantSurgery:  domain.SurgeryTumorResection,
			wantSupCtx:   true,
		},
		{
			name: "Generic keyword without context",
			signal: &domain.ProcedureSignal{
				ProcedureID:     "P-10",
				DescriptionText: "Left frontal craniectomy",
			},
			wantCategory: domain.CategoryGenericCranialProcedure,
			wantTier:     domain.SourceKeyword,
			wantScore:    40,
			wantSurgery:  domain.SurgeryUnknown,
		},
		{
			name: "Institutional code acting alone",
			signal: &domain.ProcedureSignal{
				ProcedureID:        "P-11",
				InstitutionalCodes: []domain.Code{{System: "LOCAL", Value: "NSGY-OR"}},
			},
			wantCategory: domain.CategoryNeurosurgicalServiceConfirmed,
			wantTier:     domain.SourceInstitutionalCode,
			wantScore:    75,
			wantSurgery:  domain.SurgeryUnknown,
		},
		{
			name:         "Unknown code with no text",
			signal:       &domain.ProcedureSignal{ProcedureID: "P-12", PrimaryCode: cpt("99213")},
			wantCategory: domain.CategoryUnclassified,
			wantTier:     domain.SourceNone,
			wantScore:    30,
			wantSurgery:  domain.SurgeryUnknown,
		},
		{
			name:         "No signal at all",
			signal:       &domain.ProcedureSignal{ProcedureID: "P-13"},
			wantCategory: domain.CategoryUnclassified,
			wantTier:     domain.SourceNone,
			wantScore:    30,
			wantSurgery:  domain.SurgeryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Classify(context.Background(), tt.signal)

			assert.Equal(t, tt.signal.ProcedureID, result.ProcedureID)
			assert.Equal(t, tt.wantCategory, result.Category)
			assert.Equal(t, tt.wantTier, result.TierUsed)
			assert.Equal(t, tt.wantScore, result.ConfidenceScore)
			assert.Equal(t, tt.wantTumor, result.IsTumorRelated)
			assert.Equal(t, tt.wantExcluded, result.IsExcluded)
			assert.Equal(t, tt.wantSurgery, result.SurgeryType)
			assert.Equal(t, tt.wantSupCtx, result.HasSupportingContext)
			assert.Equal(t, tt.wantContraCtx, result.HasContradictingContext)
			assert.Equal(t, "2026.08.1", result.ArtifactVersion)
			assert.Equal(t, EngineVersion, result.EngineVersion)
			assert.NotEmpty(t, result.Rationale)
		})
	}
}

// A matched primary code must discard any keyword or institutional result,
// even when the lower-precedence classifier argues the opposite direction.
func TestClassify_PrecedenceOrder(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("Primary code outranks contradicting description", func(t *testing.T) {
		result := engine.Classify(context.Background(), &domain.ProcedureSignal{
			ProcedureID:     "P-20",
			PrimaryCode:     cpt("61510"),
			DescriptionText: "Ventriculoperitoneal shunt placement",
		})
		assert.Equal(t, domain.CategoryCraniotomyTumorResection, result.Category)
		assert.Equal(t, domain.SourcePrimaryCode, result.TierUsed)
		assert.False(t, result.IsExcluded)
	})

	t.Run("Institutional code outranks description", func(t *testing.T) {
		result := engine.Classify(context.Background(), &domain.ProcedureSignal{
			ProcedureID:        "P-21",
			InstitutionalCodes: []domain.Code{{System: "LOCAL", Value: "NSGY-OR"}},
			DescriptionText:    "Craniotomy for tumor resection",
		})
		assert.Equal(t, domain.CategoryNeurosurgicalServiceConfirmed, result.Category)
		assert.Equal(t, domain.SourceInstitutionalCode, result.TierUsed)
	})

	t.Run("Unknown primary code falls through to keywords", func(t *testing.T) {
		result := engine.Classify(context.Background(), &domain.ProcedureSignal{
			ProcedureID:     "P-22",
			PrimaryCode:     cpt("99999"),
			DescriptionText: "Stereotactic biopsy of lesion",
		})
		assert.Equal(t, domain.CategoryStereotacticTumorBiopsy, result.Category)
		assert.Equal(t, domain.SourceKeyword, result.TierUsed)
	})
}

// Normalization must make code matching insensitive to case, surrounding
// whitespace and system aliases.
func TestClassify_CodeNormalization(t *testing.T) {
	engine := newTestEngine(t)

	canonical := engine.Classify(context.Background(), &domain.ProcedureSignal{
		ProcedureID: "P-30", PrimaryCode: cpt("61510"),
	})

	spellings := []*domain.Code{
		{System: "cpt", Value: "61510"},
		{System: "CPT", Value: " 61510 "},
		{System: "http://www.ama-assn.org/go/cpt", Value: "61510"},
	}
	for _, code := range spellings {
		result := engine.Classify(context.Background(), &domain.ProcedureSignal{
			ProcedureID: "P-30", PrimaryCode: code,
		})
		assert.Equal(t, canonical, result, "spelling %q/%q diverged", code.System, code.Value)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	engine := newTestEngine(t)

	signal := &domain.ProcedureSignal{
		ProcedureID:        "P-40",
		PrimaryCode:        cpt("61304"),
		InstitutionalCodes: []domain.Code{{System: "LOCAL", Value: "NSGY-104"}},
		DescriptionText:    "Exploratory craniotomy",
		ReasonText:         "Intracranial mass of uncertain etiology",
	}

	first := engine.Classify(context.Background(), signal)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Classify(context.Background(), signal))
	}
}

func TestClassifyBatch_MatchesSequential(t *testing.T) {
	engine := newTestEngine(t)

	signals := []*domain.ProcedureSignal{
		{ProcedureID: "B-1", PrimaryCode: cpt("61510")},
		{ProcedureID: "B-2", PrimaryCode: cpt("61210"), ReasonText: "brain mass"},
		{ProcedureID: "B-3", PrimaryCode: cpt("62223")},
		{ProcedureID: "B-4", DescriptionText: "burr hole for biopsy"},
		{ProcedureID: "B-5"},
		{ProcedureID: "B-6", InstitutionalCodes: []domain.Code{{System: "LOCAL", Value: "ONC-INFUS"}}},
		{ProcedureID: "B-7", PrimaryCode: cpt("61322"), ReasonText: "trauma"},
		{ProcedureID: "B-8", PrimaryCode: cpt("61750"), ReasonText: "? glioma"},
	}

	sequential := make([]*domain.ClassificationResult, len(signals))
	for i, sig := range signals {
		sequential[i] = engine.Classify(context.Background(), sig)
	}

	for _, workers := range []int{1, 2, 8, 64} {
		parallel := engine.ClassifyBatchWorkers(context.Background(), signals, workers)
		require.Len(t, parallel, len(signals))
		for i := range signals {
			assert.Equal(t, sequential[i], parallel[i], "record %s with %d workers", signals[i].ProcedureID, workers)
		}
	}
}

func TestClassifyBatch_Empty(t *testing.T) {
	engine := newTestEngine(t)
	assert.Empty(t, engine.ClassifyBatch(context.Background(), nil))
}

func TestNeedsReview(t *testing.T) {
	engine := newTestEngine(t)

	// An excluded record never needs review, however low its score.
	excluded := engine.Classify(context.Background(), &domain.ProcedureSignal{
		ProcedureID: "R-1", PrimaryCode: cpt("62220"),
	})
	assert.False(t, excluded.NeedsReview(70))

	// A weak keyword-only match below the threshold does.
	weak := engine.Classify(context.Background(), &domain.ProcedureSignal{
		ProcedureID: "R-2", DescriptionText: "burr hole placement",
	})
	assert.True(t, weak.NeedsReview(70))

	strong := engine.Classify(context.Background(), &domain.ProcedureSignal{
		ProcedureID: "R-3", PrimaryCode: cpt("61510"),
	})
	assert.False(t, strong.NeedsReview(70))
}

// A caller that pins a snapshot keeps scoring against it even after a
// reload swaps in a newer artifact version.
func TestClassifyPinned_SurvivesReload(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	artifact, err := os.ReadFile("../../config/rules.yaml")
	require.NoError(t, err)

	dir := t.TempDir()
	oldPath := filepath.Join(dir, "rules-old.yaml")
	newPath := filepath.Join(dir, "rules-new.yaml")
	require.NoError(t, os.WriteFile(oldPath, artifact, 0o644))
	require.NoError(t, os.WriteFile(newPath,
		[]byte(strings.Replace(string(artifact), `version: "2026.08.1"`, `version: "2026.09.0"`, 1)), 0o644))

	store, err := reference.NewStore(oldPath, logger)
	require.NoError(t, err)
	engine := New(store, logger)

	pinned := store.Current()
	_, err = store.Reload(newPath)
	require.NoError(t, err)
	require.Equal(t, "2026.09.0", store.Current().Version())

	signal := &domain.ProcedureSignal{ProcedureID: "P-40", PrimaryCode: cpt("61510")}

	result := engine.ClassifyPinned(context.Background(), pinned, signal)
	assert.Equal(t, "2026.08.1", result.ArtifactVersion)
	assert.Equal(t, domain.CategoryCraniotomyTumorResection, result.Category)

	unpinned := engine.Classify(context.Background(), signal)
	assert.Equal(t, "2026.09.0", unpinned.ArtifactVersion)
}
