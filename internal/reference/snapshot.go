package reference

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// codeKey indexes a code table by normalized (system, value).
type codeKey struct {
	system string
	code   string
}

// CategoryRule is one compiled code-table entry.
type CategoryRule struct {
	Category domain.Category
	Tier     domain.Tier
}

// CompiledKeywordRule is one compiled, lowercased keyword rule in artifact
// order.
type CompiledKeywordRule struct {
	Pattern  string
	Group    int
	Category domain.Category
	Tier     domain.Tier
}

// Snapshot is one immutable, validated reference-table version. All lookups
// are read-only; a snapshot is safely shared across concurrent evaluations
// without locking.
type Snapshot struct {
	version       string
	primary       map[codeKey]CategoryRule
	institutional map[codeKey]CategoryRule
	keywords      []CompiledKeywordRule
	supporting    []string
	contradicting []string
}

// Version returns the artifact version the snapshot was built from.
func (s *Snapshot) Version() string {
	return s.version
}

// LookupPrimary resolves a normalized (system, value) pair against the
// primary code table. Exact match only; unknown codes fall through.
func (s *Snapshot) LookupPrimary(system, value string) (CategoryRule, bool) {
	rule, ok := s.primary[codeKey{system: system, code: value}]
	return rule, ok
}

// LookupInstitutional resolves a normalized pair against the institutional
// code table.
func (s *Snapshot) LookupInstitutional(system, value string) (CategoryRule, bool) {
	rule, ok := s.institutional[codeKey{system: system, code: value}]
	return rule, ok
}

// KeywordRules returns the compiled keyword rules in artifact order. Callers
// must not mutate the slice.
func (s *Snapshot) KeywordRules() []CompiledKeywordRule {
	return s.keywords
}

// SupportingTerms returns the lowercase tumor-indicating term set.
func (s *Snapshot) SupportingTerms() []string {
	return s.supporting
}

// ContradictingTerms returns the lowercase exclusion-indicating term set.
func (s *Snapshot) ContradictingTerms() []string {
	return s.contradicting
}

// Store holds the current snapshot and supports atomic replacement. New
// evaluations pick up a reloaded snapshot; in-flight evaluations finish
// against the one they started with.
type Store struct {
	current atomic.Pointer[Snapshot]
	log     *logrus.Logger
}

// NewStore loads the artifact at path and returns a store holding it.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	snap, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}

	store := &Store{log: logger}
	store.current.Store(snap)

	logger.WithFields(logrus.Fields(snap.Describe())).Info("Reference tables loaded")
	return store, nil
}

// NewStoreFromSnapshot wraps an already-built snapshot; used by tests and
// the lint command.
func NewStoreFromSnapshot(snap *Snapshot, logger *logrus.Logger) *Store {
	store := &Store{log: logger}
	store.current.Store(snap)
	return store
}

// Current returns the snapshot new evaluations should use.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload loads a new artifact version and swaps it in atomically. On any
// integrity violation the previous snapshot stays active and the error is
// returned; a bad artifact can never partially replace a good one.
func (s *Store) Reload(path string) (*Snapshot, error) {
	snap, err := LoadArtifact(path)
	if err != nil {
		s.log.WithError(err).Error("Reference reload rejected, keeping active snapshot")
		return nil, err
	}

	previous := s.current.Swap(snap)
	s.log.WithFields(logrus.Fields{
		"previous_version": previous.Version(),
		"version":          snap.Version(),
	}).Info("Reference tables reloaded")

	return snap, nil
}
