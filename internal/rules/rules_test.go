package rules

import (
	"path/filepath"
	"testing"

	"fjacquet/csv-hledger/internal/errs"
	"fjacquet/csv-hledger/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "rules.yaml"))
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)

	rules, err := store.List()
	assert.NoError(t, err)
	assert.Empty(t, rules)
}

func TestCreate_Defaults(t *testing.T) {
	store := newTestStore(t)

	rule, err := store.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)

	assert.Equal(t, NewRulePriority, rule.Priority)
	assert.InDelta(t, NewRuleConfidence, rule.Confidence, 1e-9)
	assert.Equal(t, 1, rule.TimesApplied)
	assert.Equal(t, 1, rule.TimesAccepted)
	assert.True(t, rule.IsActive)
	assert.NotEqual(t, uuid.Nil, rule.ID)
}

func TestCreate_RejectsBlankInput(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("  ", models.MatchContains, "Expenses:Coffee")
	assert.Error(t, err)

	_, err = store.Create("starbucks", models.MatchContains, "")
	assert.Error(t, err)

	rule, err := store.Create("  starbucks  ", models.MatchContains, " Expenses:Coffee ")
	require.NoError(t, err)
	assert.Equal(t, "starbucks", rule.PayeePattern)
	assert.Equal(t, "Expenses:Coffee", rule.SuggestedCategory)
}

func TestAccept_AdvancesCountersAndConfidence(t *testing.T) {
	store := newTestStore(t)

	rule, err := store.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)

	// Seed the counters to an 8/10 history.
	loaded, err := store.load()
	require.NoError(t, err)
	loaded[0].TimesAccepted = 8
	loaded[0].TimesApplied = 10
	loaded[0].Confidence = 0.8
	require.NoError(t, store.save(loaded))

	updated, err := store.Accept(rule.ID)
	require.NoError(t, err)

	assert.Equal(t, 9, updated.TimesAccepted)
	assert.Equal(t, 11, updated.TimesApplied)
	assert.InDelta(t, 9.0/11.0, updated.Confidence, 1e-9)
	assert.NotNil(t, updated.LastUsedAt)
}

func TestAccept_ConfidenceNeverExceedsOne(t *testing.T) {
	store := newTestStore(t)

	rule, err := store.Create("migros", models.MatchContains, "Expenses:Groceries")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		updated, err := store.Accept(rule.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, updated.Confidence, 1.0)
	}
}

func TestAccept_UnknownRule(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Accept(uuid.New())
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestConfidence_ZeroAppliedDefaultsToFull(t *testing.T) {
	assert.InDelta(t, 1.0, Confidence(0, 0), 1e-9)
	assert.InDelta(t, 0.5, Confidence(1, 2), 1e-9)
}

func TestSuggest_FirstMatchByPriority(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("coffee", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)
	_, err = store.Create("starbucks coffee", models.MatchContains, "Expenses:Treats")
	require.NoError(t, err)

	// Give the second rule a lower priority number so it matches first.
	loaded, err := store.load()
	require.NoError(t, err)
	for i := range loaded {
		if loaded[i].SuggestedCategory == "Expenses:Coffee" {
			loaded[i].Priority = 5
		}
	}
	require.NoError(t, store.save(loaded))

	suggester := NewSuggester(store)
	rule, err := suggester.Suggest("STARBUCKS COFFEE #42")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "Expenses:Treats", rule.SuggestedCategory)
}

func TestSuggest_DoesNotMutateCounters(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)

	suggester := NewSuggester(store)
	for i := 0; i < 3; i++ {
		rule, err := suggester.Suggest("starbucks store 42")
		require.NoError(t, err)
		require.NotNil(t, rule)
	}

	after, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.TimesApplied, after.TimesApplied)
	assert.Equal(t, created.TimesAccepted, after.TimesAccepted)
	assert.InDelta(t, created.Confidence, after.Confidence, 1e-9)
}

func TestSuggest_NoMatch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)

	suggester := NewSuggester(store)
	rule, err := suggester.Suggest("unrelated merchant")
	assert.NoError(t, err)
	assert.Nil(t, rule)
}

func TestDeactivate_ExcludedFromActiveSet(t *testing.T) {
	store := newTestStore(t)

	rule, err := store.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)
	require.NoError(t, store.Deactivate(rule.ID))

	active, err := store.LoadActiveOrdered()
	require.NoError(t, err)
	assert.Empty(t, active)

	// History stays queryable.
	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}
