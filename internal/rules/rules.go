// Package rules manages categorization rules that learn from user decisions.
// A rule's confidence is its historical acceptance rate and only changes when
// the user accepts a suggestion, so merely showing a suggestion never shifts
// future rankings.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fjacquet/csv-hledger/internal/errs"
	"fjacquet/csv-hledger/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Defaults for a rule created from a user's category choice.
const (
	NewRulePriority   = 1
	NewRuleConfidence = 0.6
)

// Store persists import rules in a YAML file.
type Store struct {
	FilePath string
	mu       sync.Mutex
}

// NewStore creates a rule store backed by the given YAML file.
func NewStore(filePath string) *Store {
	return &Store{FilePath: filePath}
}

func (s *Store) load() ([]models.ImportRule, error) {
	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		// A missing file means no rules yet, not an error.
		if os.IsNotExist(err) {
			log.Debugf("Rules file not found: %s", s.FilePath)
			return []models.ImportRule{}, nil
		}
		return nil, fmt.Errorf("error reading rules file: %w", err)
	}

	var rules []models.ImportRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("error parsing rules file: %w", err)
	}

	log.Debugf("Loaded %d rules from %s", len(rules), s.FilePath)
	return rules, nil
}

func (s *Store) save(rules []models.ImportRule) error {
	if err := os.MkdirAll(filepath.Dir(s.FilePath), 0755); err != nil {
		return fmt.Errorf("error creating rules directory: %w", err)
	}

	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("error marshaling rules: %w", err)
	}

	if err := os.WriteFile(s.FilePath, data, 0644); err != nil {
		return fmt.Errorf("error writing rules file: %w", err)
	}

	log.Debugf("Saved %d rules to %s", len(rules), s.FilePath)
	return nil
}

// List returns every rule, active or not, in priority order.
func (s *Store) List() ([]models.ImportRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return nil, err
	}
	sortByPriority(rules)
	return rules, nil
}

// LoadActiveOrdered returns active rules sorted by ascending priority.
// Matching walks this order and stops at the first hit.
func (s *Store) LoadActiveOrdered() ([]models.ImportRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return nil, err
	}

	active := rules[:0:0]
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sortByPriority(active)
	return active, nil
}

// Get returns the rule with the given ID.
func (s *Store) Get(id uuid.UUID) (*models.ImportRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].ID == id {
			return &rules[i], nil
		}
	}
	return nil, &errs.NotFoundError{Kind: "rule", Key: id.String()}
}

// Create adds a new rule seeded from a user's category choice. The modest
// starting confidence keeps a brand-new rule below long-established ones.
func (s *Store) Create(pattern string, matchType models.MatchType, category string) (*models.ImportRule, error) {
	pattern = strings.TrimSpace(pattern)
	category = strings.TrimSpace(category)
	if pattern == "" {
		return nil, fmt.Errorf("rule pattern cannot be empty")
	}
	if category == "" {
		return nil, fmt.Errorf("rule category cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rule := models.ImportRule{
		ID:                uuid.New(),
		PayeePattern:      pattern,
		MatchType:         matchType,
		Priority:          NewRulePriority,
		SuggestedCategory: category,
		Confidence:        NewRuleConfidence,
		TimesApplied:      1,
		TimesAccepted:     1,
		IsActive:          true,
		CreatedAt:         now,
		LastUsedAt:        &now,
	}

	rules = append(rules, rule)
	if err := s.save(rules); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"pattern":  pattern,
		"category": category,
	}).Info("Created categorization rule")
	return &rule, nil
}

// Accept records that the user accepted this rule's suggestion. Both usage
// counters advance together and the confidence is recomputed as the
// acceptance rate, so it can never exceed 1.0.
func (s *Store) Accept(id uuid.UUID) (*models.ImportRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range rules {
		if rules[i].ID != id {
			continue
		}
		rules[i].TimesApplied++
		rules[i].TimesAccepted++
		rules[i].Confidence = Confidence(rules[i].TimesAccepted, rules[i].TimesApplied)
		now := time.Now()
		rules[i].LastUsedAt = &now

		if err := s.save(rules); err != nil {
			return nil, err
		}
		return &rules[i], nil
	}
	return nil, &errs.NotFoundError{Kind: "rule", Key: id.String()}
}

// Deactivate retires a rule without deleting its history.
func (s *Store) Deactivate(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return err
	}

	for i := range rules {
		if rules[i].ID != id {
			continue
		}
		rules[i].IsActive = false
		return s.save(rules)
	}
	return &errs.NotFoundError{Kind: "rule", Key: id.String()}
}

// Confidence computes the acceptance rate for the given counters. A rule
// that has never been applied defaults to full confidence.
func Confidence(accepted, applied int) float64 {
	if applied == 0 {
		return 1.0
	}
	return float64(accepted) / float64(applied)
}

func sortByPriority(rules []models.ImportRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

// Suggester matches payees against the active rule set.
type Suggester struct {
	store *Store
}

// NewSuggester creates a Suggester backed by the given store.
func NewSuggester(store *Store) *Suggester {
	return &Suggester{store: store}
}

// Suggest returns the first active rule matching the payee in priority
// order, or nil when nothing matches. Suggesting does not touch the rule's
// counters; only an explicit Accept does.
func (s *Suggester) Suggest(payee string) (*models.ImportRule, error) {
	rules, err := s.store.LoadActiveOrdered()
	if err != nil {
		return nil, err
	}

	normalized := strings.ToLower(strings.TrimSpace(payee))
	for i := range rules {
		if rules[i].Matches(normalized) {
			log.WithFields(logrus.Fields{
				"payee":    payee,
				"category": rules[i].SuggestedCategory,
			}).Debug("Rule matched payee")
			return &rules[i], nil
		}
	}
	return nil, nil
}
