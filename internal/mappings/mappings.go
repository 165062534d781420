// Package mappings persists confirmed column mappings keyed by the exact
// ordered CSV header signature, so a bank's next export skips detection.
package mappings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
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

// Store persists saved column mappings in a YAML file.
type Store struct {
	FilePath string
	mu       sync.Mutex
}

// NewStore creates a mapping store backed by the given YAML file.
func NewStore(filePath string) *Store {
	return &Store{FilePath: filePath}
}

func (s *Store) load() ([]models.SavedMapping, error) {
	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("Mappings file not found: %s", s.FilePath)
			return []models.SavedMapping{}, nil
		}
		return nil, fmt.Errorf("error reading mappings file: %w", err)
	}

	var saved []models.SavedMapping
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("error parsing mappings file: %w", err)
	}
	return saved, nil
}

func (s *Store) save(saved []models.SavedMapping) error {
	if err := os.MkdirAll(filepath.Dir(s.FilePath), 0755); err != nil {
		return fmt.Errorf("error creating mappings directory: %w", err)
	}

	data, err := yaml.Marshal(saved)
	if err != nil {
		return fmt.Errorf("error marshaling mappings: %w", err)
	}

	if err := os.WriteFile(s.FilePath, data, 0644); err != nil {
		return fmt.Errorf("error writing mappings file: %w", err)
	}
	return nil
}

// List returns all saved mappings, most recently used first.
func (s *Store) List() ([]models.SavedMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(saved, func(i, j int) bool {
		return saved[i].LastUsedAt.After(saved[j].LastUsedAt)
	})
	return saved, nil
}

// FindBySignature returns the active mapping whose header signature exactly
// matches the given headers, bumping its usage stats. Any difference in
// column names, order or count is a miss.
func (s *Store) FindBySignature(headers []string) (*models.SavedMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.load()
	if err != nil {
		return nil, err
	}

	key := models.SignatureKey(headers)
	for i := range saved {
		if !saved[i].IsActive || models.SignatureKey(saved[i].HeaderSignature) != key {
			continue
		}
		saved[i].TimesUsed++
		saved[i].LastUsedAt = time.Now()
		if err := s.save(saved); err != nil {
			return nil, err
		}
		log.WithField("bank", saved[i].BankIdentifier).Info("Reusing saved column mapping")
		return &saved[i], nil
	}
	return nil, nil
}

// Save stores a confirmed mapping for a header signature, replacing any
// previous mapping with the same signature.
func (s *Store) Save(bankIdentifier string, headers []string, mapping models.ColumnMapping) (*models.SavedMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.load()
	if err != nil {
		return nil, err
	}

	key := models.SignatureKey(headers)
	kept := saved[:0:0]
	for _, m := range saved {
		if models.SignatureKey(m.HeaderSignature) != key {
			kept = append(kept, m)
		}
	}

	now := time.Now()
	entry := models.SavedMapping{
		ID:              uuid.New(),
		BankIdentifier:  bankIdentifier,
		HeaderSignature: append([]string(nil), headers...),
		Mapping:         mapping,
		CreatedAt:       now,
		LastUsedAt:      now,
		TimesUsed:       1,
		IsActive:        true,
	}
	kept = append(kept, entry)

	if err := s.save(kept); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"bank":    bankIdentifier,
		"headers": len(headers),
	}).Info("Saved column mapping")
	return &entry, nil
}

// Delete removes a saved mapping by ID.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.load()
	if err != nil {
		return err
	}

	kept := saved[:0:0]
	for _, m := range saved {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(saved) {
		return &errs.NotFoundError{Kind: "mapping", Key: id.String()}
	}
	return s.save(kept)
}
