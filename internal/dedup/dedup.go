// Package dedup persists confirmed transactions and detects duplicates by
// content fingerprint rather than by source file or row position.
package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

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

// TransactionStore persists confirmed ledger transactions in a YAML file.
type TransactionStore struct {
	FilePath string
	mu       sync.Mutex
}

// NewTransactionStore creates a transaction store backed by the given YAML file.
func NewTransactionStore(filePath string) *TransactionStore {
	return &TransactionStore{FilePath: filePath}
}

func (s *TransactionStore) load() ([]models.LedgerTransaction, error) {
	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("Transaction file not found: %s", s.FilePath)
			return []models.LedgerTransaction{}, nil
		}
		return nil, fmt.Errorf("error reading transactions file: %w", err)
	}

	var transactions []models.LedgerTransaction
	if err := yaml.Unmarshal(data, &transactions); err != nil {
		return nil, fmt.Errorf("error parsing transactions file: %w", err)
	}
	return transactions, nil
}

func (s *TransactionStore) save(transactions []models.LedgerTransaction) error {
	if err := os.MkdirAll(filepath.Dir(s.FilePath), 0755); err != nil {
		return fmt.Errorf("error creating transactions directory: %w", err)
	}

	data, err := yaml.Marshal(transactions)
	if err != nil {
		return fmt.Errorf("error marshaling transactions: %w", err)
	}

	if err := os.WriteFile(s.FilePath, data, 0644); err != nil {
		return fmt.Errorf("error writing transactions file: %w", err)
	}
	return nil
}

// List returns all persisted transactions.
func (s *TransactionStore) List() ([]models.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SaveAll appends the given transactions to the store.
func (s *TransactionStore) SaveAll(transactions []models.LedgerTransaction) error {
	if len(transactions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	existing = append(existing, transactions...)
	if err := s.save(existing); err != nil {
		return err
	}

	log.Debugf("Persisted %d transactions to %s", len(transactions), s.FilePath)
	return nil
}

// DeleteByIDs removes the transactions with the given IDs. Used to unwind a
// persisted batch when the subsequent ledger write fails.
func (s *TransactionStore) DeleteByIDs(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}

	remove := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	kept := existing[:0:0]
	for _, t := range existing {
		if !remove[t.ID] {
			kept = append(kept, t)
		}
	}
	return s.save(kept)
}

// FindByFingerprints returns the first stored transaction for each
// fingerprint present in the given set. One load answers the whole batch.
func (s *TransactionStore) FindByFingerprints(fingerprints []string) (map[string]models.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		wanted[fp] = true
	}

	found := make(map[string]models.LedgerTransaction)
	for _, t := range existing {
		if wanted[t.Fingerprint] {
			if _, ok := found[t.Fingerprint]; !ok {
				found[t.Fingerprint] = t
			}
		}
	}
	return found, nil
}

// Match pairs a parsed row with the already imported transaction sharing its
// fingerprint, so callers can show the user what the row collides with.
type Match struct {
	RowIndex int
	Existing models.LedgerTransaction
}

// Detector flags parsed transactions whose fingerprints already exist in the
// store.
type Detector struct {
	store *TransactionStore
}

// NewDetector creates a Detector backed by the given store.
func NewDetector(store *TransactionStore) *Detector {
	return &Detector{store: store}
}

// FindDuplicates returns a match for every transaction whose fingerprint is
// already persisted, keyed back to the originating row index. Rows without a
// match are omitted. The lookup is batched into a single store read
// regardless of batch size.
func (d *Detector) FindDuplicates(transactions []models.ParsedTransaction) ([]Match, error) {
	if len(transactions) == 0 {
		return nil, nil
	}

	fingerprints := make([]string, len(transactions))
	for i, t := range transactions {
		fingerprints[i] = models.Fingerprint(t.Date, t.Payee, t.Amount)
	}

	found, err := d.store.FindByFingerprints(fingerprints)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for i, fp := range fingerprints {
		if existing, ok := found[fp]; ok {
			matches = append(matches, Match{
				RowIndex: transactions[i].RowIndex,
				Existing: existing,
			})
		}
	}

	if len(matches) > 0 {
		log.WithFields(logrus.Fields{
			"total":      len(transactions),
			"duplicates": len(matches),
		}).Info("Duplicate transactions detected")
	}
	return matches, nil
}
