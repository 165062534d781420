// Package audit records import summaries and ledger file mutations so every
// change to the ledger can be traced back to what caused it.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"fjacquet/csv-hledger/internal/models"

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

// Store persists audit records in two YAML files: import-level summaries and
// per-mutation file audit entries.
type Store struct {
	ImportsFile string
	FileOpsFile string
	mu          sync.Mutex
}

// NewStore creates an audit store backed by the given YAML files.
func NewStore(importsFile, fileOpsFile string) *Store {
	return &Store{ImportsFile: importsFile, FileOpsFile: fileOpsFile}
}

func loadRecords[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("error reading audit file: %w", err)
	}

	var records []T
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing audit file: %w", err)
	}
	return records, nil
}

func saveRecords[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating audit directory: %w", err)
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("error marshaling audit records: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing audit file: %w", err)
	}
	return nil
}

// RecordImport appends one import summary.
func (s *Store) RecordImport(record models.ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadRecords[models.ImportRecord](s.ImportsFile)
	if err != nil {
		return err
	}
	records = append(records, record)
	if err := saveRecords(s.ImportsFile, records); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"file":       record.FileName,
		"successful": record.SuccessfulRows,
		"duplicates": record.DuplicatesSkipped,
	}).Info("Recorded import")
	return nil
}

// RecordFileOperation appends one ledger file mutation entry.
func (s *Store) RecordFileOperation(record models.FileAuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadRecords[models.FileAuditRecord](s.FileOpsFile)
	if err != nil {
		return err
	}
	records = append(records, record)
	return saveRecords(s.FileOpsFile, records)
}

// ListImports returns import summaries, newest first. A non-empty fileName
// filters by the imported file's name.
func (s *Store) ListImports(fileName string) ([]models.ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadRecords[models.ImportRecord](s.ImportsFile)
	if err != nil {
		return nil, err
	}

	filtered := records[:0:0]
	for _, r := range records {
		if fileName == "" || r.FileName == fileName {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ImportedAt.After(filtered[j].ImportedAt)
	})
	return filtered, nil
}

// ListFileOperations returns file mutation entries within the given time
// range, newest first. Zero bounds are open-ended.
func (s *Store) ListFileOperations(from, to time.Time) ([]models.FileAuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadRecords[models.FileAuditRecord](s.FileOpsFile)
	if err != nil {
		return nil, err
	}

	filtered := records[:0:0]
	for _, r := range records {
		if !from.IsZero() && r.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && r.Timestamp.After(to) {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	return filtered, nil
}
