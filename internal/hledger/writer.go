package hledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"fjacquet/csv-hledger/internal/errs"
	"fjacquet/csv-hledger/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	maxWriteRetries = 3
	writeRetryDelay = 100 * time.Millisecond
)

// Writer appends transactions to a ledger file atomically. Every write goes
// through a staging file that must pass external validation before it
// replaces the real file, so a crash or a bad entry can never corrupt the
// ledger.
type Writer struct {
	validator     Validator
	formatter     *Formatter
	backupEnabled bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter creates a Writer that validates staged files with the given
// validator before committing them.
func NewWriter(validator Validator, formatter *Formatter, backupEnabled bool) *Writer {
	return &Writer{
		validator:     validator,
		formatter:     formatter,
		backupEnabled: backupEnabled,
		locks:         map[string]*sync.Mutex{},
	}
}

// pathLock serializes writers per ledger file path.
func (w *Writer) pathLock(filePath string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[filePath]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[filePath] = lock
	}
	return lock
}

// AppendTransaction appends one transaction to the ledger file.
func (w *Writer) AppendTransaction(ctx context.Context, filePath string, t models.LedgerTransaction) (*models.WriteResult, error) {
	return w.BulkAppend(ctx, filePath, []models.LedgerTransaction{t})
}

// BulkAppend appends a batch of transactions in a single staged write.
// Transient I/O errors are retried a few times; a validation failure is
// final and leaves the original file untouched.
func (w *Writer) BulkAppend(ctx context.Context, filePath string, transactions []models.LedgerTransaction) (*models.WriteResult, error) {
	if filePath == "" {
		return nil, fmt.Errorf("ledger file path cannot be empty")
	}
	if len(transactions) == 0 {
		return nil, fmt.Errorf("no transactions to write")
	}

	lock := w.pathLock(filePath)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxWriteRetries; attempt++ {
		result, err := w.appendOnce(ctx, filePath, transactions)
		if err == nil {
			return result, nil
		}

		var validationErr *errs.ValidationError
		var procErr *errs.ProcessError
		if errors.As(err, &validationErr) || errors.As(err, &procErr) {
			// Validation and process failures are deterministic, retrying
			// would only re-run the same rejection.
			return nil, err
		}

		lastErr = err
		if attempt < maxWriteRetries {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"file":    filePath,
			}).Warnf("Ledger write failed, retrying: %v", err)
			time.Sleep(writeRetryDelay)
		}
	}
	return nil, lastErr
}

func (w *Writer) appendOnce(ctx context.Context, filePath string, transactions []models.LedgerTransaction) (*models.WriteResult, error) {
	tempPath := filePath + ".tmp"
	backupPath := filePath + ".bak"

	existing, err := readExisting(filePath)
	if err != nil {
		return nil, err
	}
	hashBefore := hashContent(existing)

	accounts := ParseAccountDeclarations(existing)
	for _, t := range transactions {
		for _, account := range w.formatter.Accounts(t) {
			accounts[account] = true
		}
	}

	formatted, err := w.formatter.FormatTransactions(transactions)
	if err != nil {
		return nil, err
	}
	content := BuildFileContent(accounts, existing, formatted)

	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("writing staging file: %w", err)
	}

	if err := w.validator.Check(ctx, tempPath); err != nil {
		cleanupTempFile(tempPath)
		log.WithField("file", filePath).Errorf("Staged ledger content failed validation: %v", err)
		return nil, err
	}

	if w.backupEnabled {
		if _, err := os.Stat(filePath); err == nil {
			original, err := os.ReadFile(filePath)
			if err != nil {
				cleanupTempFile(tempPath)
				return nil, fmt.Errorf("reading file for backup: %w", err)
			}
			if err := os.WriteFile(backupPath, original, 0644); err != nil {
				cleanupTempFile(tempPath)
				return nil, fmt.Errorf("creating backup: %w", err)
			}
		}
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		cleanupTempFile(tempPath)
		return nil, fmt.Errorf("replacing ledger file: %w", err)
	}

	hashAfter := hashContent(content)
	log.WithFields(logrus.Fields{
		"file":         filePath,
		"transactions": len(transactions),
		"hashBefore":   hashBefore,
		"hashAfter":    hashAfter,
	}).Info("Ledger file updated")

	return &models.WriteResult{
		FileHashBefore:      hashBefore,
		FileHashAfter:       hashAfter,
		TransactionsWritten: len(transactions),
	}, nil
}

// RestoreFromBackup replaces the ledger file with its .bak copy.
func (w *Writer) RestoreFromBackup(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("ledger file path cannot be empty")
	}

	lock := w.pathLock(filePath)
	lock.Lock()
	defer lock.Unlock()

	backupPath := filePath + ".bak"
	data, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &errs.NotFoundError{Kind: "backup", Key: backupPath}
		}
		return fmt.Errorf("reading backup file: %w", err)
	}

	log.Warnf("Restoring %s from backup", filePath)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("restoring from backup: %w", err)
	}
	return nil
}

// FileHash returns the SHA-256 of the ledger file's current content. A
// missing file hashes as empty content.
func FileHash(filePath string) (string, error) {
	content, err := readExisting(filePath)
	if err != nil {
		return "", err
	}
	return hashContent(content), nil
}

func readExisting(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading ledger file: %w", err)
	}
	return string(data), nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func cleanupTempFile(tempPath string) {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to delete staging file %s: %v", tempPath, err)
	}
}
