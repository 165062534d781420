// Package importer orchestrates the two-phase CSV import: a read-only
// preview that parses, detects columns and annotates rows, then an explicit
// confirmation that persists and writes the ledger as one unit.
package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"fjacquet/csv-hledger/internal/audit"
	"fjacquet/csv-hledger/internal/csvparse"
	"fjacquet/csv-hledger/internal/dedup"
	"fjacquet/csv-hledger/internal/detect"
	"fjacquet/csv-hledger/internal/hledger"
	"fjacquet/csv-hledger/internal/mappings"
	"fjacquet/csv-hledger/internal/models"
	"fjacquet/csv-hledger/internal/rules"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Options configures an import Service.
type Options struct {
	LedgerFilePath string
	DefaultAccount string
}

// Service wires the import pipeline together.
type Service struct {
	opts         Options
	engine       *detect.Engine
	ruleStore    *rules.Store
	suggester    *rules.Suggester
	txStore      *dedup.TransactionStore
	dupDetector  *dedup.Detector
	mappingStore *mappings.Store
	auditStore   *audit.Store
	writer       *hledger.Writer
}

// NewService creates an import Service from its collaborators.
func NewService(
	opts Options,
	engine *detect.Engine,
	ruleStore *rules.Store,
	txStore *dedup.TransactionStore,
	mappingStore *mappings.Store,
	auditStore *audit.Store,
	writer *hledger.Writer,
) *Service {
	return &Service{
		opts:         opts,
		engine:       engine,
		ruleStore:    ruleStore,
		suggester:    rules.NewSuggester(ruleStore),
		txStore:      txStore,
		dupDetector:  dedup.NewDetector(txStore),
		mappingStore: mappingStore,
		auditStore:   auditStore,
		writer:       writer,
	}
}

// PreviewTransaction is one parsed row annotated with duplicate and
// suggestion information.
type PreviewTransaction struct {
	RowIndex          int             `csv:"row"`
	Date              time.Time       `csv:"date"`
	Payee             string          `csv:"payee"`
	Amount            decimal.Decimal `csv:"amount"`
	IsDuplicate       bool            `csv:"duplicate"`
	SuggestedCategory string          `csv:"suggested_category"`
	RuleConfidence    float64         `csv:"rule_confidence"`
	RuleID            *uuid.UUID      `csv:"-"`

	// DuplicateOf identifies the already imported transaction this row
	// collides with, when IsDuplicate is set.
	DuplicateOf *uuid.UUID `csv:"-"`
}

// Preview is the read-only result of analyzing a CSV file. Nothing is
// persisted and no counters move while building it.
type Preview struct {
	FileName              string
	Headers               []string
	DetectedDelimiter     string
	DetectedEncoding      string
	Mapping               models.ColumnMapping
	ConfidenceScores      map[string]float64
	FromSavedMapping      bool
	RequiresManualMapping bool
	Transactions          []PreviewTransaction
	TotalRows             int
	ParseErrorCount       int
	Warnings              []string
}

// Preview parses the CSV stream and assembles an annotated preview. A saved
// mapping for the exact header signature short-circuits detection at full
// confidence. Duplicate detection and category suggestions are best effort:
// their failures become warnings, never a failed preview.
func (s *Service) Preview(ctx context.Context, r io.Reader, fileName string) (*Preview, error) {
	parsed, err := csvparse.Parse(r, fileName)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		FileName:          fileName,
		Headers:           parsed.Headers,
		DetectedDelimiter: parsed.DetectedDelimiter,
		DetectedEncoding:  parsed.DetectedEncoding,
		TotalRows:         parsed.TotalRowCount,
		ParseErrorCount:   len(parsed.Errors),
	}
	for _, pe := range parsed.Errors {
		preview.Warnings = append(preview.Warnings, pe.Error())
	}

	saved, err := s.mappingStore.FindBySignature(parsed.Headers)
	if err != nil {
		log.Warnf("Saved mapping lookup failed: %v", err)
		preview.Warnings = append(preview.Warnings, fmt.Sprintf("saved mapping lookup failed: %v", err))
	}
	if saved != nil {
		preview.Mapping = saved.Mapping
		preview.FromSavedMapping = true
		preview.ConfidenceScores = map[string]float64{}
		for _, fieldType := range saved.Mapping {
			preview.ConfidenceScores[fieldType] = 1.0
		}
	} else {
		detection := s.engine.DetectColumns(parsed.Headers, parsed.SampleRows)
		preview.Mapping = detection.Mapping
		preview.ConfidenceScores = detection.ConfidenceScores
		preview.Warnings = append(preview.Warnings, detection.Warnings...)
		if !detection.AllRequiredFieldsDetected {
			preview.RequiresManualMapping = true
			return preview, nil
		}
	}

	transactions := csvparse.ToParsedTransactions(parsed.Rows, preview.Mapping)

	matches, err := s.dupDetector.FindDuplicates(transactions)
	if err != nil {
		log.Warnf("Duplicate detection failed: %v", err)
		preview.Warnings = append(preview.Warnings, fmt.Sprintf("duplicate detection unavailable: %v", err))
		matches = nil
	}
	matchByRow := make(map[int]dedup.Match, len(matches))
	for _, m := range matches {
		matchByRow[m.RowIndex] = m
	}

	preview.Transactions = make([]PreviewTransaction, len(transactions))
	for i, t := range transactions {
		row := PreviewTransaction{
			RowIndex: t.RowIndex,
			Date:     t.Date,
			Payee:    t.Payee,
			Amount:   t.Amount,
		}
		if m, ok := matchByRow[t.RowIndex]; ok {
			row.IsDuplicate = true
			existingID := m.Existing.ID
			row.DuplicateOf = &existingID
		}

		rule, err := s.suggester.Suggest(t.Payee)
		if err != nil {
			log.Warnf("Category suggestion failed for %q: %v", t.Payee, err)
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("category suggestions unavailable: %v", err))
		} else if rule != nil {
			row.SuggestedCategory = rule.SuggestedCategory
			row.RuleConfidence = rule.Confidence
			id := rule.ID
			row.RuleID = &id
		}
		preview.Transactions[i] = row
	}

	log.WithFields(logrus.Fields{
		"file":       fileName,
		"rows":       preview.TotalRows,
		"savedMap":   preview.FromSavedMapping,
		"manualMap":  preview.RequiresManualMapping,
		"duplicates": len(matches),
	}).Info("Import preview built")
	return preview, nil
}

// ConfirmTransaction is one row the user has reviewed and categorized.
type ConfirmTransaction struct {
	Date            time.Time
	Payee           string
	Amount          decimal.Decimal
	CategoryAccount string
	Memo            string
	IsDuplicate     bool
	AcceptedRuleID  *uuid.UUID
}

// ConfirmRequest carries everything needed to commit an import.
type ConfirmRequest struct {
	FileName     string
	FileHash     string
	Transactions []ConfirmTransaction
}

// ConfirmResult summarizes one committed (or rejected) import.
type ConfirmResult struct {
	Success           bool
	Written           int
	DuplicatesSkipped int
	FileHashAfter     string
	Message           string
}

// Confirm commits an import as a single unit: duplicates are dropped, the
// remainder is persisted and appended to the ledger file, and rule and audit
// bookkeeping runs after the write sticks. A writer failure unwinds the
// persisted batch so store and ledger stay consistent.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	var toImport []ConfirmTransaction
	skipped := 0
	for _, t := range req.Transactions {
		if t.IsDuplicate {
			skipped++
			continue
		}
		toImport = append(toImport, t)
	}

	if len(toImport) == 0 {
		log.WithField("file", req.FileName).Info("Nothing to import, ledger untouched")
		return &ConfirmResult{
			Success:           false,
			DuplicatesSkipped: skipped,
			Message:           "no transactions to import",
		}, nil
	}

	ledgerTxs := make([]models.LedgerTransaction, len(toImport))
	ids := make([]uuid.UUID, len(toImport))
	for i, t := range toImport {
		tx := models.LedgerTransaction{
			ID:              uuid.New(),
			Date:            t.Date,
			Payee:           models.SanitizePayee(t.Payee),
			Amount:          t.Amount,
			Account:         s.opts.DefaultAccount,
			CategoryAccount: t.CategoryAccount,
			Memo:            t.Memo,
		}
		tx.UpdateFingerprint()
		ledgerTxs[i] = tx
		ids[i] = tx.ID
	}

	if err := s.txStore.SaveAll(ledgerTxs); err != nil {
		return nil, fmt.Errorf("persisting transactions: %w", err)
	}

	writeResult, err := s.writer.BulkAppend(ctx, s.opts.LedgerFilePath, ledgerTxs)
	if err != nil {
		// Unwind the persisted batch so a later retry is not flagged as
		// duplicate by its own failed attempt.
		if delErr := s.txStore.DeleteByIDs(ids); delErr != nil {
			log.Errorf("Failed to unwind persisted transactions after write failure: %v", delErr)
		}
		return nil, fmt.Errorf("writing ledger file: %w", err)
	}

	s.acceptRules(toImport)
	s.recordAudit(req, writeResult, skipped)

	return &ConfirmResult{
		Success:           true,
		Written:           writeResult.TransactionsWritten,
		DuplicatesSkipped: skipped,
		FileHashAfter:     writeResult.FileHashAfter,
	}, nil
}

// acceptRules advances the counters of every rule whose suggestion the user
// accepted. Failures are logged, not fatal: the import itself already stuck.
func (s *Service) acceptRules(transactions []ConfirmTransaction) {
	for _, t := range transactions {
		if t.AcceptedRuleID == nil {
			continue
		}
		if _, err := s.ruleStore.Accept(*t.AcceptedRuleID); err != nil {
			log.Warnf("Failed to record rule acceptance %s: %v", t.AcceptedRuleID, err)
		}
	}
}

func (s *Service) recordAudit(req ConfirmRequest, writeResult *models.WriteResult, skipped int) {
	importRecord := models.ImportRecord{
		ID:                uuid.New(),
		FileName:          req.FileName,
		ImportedAt:        time.Now(),
		TotalRows:         len(req.Transactions),
		SuccessfulRows:    writeResult.TransactionsWritten,
		DuplicatesSkipped: skipped,
		FileHash:          req.FileHash,
	}
	if err := s.auditStore.RecordImport(importRecord); err != nil {
		log.Warnf("Failed to record import audit entry: %v", err)
	}

	fileRecord := models.FileAuditRecord{
		ID:               uuid.New(),
		Timestamp:        time.Now(),
		Operation:        models.FileAuditCsvImport,
		FilePath:         s.opts.LedgerFilePath,
		FileHashBefore:   writeResult.FileHashBefore,
		FileHashAfter:    writeResult.FileHashAfter,
		TransactionCount: writeResult.TransactionsWritten,
		TriggeredBy:      "csv-import",
		RelatedImportID:  &importRecord.ID,
	}
	if err := s.auditStore.RecordFileOperation(fileRecord); err != nil {
		log.Warnf("Failed to record file audit entry: %v", err)
	}
}
