package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fjacquet/csv-hledger/internal/audit"
	"fjacquet/csv-hledger/internal/dedup"
	"fjacquet/csv-hledger/internal/detect"
	"fjacquet/csv-hledger/internal/errs"
	"fjacquet/csv-hledger/internal/hledger"
	"fjacquet/csv-hledger/internal/mappings"
	"fjacquet/csv-hledger/internal/models"
	"fjacquet/csv-hledger/internal/rules"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	err error
}

func (f *fakeValidator) Check(ctx context.Context, filePath string) error {
	return f.err
}

type testEnv struct {
	service      *Service
	ruleStore    *rules.Store
	txStore      *dedup.TransactionStore
	mappingStore *mappings.Store
	auditStore   *audit.Store
	ledgerPath   string
}

func newTestEnv(t *testing.T, validatorErr error) *testEnv {
	t.Helper()
	dir := t.TempDir()

	env := &testEnv{
		ruleStore:    rules.NewStore(filepath.Join(dir, "rules.yaml")),
		txStore:      dedup.NewTransactionStore(filepath.Join(dir, "transactions.yaml")),
		mappingStore: mappings.NewStore(filepath.Join(dir, "mappings.yaml")),
		auditStore:   audit.NewStore(filepath.Join(dir, "imports.yaml"), filepath.Join(dir, "file_operations.yaml")),
		ledgerPath:   filepath.Join(dir, "ledger.hledger"),
	}

	writer := hledger.NewWriter(&fakeValidator{err: validatorErr}, hledger.NewFormatter(), true)
	env.service = NewService(
		Options{LedgerFilePath: env.ledgerPath, DefaultAccount: "Assets:Checking"},
		detect.NewEngine(detect.DefaultThreshold),
		env.ruleStore,
		env.txStore,
		env.mappingStore,
		env.auditStore,
		writer,
	)
	return env
}

const sampleCSV = "Date,Description,Amount\n" +
	"2025-01-15,WHOLE FOODS MARKET,-45.23\n" +
	"2025-01-16,STARBUCKS STORE 42,-5.75\n"

func TestPreview_DetectsAndAnnotates(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.ruleStore.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)

	preview, err := env.service.Preview(context.Background(), strings.NewReader(sampleCSV), "jan.csv")
	require.NoError(t, err)

	assert.False(t, preview.RequiresManualMapping)
	assert.False(t, preview.FromSavedMapping)
	assert.Equal(t, models.FieldDate, preview.Mapping["Date"])
	require.Len(t, preview.Transactions, 2)

	assert.Empty(t, preview.Transactions[0].SuggestedCategory)
	assert.Equal(t, "Expenses:Coffee", preview.Transactions[1].SuggestedCategory)
	require.NotNil(t, preview.Transactions[1].RuleID)
	assert.False(t, preview.Transactions[0].IsDuplicate)
}

func TestPreview_DoesNotPersistAnything(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.service.Preview(context.Background(), strings.NewReader(sampleCSV), "jan.csv")
	require.NoError(t, err)

	stored, err := env.txStore.List()
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.NoFileExists(t, env.ledgerPath)
}

func TestPreview_UsesSavedMapping(t *testing.T) {
	env := newTestEnv(t, nil)

	headers := []string{"Date", "Description", "Amount"}
	_, err := env.mappingStore.Save("mybank", headers, models.ColumnMapping{
		"Date":        models.FieldDate,
		"Description": models.FieldDescription,
		"Amount":      models.FieldAmount,
	})
	require.NoError(t, err)

	preview, err := env.service.Preview(context.Background(), strings.NewReader(sampleCSV), "jan.csv")
	require.NoError(t, err)

	assert.True(t, preview.FromSavedMapping)
	assert.False(t, preview.RequiresManualMapping)
	assert.InDelta(t, 1.0, preview.ConfidenceScores[models.FieldDate], 1e-9)
	assert.Len(t, preview.Transactions, 2)
}

func TestPreview_RequiresManualMappingStopsEarly(t *testing.T) {
	env := newTestEnv(t, nil)

	csv := "Col1,Col2\nfoo,bar\n"
	preview, err := env.service.Preview(context.Background(), strings.NewReader(csv), "odd.csv")
	require.NoError(t, err)

	assert.True(t, preview.RequiresManualMapping)
	assert.Empty(t, preview.Transactions)
	assert.NotEmpty(t, preview.Warnings)
}

func confirmRequest(rows ...ConfirmTransaction) ConfirmRequest {
	return ConfirmRequest{FileName: "jan.csv", Transactions: rows}
}

func confirmRow(day int, payee string, amount float64) ConfirmTransaction {
	return ConfirmTransaction{
		Date:            time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC),
		Payee:           payee,
		Amount:          decimal.NewFromFloat(amount),
		CategoryAccount: "Expenses:Groceries",
	}
}

func TestConfirm_WritesLedgerAndPersists(t *testing.T) {
	env := newTestEnv(t, nil)

	result, err := env.service.Confirm(context.Background(), confirmRequest(
		confirmRow(15, "Whole Foods", -45.23),
		confirmRow(16, "Shell", -60.10),
	))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Written)
	assert.NotEmpty(t, result.FileHashAfter)

	stored, err := env.txStore.List()
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	data, err := os.ReadFile(env.ledgerPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Whole Foods")
	assert.Contains(t, string(data), "account Assets:Checking")

	imports, err := env.auditStore.ListImports("")
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, 2, imports[0].SuccessfulRows)

	ops, err := env.auditStore.ListFileOperations(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.FileAuditCsvImport, ops[0].Operation)
}

func TestConfirm_AllDuplicatesLeavesLedgerUntouched(t *testing.T) {
	env := newTestEnv(t, nil)

	row := confirmRow(15, "Whole Foods", -45.23)
	row.IsDuplicate = true
	result, err := env.service.Confirm(context.Background(), confirmRequest(row))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.DuplicatesSkipped)
	assert.NoFileExists(t, env.ledgerPath)

	stored, err := env.txStore.List()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestConfirm_WriteFailureUnwindsPersistedBatch(t *testing.T) {
	env := newTestEnv(t, &errs.ValidationError{
		FilePath: "ledger.hledger.tmp",
		Errors:   []string{"could not balance"},
	})

	_, err := env.service.Confirm(context.Background(), confirmRequest(
		confirmRow(15, "Whole Foods", -45.23),
	))
	require.Error(t, err)

	stored, listErr := env.txStore.List()
	require.NoError(t, listErr)
	assert.Empty(t, stored, "failed write must not leave orphaned persisted transactions")
	assert.NoFileExists(t, env.ledgerPath)
}

func TestConfirm_ReimportFlaggedAsDuplicates(t *testing.T) {
	env := newTestEnv(t, nil)

	// First import succeeds.
	_, err := env.service.Confirm(context.Background(), confirmRequest(
		confirmRow(15, "Whole Foods", -45.23),
		confirmRow(16, "Shell", -60.10),
	))
	require.NoError(t, err)

	// Previewing the same file again flags both rows.
	csv := "Date,Description,Amount\n" +
		"2025-01-15,Whole Foods,-45.23\n" +
		"2025-01-16,Shell,-60.10\n"
	preview, err := env.service.Preview(context.Background(), strings.NewReader(csv), "jan.csv")
	require.NoError(t, err)

	require.Len(t, preview.Transactions, 2)
	assert.True(t, preview.Transactions[0].IsDuplicate)
	assert.True(t, preview.Transactions[1].IsDuplicate)
	require.NotNil(t, preview.Transactions[0].DuplicateOf)

	// Confirming with the duplicates honored persists nothing new.
	var rows []ConfirmTransaction
	for _, p := range preview.Transactions {
		rows = append(rows, ConfirmTransaction{
			Date:            p.Date,
			Payee:           p.Payee,
			Amount:          p.Amount,
			CategoryAccount: "Expenses:Groceries",
			IsDuplicate:     p.IsDuplicate,
		})
	}
	result, err := env.service.Confirm(context.Background(), confirmRequest(rows...))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.DuplicatesSkipped)
	assert.Equal(t, 0, result.Written)
}

func TestConfirm_AcceptedRuleAdvances(t *testing.T) {
	env := newTestEnv(t, nil)

	rule, err := env.ruleStore.Create("starbucks", models.MatchContains, "Expenses:Coffee")
	require.NoError(t, err)

	row := confirmRow(15, "Starbucks Store 42", -5.75)
	row.CategoryAccount = "Expenses:Coffee"
	id := rule.ID
	row.AcceptedRuleID = &id

	_, err = env.service.Confirm(context.Background(), confirmRequest(row))
	require.NoError(t, err)

	after, err := env.ruleStore.Get(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.TimesApplied+1, after.TimesApplied)
	assert.Equal(t, rule.TimesAccepted+1, after.TimesAccepted)
}

func TestExportPreviewCSV(t *testing.T) {
	preview := &Preview{
		FileName: "jan.csv",
		Transactions: []PreviewTransaction{
			{
				RowIndex:          0,
				Date:              time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
				Payee:             "Whole Foods",
				Amount:            decimal.NewFromFloat(-45.23),
				SuggestedCategory: "Expenses:Groceries",
			},
		},
	}

	var sb strings.Builder
	require.NoError(t, ExportPreviewCSV(preview, &sb))

	out := sb.String()
	assert.Contains(t, out, "payee")
	assert.Contains(t, out, "Whole Foods")
	assert.Contains(t, out, "-45.23")
}
