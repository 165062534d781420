package audit

import (
	"path/filepath"
	"testing"
	"time"

	"fjacquet/csv-hledger/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "imports.yaml"), filepath.Join(dir, "file_operations.yaml"))
}

func importRecord(fileName string, importedAt time.Time) models.ImportRecord {
	return models.ImportRecord{
		ID:             uuid.New(),
		FileName:       fileName,
		ImportedAt:     importedAt,
		TotalRows:      10,
		SuccessfulRows: 8,
	}
}

func TestRecordImport_AndListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	older := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	newer := time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordImport(importRecord("january.csv", older)))
	require.NoError(t, store.RecordImport(importRecord("february.csv", newer)))

	records, err := store.ListImports("")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "february.csv", records[0].FileName)
	assert.Equal(t, "january.csv", records[1].FileName)
}

func TestListImports_FilterByFileName(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	require.NoError(t, store.RecordImport(importRecord("a.csv", now)))
	require.NoError(t, store.RecordImport(importRecord("b.csv", now)))

	records, err := store.ListImports("a.csv")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.csv", records[0].FileName)
}

func TestListFileOperations_TimeRange(t *testing.T) {
	store := newTestStore(t)

	mk := func(ts time.Time) models.FileAuditRecord {
		return models.FileAuditRecord{
			ID:        uuid.New(),
			Timestamp: ts,
			Operation: models.FileAuditCsvImport,
			FilePath:  "ledger.hledger",
		}
	}
	jan := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordFileOperation(mk(jan)))
	require.NoError(t, store.RecordFileOperation(mk(feb)))
	require.NoError(t, store.RecordFileOperation(mk(mar)))

	records, err := store.ListFileOperations(
		time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.Equal(feb))

	all, err := store.ListFileOperations(time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStores_MissingFilesAreEmpty(t *testing.T) {
	store := newTestStore(t)

	imports, err := store.ListImports("")
	assert.NoError(t, err)
	assert.Empty(t, imports)

	ops, err := store.ListFileOperations(time.Time{}, time.Time{})
	assert.NoError(t, err)
	assert.Empty(t, ops)
}
