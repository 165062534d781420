// Package restore recovers the ledger file from its backup copy.
package restore

import (
	"time"

	"fjacquet/csv-hledger/cmd/root"
	"fjacquet/csv-hledger/internal/hledger"
	"fjacquet/csv-hledger/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd represents the restore command.
var Cmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the ledger file from its .bak backup",
	Long: `Replace the ledger file with the backup created before the most
recent write. Use this after an import you want to undo.`,
	Run: restoreFunc,
}

func restoreFunc(cmd *cobra.Command, args []string) {
	c := root.GetContainer()
	filePath := c.Config.Ledger.FilePath

	hashBefore, err := hledger.FileHash(filePath)
	if err != nil {
		root.Log.Fatalf("Failed to read ledger file: %v", err)
	}

	if err := c.Writer().RestoreFromBackup(filePath); err != nil {
		root.Log.Fatalf("Restore failed: %v", err)
	}

	hashAfter, err := hledger.FileHash(filePath)
	if err != nil {
		root.Log.Fatalf("Failed to hash restored ledger file: %v", err)
	}

	record := models.FileAuditRecord{
		ID:             uuid.New(),
		Timestamp:      time.Now(),
		Operation:      models.FileAuditRestore,
		FilePath:       filePath,
		FileHashBefore: hashBefore,
		FileHashAfter:  hashAfter,
		TriggeredBy:    "restore",
	}
	if err := c.AuditStore().RecordFileOperation(record); err != nil {
		root.Log.Warnf("Failed to record restore audit entry: %v", err)
	}

	root.Log.Infof("Restored %s from backup", filePath)
}
