// Package importcsv handles the import command: preview a bank CSV export
// and, on confirmation, append its transactions to the ledger.
package importcsv

import (
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/csv-hledger/cmd/root"
	"fjacquet/csv-hledger/internal/importer"

	"github.com/spf13/cobra"
)

var (
	inputFile       string
	exportFile      string
	fallbackAccount string
	autoConfirm     bool
	saveMappingAs   string
)

// Cmd represents the import command.
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Preview and import a bank CSV export into the ledger",
	Long: `Preview a bank CSV export, then import it into the ledger.

Without --yes the command only shows the preview: detected columns, parsed
transactions, duplicates and suggested categories. Nothing is written.

With --yes all non-duplicate transactions are appended to the ledger file in
one atomic, validated write.

Example:
  csv-hledger import -i statement.csv
  csv-hledger import -i statement.csv --yes`,
	Run: importFunc,
}

func init() {
	Cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input CSV file (required)")
	Cmd.Flags().StringVarP(&exportFile, "export", "e", "", "Write the annotated preview to a CSV file")
	Cmd.Flags().StringVar(&fallbackAccount, "category", "Expenses:Uncategorized", "Category account for rows without a suggestion")
	Cmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "Confirm the import and write the ledger")
	Cmd.Flags().StringVar(&saveMappingAs, "save-mapping", "", "Save the confirmed column mapping under this bank name")
	_ = Cmd.MarkFlagRequired("input")
}

func importFunc(cmd *cobra.Command, args []string) {
	log := root.Log
	c := root.GetContainer()

	f, err := os.Open(inputFile)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warnf("Failed to close input file: %v", cerr)
		}
	}()

	service := c.ImportService()
	preview, err := service.Preview(cmd.Context(), f, filepath.Base(inputFile))
	if err != nil {
		log.Fatalf("Preview failed: %v", err)
	}

	printPreview(preview)

	if exportFile != "" {
		if err := exportPreview(preview, exportFile); err != nil {
			log.Fatalf("Failed to export preview: %v", err)
		}
		log.Infof("Preview exported to %s", exportFile)
	}

	if preview.RequiresManualMapping {
		log.Warn("Column detection was not confident enough; import aborted")
		log.Warn("Check the headers above and retry, or save a mapping with --save-mapping")
		return
	}

	if !autoConfirm {
		fmt.Println("\nRe-run with --yes to import the transactions listed above.")
		return
	}

	req := importer.ConfirmRequest{FileName: preview.FileName}
	for _, t := range preview.Transactions {
		category := t.SuggestedCategory
		if category == "" {
			category = fallbackAccount
		}
		req.Transactions = append(req.Transactions, importer.ConfirmTransaction{
			Date:            t.Date,
			Payee:           t.Payee,
			Amount:          t.Amount,
			CategoryAccount: category,
			IsDuplicate:     t.IsDuplicate,
			AcceptedRuleID:  t.RuleID,
		})
	}

	result, err := service.Confirm(cmd.Context(), req)
	if err != nil {
		log.Fatalf("Import failed, ledger unchanged: %v", err)
	}

	if !result.Success {
		log.Warnf("Nothing imported: %s (%d duplicates skipped)", result.Message, result.DuplicatesSkipped)
		return
	}

	if saveMappingAs != "" {
		if _, err := c.MappingStore().Save(saveMappingAs, preview.Headers, preview.Mapping); err != nil {
			log.Warnf("Failed to save column mapping: %v", err)
		} else {
			log.Infof("Saved column mapping as %q", saveMappingAs)
		}
	}

	log.Infof("Imported %d transactions (%d duplicates skipped)", result.Written, result.DuplicatesSkipped)
	log.Infof("Ledger file hash: %s", result.FileHashAfter)
}

func printPreview(preview *importer.Preview) {
	fmt.Printf("File: %s (%s, %s delimiter)\n", preview.FileName, preview.DetectedEncoding, preview.DetectedDelimiter)
	fmt.Printf("Rows: %d parsed, %d with errors\n", preview.TotalRows, preview.ParseErrorCount)

	fmt.Println("\nDetected columns:")
	for header, fieldType := range preview.Mapping {
		confidence := preview.ConfidenceScores[fieldType]
		fmt.Printf("  %-30s -> %-12s (%.0f%%)\n", header, fieldType, confidence*100)
	}
	if preview.FromSavedMapping {
		fmt.Println("  (from saved mapping)")
	}

	for _, w := range preview.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	if len(preview.Transactions) == 0 {
		return
	}

	fmt.Println("\nTransactions:")
	for _, t := range preview.Transactions {
		marker := " "
		if t.IsDuplicate {
			marker = "D"
		}
		category := t.SuggestedCategory
		if category == "" {
			category = "-"
		}
		fmt.Printf("  %s %s  %-40s %12s  %s\n",
			marker, t.Date.Format("2006-01-02"), truncate(t.Payee, 40), t.Amount.StringFixed(2), category)
	}
}

func exportPreview(preview *importer.Preview, path string) error {
	f, err := os.Create(path) // #nosec G304 -- CLI tool requires user-provided output paths
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return importer.ExportPreviewCSV(preview, f)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
