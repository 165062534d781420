package importer

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// ExportPreviewCSV writes the preview's annotated transactions as CSV, for
// reviewing a large import in a spreadsheet before confirming it.
func ExportPreviewCSV(preview *Preview, w io.Writer) error {
	rows := preview.Transactions
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("exporting preview CSV: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"file": preview.FileName,
		"rows": len(rows),
	}).Debug("Exported preview CSV")
	return nil
}
