// Package balance reports account balances from the ledger file.
package balance

import (
	"fmt"

	"fjacquet/csv-hledger/cmd/root"

	"github.com/spf13/cobra"
)

// Cmd represents the balance command.
var Cmd = &cobra.Command{
	Use:   "balance [account-patterns...]",
	Short: "Show account balances from the ledger",
	Long: `Run hledger's balance report against the configured ledger file.
Optional account patterns narrow the report.

Example:
  csv-hledger balance
  csv-hledger balance Expenses:`,
	Run: balanceFunc,
}

func balanceFunc(cmd *cobra.Command, args []string) {
	c := root.GetContainer()

	result, err := c.Runner().Balances(cmd.Context(), c.Config.Ledger.FilePath, args...)
	if err != nil {
		root.Log.Fatalf("Balance report failed: %v", err)
	}

	if len(result.Balances) == 0 {
		fmt.Println("No balances to report.")
		return
	}

	for _, b := range result.Balances {
		fmt.Printf("%-52s %s%s\n", b.Account, b.Commodity, b.Amount.StringFixed(2))
	}
	fmt.Printf("%-52s %s\n", "total", result.Total.StringFixed(2))
}
