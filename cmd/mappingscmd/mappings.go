// Package mappingscmd manages saved column mappings from the command line.
package mappingscmd

import (
	"fmt"
	"strings"

	"fjacquet/csv-hledger/cmd/root"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd represents the mappings command.
var Cmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage saved column mappings",
	Long: `List and delete saved column mappings. A mapping is reused only when
a CSV file's headers match its signature exactly, so a bank format change
simply falls back to automatic detection.`,
	Run: listFunc,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved mappings, most recently used first",
	Run:   listFunc,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <mapping-id>",
	Short: "Delete a saved mapping",
	Args:  cobra.ExactArgs(1),
	Run:   deleteFunc,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(deleteCmd)
}

func listFunc(cmd *cobra.Command, args []string) {
	store := root.GetContainer().MappingStore()

	saved, err := store.List()
	if err != nil {
		root.Log.Fatalf("Failed to load mappings: %v", err)
	}
	if len(saved) == 0 {
		fmt.Println("No saved mappings. Import with --save-mapping to create one.")
		return
	}

	for _, m := range saved {
		fmt.Printf("%s  %-20s used %d times, last %s\n",
			m.ID, m.BankIdentifier, m.TimesUsed, m.LastUsedAt.Format("2006-01-02"))
		fmt.Printf("    headers: %s\n", strings.Join(m.HeaderSignature, ", "))
		for header, fieldType := range m.Mapping {
			fmt.Printf("    %-30s -> %s\n", header, fieldType)
		}
	}
}

func deleteFunc(cmd *cobra.Command, args []string) {
	store := root.GetContainer().MappingStore()

	id, err := uuid.Parse(args[0])
	if err != nil {
		root.Log.Fatalf("Invalid mapping ID %q: %v", args[0], err)
	}

	if err := store.Delete(id); err != nil {
		root.Log.Fatalf("Failed to delete mapping: %v", err)
	}
	root.Log.Infof("Deleted mapping %s", id)
}
