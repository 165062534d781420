// Package rulescmd manages categorization rules from the command line.
package rulescmd

import (
	"fmt"

	"fjacquet/csv-hledger/cmd/root"
	"fjacquet/csv-hledger/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	pattern   string
	matchType string
	category  string
)

// Cmd represents the rules command.
var Cmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage categorization rules",
	Long: `List, create, accept and deactivate the categorization rules used to
suggest accounts during import. Rules learn from your decisions: accepting a
suggestion raises its confidence, and confidence is never changed merely by
showing a suggestion.`,
	Run: listFunc,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules in priority order",
	Run:   listFunc,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a rule from a payee pattern and category",
	Run:   createFunc,
}

var acceptCmd = &cobra.Command{
	Use:   "accept <rule-id>",
	Short: "Record that a rule's suggestion was accepted",
	Args:  cobra.ExactArgs(1),
	Run:   acceptFunc,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <rule-id>",
	Short: "Deactivate a rule without deleting its history",
	Args:  cobra.ExactArgs(1),
	Run:   deactivateFunc,
}

func init() {
	createCmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Payee pattern to match (required)")
	createCmd.Flags().StringVarP(&matchType, "match", "m", "contains", "Match type: exact, contains, startsWith, endsWith")
	createCmd.Flags().StringVarP(&category, "category", "c", "", "Category account to suggest (required)")
	_ = createCmd.MarkFlagRequired("pattern")
	_ = createCmd.MarkFlagRequired("category")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(acceptCmd)
	Cmd.AddCommand(deactivateCmd)
}

func listFunc(cmd *cobra.Command, args []string) {
	store := root.GetContainer().RuleStore()

	rules, err := store.List()
	if err != nil {
		root.Log.Fatalf("Failed to load rules: %v", err)
	}
	if len(rules) == 0 {
		fmt.Println("No rules yet. Create one with: csv-hledger rules create")
		return
	}

	fmt.Printf("%-36s %-4s %-30s %-28s %-10s %s\n", "ID", "PRI", "PATTERN", "CATEGORY", "CONFIDENCE", "ACTIVE")
	for _, r := range rules {
		fmt.Printf("%-36s %-4d %-30s %-28s %-10.2f %v\n",
			r.ID, r.Priority, fmt.Sprintf("%s(%s)", r.MatchType, r.PayeePattern),
			r.SuggestedCategory, r.Confidence, r.IsActive)
	}
}

func createFunc(cmd *cobra.Command, args []string) {
	store := root.GetContainer().RuleStore()

	mt := models.MatchType(matchType)
	switch mt {
	case models.MatchExact, models.MatchContains, models.MatchStartsWith, models.MatchEndsWith:
	default:
		root.Log.Fatalf("Invalid match type %q", matchType)
	}

	rule, err := store.Create(pattern, mt, category)
	if err != nil {
		root.Log.Fatalf("Failed to create rule: %v", err)
	}
	root.Log.Infof("Created rule %s: %s(%s) -> %s", rule.ID, rule.MatchType, rule.PayeePattern, rule.SuggestedCategory)
}

func acceptFunc(cmd *cobra.Command, args []string) {
	store := root.GetContainer().RuleStore()

	id, err := uuid.Parse(args[0])
	if err != nil {
		root.Log.Fatalf("Invalid rule ID %q: %v", args[0], err)
	}

	rule, err := store.Accept(id)
	if err != nil {
		root.Log.Fatalf("Failed to accept rule: %v", err)
	}
	root.Log.Infof("Rule %s accepted %d/%d times, confidence %.2f",
		rule.ID, rule.TimesAccepted, rule.TimesApplied, rule.Confidence)
}

func deactivateFunc(cmd *cobra.Command, args []string) {
	store := root.GetContainer().RuleStore()

	id, err := uuid.Parse(args[0])
	if err != nil {
		root.Log.Fatalf("Invalid rule ID %q: %v", args[0], err)
	}

	if err := store.Deactivate(id); err != nil {
		root.Log.Fatalf("Failed to deactivate rule: %v", err)
	}
	root.Log.Infof("Rule %s deactivated", id)
}
