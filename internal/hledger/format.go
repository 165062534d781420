// Package hledger formats transactions as plain-text ledger entries, runs the
// hledger binary for validation and reporting, and writes the ledger file
// atomically with backup and rollback.
package hledger

import (
	"fmt"
	"sort"
	"strings"

	"fjacquet/csv-hledger/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

const (
	// amountColumn is where the amount starts on a posting line. Aligning
	// amounts keeps hand-edited and generated entries visually consistent.
	amountColumn = 52
	// postingIndent is the two-space indent required for posting lines.
	postingIndent = "  "
)

// Formatter renders ledger transactions into hledger file syntax.
type Formatter struct{}

// NewFormatter creates a Formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatTransaction renders one transaction as a three-line entry:
//
//	2025-01-15 (550e8400-e29b-41d4-a716-446655440000) Whole Foods
//	  Expenses:Groceries                              $45.23
//	  Assets:Checking
//
// The second posting's amount is omitted so hledger infers the balancing leg.
func (f *Formatter) FormatTransaction(t models.LedgerTransaction) (string, error) {
	if err := validateTransaction(t); err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString(t.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, " (%s)", t.ID)
	sb.WriteString(" " + t.Payee)
	if strings.TrimSpace(t.Memo) != "" {
		sb.WriteString(" | " + t.Memo)
	}
	sb.WriteString("\n")

	sb.WriteString(postingIndent)
	sb.WriteString(t.CategoryAccount)
	sb.WriteString(alignAmount(t.CategoryAccount, "$"+t.Amount.StringFixed(2)))
	sb.WriteString("\n")

	sb.WriteString(postingIndent)
	sb.WriteString(t.Account)
	sb.WriteString("\n")

	return sb.String(), nil
}

// FormatTransactions renders multiple transactions separated by blank lines.
func (f *Formatter) FormatTransactions(transactions []models.LedgerTransaction) (string, error) {
	var sb strings.Builder
	for i, t := range transactions {
		if i > 0 {
			sb.WriteString("\n")
		}
		entry, err := f.FormatTransaction(t)
		if err != nil {
			return "", err
		}
		sb.WriteString(entry)
	}
	return sb.String(), nil
}

// Accounts returns the distinct account names referenced by a transaction.
func (f *Formatter) Accounts(t models.LedgerTransaction) []string {
	seen := map[string]bool{}
	var accounts []string
	for _, a := range []string{t.Account, t.CategoryAccount} {
		if strings.TrimSpace(a) != "" && !seen[a] {
			seen[a] = true
			accounts = append(accounts, a)
		}
	}
	return accounts
}

func validateTransaction(t models.LedgerTransaction) error {
	if strings.TrimSpace(t.Payee) == "" {
		return fmt.Errorf("transaction payee cannot be empty")
	}
	if strings.TrimSpace(t.Account) == "" {
		return fmt.Errorf("transaction account cannot be empty")
	}
	if strings.TrimSpace(t.CategoryAccount) == "" {
		return fmt.Errorf("transaction category account cannot be empty")
	}
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	return nil
}

func alignAmount(account, formattedAmount string) string {
	spaces := amountColumn - len(postingIndent) - len(account)
	if spaces < 2 {
		spaces = 2
	}
	return strings.Repeat(" ", spaces) + formattedAmount
}

// ParseAccountDeclarations extracts account names from `account` directives
// in existing file content.
func ParseAccountDeclarations(content string) map[string]bool {
	accounts := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "account "); ok {
			if name = strings.TrimSpace(name); name != "" {
				accounts[name] = true
			}
		}
	}
	return accounts
}

// BuildFileContent assembles the full ledger file: sorted account
// declarations, the existing transactions with their old declaration block
// stripped, then the new entries.
func BuildFileContent(accounts map[string]bool, existingContent, formattedTransactions string) string {
	var sb strings.Builder

	if len(accounts) > 0 {
		names := make([]string, 0, len(accounts))
		for name := range accounts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString("account " + name + "\n")
		}
		sb.WriteString("\n")
	}

	if body := removeAccountDeclarations(existingContent); strings.TrimSpace(body) != "" {
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n\n") {
			sb.WriteString("\n")
		}
	}

	sb.WriteString(formattedTransactions)
	return sb.String()
}

// removeAccountDeclarations strips the leading declaration block so it can be
// rebuilt with any new accounts merged in.
func removeAccountDeclarations(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	var sb strings.Builder
	inDeclarations := true
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if inDeclarations {
			if strings.HasPrefix(trimmed, "account ") || trimmed == "" {
				continue
			}
			inDeclarations = false
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimLeft(sb.String(), "\n")
}
