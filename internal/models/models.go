// Package models provides the data structures used throughout the application.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParsedTransaction is a transaction extracted from a CSV row that survived
// date and amount parsing. It carries the originating row index so previews
// and duplicate reports can point back at the source file.
type ParsedTransaction struct {
	Date     time.Time       `yaml:"date"`
	Payee    string          `yaml:"payee"`
	Amount   decimal.Decimal `yaml:"amount"`
	RowIndex int             `yaml:"rowIndex"`
}

// LedgerTransaction is a confirmed transaction as persisted and as written to
// the ledger file. Immutable after creation; the fingerprint is always
// derived from date, payee and amount, never set directly.
type LedgerTransaction struct {
	ID              uuid.UUID       `yaml:"id"`
	Date            time.Time       `yaml:"date"`
	Payee           string          `yaml:"payee"`
	Amount          decimal.Decimal `yaml:"amount"`
	Account         string          `yaml:"account"`
	CategoryAccount string          `yaml:"categoryAccount"`
	Memo            string          `yaml:"memo,omitempty"`
	Fingerprint     string          `yaml:"fingerprint"`
}

// Fingerprint computes the duplicate-detection hash for a transaction.
// Two transactions with the same date, case-insensitively equal trimmed
// payee and equal amount share a fingerprint regardless of memo or category.
func Fingerprint(date time.Time, payee string, amount decimal.Decimal) string {
	normalized := fmt.Sprintf("%s|%s|%s",
		date.Format("2006-01-02"),
		strings.ToLower(strings.TrimSpace(payee)),
		amount.StringFixed(2))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// UpdateFingerprint recomputes the derived fingerprint from the current
// date, payee and amount.
func (t *LedgerTransaction) UpdateFingerprint() {
	t.Fingerprint = Fingerprint(t.Date, t.Payee, t.Amount)
}

// MatchType selects how an import rule pattern is compared against a payee.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startsWith"
	MatchEndsWith   MatchType = "endsWith"
)

// ImportRule suggests a category for payees matching its pattern.
// Confidence is the historical acceptance rate TimesAccepted/TimesApplied and
// is only recomputed when a suggestion is accepted, never when it is merely
// shown.
type ImportRule struct {
	ID                uuid.UUID  `yaml:"id"`
	PayeePattern      string     `yaml:"payeePattern"`
	MatchType         MatchType  `yaml:"matchType"`
	Priority          int        `yaml:"priority"`
	SuggestedCategory string     `yaml:"suggestedCategory"`
	Confidence        float64    `yaml:"confidence"`
	TimesApplied      int        `yaml:"timesApplied"`
	TimesAccepted     int        `yaml:"timesAccepted"`
	IsActive          bool       `yaml:"isActive"`
	CreatedAt         time.Time  `yaml:"createdAt"`
	LastUsedAt        *time.Time `yaml:"lastUsedAt,omitempty"`
}

// Matches reports whether the rule pattern matches the already-normalized
// (trimmed, lowercased) payee.
func (r *ImportRule) Matches(normalizedPayee string) bool {
	pattern := strings.ToLower(r.PayeePattern)
	switch r.MatchType {
	case MatchExact:
		return normalizedPayee == pattern
	case MatchContains:
		return strings.Contains(normalizedPayee, pattern)
	case MatchStartsWith:
		return strings.HasPrefix(normalizedPayee, pattern)
	case MatchEndsWith:
		return strings.HasSuffix(normalizedPayee, pattern)
	default:
		return false
	}
}

// WriteResult describes one completed ledger file write.
type WriteResult struct {
	FileHashBefore      string
	FileHashAfter       string
	TransactionsWritten int
}

// ImportRecord is the import-level audit summary for one confirmed CSV import.
type ImportRecord struct {
	ID                uuid.UUID `yaml:"id"`
	FileName          string    `yaml:"fileName"`
	ImportedAt        time.Time `yaml:"importedAt"`
	TotalRows         int       `yaml:"totalRows"`
	SuccessfulRows    int       `yaml:"successfulRows"`
	DuplicatesSkipped int       `yaml:"duplicatesSkipped"`
	ErrorCount        int       `yaml:"errorCount"`
	FileHash          string    `yaml:"fileHash"`
}

// FileAuditOperation names the kind of ledger file mutation being audited.
type FileAuditOperation string

const (
	FileAuditCsvImport FileAuditOperation = "csvImport"
	FileAuditAppend    FileAuditOperation = "append"
	FileAuditRestore   FileAuditOperation = "restore"
)

// FileAuditRecord tracks one mutation of the ledger file.
type FileAuditRecord struct {
	ID               uuid.UUID          `yaml:"id"`
	Timestamp        time.Time          `yaml:"timestamp"`
	Operation        FileAuditOperation `yaml:"operation"`
	FilePath         string             `yaml:"filePath"`
	FileHashBefore   string             `yaml:"fileHashBefore"`
	FileHashAfter    string             `yaml:"fileHashAfter"`
	TransactionCount int                `yaml:"transactionCount"`
	BalanceChecksum  string             `yaml:"balanceChecksum,omitempty"`
	TriggeredBy      string             `yaml:"triggeredBy"`
	RelatedImportID  *uuid.UUID         `yaml:"relatedImportId,omitempty"`
}

var currencyStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "CHF", "", "EUR", "", "USD", "",
	" ", "", "'", "",
)

var parenNegative = regexp.MustCompile(`^\((.+)\)$`)

// ParseAmount parses a CSV cell into a decimal amount. It strips currency
// symbols and thousand separators, treats a parenthesized value as negative
// and accepts both comma and dot decimal separators.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if m := parenNegative.FindStringSubmatch(cleaned); m != nil {
		negative = true
		cleaned = m[1]
	}

	cleaned = currencyStripper.Replace(cleaned)

	// "1.234,56" style: the comma is the decimal separator.
	if strings.Contains(cleaned, ",") && strings.Contains(cleaned, ".") {
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	dec, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		dec = dec.Neg()
	}
	return dec, nil
}

var payeeSanitizer = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// SanitizePayee removes characters that would break the ledger line syntax.
func SanitizePayee(payee string) string {
	return strings.TrimSpace(payeeSanitizer.Replace(payee))
}
