package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field types a CSV column can be mapped to.
const (
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldMemo        = "memo"
	FieldBalance     = "balance"
	FieldAccount     = "account"
	FieldDebit       = "debit"
	FieldCredit      = "credit"
)

// ColumnMapping maps CSV header names to field types.
type ColumnMapping map[string]string

// HeaderFor returns the header mapped to the given field type, or "".
func (m ColumnMapping) HeaderFor(fieldType string) string {
	for header, ft := range m {
		if ft == fieldType {
			return header
		}
	}
	return ""
}

// SavedMapping is a persisted column mapping keyed by the exact ordered CSV
// header signature. A single added, removed or reordered column invalidates
// the mapping.
type SavedMapping struct {
	ID              uuid.UUID     `yaml:"id"`
	BankIdentifier  string        `yaml:"bankIdentifier"`
	HeaderSignature []string      `yaml:"headerSignature"`
	Mapping         ColumnMapping `yaml:"mapping"`
	CreatedAt       time.Time     `yaml:"createdAt"`
	LastUsedAt      time.Time     `yaml:"lastUsedAt"`
	TimesUsed       int           `yaml:"timesUsed"`
	IsActive        bool          `yaml:"isActive"`
}

// SignatureKey joins a header list into the lookup key used for exact
// signature matching.
func SignatureKey(headers []string) string {
	return strings.Join(headers, "\x1f")
}
