package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFingerprint_SameContentSameHash(t *testing.T) {
	d := date(2025, time.January, 15)
	amount := decimal.NewFromFloat(-45.23)

	fp1 := Fingerprint(d, "Whole Foods", amount)
	fp2 := Fingerprint(d, "Whole Foods", amount)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64)
}

func TestFingerprint_NormalizesPayee(t *testing.T) {
	d := date(2025, time.January, 15)
	amount := decimal.NewFromFloat(-45.23)

	fp1 := Fingerprint(d, "Whole Foods", amount)
	fp2 := Fingerprint(d, "  WHOLE FOODS  ", amount)

	assert.Equal(t, fp1, fp2)
}

func TestFingerprint_DifferentContentDifferentHash(t *testing.T) {
	d := date(2025, time.January, 15)
	amount := decimal.NewFromFloat(-45.23)
	base := Fingerprint(d, "Whole Foods", amount)

	assert.NotEqual(t, base, Fingerprint(d.AddDate(0, 0, 1), "Whole Foods", amount))
	assert.NotEqual(t, base, Fingerprint(d, "Trader Joes", amount))
	assert.NotEqual(t, base, Fingerprint(d, "Whole Foods", decimal.NewFromFloat(-45.24)))
}

func TestFingerprint_IgnoresScaleDifferences(t *testing.T) {
	d := date(2025, time.March, 1)

	fp1 := Fingerprint(d, "Rent", decimal.NewFromInt(1500))
	fp2 := Fingerprint(d, "Rent", decimal.RequireFromString("1500.00"))

	assert.Equal(t, fp1, fp2)
}

func TestUpdateFingerprint(t *testing.T) {
	tx := LedgerTransaction{
		Date:   date(2025, time.January, 15),
		Payee:  "Whole Foods",
		Amount: decimal.NewFromFloat(-45.23),
	}
	tx.UpdateFingerprint()

	assert.Equal(t, Fingerprint(tx.Date, tx.Payee, tx.Amount), tx.Fingerprint)
}

func TestImportRule_Matches(t *testing.T) {
	tests := []struct {
		name      string
		matchType MatchType
		pattern   string
		payee     string
		want      bool
	}{
		{"exact match", MatchExact, "Starbucks", "starbucks", true},
		{"exact mismatch", MatchExact, "Starbucks", "starbucks store 42", false},
		{"contains match", MatchContains, "STARBUCKS", "pos starbucks store 42", true},
		{"contains mismatch", MatchContains, "starbucks", "dunkin donuts", false},
		{"startsWith match", MatchStartsWith, "amzn", "amzn mktp us", true},
		{"startsWith mismatch", MatchStartsWith, "amzn", "www amzn", false},
		{"endsWith match", MatchEndsWith, "payroll", "acme corp payroll", true},
		{"endsWith mismatch", MatchEndsWith, "payroll", "payroll advance", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := ImportRule{PayeePattern: tt.pattern, MatchType: tt.matchType}
			assert.Equal(t, tt.want, rule.Matches(tt.payee))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "45.23", "45.23", false},
		{"negative", "-45.23", "-45.23", false},
		{"dollar symbol", "$1,234.56", "1234.56", false},
		{"euro symbol", "€99.90", "99.9", false},
		{"parenthesized negative", "(45.23)", "-45.23", false},
		{"european decimal comma", "1.234,56", "1234.56", false},
		{"comma decimal only", "45,23", "45.23", false},
		{"swiss thousands", "1'500.00", "1500", false},
		{"empty", "", "", true},
		{"garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSanitizePayee(t *testing.T) {
	assert.Equal(t, "Whole Foods", SanitizePayee("  Whole Foods\n"))
	assert.Equal(t, "A B C", SanitizePayee("A\tB\rC"))
}

func TestSignatureKey_OrderSensitive(t *testing.T) {
	a := SignatureKey([]string{"Date", "Amount"})
	b := SignatureKey([]string{"Amount", "Date"})
	assert.NotEqual(t, a, b)
}
