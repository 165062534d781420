package csvparse

import (
	"github.com/shopspring/decimal"

	"fjacquet/csv-hledger/internal/dateutils"
	"fjacquet/csv-hledger/internal/models"
)

// ToParsedTransactions converts data rows into ParsedTransactions using a
// column mapping. Rows whose date or amount cannot be parsed, or whose amount
// is zero, are silently dropped so a partially malformed file still imports.
func ToParsedTransactions(rows []Row, mapping models.ColumnMapping) []models.ParsedTransaction {
	dateHeader := mapping.HeaderFor(models.FieldDate)
	amountHeader := mapping.HeaderFor(models.FieldAmount)
	debitHeader := mapping.HeaderFor(models.FieldDebit)
	creditHeader := mapping.HeaderFor(models.FieldCredit)
	descriptionHeader := mapping.HeaderFor(models.FieldDescription)

	var parsed []models.ParsedTransaction
	for i, row := range rows {
		date, err := dateutils.Parse(row.Get(dateHeader))
		if err != nil {
			continue
		}

		amount, ok := rowAmount(row, amountHeader, debitHeader, creditHeader)
		if !ok || amount.IsZero() {
			continue
		}

		parsed = append(parsed, models.ParsedTransaction{
			Date:     date,
			Payee:    models.SanitizePayee(row.Get(descriptionHeader)),
			Amount:   amount,
			RowIndex: i,
		})
	}
	return parsed
}

// rowAmount resolves the signed amount for a row, preferring a single amount
// column and falling back to split debit/credit columns. Debits are negative.
func rowAmount(row Row, amountHeader, debitHeader, creditHeader string) (decimal.Decimal, bool) {
	if amountHeader != "" {
		if v := row.Get(amountHeader); v != "" {
			amount, err := models.ParseAmount(v)
			if err != nil {
				return decimal.Zero, false
			}
			return amount, true
		}
	}

	if debitHeader != "" {
		if v := row.Get(debitHeader); v != "" {
			amount, err := models.ParseAmount(v)
			if err != nil {
				return decimal.Zero, false
			}
			return amount.Abs().Neg(), true
		}
	}
	if creditHeader != "" {
		if v := row.Get(creditHeader); v != "" {
			amount, err := models.ParseAmount(v)
			if err != nil {
				return decimal.Zero, false
			}
			return amount.Abs(), true
		}
	}

	return decimal.Zero, false
}
