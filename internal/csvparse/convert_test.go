package csvparse

import (
	"testing"

	"fjacquet/csv-hledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(cells map[string]string) Row {
	return Row{Cells: cells}
}

func TestToParsedTransactions_AmountColumn(t *testing.T) {
	mapping := models.ColumnMapping{
		"Date":        models.FieldDate,
		"Description": models.FieldDescription,
		"Amount":      models.FieldAmount,
	}
	rows := []Row{
		row(map[string]string{"Date": "2025-01-15", "Description": "WHOLE FOODS", "Amount": "-45.23"}),
		row(map[string]string{"Date": "2025-01-16", "Description": "PAYROLL", "Amount": "500.00"}),
	}

	parsed := ToParsedTransactions(rows, mapping)
	require.Len(t, parsed, 2)
	assert.Equal(t, "WHOLE FOODS", parsed[0].Payee)
	assert.Equal(t, "-45.23", parsed[0].Amount.String())
	assert.Equal(t, 0, parsed[0].RowIndex)
	assert.Equal(t, 1, parsed[1].RowIndex)
}

func TestToParsedTransactions_DebitCreditColumns(t *testing.T) {
	mapping := models.ColumnMapping{
		"Date":    models.FieldDate,
		"Details": models.FieldDescription,
		"Debit":   models.FieldDebit,
		"Credit":  models.FieldCredit,
	}
	rows := []Row{
		row(map[string]string{"Date": "2025-01-15", "Details": "WHOLE FOODS", "Debit": "45.23", "Credit": ""}),
		row(map[string]string{"Date": "2025-01-16", "Details": "PAYROLL", "Debit": "", "Credit": "500.00"}),
	}

	parsed := ToParsedTransactions(rows, mapping)
	require.Len(t, parsed, 2)
	assert.Equal(t, "-45.23", parsed[0].Amount.String(), "debits are negative")
	assert.Equal(t, "500", parsed[1].Amount.String(), "credits are positive")
}

func TestToParsedTransactions_DropsUnparseableRows(t *testing.T) {
	mapping := models.ColumnMapping{
		"Date":        models.FieldDate,
		"Description": models.FieldDescription,
		"Amount":      models.FieldAmount,
	}
	rows := []Row{
		row(map[string]string{"Date": "not a date", "Description": "BAD DATE", "Amount": "-1.00"}),
		row(map[string]string{"Date": "2025-01-15", "Description": "BAD AMOUNT", "Amount": "abc"}),
		row(map[string]string{"Date": "2025-01-16", "Description": "ZERO", "Amount": "0.00"}),
		row(map[string]string{"Date": "2025-01-17", "Description": "GOOD", "Amount": "-45.23"}),
	}

	parsed := ToParsedTransactions(rows, mapping)
	require.Len(t, parsed, 1)
	assert.Equal(t, "GOOD", parsed[0].Payee)
	assert.Equal(t, 3, parsed[0].RowIndex)
}

func TestToParsedTransactions_SanitizesPayee(t *testing.T) {
	mapping := models.ColumnMapping{
		"Date":        models.FieldDate,
		"Description": models.FieldDescription,
		"Amount":      models.FieldAmount,
	}
	rows := []Row{
		row(map[string]string{"Date": "2025-01-15", "Description": "WHOLE\tFOODS\n", "Amount": "-45.23"}),
	}

	parsed := ToParsedTransactions(rows, mapping)
	require.Len(t, parsed, 1)
	assert.Equal(t, "WHOLE FOODS", parsed[0].Payee)
}
