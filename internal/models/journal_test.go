package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestJournalEntryCells(t *testing.T) {
	entry := JournalEntry{
		Kind:            EntryBankHeader,
		Company:         "Thakker Mercantile Private Limited",
		EntryType:       "Bank Entry",
		ReferenceNumber: "X1",
		Account:         "Shipping Income - TMPL",
		Credit:          decimal.NewFromInt(5),
		Party:           "Amazon Seller Services Private Limited",
	}

	cells := entry.Cells()
	assert.Len(t, cells, len(JournalColumns))
	assert.Equal(t, "Thakker Mercantile Private Limited", cells[0])
	assert.Equal(t, "X1", cells[5])
	assert.Equal(t, "Amazon Seller Services Private Limited", cells[12])

	entry.Kind = EntryLine
	cells = entry.Cells()
	assert.Equal(t, "", cells[0])
	assert.Equal(t, "Shipping Income - TMPL", cells[8])

	entry.Kind = EntryClosing
	cells = entry.Cells()
	assert.Equal(t, "", cells[12])
	assert.Equal(t, entry.Credit, cells[11])

	entry.Kind = "bogus"
	assert.Panics(t, func() { entry.Cells() })
}

func TestErrorColumns(t *testing.T) {
	entries := []ErrorEntry{
		{Column: ColCredit, OrderID: "A", Message: "Total debit and Total credit do not match for A"},
		{Column: ColReferenceNo, OrderID: "B", Message: "Error: No customer's Purchase Order for B"},
		{Column: ColCredit, OrderID: "C", Message: "Total debit and Total credit do not match for C"},
	}

	columns := ErrorColumns(entries)
	assert.Equal(t, []string{ColReferenceNo, ColCredit}, columns)
	assert.Equal(t, []any{"Error: No customer's Purchase Order for B", ""}, entries[1].Cells(columns))
	assert.Equal(t, []any{"", entries[0].Message}, entries[0].Cells(columns))
	assert.Nil(t, ErrorColumns(nil))
}

func TestAmountMatchRuleAccountFor(t *testing.T) {
	rule := AmountMatchRule{AmountDescription: "Principal", Account27: "Debtors (INR) - TMPL", Account29: "Debtors (INR) - TMPL29"}

	assert.Equal(t, "Debtors (INR) - TMPL", rule.AccountFor(GSTINPrefix27))
	assert.Equal(t, "Debtors (INR) - TMPL29", rule.AccountFor(GSTINPrefix29))
	assert.Equal(t, "", rule.AccountFor("33"))
}
