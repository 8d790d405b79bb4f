package reconciler

import (
	"time"

	"github.com/shopspring/decimal"

	"settlement-reconciler/internal/models"
)

// OrderAccumulator carries one order's running state between its first
// matched row and its last row.
type OrderAccumulator struct {
	OrderID string
	Ledger  *models.SaleLedgerEntry
	Prefix  string
	// FirstPosted is the posted date of the order's first matched row.
	FirstPosted time.Time

	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	TotalExpense decimal.Decimal

	// Principal is held back until the order closes so expenses and the
	// rounding correction can be folded into it.
	Principal *models.JournalEntry
	// Opened is set once the bank header line has been written.
	Opened bool
	// Lines buffers the order's voucher so it is emitted contiguously even
	// when the statement interleaves orders.
	Lines []models.JournalEntry
}

func newOrderAccumulator(orderID string, ledger *models.SaleLedgerEntry, prefix string, posted time.Time) *OrderAccumulator {
	return &OrderAccumulator{
		OrderID:     orderID,
		Ledger:      ledger,
		Prefix:      prefix,
		FirstPosted: posted,
	}
}

func (a *OrderAccumulator) post(entry models.JournalEntry) {
	a.TotalDebit = a.TotalDebit.Add(entry.Debit)
	a.TotalCredit = a.TotalCredit.Add(entry.Credit)
	a.Lines = append(a.Lines, entry)
}

// stashPrincipal records a principal row. Orders with several items carry
// several principal rows; they are summed into one line.
func (a *OrderAccumulator) stashPrincipal(entry models.JournalEntry) {
	if a.Principal == nil {
		a.Principal = &entry
		return
	}
	a.Principal.Debit = a.Principal.Debit.Add(entry.Debit)
	a.Principal.Credit = a.Principal.Credit.Add(entry.Credit)
}
