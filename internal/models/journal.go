package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EntryKind tags which columns of a JournalEntry are populated.
type EntryKind string

const (
	// EntryBankHeader opens a per-order bank entry voucher.
	EntryBankHeader EntryKind = "bank_header"
	// EntryContraHeader opens a contra voucher (reserves, period fees).
	EntryContraHeader EntryKind = "contra_header"
	// EntryLine continues the voucher opened by the last header.
	EntryLine      EntryKind = "line"
	EntryPrincipal EntryKind = "principal"
	EntryRounding  EntryKind = "rounding"
	// EntryClosing carries the settled total against a fund account.
	EntryClosing EntryKind = "closing"
)

// Journal import columns, in output order.
const (
	ColCompany        = "Company"
	ColEntryType      = "Entry Type"
	ColPostingDate    = "Posting Date"
	ColSeries         = "Series"
	ColReferenceDate  = "Reference Date"
	ColReferenceNo    = "Reference Number"
	ColUserRemark     = "User Remark"
	ColCompanyGSTIN   = "Company GSTIN"
	ColAccount        = "Account (Accounting Entries)"
	ColCostCenter     = "Cost Center (Accounting Entries)"
	ColDebit          = "Debit (Accounting Entries)"
	ColCredit         = "Credit (Accounting Entries)"
	ColParty          = "Party (Accounting Entries)"
	ColPartyType      = "Party Type (Accounting Entries)"
	ColReferenceName  = "Reference Name (Accounting Entries)"
	ColReferenceType  = "Reference Type (Accounting Entries)"
	ColLineUserRemark = "User Remark (Accounting Entries)"
)

var JournalColumns = []string{
	ColCompany,
	ColEntryType,
	ColPostingDate,
	ColSeries,
	ColReferenceDate,
	ColReferenceNo,
	ColUserRemark,
	ColCompanyGSTIN,
	ColAccount,
	ColCostCenter,
	ColDebit,
	ColCredit,
	ColParty,
	ColPartyType,
	ColReferenceName,
	ColReferenceType,
	ColLineUserRemark,
}

// JournalEntry is one row of the journal import. Header kinds populate the
// voucher fields; the other kinds only carry accounting-entry fields.
type JournalEntry struct {
	Kind    EntryKind `db:"kind" json:"kind"`
	OrderID string    `db:"order_id" json:"order_id,omitempty"`

	Company         string `db:"company" json:"company,omitempty"`
	EntryType       string `db:"entry_type" json:"entry_type,omitempty"`
	PostingDate     string `db:"posting_date" json:"posting_date,omitempty"`
	Series          string `db:"series" json:"series,omitempty"`
	ReferenceDate   string `db:"reference_date" json:"reference_date,omitempty"`
	ReferenceNumber string `db:"reference_number" json:"reference_number,omitempty"`
	UserRemark      string `db:"user_remark" json:"user_remark,omitempty"`
	CompanyGSTIN    string `db:"company_gstin" json:"company_gstin,omitempty"`

	Account       string          `db:"account" json:"account"`
	CostCenter    string          `db:"cost_center" json:"cost_center,omitempty"`
	Debit         decimal.Decimal `db:"debit" json:"debit"`
	Credit        decimal.Decimal `db:"credit" json:"credit"`
	Party         string          `db:"party" json:"party,omitempty"`
	PartyType     string          `db:"party_type" json:"party_type,omitempty"`
	ReferenceName string          `db:"reference_name" json:"reference_name,omitempty"`
	ReferenceType string          `db:"reference_type" json:"reference_type,omitempty"`
	LineRemark    string          `db:"line_remark" json:"line_remark,omitempty"`
}

// Cells returns the entry as a row aligned with JournalColumns. Columns the
// entry kind does not populate are left empty.
func (e JournalEntry) Cells() []any {
	cells := make([]any, len(JournalColumns))
	for i := range cells {
		cells[i] = ""
	}

	switch e.Kind {
	case EntryBankHeader, EntryContraHeader:
		cells[0] = e.Company
		cells[1] = e.EntryType
		cells[2] = e.PostingDate
		cells[3] = e.Series
		cells[4] = e.ReferenceDate
		cells[5] = e.ReferenceNumber
		cells[6] = e.UserRemark
		cells[7] = e.CompanyGSTIN
		e.fillEntryCells(cells)
	case EntryLine, EntryPrincipal:
		e.fillEntryCells(cells)
	case EntryRounding, EntryClosing:
		cells[8] = e.Account
		cells[9] = e.CostCenter
		cells[10] = e.Debit
		cells[11] = e.Credit
	default:
		panic(fmt.Sprintf("models: unknown journal entry kind %q", e.Kind))
	}

	return cells
}

func (e JournalEntry) fillEntryCells(cells []any) {
	cells[8] = e.Account
	cells[9] = e.CostCenter
	cells[10] = e.Debit
	cells[11] = e.Credit
	cells[12] = e.Party
	cells[13] = e.PartyType
	cells[14] = e.ReferenceName
	cells[15] = e.ReferenceType
	cells[16] = e.LineRemark
}

// ErrorColumns returns the columns used by the error table: the journal
// columns that at least one entry is keyed by, in journal order.
func ErrorColumns(entries []ErrorEntry) []string {
	used := make(map[string]bool)
	for _, e := range entries {
		used[e.Column] = true
	}

	var columns []string
	for _, c := range JournalColumns {
		if used[c] {
			columns = append(columns, c)
			delete(used, c)
		}
	}
	return columns
}

// Cells lays the message out under its column; every other cell is empty.
func (e ErrorEntry) Cells(columns []string) []any {
	cells := make([]any, len(columns))
	for i, c := range columns {
		if c == e.Column {
			cells[i] = e.Message
		} else {
			cells[i] = ""
		}
	}
	return cells
}
