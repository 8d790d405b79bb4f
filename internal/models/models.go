package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawSettlementRow is a settlement report line as it appears in the workbook,
// before the header row is split off and the cells are typed.
type RawSettlementRow struct {
	Line                int
	OrderID             string
	PostedDate          string
	SettlementStartDate string
	SettlementEndDate   string
	Amount              string
	AmountType          string
	AmountDescription   string
}

// SettlementRow is one typed line of the marketplace settlement export.
// OrderID is empty for fee and reserve lines.
type SettlementRow struct {
	Line              int             `json:"line"`
	OrderID           string          `json:"order_id,omitempty"`
	PostedDate        time.Time       `json:"posted_date"`
	Amount            decimal.Decimal `json:"amount"`
	AmountType        string          `json:"amount_type"`
	AmountDescription string          `json:"amount_description"`
}

// SaleLedgerEntry is a sales register row, keyed by the marketplace order id.
type SaleLedgerEntry struct {
	CustomerPurchaseOrder string    `json:"customer_purchase_order"`
	CompanyGSTIN          string    `json:"company_gstin"`
	CustomerName          string    `json:"customer_name"`
	CostCenter            string    `json:"cost_center"`
	PostingDate           time.Time `json:"posting_date"`
	Voucher               string    `json:"voucher"`
	VoucherType           string    `json:"voucher_type"`
	Company               string    `json:"company"`
}

// AmountMatchRule maps an amount description to the ledger account of each
// GSTIN registration.
type AmountMatchRule struct {
	AmountDescription string `json:"amount_description"`
	Account27         string `json:"account_27"`
	Account29         string `json:"account_29"`
}

// AccountFor returns the account for a GSTIN state prefix ("27" or "29").
func (r AmountMatchRule) AccountFor(prefix string) string {
	switch prefix {
	case GSTINPrefix27:
		return r.Account27
	case GSTINPrefix29:
		return r.Account29
	}
	return ""
}

// ErrorEntry is one diagnostic of the error table. Column names the journal
// column that was being computed when the row failed.
type ErrorEntry struct {
	Column  string `json:"column"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

// SettlementRun is the stored record of one reconciliation.
type SettlementRun struct {
	ID           int64     `db:"id" json:"id"`
	BatchID      string    `db:"batch_id" json:"batch_id"`
	OrderType    string    `db:"order_type" json:"order_type"`
	PeriodStart  string    `db:"period_start" json:"period_start"`
	PeriodEnd    string    `db:"period_end" json:"period_end"`
	Status       string    `db:"status" json:"status"`
	RowCount     int       `db:"row_count" json:"row_count"`
	JournalCount int       `db:"journal_count" json:"journal_count"`
	ErrorCount   int       `db:"error_count" json:"error_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// JournalLine is a JournalEntry stored against a run.
type JournalLine struct {
	ID     int64 `db:"id" json:"id"`
	RunID  int64 `db:"run_id" json:"run_id"`
	LineNo int   `db:"line_no" json:"line_no"`
	JournalEntry
}

// RunError is an ErrorEntry stored against a run.
type RunError struct {
	ID     int64 `db:"id" json:"id"`
	RunID  int64 `db:"run_id" json:"run_id"`
	LineNo int   `db:"line_no" json:"line_no"`
	ErrorEntry
}

// RunAudit represents an audit trail entry
type RunAudit struct {
	ID        int64           `db:"id" json:"id"`
	RunID     int64           `db:"run_id" json:"run_id"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	UserID    string          `db:"user_id" json:"user_id"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}

// Order types
const (
	OrderTypeCOD        = "COD_"
	OrderTypeElectronic = "Electronic_"
)

// GSTIN state prefixes of the two registrations
const (
	GSTINPrefix27 = "27"
	GSTINPrefix29 = "29"
)

// Run status constants
const (
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
)

// AuditAction constants
const (
	AuditActionCreated  = "created"
	AuditActionExported = "exported"
)
