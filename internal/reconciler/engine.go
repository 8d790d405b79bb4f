package reconciler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"settlement-reconciler/internal/models"
)

const (
	descriptionPrincipal      = "Principal"
	descriptionCurrentReserve = "Current Reserve Amount"
	descriptionPrevReserve    = "Previous Reserve Amount Balance"

	entryTypeBank   = "Bank Entry"
	entryTypeContra = "Contra Entry"

	partyTypeSupplier = "Supplier"
	partyTypeCustomer = "Customer"
)

var two = decimal.NewFromInt(2)

// Input is the reference data of one run.
type Input struct {
	Statement []models.RawSettlementRow
	Ledger    []models.SaleLedgerEntry
	Rules     []models.AmountMatchRule
}

type Summary struct {
	Rows         int `json:"rows"`
	Orders       int `json:"orders"`
	ClosedOrders int `json:"closed_orders"`
	ReserveRows  int `json:"reserve_rows"`
	OrphanRows   int `json:"orphan_rows"`
	JournalLines int `json:"journal_lines"`
	Errors       int `json:"errors"`
	Mismatches   int `json:"mismatches"`
	RoundingRows int `json:"rounding_rows"`
}

type Result struct {
	Period  Period                `json:"period"`
	Journal []models.JournalEntry `json:"journal"`
	Errors  []models.ErrorEntry   `json:"errors"`
	Summary Summary               `json:"summary"`
}

// Engine turns a settlement statement into balanced journal vouchers. An
// Engine holds per-run state and must not be shared between goroutines.
type Engine struct {
	opts Options

	statement []models.RawSettlementRow
	ledger    map[string]*models.SaleLedgerEntry
	rules     map[string]models.AmountMatchRule

	period  Period
	index   *OrderIndex
	open    map[string]*OrderAccumulator
	journal []models.JournalEntry
	errors  []models.ErrorEntry
	summary Summary
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// SetData loads the run's inputs. The first ledger row and the first rule
// win when keys repeat.
func (e *Engine) SetData(in Input) {
	e.statement = in.Statement

	e.ledger = make(map[string]*models.SaleLedgerEntry, len(in.Ledger))
	for i := range in.Ledger {
		entry := &in.Ledger[i]
		if _, ok := e.ledger[entry.CustomerPurchaseOrder]; !ok {
			e.ledger[entry.CustomerPurchaseOrder] = entry
		}
	}

	e.rules = make(map[string]models.AmountMatchRule, len(in.Rules))
	for _, r := range in.Rules {
		if _, ok := e.rules[r.AmountDescription]; !ok {
			e.rules[r.AmountDescription] = r
		}
	}
}

// Process runs the whole pipeline. Only setup failures are returned as
// errors; row and order problems end up in Result.Errors.
func (e *Engine) Process() (*Result, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	period, raw, err := ExtractHeader(e.statement)
	if err != nil {
		return nil, err
	}
	rows, err := ParseRows(raw)
	if err != nil {
		return nil, err
	}

	e.period = period
	e.index = IndexOrders(rows)
	e.open = make(map[string]*OrderAccumulator)
	e.journal = nil
	e.errors = nil
	e.summary = Summary{Rows: len(rows), Orders: len(e.index.OrderIDs)}

	for pos, row := range rows {
		if row.OrderID == "" {
			if isReserve(row.AmountDescription) {
				e.reservePair(row)
			}
			continue
		}
		e.processOrderRow(pos, row)
	}

	e.aggregateOrphans(rows)

	e.summary.JournalLines = len(e.journal)
	e.summary.Errors = len(e.errors)

	return &Result{
		Period:  e.period,
		Journal: e.journal,
		Errors:  e.errors,
		Summary: e.summary,
	}, nil
}

func isReserve(description string) bool {
	return description == descriptionCurrentReserve || description == descriptionPrevReserve
}

func (e *Engine) fail(column, orderID, message string) {
	e.errors = append(e.errors, models.ErrorEntry{Column: column, OrderID: orderID, Message: message})
}

// reservePair moves a reserve amount between the fund and freeze accounts.
func (e *Engine) reservePair(row models.SettlementRow) {
	posting := row.PostedDate.Format(journalDateLayout)
	debit := decimal.Max(row.Amount, decimal.Zero)
	credit := decimal.Min(row.Amount, decimal.Zero).Neg()

	e.journal = append(e.journal,
		models.JournalEntry{
			Kind:          models.EntryContraHeader,
			Company:       e.opts.Company,
			EntryType:     entryTypeContra,
			PostingDate:   posting,
			Series:        e.opts.Series,
			ReferenceDate: posting,
			Account:       AccountFor(models.GSTINPrefix27, fundPurpose(e.opts.OrderType)),
			CostCenter:    e.opts.CostCenter,
			Debit:         debit,
			Credit:        credit,
		},
		models.JournalEntry{
			Kind:    models.EntryLine,
			Account: AccountFor(models.GSTINPrefix27, freezePurpose(e.opts.OrderType)),
			Debit:   credit,
			Credit:  debit,
		},
	)
	e.summary.ReserveRows++
}

func (e *Engine) processOrderRow(pos int, row models.SettlementRow) {
	e.classifyOrderRow(row)

	if e.index.IsLast(row.OrderID, pos) {
		if acc, ok := e.open[row.OrderID]; ok {
			e.closeOrder(acc)
		}
	}
}

func (e *Engine) classifyOrderRow(row models.SettlementRow) {
	ledger, ok := e.ledger[row.OrderID]
	if !ok {
		e.fail(models.ColReferenceNo, row.OrderID, fmt.Sprintf("Error: No customer's Purchase Order for %s", row.OrderID))
		return
	}
	rule, ok := e.rules[row.AmountDescription]
	if !ok {
		e.fail(models.ColAccount, row.OrderID, fmt.Sprintf("Error: No match for %s", row.AmountDescription))
		return
	}
	prefix := GSTINPrefix(ledger.CompanyGSTIN)
	if prefix == "" {
		e.fail(models.ColCompanyGSTIN, row.OrderID, fmt.Sprintf("Error: Unsupported Company GSTIN %s for %s", ledger.CompanyGSTIN, row.OrderID))
		return
	}
	account := rule.AccountFor(prefix)
	if account == "" {
		e.fail(models.ColAccount, row.OrderID, fmt.Sprintf("Error: No %s account for %s", prefix, row.AmountDescription))
		return
	}

	acc, ok := e.open[row.OrderID]
	if !ok {
		acc = newOrderAccumulator(row.OrderID, ledger, prefix, row.PostedDate)
		e.open[row.OrderID] = acc
	}

	if e.opts.isExpense(row.AmountDescription) {
		acc.TotalExpense = acc.TotalExpense.Add(row.Amount)
		return
	}

	debitEntry := decimal.Zero
	creditEntry := decimal.Zero
	if row.Amount.IsNegative() {
		debitEntry = row.Amount
	} else {
		creditEntry = row.Amount
	}

	entry := e.accountEntry(acc, account, debitEntry.Neg(), creditEntry)

	if row.AmountDescription == descriptionPrincipal {
		entry.Kind = models.EntryPrincipal
		acc.stashPrincipal(entry)
		return
	}

	entry.LineRemark = row.AmountType + "|" + row.AmountDescription
	if acc.Opened {
		entry.Kind = models.EntryLine
	} else {
		e.openVoucher(&entry, acc, row.PostedDate)
	}
	acc.post(entry)
}

// openVoucher turns entry into the bank header of the order's voucher.
func (e *Engine) openVoucher(entry *models.JournalEntry, acc *OrderAccumulator, posted time.Time) {
	entry.Kind = models.EntryBankHeader
	entry.Company = acc.Ledger.Company
	entry.EntryType = entryTypeBank
	entry.PostingDate = formatDate(posted)
	entry.Series = e.opts.Series
	entry.ReferenceDate = formatDate(acc.Ledger.PostingDate)
	entry.ReferenceNumber = acc.OrderID
	entry.UserRemark = acc.OrderID + " " + e.period.Label()
	entry.CompanyGSTIN = acc.Ledger.CompanyGSTIN
	acc.Opened = true
}

// accountEntry fills the accounting-entry fields shared by every order line.
func (e *Engine) accountEntry(acc *OrderAccumulator, account string, debit, credit decimal.Decimal) models.JournalEntry {
	entry := models.JournalEntry{
		OrderID:    acc.OrderID,
		Account:    account,
		CostCenter: acc.Ledger.CostCenter,
		Debit:      debit,
		Credit:     credit,
	}

	switch {
	case isAccountFor(account, PurposeCreditors):
		entry.Party = e.opts.Supplier
		entry.PartyType = partyTypeSupplier
	case isAccountFor(account, PurposeDebtors):
		entry.Party = acc.Ledger.CustomerName
		entry.PartyType = partyTypeCustomer
		entry.ReferenceName = acc.Ledger.Voucher
		entry.ReferenceType = acc.Ledger.VoucherType
	}

	return entry
}

// closeOrder balances the order's voucher on its last row: expenses are
// folded into the principal, the settled total goes against the fund
// account, and any sub-unit remainder is moved to the round-off account.
func (e *Engine) closeOrder(acc *OrderAccumulator) {
	delete(e.open, acc.OrderID)

	principal := acc.Principal
	if principal == nil {
		principal = e.defaultPrincipal(acc)
	}
	if principal != nil {
		principal.Credit = principal.Credit.Add(acc.TotalExpense).Round(2)
		acc.TotalCredit = acc.TotalCredit.Add(principal.Credit)
		acc.TotalDebit = acc.TotalDebit.Add(principal.Debit)
	}

	total := e.index.Totals[acc.OrderID]
	creditEnd := decimal.Min(total, decimal.Zero).Neg()
	debitEnd := decimal.Max(total, decimal.Zero)

	acc.TotalCredit = acc.TotalCredit.Add(creditEnd).Round(2)
	acc.TotalDebit = acc.TotalDebit.Add(debitEnd).Round(2)

	if !acc.TotalDebit.Equal(acc.TotalCredit) {
		e.fail(models.ColCredit, acc.OrderID, fmt.Sprintf("Total debit and Total credit do not match for %s", acc.OrderID))
		e.summary.Mismatches++
	}

	lines := acc.Lines
	difference := acc.TotalCredit.Round(0).Sub(acc.TotalCredit).Round(2)
	if !difference.IsZero() {
		lines = append(lines, models.JournalEntry{
			Kind:       models.EntryRounding,
			OrderID:    acc.OrderID,
			Account:    AccountFor(acc.Prefix, PurposeRoundOff),
			CostCenter: acc.Ledger.CostCenter,
			Debit:      decimal.Max(difference, decimal.Zero),
			Credit:     decimal.Min(difference, decimal.Zero).Neg(),
		})
		e.summary.RoundingRows++

		roundOff := difference
		if difference.IsNegative() {
			debitEnd = debitEnd.Add(difference)
			roundOff = difference.Mul(two)
		}
		if principal != nil {
			principal.Credit = principal.Credit.Add(roundOff).Round(2)
			principal.LineRemark = fmt.Sprintf("ItemPrice|Principal (%s) - [Expense: %s] - [Roundoff: %s]",
				principal.Credit.String(), acc.TotalExpense.String(), roundOff.String())
		}
	}

	if principal != nil {
		lines = append(lines, *principal)
	}
	lines = append(lines, models.JournalEntry{
		Kind:       models.EntryClosing,
		OrderID:    acc.OrderID,
		Account:    AccountFor(acc.Prefix, fundPurpose(e.opts.OrderType)),
		CostCenter: acc.Ledger.CostCenter,
		Debit:      debitEnd,
		Credit:     creditEnd,
	})

	// Orders made only of principal and expense rows never wrote a header
	// line; the first line of the voucher takes that role.
	if !acc.Opened {
		e.openVoucher(&lines[0], acc, acc.FirstPosted)
	}

	e.journal = append(e.journal, lines...)
	e.summary.ClosedOrders++
}

// defaultPrincipal builds an empty principal line for orders whose statement
// has no principal row, so expenses still have somewhere to land.
func (e *Engine) defaultPrincipal(acc *OrderAccumulator) *models.JournalEntry {
	rule, ok := e.rules[descriptionPrincipal]
	account := rule.AccountFor(acc.Prefix)
	if !ok || account == "" {
		e.fail(models.ColAccount, acc.OrderID, fmt.Sprintf("Error: No Principal line for %s", acc.OrderID))
		return nil
	}

	entry := e.accountEntry(acc, account, decimal.Zero, decimal.Zero)
	entry.Kind = models.EntryPrincipal
	return &entry
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(journalDateLayout)
}
