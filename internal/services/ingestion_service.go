package services

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"settlement-reconciler/internal/models"
	"settlement-reconciler/internal/reconciler"
	"settlement-reconciler/internal/spreadsheet"
)

// Workbook names used in column errors.
const (
	StatementName = "Payment Statement"
	RegisterName  = "Sale Register"
	TemplateName  = "Matching Template"
)

var (
	StatementColumns = []string{
		"order-id", "posted-date", "settlement-start-date", "settlement-end-date",
		"amount", "amount-description", "amount-type",
	}
	RegisterColumns = []string{
		"Customer's Purchase Order", "Company GSTIN", "Customer Name", "Cost Center",
		"Posting Date", "Voucher", "Voucher Type", "Company",
	}
	TemplateColumns = []string{"amount-description", "ERP 27 Company", "ERP 29 Company"}
)

var registerDateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02", "02-01-2006", "02.01.2006"}

// Uploads are the three workbooks of one run.
type Uploads struct {
	Statement io.Reader
	Register  io.Reader
	Template  io.Reader
}

type IngestionService struct{}

func NewIngestionService() *IngestionService {
	return &IngestionService{}
}

// Load reads the three workbooks concurrently and types their rows.
func (s *IngestionService) Load(files Uploads) (*reconciler.Input, error) {
	var (
		wg        sync.WaitGroup
		statement []models.RawSettlementRow
		ledger    []models.SaleLedgerEntry
		rules     []models.AmountMatchRule
	)
	errorChan := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		rows, err := s.ReadStatement(files.Statement)
		if err != nil {
			errorChan <- err
			return
		}
		statement = rows
	}()
	go func() {
		defer wg.Done()
		entries, err := s.ReadSaleRegister(files.Register)
		if err != nil {
			errorChan <- err
			return
		}
		ledger = entries
	}()
	go func() {
		defer wg.Done()
		loaded, err := s.ReadMatchingTemplate(files.Template)
		if err != nil {
			errorChan <- err
			return
		}
		rules = loaded
	}()

	wg.Wait()
	close(errorChan)

	if err := <-errorChan; err != nil {
		return nil, err
	}

	return &reconciler.Input{Statement: statement, Ledger: ledger, Rules: rules}, nil
}

func (s *IngestionService) ReadStatement(r io.Reader) ([]models.RawSettlementRow, error) {
	table, err := readTable(StatementName, r)
	if err != nil {
		return nil, err
	}
	return StatementRows(table)
}

func (s *IngestionService) ReadSaleRegister(r io.Reader) ([]models.SaleLedgerEntry, error) {
	table, err := readTable(RegisterName, r)
	if err != nil {
		return nil, err
	}
	return LedgerEntries(table)
}

func (s *IngestionService) ReadMatchingTemplate(r io.Reader) ([]models.AmountMatchRule, error) {
	table, err := readTable(TemplateName, r)
	if err != nil {
		return nil, err
	}
	return MatchRules(table)
}

func readTable(name string, r io.Reader) (*spreadsheet.Table, error) {
	if r == nil {
		return nil, fmt.Errorf("%s: no file provided", name)
	}
	table, err := spreadsheet.ReadTable(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return table, nil
}

// StatementRows keeps the statement cells as text; the reconciler types them
// once the header row is split off.
func StatementRows(table *spreadsheet.Table) ([]models.RawSettlementRow, error) {
	if err := table.Require(StatementName, StatementColumns...); err != nil {
		return nil, err
	}

	rows := make([]models.RawSettlementRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		rows = append(rows, models.RawSettlementRow{
			Line:                row.Line,
			OrderID:             row.Get("order-id"),
			PostedDate:          row.Get("posted-date"),
			SettlementStartDate: row.Get("settlement-start-date"),
			SettlementEndDate:   row.Get("settlement-end-date"),
			Amount:              row.Get("amount"),
			AmountType:          row.Get("amount-type"),
			AmountDescription:   row.Get("amount-description"),
		})
	}
	return rows, nil
}

func LedgerEntries(table *spreadsheet.Table) ([]models.SaleLedgerEntry, error) {
	if err := table.Require(RegisterName, RegisterColumns...); err != nil {
		return nil, err
	}

	entries := make([]models.SaleLedgerEntry, 0, len(table.Rows))
	for _, row := range table.Rows {
		entry := models.SaleLedgerEntry{
			CustomerPurchaseOrder: row.Get("Customer's Purchase Order"),
			CompanyGSTIN:          row.Get("Company GSTIN"),
			CustomerName:          row.Get("Customer Name"),
			CostCenter:            row.Get("Cost Center"),
			Voucher:               row.Get("Voucher"),
			VoucherType:           row.Get("Voucher Type"),
			Company:               row.Get("Company"),
		}
		if entry.CustomerPurchaseOrder == "" {
			continue
		}

		if value := row.Get("Posting Date"); value != "" {
			posted, err := spreadsheet.ParseDate(value, registerDateLayouts...)
			if err != nil {
				return nil, &reconciler.ParseError{
					Err:    reconciler.ErrInvalidRow,
					Field:  RegisterName + " Posting Date",
					Line:   row.Line,
					Value:  value,
					Reason: err.Error(),
				}
			}
			entry.PostingDate = posted
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func MatchRules(table *spreadsheet.Table) ([]models.AmountMatchRule, error) {
	if err := table.Require(TemplateName, TemplateColumns...); err != nil {
		return nil, err
	}

	rules := make([]models.AmountMatchRule, 0, len(table.Rows))
	for _, row := range table.Rows {
		rule := models.AmountMatchRule{
			AmountDescription: row.Get("amount-description"),
			Account27:         row.Get("ERP 27 Company"),
			Account29:         row.Get("ERP 29 Company"),
		}
		if rule.AmountDescription == "" {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// FileCheck is the outcome of checking one upload's columns.
type FileCheck struct {
	Name    string   `json:"name"`
	Valid   bool     `json:"valid"`
	Rows    int      `json:"rows"`
	Missing []string `json:"missing,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type ValidationResult struct {
	Valid bool        `json:"valid"`
	Files []FileCheck `json:"files"`
}

// Validate checks the required columns of every upload without running the
// reconciliation. Unlike Load it reports on all three files.
func (s *IngestionService) Validate(files Uploads) *ValidationResult {
	result := &ValidationResult{Valid: true}
	for _, f := range []struct {
		name    string
		r       io.Reader
		columns []string
	}{
		{StatementName, files.Statement, StatementColumns},
		{RegisterName, files.Register, RegisterColumns},
		{TemplateName, files.Template, TemplateColumns},
	} {
		check := checkFile(f.name, f.r, f.columns)
		result.Valid = result.Valid && check.Valid
		result.Files = append(result.Files, check)
	}
	return result
}

func checkFile(name string, r io.Reader, columns []string) FileCheck {
	check := FileCheck{Name: name}

	table, err := readTable(name, r)
	if err != nil {
		check.Error = err.Error()
		return check
	}
	check.Rows = len(table.Rows)

	if err := table.Require(name, columns...); err != nil {
		var missing *spreadsheet.MissingColumnsError
		if errors.As(err, &missing) {
			check.Missing = missing.Columns
		}
		check.Error = err.Error()
		return check
	}

	check.Valid = true
	return check
}
