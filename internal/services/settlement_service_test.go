package services

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-reconciler/internal/models"
	"settlement-reconciler/internal/reconciler"
	"settlement-reconciler/internal/repositories"
	"settlement-reconciler/internal/spreadsheet"
)

func workbook(t *testing.T, columns []string, rows ...[]string) io.Reader {
	t.Helper()
	sheet := spreadsheet.Sheet{Name: "Sheet1", Columns: columns}
	for _, r := range rows {
		cells := make([]any, len(r))
		for i, c := range r {
			cells[i] = c
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	data, err := spreadsheet.Encode(sheet)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func statementFile(t *testing.T) io.Reader {
	return workbook(t, StatementColumns,
		[]string{"", "", "01.01.2024 00:00:00 UTC", "14.01.2024 00:00:00 UTC", "95", "", ""},
		[]string{"X1", "05.01.2024", "", "", "-100", "Principal", "ItemPrice"},
		[]string{"NOPE", "05.01.2024", "", "", "10", "Principal", "ItemPrice"},
		[]string{"X1", "06.01.2024", "", "", "5", "Shipping", "ItemPrice"},
	)
}

func registerFile(t *testing.T) io.Reader {
	return workbook(t, RegisterColumns,
		[]string{"X1", "27AAAAA0000A1Z5", "Customer X1", "6 - Retail - TMPL", "2024-01-02", "SINV-X1", "Sales Invoice", "Thakker Mercantile Private Limited"},
	)
}

func templateFile(t *testing.T) io.Reader {
	return workbook(t, []string{"amount-description", "ERP 27 Company ", "ERP 29 Company"},
		[]string{"Principal", "Debtors (INR) - TMPL", "Debtors (INR) - TMPL29"},
		[]string{"Shipping", "Shipping Income - TMPL", "Shipping Income - TMPL29"},
	)
}

func uploads(t *testing.T) Uploads {
	return Uploads{Statement: statementFile(t), Register: registerFile(t), Template: templateFile(t)}
}

func newService(db *sql.DB) (*SettlementService, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewSettlementService(db, logger, reconciler.DefaultOptions(),
		repositories.NewRunRepository(db),
		repositories.NewJournalRepository(db),
		repositories.NewErrorRepository(db),
	), hook
}

func TestReconcileWithoutDatabase(t *testing.T) {
	svc, hook := newService(nil)

	result, err := svc.Reconcile(RunRequest{Files: uploads(t)})
	require.NoError(t, err)

	assert.Regexp(t, `^SET-\d{8}-\d{6}-[0-9a-f]{8}$`, result.BatchID)
	assert.Equal(t, models.RunStatusCompletedWithErrors, result.Status)
	assert.Equal(t, models.OrderTypeCOD, result.OrderType)
	assert.Equal(t, "2024/01/01 - 2024/01/14", result.Period.Label())
	assert.False(t, result.Persisted)

	require.Len(t, result.Journal, 3)
	assert.Equal(t, "Shipping Income - TMPL", result.Journal[0].Account)
	assert.Equal(t, "2024-01-06", result.Journal[0].PostingDate)
	assert.Equal(t, "2024-01-02", result.Journal[0].ReferenceDate)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "NOPE", result.Errors[0].OrderID)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "settlement reconciled", entry.Message)
	assert.Equal(t, result.BatchID, entry.Data["batch_id"])
}

func TestReconcileOverridesOrderType(t *testing.T) {
	svc, _ := newService(nil)

	result, err := svc.Reconcile(RunRequest{Files: uploads(t), OrderType: models.OrderTypeElectronic})
	require.NoError(t, err)

	closing := result.Journal[len(result.Journal)-1]
	assert.Equal(t, "1601 - Amazon Electronic Fund - TMPL", closing.Account)

	_, err = svc.Reconcile(RunRequest{Files: uploads(t), OrderType: "Prepaid_"})
	assert.ErrorIs(t, err, reconciler.ErrInvalidOrderType)
}

func TestReconcileMissingColumns(t *testing.T) {
	svc, _ := newService(nil)
	files := uploads(t)
	files.Register = workbook(t, []string{"Customer's Purchase Order", "Company GSTIN"})

	_, err := svc.Reconcile(RunRequest{Files: files})

	var missing *spreadsheet.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, RegisterName, missing.Name)
	assert.Contains(t, missing.Columns, "Voucher Type")
	assert.Contains(t, missing.Columns, "Posting Date")
}

func TestReconcilePersistsRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, _ := newService(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlement_runs").WillReturnResult(sqlmock.NewResult(42, 1))
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO settlement_journal_lines").WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	mock.ExpectExec("INSERT INTO settlement_run_errors").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO settlement_run_audit").
		WithArgs(int64(42), models.AuditActionCreated, sqlmock.AnyArg(), "alice").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := svc.Reconcile(RunRequest{Files: uploads(t), UserID: "alice"})
	require.NoError(t, err)

	assert.True(t, result.Persisted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileRollsBackOnStoreFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, hook := newService(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlement_runs").WillReturnError(errors.New("duplicate batch"))
	mock.ExpectRollback()

	_, err = svc.Reconcile(RunRequest{Files: uploads(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create settlement run")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunHistoryDisabled(t *testing.T) {
	svc, _ := newService(nil)

	_, err := svc.ListRuns(10)
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
	_, err = svc.GetRun("SET-1")
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
	_, err = svc.ExportJournal("SET-1", "")
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}

func TestExportJournal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, _ := newService(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM settlement_runs WHERE batch_id = ?").
		WithArgs("SET-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "batch_id", "order_type", "period_start", "period_end", "status",
			"row_count", "journal_count", "error_count", "created_at", "updated_at",
		}).AddRow(42, "SET-1", "COD_", "2024/01/01", "2024/01/14", "completed", 3, 1, 0, now, now))
	mock.ExpectQuery("SELECT (.+) FROM settlement_journal_lines").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "run_id", "line_no", "kind", "order_id", "company", "entry_type",
			"posting_date", "series", "reference_date", "reference_number",
			"user_remark", "company_gstin", "account", "cost_center", "debit", "credit",
			"party", "party_type", "reference_name", "reference_type", "line_remark",
		}).AddRow(
			1, 42, 1, "closing", "X1", "", "", "", "", "", "", "", "",
			"1604 - Amazon COD Fund - TMPL", "6 - Retail - TMPL", "0", "95", "", "", "", "", "",
		))
	mock.ExpectQuery("SELECT (.+) FROM settlement_run_errors").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "line_no", "column_name", "order_id", "message"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlement_run_audit").
		WithArgs(int64(42), models.AuditActionExported, sqlmock.AnyArg(), "system").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	data, err := svc.ExportJournal("SET-1", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	table, err := spreadsheet.ReadTable(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Journal", table.Sheet)
	assert.Equal(t, models.JournalColumns, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "1604 - Amazon COD Fund - TMPL", table.Rows[0].Get(models.ColAccount))
	assert.Equal(t, "95", table.Rows[0].Get(models.ColCredit))
	assert.Equal(t, "", table.Rows[0].Get(models.ColCompany))
}

func TestResultWorkbook(t *testing.T) {
	svc, _ := newService(nil)
	result, err := svc.Reconcile(RunRequest{Files: uploads(t)})
	require.NoError(t, err)

	data, err := ResultWorkbook(result)
	require.NoError(t, err)

	errorsSheet := ErrorSheet(result.Errors)
	assert.Equal(t, []string{models.ColReferenceNo}, errorsSheet.Columns)
	assert.Equal(t, [][]any{{"Error: No customer's Purchase Order for NOPE"}}, errorsSheet.Rows)

	table, err := spreadsheet.ReadTable(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, table.Rows, len(result.Journal))
}
