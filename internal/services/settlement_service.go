package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"settlement-reconciler/internal/config"
	"settlement-reconciler/internal/models"
	"settlement-reconciler/internal/reconciler"
	"settlement-reconciler/internal/repositories"
	"settlement-reconciler/internal/spreadsheet"
)

const moduleName = "settlement_service"

// ErrPersistenceDisabled is returned by the run history methods when the
// service runs without a database.
var ErrPersistenceDisabled = errors.New("run history is disabled")

type SettlementService struct {
	db          *sql.DB
	logger      logrus.FieldLogger
	defaults    reconciler.Options
	ingestion   *IngestionService
	runRepo     repositories.RunRepository
	journalRepo repositories.JournalRepository
	errorRepo   repositories.ErrorRepository
}

// NewSettlementService wires the service. db may be nil, in which case runs
// are computed but not stored.
func NewSettlementService(
	db *sql.DB,
	logger logrus.FieldLogger,
	defaults reconciler.Options,
	runRepo repositories.RunRepository,
	journalRepo repositories.JournalRepository,
	errorRepo repositories.ErrorRepository,
) *SettlementService {
	return &SettlementService{
		db:          db,
		logger:      logger,
		defaults:    defaults,
		ingestion:   NewIngestionService(),
		runRepo:     runRepo,
		journalRepo: journalRepo,
		errorRepo:   errorRepo,
	}
}

// RunRequest is one reconciliation. Empty OrderType and nil
// ExpenseCategories fall back to the configured defaults.
type RunRequest struct {
	Files             Uploads
	OrderType         string
	ExpenseCategories []string
	UserID            string
}

type RunResult struct {
	BatchID   string                `json:"batch_id"`
	Status    string                `json:"status"`
	OrderType string                `json:"order_type"`
	Period    reconciler.Period     `json:"period"`
	Summary   reconciler.Summary    `json:"summary"`
	Journal   []models.JournalEntry `json:"journal"`
	Errors    []models.ErrorEntry   `json:"errors"`
	Persisted bool                  `json:"persisted"`
}

type RunDetails struct {
	Run     *models.SettlementRun `json:"run"`
	Journal []*models.JournalLine `json:"journal"`
	Errors  []*models.RunError    `json:"errors"`
}

func (s *SettlementService) Ingestion() *IngestionService {
	return s.ingestion
}

func (s *SettlementService) Options(orderType string, expenseCategories []string) reconciler.Options {
	opts := s.defaults
	if orderType != "" {
		opts.OrderType = orderType
	}
	if expenseCategories != nil {
		opts.ExpenseCategories = expenseCategories
	}
	return opts
}

// Reconcile loads the uploads, runs a fresh engine over them and stores the
// outcome when persistence is enabled.
func (s *SettlementService) Reconcile(req RunRequest) (*RunResult, error) {
	opts := s.Options(req.OrderType, req.ExpenseCategories)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	input, err := s.ingestion.Load(req.Files)
	if err != nil {
		return nil, err
	}

	engine := reconciler.NewEngine(opts)
	engine.SetData(*input)
	res, err := engine.Process()
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		BatchID:   newBatchID(time.Now()),
		Status:    models.RunStatusCompleted,
		OrderType: opts.OrderType,
		Period:    res.Period,
		Summary:   res.Summary,
		Journal:   res.Journal,
		Errors:    res.Errors,
	}
	if len(res.Errors) > 0 {
		result.Status = models.RunStatusCompletedWithErrors
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id":      result.BatchID,
		"order_type":    opts.OrderType,
		"period":        res.Period.Label(),
		"rows":          res.Summary.Rows,
		"orders":        res.Summary.Orders,
		"journal_lines": res.Summary.JournalLines,
		"errors":        res.Summary.Errors,
		"mismatches":    res.Summary.Mismatches,
	}).Info("settlement reconciled")

	if s.db == nil {
		return result, nil
	}

	if err := s.saveRun(result, req.UserID); err != nil {
		config.LogError(s.logger, moduleName, "Reconcile", "saving run", result.BatchID, err)
		return nil, err
	}
	result.Persisted = true

	return result, nil
}

func (s *SettlementService) saveRun(result *RunResult, userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run := &models.SettlementRun{
		BatchID:      result.BatchID,
		OrderType:    result.OrderType,
		PeriodStart:  result.Period.Start,
		PeriodEnd:    result.Period.End,
		Status:       result.Status,
		RowCount:     result.Summary.Rows,
		JournalCount: len(result.Journal),
		ErrorCount:   len(result.Errors),
	}
	if err := s.runRepo.CreateRun(tx, run); err != nil {
		return fmt.Errorf("failed to create settlement run: %w", err)
	}

	for i, entry := range result.Journal {
		line := &models.JournalLine{RunID: run.ID, LineNo: i + 1, JournalEntry: entry}
		if err := s.journalRepo.InsertJournalLine(tx, line); err != nil {
			return fmt.Errorf("failed to store journal line %d: %w", i+1, err)
		}
	}

	for i, entry := range result.Errors {
		runError := &models.RunError{RunID: run.ID, LineNo: i + 1, ErrorEntry: entry}
		if err := s.errorRepo.InsertRunError(tx, runError); err != nil {
			return fmt.Errorf("failed to store run error %d: %w", i+1, err)
		}
	}

	details, _ := json.Marshal(result.Summary)
	audit := &models.RunAudit{
		RunID:   run.ID,
		Action:  models.AuditActionCreated,
		Details: details,
		UserID:  auditUser(userID),
	}
	if err := s.runRepo.CreateAuditEntry(tx, audit); err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SettlementService) ListRuns(limit int) ([]*models.SettlementRun, error) {
	if s.db == nil {
		return nil, ErrPersistenceDisabled
	}
	runs, err := s.runRepo.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *SettlementService) GetRun(batchID string) (*RunDetails, error) {
	if s.db == nil {
		return nil, ErrPersistenceDisabled
	}

	run, err := s.runRepo.GetRunByBatchID(batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	journal, err := s.journalRepo.GetJournalByRunID(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	runErrors, err := s.errorRepo.GetErrorsByRunID(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run errors: %w", err)
	}

	return &RunDetails{Run: run, Journal: journal, Errors: runErrors}, nil
}

// ExportJournal renders a stored run's journal as an xlsx workbook and
// records the export.
func (s *SettlementService) ExportJournal(batchID, userID string) ([]byte, error) {
	details, err := s.GetRun(batchID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.JournalEntry, len(details.Journal))
	for i, line := range details.Journal {
		entries[i] = line.JournalEntry
	}
	return s.export(details.Run, "journal", userID, JournalSheet(entries))
}

func (s *SettlementService) ExportErrors(batchID, userID string) ([]byte, error) {
	details, err := s.GetRun(batchID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ErrorEntry, len(details.Errors))
	for i, e := range details.Errors {
		entries[i] = e.ErrorEntry
	}
	return s.export(details.Run, "errors", userID, ErrorSheet(entries))
}

func (s *SettlementService) export(run *models.SettlementRun, table, userID string, sheet spreadsheet.Sheet) ([]byte, error) {
	data, err := spreadsheet.Encode(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", table, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	details, _ := json.Marshal(map[string]string{"table": table})
	audit := &models.RunAudit{
		RunID:   run.ID,
		Action:  models.AuditActionExported,
		Details: details,
		UserID:  auditUser(userID),
	}
	if err := s.runRepo.CreateAuditEntry(tx, audit); err != nil {
		return nil, fmt.Errorf("failed to create audit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return data, nil
}

// JournalSheet lays the journal out in import column order.
func JournalSheet(entries []models.JournalEntry) spreadsheet.Sheet {
	sheet := spreadsheet.Sheet{Name: "Journal", Columns: models.JournalColumns}
	for _, e := range entries {
		sheet.Rows = append(sheet.Rows, e.Cells())
	}
	return sheet
}

// ErrorSheet only carries the columns some error is filed under.
func ErrorSheet(entries []models.ErrorEntry) spreadsheet.Sheet {
	columns := models.ErrorColumns(entries)
	sheet := spreadsheet.Sheet{Name: "Errors", Columns: columns}
	for _, e := range entries {
		sheet.Rows = append(sheet.Rows, e.Cells(columns))
	}
	return sheet
}

// ResultWorkbook is the single-file download of a run: journal then errors.
func ResultWorkbook(result *RunResult) ([]byte, error) {
	return spreadsheet.Encode(JournalSheet(result.Journal), ErrorSheet(result.Errors))
}

func newBatchID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("SET-%s-%s", now.Format("20060102-150405"), id[:8])
}

func auditUser(userID string) string {
	if userID == "" {
		return "system"
	}
	return userID
}
