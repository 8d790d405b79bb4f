package repositories

import (
	"database/sql"
	"errors"

	"settlement-reconciler/internal/models"
)

var ErrRunNotFound = errors.New("settlement run not found")

type RunRepository interface {
	CreateRun(tx *sql.Tx, run *models.SettlementRun) error
	GetRunByBatchID(batchID string) (*models.SettlementRun, error)
	ListRuns(limit int) ([]*models.SettlementRun, error)
	CreateAuditEntry(tx *sql.Tx, audit *models.RunAudit) error
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) CreateRun(tx *sql.Tx, run *models.SettlementRun) error {
	query := `
		INSERT INTO settlement_runs (
			batch_id, order_type, period_start, period_end,
			status, row_count, journal_count, error_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		run.BatchID,
		run.OrderType,
		run.PeriodStart,
		run.PeriodEnd,
		run.Status,
		run.RowCount,
		run.JournalCount,
		run.ErrorCount,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (r *runRepository) GetRunByBatchID(batchID string) (*models.SettlementRun, error) {
	run := &models.SettlementRun{}
	query := `
		SELECT id, batch_id, order_type, period_start, period_end, status,
		       row_count, journal_count, error_count, created_at, updated_at
		FROM settlement_runs
		WHERE batch_id = ?
	`
	err := r.db.QueryRow(query, batchID).Scan(
		&run.ID,
		&run.BatchID,
		&run.OrderType,
		&run.PeriodStart,
		&run.PeriodEnd,
		&run.Status,
		&run.RowCount,
		&run.JournalCount,
		&run.ErrorCount,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *runRepository) ListRuns(limit int) ([]*models.SettlementRun, error) {
	query := `
		SELECT id, batch_id, order_type, period_start, period_end, status,
		       row_count, journal_count, error_count, created_at, updated_at
		FROM settlement_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.SettlementRun
	for rows.Next() {
		run := &models.SettlementRun{}
		err := rows.Scan(
			&run.ID,
			&run.BatchID,
			&run.OrderType,
			&run.PeriodStart,
			&run.PeriodEnd,
			&run.Status,
			&run.RowCount,
			&run.JournalCount,
			&run.ErrorCount,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *runRepository) CreateAuditEntry(tx *sql.Tx, audit *models.RunAudit) error {
	query := `
		INSERT INTO settlement_run_audit (
			run_id, action, details, user_id
		) VALUES (?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		audit.RunID,
		audit.Action,
		[]byte(audit.Details),
		audit.UserID,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	audit.ID = id
	return nil
}
