package repositories

import (
	"database/sql"

	"settlement-reconciler/internal/models"
)

type ErrorRepository interface {
	InsertRunError(tx *sql.Tx, runError *models.RunError) error
	GetErrorsByRunID(runID int64) ([]*models.RunError, error)
}

type errorRepository struct {
	db *sql.DB
}

func NewErrorRepository(db *sql.DB) ErrorRepository {
	return &errorRepository{db: db}
}

func (r *errorRepository) InsertRunError(tx *sql.Tx, runError *models.RunError) error {
	query := `
		INSERT INTO settlement_run_errors (
			run_id, line_no, column_name, order_id, message
		) VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		runError.RunID,
		runError.LineNo,
		runError.Column,
		runError.OrderID,
		runError.Message,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	runError.ID = id
	return nil
}

func (r *errorRepository) GetErrorsByRunID(runID int64) ([]*models.RunError, error) {
	query := `
		SELECT id, run_id, line_no, column_name, order_id, message
		FROM settlement_run_errors
		WHERE run_id = ?
		ORDER BY line_no
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runErrors []*models.RunError
	for rows.Next() {
		runError := &models.RunError{}
		err := rows.Scan(
			&runError.ID,
			&runError.RunID,
			&runError.LineNo,
			&runError.Column,
			&runError.OrderID,
			&runError.Message,
		)
		if err != nil {
			return nil, err
		}
		runErrors = append(runErrors, runError)
	}
	return runErrors, rows.Err()
}
