package repositories

import (
	"database/sql"

	"settlement-reconciler/internal/models"
)

type JournalRepository interface {
	InsertJournalLine(tx *sql.Tx, line *models.JournalLine) error
	GetJournalByRunID(runID int64) ([]*models.JournalLine, error)
}

type journalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) InsertJournalLine(tx *sql.Tx, line *models.JournalLine) error {
	query := `
		INSERT INTO settlement_journal_lines (
			run_id, line_no, kind, order_id, company, entry_type,
			posting_date, series, reference_date, reference_number,
			user_remark, company_gstin, account, cost_center, debit, credit,
			party, party_type, reference_name, reference_type, line_remark
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		line.RunID,
		line.LineNo,
		string(line.Kind),
		line.OrderID,
		line.Company,
		line.EntryType,
		line.PostingDate,
		line.Series,
		line.ReferenceDate,
		line.ReferenceNumber,
		line.UserRemark,
		line.CompanyGSTIN,
		line.Account,
		line.CostCenter,
		line.Debit,
		line.Credit,
		line.Party,
		line.PartyType,
		line.ReferenceName,
		line.ReferenceType,
		line.LineRemark,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	line.ID = id
	return nil
}

// GetJournalByRunID returns the run's journal in its original line order.
func (r *journalRepository) GetJournalByRunID(runID int64) ([]*models.JournalLine, error) {
	query := `
		SELECT id, run_id, line_no, kind, order_id, company, entry_type,
		       posting_date, series, reference_date, reference_number,
		       user_remark, company_gstin, account, cost_center, debit, credit,
		       party, party_type, reference_name, reference_type, line_remark
		FROM settlement_journal_lines
		WHERE run_id = ?
		ORDER BY line_no
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*models.JournalLine
	for rows.Next() {
		line := &models.JournalLine{}
		var kind string
		err := rows.Scan(
			&line.ID,
			&line.RunID,
			&line.LineNo,
			&kind,
			&line.OrderID,
			&line.Company,
			&line.EntryType,
			&line.PostingDate,
			&line.Series,
			&line.ReferenceDate,
			&line.ReferenceNumber,
			&line.UserRemark,
			&line.CompanyGSTIN,
			&line.Account,
			&line.CostCenter,
			&line.Debit,
			&line.Credit,
			&line.Party,
			&line.PartyType,
			&line.ReferenceName,
			&line.ReferenceType,
			&line.LineRemark,
		)
		if err != nil {
			return nil, err
		}
		line.Kind = models.EntryKind(kind)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
