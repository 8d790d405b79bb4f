package reconciler

import (
	"time"

	"settlement-reconciler/internal/models"
	"settlement-reconciler/internal/spreadsheet"
)

const (
	headerDateLayout  = "02.01.2006 15:04:05 MST"
	postedDateLayout  = "02.01.2006"
	periodLabelLayout = "2006/01/02"
	journalDateLayout = "2006-01-02"
)

// Period is the settlement window printed on the first statement row.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Label renders the period as used in remarks, "2024/01/01 - 2024/01/14".
func (p Period) Label() string {
	return p.Start + " - " + p.End
}

// ExtractHeader reads the settlement period from the first row and returns
// the rows that follow it.
func ExtractHeader(rows []models.RawSettlementRow) (Period, []models.RawSettlementRow, error) {
	if len(rows) == 0 {
		return Period{}, nil, ErrEmptyStatement
	}
	first := rows[0]

	start, err := parseHeaderDate("settlement-start-date", first.Line, first.SettlementStartDate)
	if err != nil {
		return Period{}, nil, err
	}
	end, err := parseHeaderDate("settlement-end-date", first.Line, first.SettlementEndDate)
	if err != nil {
		return Period{}, nil, err
	}

	return Period{Start: start, End: end}, rows[1:], nil
}

func parseHeaderDate(field string, line int, value string) (string, error) {
	t, err := time.Parse(headerDateLayout, value)
	if err != nil {
		return "", &ParseError{Err: ErrInvalidHeaderDate, Field: field, Line: line, Value: value, Reason: "expected dd.mm.yyyy HH:MM:SS TZ"}
	}
	return t.Format(periodLabelLayout), nil
}

// ParseRows types the statement rows. Any unreadable date or amount aborts
// the run, since it means the statement is not the expected export.
func ParseRows(raw []models.RawSettlementRow) ([]models.SettlementRow, error) {
	rows := make([]models.SettlementRow, 0, len(raw))
	for _, r := range raw {
		posted, err := spreadsheet.ParseDate(r.PostedDate, postedDateLayout)
		if err != nil {
			return nil, &ParseError{Err: ErrInvalidRow, Field: "posted-date", Line: r.Line, Value: r.PostedDate, Reason: err.Error()}
		}
		amount, err := spreadsheet.ParseDecimal(r.Amount)
		if err != nil {
			return nil, &ParseError{Err: ErrInvalidRow, Field: "amount", Line: r.Line, Value: r.Amount}
		}

		rows = append(rows, models.SettlementRow{
			Line:              r.Line,
			OrderID:           r.OrderID,
			PostedDate:        posted,
			Amount:            amount,
			AmountType:        r.AmountType,
			AmountDescription: r.AmountDescription,
		})
	}
	return rows, nil
}
