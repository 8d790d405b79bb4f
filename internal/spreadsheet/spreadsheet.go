// Package spreadsheet reads uploaded workbooks into header-keyed tables and
// writes result tables back out as xlsx.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrMissingColumns is wrapped by MissingColumnsError.
	ErrMissingColumns = errors.New("required columns are missing")

	ErrEmptyWorkbook      = errors.New("workbook has no header row")
	ErrUnreadableWorkbook = errors.New("file is not a readable xlsx workbook")
)

// MissingColumnsError names the table and every required column it lacks.
type MissingColumnsError struct {
	Name    string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s is missing columns: %s", e.Name, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// Row is one data row of a table. Line is the 1-based worksheet row.
type Row struct {
	Line  int
	cells map[string]string
}

// Get returns the trimmed cell under column, or "" when the row is short.
func (r Row) Get(column string) string {
	return r.cells[column]
}

// Table is the first worksheet of a workbook keyed by its header row.
type Table struct {
	Sheet   string
	Headers []string
	Rows    []Row
}

// ReadTable loads the first worksheet of an xlsx workbook. Header cells are
// trimmed so "ERP 27 Company " matches "ERP 27 Company". Blank rows are skipped.
// Cells are read unformatted: date cells arrive as excel serials and amounts
// as plain numbers whatever their display format.
func ReadTable(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return NewTable(sheet, rows)
}

// NewTable builds a table from raw rows whose first row is the header.
func NewTable(sheet string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	table := &Table{Sheet: sheet, Headers: headers}
	for i, raw := range rows[1:] {
		if isBlank(raw) {
			continue
		}
		cells := make(map[string]string, len(headers))
		for col, h := range headers {
			if h == "" || col >= len(raw) {
				continue
			}
			if _, dup := cells[h]; dup {
				continue
			}
			cells[h] = strings.TrimSpace(raw[col])
		}
		table.Rows = append(table.Rows, Row{Line: i + 2, cells: cells})
	}

	return table, nil
}

// Require fails with a MissingColumnsError listing every absent column.
func (t *Table) Require(name string, columns ...string) error {
	present := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		present[h] = true
	}

	var missing []string
	for _, c := range columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Name: name, Columns: missing}
	}
	return nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Sheet is one worksheet to write.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Write renders the sheets into a single workbook, in order.
func Write(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return errors.New("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Encode is Write into memory.
func Encode(sheets ...Sheet) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, sheets...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	if len(sheet.Columns) == 0 {
		return nil
	}

	header := make([]any, len(sheet.Columns))
	for i, c := range sheet.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", sheet.Name, err)
	}

	last, _ := excelize.ColumnNumberToName(len(sheet.Columns))
	if err := f.SetCellStyle(sheet.Name, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %q: %w", sheet.Name, err)
	}
	if err := f.SetColWidth(sheet.Name, "A", last, 22); err != nil {
		return fmt.Errorf("failed to size columns of %q: %w", sheet.Name, err)
	}

	for i, row := range sheet.Rows {
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+2, sheet.Name, err)
		}
	}

	return nil
}

// cellValue turns decimal-like values into numbers so ERP imports read them
// as amounts rather than text.
func cellValue(v any) any {
	if d, ok := v.(interface{ InexactFloat64() float64 }); ok {
		return d.InexactFloat64()
	}
	return v
}
