package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-reconciler/internal/config"
	"settlement-reconciler/internal/services"
	"settlement-reconciler/internal/spreadsheet"
)

func writeFixture(t *testing.T, dir, name string, columns []string, rows ...[]string) string {
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

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	statement := writeFixture(t, dir, "statement.xlsx", services.StatementColumns,
		[]string{"", "", "01.01.2024 00:00:00 UTC", "14.01.2024 00:00:00 UTC", "95", "", ""},
		[]string{"X1", "05.01.2024", "", "", "-100", "Principal", "ItemPrice"},
		[]string{"X1", "06.01.2024", "", "", "5", "Shipping", "ItemPrice"},
		[]string{"", "07.01.2024", "", "", "-12", "Fee", "Cost of Advertising"},
	)
	register := writeFixture(t, dir, "register.xlsx", services.RegisterColumns,
		[]string{"X1", "27AAAAA0000A1Z5", "Customer X1", "6 - Retail - TMPL", "2024-01-02", "SINV-X1", "Sales Invoice", "Thakker Mercantile Private Limited"},
	)
	template := writeFixture(t, dir, "template.xlsx", services.TemplateColumns,
		[]string{"Principal", "Debtors (INR) - TMPL", "Debtors (INR) - TMPL29"},
		[]string{"Shipping", "Shipping Income - TMPL", "Shipping Income - TMPL29"},
	)

	cfg, err := config.LoadConfigFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	var out bytes.Buffer
	err = run([]string{
		"-statement", statement,
		"-register", register,
		"-template", template,
		"-out", dir,
	}, cfg, logger, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "5 journal lines, 0 errors")

	f, err := os.Open(lines[1])
	require.NoError(t, err)
	defer f.Close()
	table, err := spreadsheet.ReadTable(f)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 5)

	_, err = os.Stat(lines[2])
	assert.NoError(t, err)
}

func TestRunRequiresInputs(t *testing.T) {
	cfg, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	err = run([]string{"-statement", "statement.xlsx"}, cfg, logger, &bytes.Buffer{})
	assert.Error(t, err)
}
