package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"settlement-reconciler/internal/config"
	"settlement-reconciler/internal/reconciler"
	"settlement-reconciler/internal/services"
	"settlement-reconciler/internal/spreadsheet"
)

func xlsx(t *testing.T, columns []string, rows ...[]string) []byte {
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
	return data
}

func fixtureFiles(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"payment_statement": xlsx(t, services.StatementColumns,
			[]string{"", "", "01.01.2024 00:00:00 UTC", "14.01.2024 00:00:00 UTC", "95", "", ""},
			[]string{"X1", "05.01.2024", "", "", "-100", "Principal", "ItemPrice"},
			[]string{"NOPE", "05.01.2024", "", "", "10", "Principal", "ItemPrice"},
			[]string{"X1", "06.01.2024", "", "", "5", "Shipping", "ItemPrice"},
		),
		"sale_register": xlsx(t, services.RegisterColumns,
			[]string{"X1", "27AAAAA0000A1Z5", "Customer X1", "6 - Retail - TMPL", "2024-01-02", "SINV-X1", "Sales Invoice", "Thakker Mercantile Private Limited"},
		),
		"matching_template": xlsx(t, services.TemplateColumns,
			[]string{"Principal", "Debtors (INR) - TMPL", "Debtors (INR) - TMPL29"},
			[]string{"Shipping", "Shipping Income - TMPL", "Shipping Income - TMPL29"},
		),
	}
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".xlsx")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func setupTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	cfg, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	return SetupRouter(nil, cfg, logger)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(setupTestRouter(t), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReconcileJSON(t *testing.T) {
	req := multipartRequest(t, "/api/v1/settlements/reconcile",
		map[string]string{"order_type": "COD_"}, fixtureFiles(t))

	rec := serve(setupTestRouter(t), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result services.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, "completed_with_errors", result.Status)
	assert.Len(t, result.Journal, 3)
	assert.Len(t, result.Errors, 1)
	assert.False(t, result.Persisted)
}

func TestReconcileWorkbook(t *testing.T) {
	req := multipartRequest(t, "/api/v1/settlements/reconcile?format=xlsx", nil, fixtureFiles(t))

	rec := serve(setupTestRouter(t), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Journal", "Errors"}, f.GetSheetList())

	rows, err := f.GetRows("Errors")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Reference Number"}, rows[0])
}

func TestReconcileRejectsBadParameters(t *testing.T) {
	req := multipartRequest(t, "/api/v1/settlements/reconcile?format=csv",
		map[string]string{"order_type": "Prepaid_"}, fixtureFiles(t))

	rec := serve(setupTestRouter(t), req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"OrderType": "oneof", "Format": "oneof"}, resp.Fields)
}

func TestReconcileMissingUpload(t *testing.T) {
	files := fixtureFiles(t)
	delete(files, "matching_template")

	rec := serve(setupTestRouter(t), multipartRequest(t, "/api/v1/settlements/reconcile", nil, files))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "matching_template is required")
}

func TestReconcileMissingColumns(t *testing.T) {
	files := fixtureFiles(t)
	files["sale_register"] = xlsx(t, []string{"Customer's Purchase Order"})

	rec := serve(setupTestRouter(t), multipartRequest(t, "/api/v1/settlements/reconcile", nil, files))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sale Register is missing columns")
}

func TestReconcileRejectsConcurrentRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := services.NewSettlementService(nil, logger, reconciler.DefaultOptions(), nil, nil, nil)
	handler := NewSettlementHandler(svc, logger, 32<<20)

	files := fixtureFiles(t)
	key, err := uploadKey(bytes.NewReader(files["payment_statement"]), "COD_")
	require.NoError(t, err)
	handler.activeProcesses[key] = true

	req := multipartRequest(t, "/api/v1/settlements/reconcile", map[string]string{"order_type": "COD_"}, files)
	rec := httptest.NewRecorder()
	handler.Reconcile(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunHistoryUnavailable(t *testing.T) {
	router := setupTestRouter(t)

	for _, target := range []string{
		"/api/v1/settlements/runs",
		"/api/v1/settlements/runs/SET-1",
		"/api/v1/settlements/runs/SET-1/journal.xlsx",
		"/api/v1/settlements/runs/SET-1/errors.xlsx",
	} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/settlements/runs?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateUploads(t *testing.T) {
	router := setupTestRouter(t)

	rec := serve(router, multipartRequest(t, "/api/v1/settlements/validate", nil, fixtureFiles(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	files := fixtureFiles(t)
	delete(files, "sale_register")
	rec = serve(router, multipartRequest(t, "/api/v1/settlements/validate", nil, files))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result services.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.True(t, result.Files[0].Valid)
	assert.Equal(t, "Sale Register: no file provided", result.Files[1].Error)
}
