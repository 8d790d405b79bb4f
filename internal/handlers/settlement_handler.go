package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"settlement-reconciler/internal/config"
	"settlement-reconciler/internal/reconciler"
	"settlement-reconciler/internal/repositories"
	"settlement-reconciler/internal/services"
	"settlement-reconciler/internal/spreadsheet"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

type reconcileForm struct {
	OrderType string `validate:"omitempty,oneof=COD_ Electronic_"`
	Format    string `validate:"omitempty,oneof=json xlsx"`
}

type SettlementHandler struct {
	settlementService *services.SettlementService
	logger            logrus.FieldLogger
	validate          *validator.Validate
	maxUpload         int64

	processingMutex sync.Mutex
	activeProcesses map[string]bool
}

func NewSettlementHandler(settlementService *services.SettlementService, logger logrus.FieldLogger, maxUpload int64) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		logger:            logger,
		validate:          validator.New(),
		maxUpload:         maxUpload,
		activeProcesses:   make(map[string]bool),
	}
}

// Reconcile runs the three uploaded workbooks. The same statement cannot be
// reconciled twice at once.
func (h *SettlementHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	form := reconcileForm{
		OrderType: r.FormValue("order_type"),
		Format:    r.URL.Query().Get("format"),
	}
	if err := h.validate.Struct(form); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Invalid request parameters",
			Fields: validationErrors(err),
		})
		return
	}

	files, closeFiles, err := openUploads(r, true)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeFiles()

	processKey, err := uploadKey(files.Statement, form.OrderType)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read payment_statement")
		return
	}

	h.processingMutex.Lock()
	if h.activeProcesses[processKey] {
		h.processingMutex.Unlock()
		respondWithError(w, http.StatusConflict, "This statement is already being reconciled")
		return
	}
	h.activeProcesses[processKey] = true
	h.processingMutex.Unlock()

	defer func() {
		h.processingMutex.Lock()
		delete(h.activeProcesses, processKey)
		h.processingMutex.Unlock()
	}()

	var expense []string
	if values, ok := r.MultipartForm.Value["expense"]; ok {
		expense = reconciler.ParseExpenseCategories(strings.Join(values, ","))
		if expense == nil {
			expense = []string{}
		}
	}

	result, err := h.settlementService.Reconcile(services.RunRequest{
		Files:             files,
		OrderType:         form.OrderType,
		ExpenseCategories: expense,
		UserID:            r.Header.Get("X-User-ID"),
	})
	if err != nil {
		if isInputError(err) {
			respondWithError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		config.LogError(h.logger, "settlement_handler", "Reconcile", "running reconciliation", nil, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to reconcile settlement")
		return
	}

	if form.Format == "xlsx" {
		data, err := services.ResultWorkbook(result)
		if err != nil {
			config.LogError(h.logger, "settlement_handler", "Reconcile", "encoding workbook", result.BatchID, err)
			respondWithError(w, http.StatusInternalServerError, "Failed to build workbook")
			return
		}
		respondWithWorkbook(w, result.BatchID+".xlsx", data)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *SettlementHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > maxRunLimit {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	runs, err := h.settlementService.ListRuns(limit)
	if err != nil {
		h.respondWithRunError(w, "ListRuns", err)
		return
	}
	respondWithJSON(w, http.StatusOK, runs)
}

func (h *SettlementHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batch_id"]

	details, err := h.settlementService.GetRun(batchID)
	if err != nil {
		h.respondWithRunError(w, "GetRun", err)
		return
	}
	respondWithJSON(w, http.StatusOK, details)
}

func (h *SettlementHandler) ExportJournal(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batch_id"]

	data, err := h.settlementService.ExportJournal(batchID, r.Header.Get("X-User-ID"))
	if err != nil {
		h.respondWithRunError(w, "ExportJournal", err)
		return
	}
	respondWithWorkbook(w, batchID+"-journal.xlsx", data)
}

func (h *SettlementHandler) ExportErrors(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batch_id"]

	data, err := h.settlementService.ExportErrors(batchID, r.Header.Get("X-User-ID"))
	if err != nil {
		h.respondWithRunError(w, "ExportErrors", err)
		return
	}
	respondWithWorkbook(w, batchID+"-errors.xlsx", data)
}

func (h *SettlementHandler) respondWithRunError(w http.ResponseWriter, funcName string, err error) {
	switch {
	case errors.Is(err, services.ErrPersistenceDisabled):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, repositories.ErrRunNotFound):
		respondWithError(w, http.StatusNotFound, "Settlement run not found")
	default:
		config.LogError(h.logger, "settlement_handler", funcName, "reading run history", nil, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to read run history")
	}
}

// isInputError reports whether err was caused by the uploaded files rather
// than by the service.
func isInputError(err error) bool {
	var parseErr *reconciler.ParseError
	var missing *spreadsheet.MissingColumnsError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &missing):
		return true
	case errors.Is(err, reconciler.ErrEmptyStatement),
		errors.Is(err, reconciler.ErrInvalidOrderType),
		errors.Is(err, spreadsheet.ErrEmptyWorkbook),
		errors.Is(err, spreadsheet.ErrUnreadableWorkbook):
		return true
	}
	return false
}

func validationErrors(err error) map[string]string {
	fields := make(map[string]string)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, ve := range validationErrs {
			fields[ve.Field()] = ve.Tag()
		}
	}
	return fields
}

var uploadFields = []string{"payment_statement", "sale_register", "matching_template"}

// openUploads opens the three workbook parts. With required set a missing
// part is an error; otherwise it is left nil.
func openUploads(r *http.Request, required bool) (services.Uploads, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	readers := make([]io.Reader, len(uploadFields))
	for i, field := range uploadFields {
		f, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) && !required {
			continue
		}
		if err != nil {
			closeAll()
			return services.Uploads{}, nil, errors.New(field + " is required")
		}
		opened = append(opened, f)
		readers[i] = f
	}

	return services.Uploads{
		Statement: readers[0],
		Register:  readers[1],
		Template:  readers[2],
	}, closeAll, nil
}

// uploadKey identifies a statement upload by content so concurrent runs of
// the same file are rejected.
func uploadKey(statement io.Reader, orderType string) (string, error) {
	seeker, ok := statement.(io.ReadSeeker)
	if !ok {
		return "", errors.New("statement upload is not seekable")
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, seeker); err != nil {
		return "", err
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)) + "_" + orderType, nil
}
