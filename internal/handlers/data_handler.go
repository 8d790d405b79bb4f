package handlers

import (
	"net/http"

	"settlement-reconciler/internal/services"
)

type DataHandler struct {
	ingestionService *services.IngestionService
	maxUpload        int64
}

func NewDataHandler(ingestionService *services.IngestionService, maxUpload int64) *DataHandler {
	return &DataHandler{
		ingestionService: ingestionService,
		maxUpload:        maxUpload,
	}
}

// ValidateUploads checks the columns of whichever workbooks were sent.
func (h *DataHandler) ValidateUploads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	files, closeFiles, err := openUploads(r, false)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeFiles()

	result := h.ingestionService.Validate(files)

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	respondWithJSON(w, status, result)
}
