package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"settlement-reconciler/internal/config"
	"settlement-reconciler/internal/repositories"
	"settlement-reconciler/internal/services"
)

// SetupRouter builds the HTTP API. db may be nil when run history is
// disabled; the run endpoints then answer 503.
func SetupRouter(db *sql.DB, cfg *config.Config, logger *logrus.Logger) *mux.Router {
	settlementService := services.NewSettlementService(
		db,
		logger,
		cfg.ReconcileDefaults(),
		repositories.NewRunRepository(db),
		repositories.NewJournalRepository(db),
		repositories.NewErrorRepository(db),
	)

	maxUpload := cfg.MaxUploadMB << 20
	settlementHandler := NewSettlementHandler(settlementService, logger, maxUpload)
	dataHandler := NewDataHandler(settlementService.Ingestion(), maxUpload)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/settlements/reconcile", settlementHandler.Reconcile).Methods(http.MethodPost)
	api.HandleFunc("/settlements/validate", dataHandler.ValidateUploads).Methods(http.MethodPost)
	api.HandleFunc("/settlements/runs", settlementHandler.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/settlements/runs/{batch_id}", settlementHandler.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/settlements/runs/{batch_id}/journal.xlsx", settlementHandler.ExportJournal).Methods(http.MethodGet)
	api.HandleFunc("/settlements/runs/{batch_id}/errors.xlsx", settlementHandler.ExportErrors).Methods(http.MethodGet)

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			}).Info("request")
		})
	}
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
	}
	respondWithJSON(w, http.StatusOK, response)
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
