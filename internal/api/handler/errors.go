package handler

import (
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/linkmetrics/internal/api/response"
	"github.com/kiranshivaraju/linkmetrics/internal/fetcher"
	"github.com/kiranshivaraju/linkmetrics/internal/jobs"
	"github.com/kiranshivaraju/linkmetrics/internal/store"
	"github.com/kiranshivaraju/linkmetrics/internal/upload"
)

// writeError maps service errors to API errors. Anything unrecognized is
// logged and reported as INTERNAL_ERROR.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload size limit.", nil)
	case errors.Is(err, upload.ErrUnsupportedFileType):
		response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE",
			"Unsupported file type. Please upload a CSV or XLSX file.",
			map[string]any{"allowed_extensions": []string{".csv", ".xlsx"}})
	case errors.Is(err, upload.ErrMissingColumns):
		response.Error(w, http.StatusBadRequest, "INVALID_UPLOAD",
			"File must contain 'platform' and 'url' columns (case-insensitive).",
			map[string]any{"required_columns": []string{"platform", "url"}})
	case errors.Is(err, upload.ErrNoFile):
		response.Error(w, http.StatusBadRequest, "INVALID_UPLOAD", "No file uploaded. Send it in the 'file' form field.", nil)
	case errors.Is(err, upload.ErrUnreadableFile):
		response.Error(w, http.StatusBadRequest, "INVALID_UPLOAD", "File could not be read.", nil)
	case errors.Is(err, fetcher.ErrUnsupportedPlatform):
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_PLATFORM", "Unsupported platform.", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found.", nil)
	case errors.Is(err, jobs.ErrRunInProgress):
		response.Error(w, http.StatusConflict, "RUN_IN_PROGRESS", "Job is already running.", nil)
	case errors.Is(err, jobs.ErrJobNotCompleted):
		response.Error(w, http.StatusConflict, "JOB_NOT_COMPLETED", "Job must be completed before export.", nil)
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrDispatcherClosed):
		response.Error(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Run queue is unavailable, try again later.", nil)
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
