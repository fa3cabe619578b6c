package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/internal/api/response"
)

// jobID parses the {job_id} URL parameter, writing a 400 when it is malformed.
func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "job_id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter. Missing or non-numeric values
// yield def; range checks are left to the service.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
