package api

import (
	"net/http"
	"strings"

	"github.com/okian/xpoints/pkg/logger"
)

// JobsHandler handles background job submission and polling.
type JobsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies, log logger.Logger) *JobsHandler {
	return &JobsHandler{deps: deps, logger: log}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	State  string `json:"state"`
	Status string `json:"status_url"`
}

// HandleSubmit handles POST /v1/jobs.
func (h *JobsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	job, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	loc := "/v1/jobs/" + job.ID
	w.Header().Set("Location", loc)
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, State: job.State, Status: loc})
}

// HandleGet handles GET /v1/jobs/{id}.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	job, err := h.deps.Job(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
