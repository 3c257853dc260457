package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-ai-assistant/internal/dispatch"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// JobReader loads dispatch job records.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*dispatch.JobRecord, error)
}

// AdminDispatchHandler exposes background dispatch status to operators.
type AdminDispatchHandler struct {
	jobs   JobReader
	logger *logging.Logger
}

// NewAdminDispatchHandler creates the handler.
func NewAdminDispatchHandler(jobs JobReader, logger *logging.Logger) *AdminDispatchHandler {
	if jobs == nil {
		panic("handlers: job reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminDispatchHandler{jobs: jobs, logger: logger}
}

// GetDispatch handles GET /admin/dispatches/{jobID}.
func (h *AdminDispatchHandler) GetDispatch(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id required"})
		return
	}
	job, err := h.jobs.GetJob(r.Context(), jobID)
	switch {
	case errors.Is(err, dispatch.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
	case err != nil:
		h.logger.Error("admin: load dispatch job failed", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
	default:
		writeJSON(w, http.StatusOK, job)
	}
}
