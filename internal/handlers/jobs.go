package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hikyaku-io/dataport/internal/middleware"
	"github.com/hikyaku-io/dataport/internal/models"
	"github.com/hikyaku-io/dataport/internal/services/report"
)

// JobView adds the computed progress percentage to a job
type JobView struct {
	models.ImportJob
	Progress float64 `json:"progress"`
}

// listJobs returns the tenant's import jobs, newest first.
func (r *Router) listJobs(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)

	var jobs []models.ImportJob
	if err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Limit(100).Find(&jobs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	views := make([]JobView, len(jobs))
	for i := range jobs {
		views[i] = JobView{ImportJob: jobs[i], Progress: jobs[i].Progress()}
	}
	respondJSON(w, http.StatusOK, views)
}

func (r *Router) loadJob(w http.ResponseWriter, req *http.Request) (*models.ImportJob, bool) {
	tenantID := middleware.TenantID(req)
	jobID := mux.Vars(req)["id"]

	var job models.ImportJob
	if err := r.db.Where("id = ? AND tenant_id = ?", jobID, tenantID).First(&job).Error; err != nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	return &job, true
}

// getJob returns one job with progress.
func (r *Router) getJob(w http.ResponseWriter, req *http.Request) {
	job, ok := r.loadJob(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, JobView{ImportJob: *job, Progress: job.Progress()})
}

// getJobErrors returns the bounded row-error list of a finished job.
func (r *Router) getJobErrors(w http.ResponseWriter, req *http.Request) {
	job, ok := r.loadJob(w, req)
	if !ok {
		return
	}
	if !job.Terminal() {
		respondError(w, http.StatusConflict, "Job is still running")
		return
	}

	details := []models.RowError{}
	if len(job.ErrorDetails) > 0 {
		if err := json.Unmarshal(job.ErrorDetails, &details); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to decode error details")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobId":     job.ID,
		"errorRows": job.ErrorRows,
		"errors":    details,
	})
}

// getJobReport renders the PDF summary of a finished job.
func (r *Router) getJobReport(w http.ResponseWriter, req *http.Request) {
	job, ok := r.loadJob(w, req)
	if !ok {
		return
	}
	if !job.Terminal() {
		respondError(w, http.StatusConflict, "Job is still running")
		return
	}

	statusURL := fmt.Sprintf("%s/api/jobs/%s", r.cfg.BaseURL, job.ID)
	pdf, err := report.GenerateJobReport(job, statusURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"import_%s.pdf\"", job.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
