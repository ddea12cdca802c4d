package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hikyaku-io/dataport/internal/importer"
	"github.com/hikyaku-io/dataport/internal/middleware"
	"github.com/hikyaku-io/dataport/internal/models"
)

// TicketRequest reserves a deferred upload slot
type TicketRequest struct {
	FileName      string `json:"fileName"`
	ExpectedBytes int64  `json:"expectedBytes"`
}

// createImport accepts a multipart CSV upload. Files at or under the sync
// limit are imported inline and answered with the final result; larger
// files are queued for the background runner.
func (r *Router) createImport(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.Import.MaxFileBytes)
	if err := req.ParseMultipartForm(r.cfg.Import.SyncLimitBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart payload or file too large")
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "File is empty")
		return
	}

	job, err := r.controller.CreateJob(req.Context(), tenantID, header.Filename, data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to register import")
		return
	}

	if int64(len(data)) > r.cfg.Import.SyncLimitBytes {
		// Too big for the synchronous path; the runner picks it up.
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	// Claim the job before running it inline so the background runner
	// leaves it alone. If the claim cannot be written the runner takes it.
	claim := map[string]interface{}{"status": models.JobStatusProcessing}
	if err := r.stores.Jobs.Update(req.Context(), job.ID, claim); err != nil {
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	processed, err := r.controller.Process(req.Context(), job.ID)
	if err != nil {
		// The job stays runnable; the background runner will resume it.
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	respondJSON(w, http.StatusOK, importer.Summarize(processed))
}

// createTicket starts the deferred-upload handshake for large files.
func (r *Router) createTicket(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)

	var ticketReq TicketRequest
	if err := json.NewDecoder(req.Body).Decode(&ticketReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if ticketReq.FileName == "" {
		respondError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	if ticketReq.ExpectedBytes > r.cfg.Import.MaxFileBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "File exceeds the import size limit")
		return
	}

	ticket := models.UploadTicket{
		TenantID:      tenantID,
		Token:         uuid.New().String(),
		FileName:      ticketReq.FileName,
		ExpectedBytes: ticketReq.ExpectedBytes,
		ExpiresAt:     time.Now().Add(r.cfg.Import.TicketTTL),
	}
	if err := r.stores.Tickets.Create(req.Context(), &ticket); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create upload ticket")
		return
	}

	respondJSON(w, http.StatusCreated, ticket)
}

// uploadTicket consumes a ticket: the raw request body is the file. The
// ticket is claimed before the job exists, so concurrent uploads against one
// token can never create more than one job.
func (r *Router) uploadTicket(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)
	token := mux.Vars(req)["token"]

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.Import.MaxFileBytes)
	data, err := io.ReadAll(req.Body)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "File is empty")
		return
	}

	ticket, err := r.stores.Tickets.Claim(req.Context(), tenantID, token, time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to consume ticket")
		return
	}
	if ticket == nil {
		existing, err := r.stores.Tickets.Get(req.Context(), tenantID, token)
		if err == nil && existing == nil {
			respondError(w, http.StatusNotFound, "Unknown upload ticket")
			return
		}
		respondError(w, http.StatusGone, "Upload ticket expired or already used")
		return
	}

	job, err := r.controller.CreateJob(req.Context(), tenantID, ticket.FileName, data)
	if err != nil {
		// Give the ticket back so the client can retry the upload.
		if relErr := r.stores.Tickets.Release(req.Context(), ticket.ID); relErr != nil {
			log.Printf("⚠️  Failed to release ticket %s: %v", ticket.ID, relErr)
		}
		respondError(w, http.StatusInternalServerError, "Failed to register import")
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}
