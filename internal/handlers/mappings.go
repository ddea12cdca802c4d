package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hikyaku-io/dataport/internal/importer"
	"github.com/hikyaku-io/dataport/internal/middleware"
	"github.com/hikyaku-io/dataport/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// MappingRequest is the PUT body for saving a column mapping
type MappingRequest struct {
	Headers        []string        `json:"headers"`
	Fields         map[string]*int `json:"fields"`
	SampleFileName string          `json:"sampleFileName"`
}

// getMapping returns the tenant's saved column mapping, if any.
func (r *Router) getMapping(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)

	var mapping models.ColumnMapping
	if err := r.db.Where("tenant_id = ?", tenantID).First(&mapping).Error; err != nil {
		respondError(w, http.StatusNotFound, "No column mapping configured")
		return
	}
	respondJSON(w, http.StatusOK, mapping)
}

// saveMapping stores or replaces the tenant's column mapping. Mandatory
// fields must point at a real column before the mapping is accepted.
func (r *Router) saveMapping(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)

	var body MappingRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(body.Headers) == 0 {
		respondError(w, http.StatusBadRequest, "headers must not be empty")
		return
	}

	for _, field := range importer.MandatoryFields {
		idx, ok := body.Fields[field]
		if !ok || idx == nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Field %q must be mapped", field))
			return
		}
		if *idx < 0 || *idx >= len(body.Headers) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Field %q points outside the header row", field))
			return
		}
	}
	for field, idx := range body.Fields {
		if idx != nil && (*idx < 0 || *idx >= len(body.Headers)) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Field %q points outside the header row", field))
			return
		}
	}

	headersJSON, err := json.Marshal(body.Headers)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode headers")
		return
	}
	fieldsJSON, err := json.Marshal(body.Fields)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode fields")
		return
	}

	mapping := models.ColumnMapping{
		TenantID:       tenantID,
		Headers:        datatypes.JSON(headersJSON),
		Fields:         datatypes.JSON(fieldsJSON),
		ColumnCount:    len(body.Headers),
		IsConfigured:   true,
		SampleFileName: body.SampleFileName,
		UpdatedAt:      time.Now(),
	}

	err = r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"headers", "fields", "column_count", "is_configured", "sample_file_name", "updated_at",
		}),
	}).Create(&mapping).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save mapping")
		return
	}

	respondJSON(w, http.StatusOK, mapping)
}
