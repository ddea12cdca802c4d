package handlers

import (
	"net/http"

	"github.com/hikyaku-io/dataport/internal/middleware"
	"github.com/hikyaku-io/dataport/internal/models"
)

// listProducts returns the tenant's products, optionally filtered by code.
func (r *Router) listProducts(w http.ResponseWriter, req *http.Request) {
	tenantID := middleware.TenantID(req)

	query := r.db.Where("tenant_id = ?", tenantID)
	if code := req.URL.Query().Get("code"); code != "" {
		query = query.Where("code = ?", code)
	}

	var products []models.Product
	if err := query.Order("code ASC").Limit(500).Find(&products).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}
