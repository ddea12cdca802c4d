package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hikyaku-io/dataport/internal/config"
	"github.com/hikyaku-io/dataport/internal/database"
	"github.com/hikyaku-io/dataport/internal/importer"
	"github.com/hikyaku-io/dataport/internal/middleware"
	"github.com/hikyaku-io/dataport/internal/storage"
	"github.com/hikyaku-io/dataport/internal/websocket"
)

// Router wraps the mux router with the portal's collaborators
type Router struct {
	*mux.Router
	db         *database.DB
	cfg        *config.Config
	controller *importer.Controller
	stores     *importer.Stores
	blobs      storage.BlobStore
	hub        *websocket.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, controller *importer.Controller, stores *importer.Stores, blobs storage.BlobStore, hub *websocket.Hub) *Router {
	r := &Router{
		Router:     mux.NewRouter(),
		db:         db,
		cfg:        cfg,
		controller: controller,
		stores:     stores,
		blobs:      blobs,
		hub:        hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")

	// API routes (tenant-scoped, JWT protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))

	api.HandleFunc("/imports", r.createImport).Methods("POST")
	api.HandleFunc("/imports/tickets", r.createTicket).Methods("POST")
	api.HandleFunc("/imports/tickets/{token}", r.uploadTicket).Methods("PUT")

	api.HandleFunc("/jobs", r.listJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", r.getJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/errors", r.getJobErrors).Methods("GET")
	api.HandleFunc("/jobs/{id}/report", r.getJobReport).Methods("GET")

	api.HandleFunc("/mappings", r.getMapping).Methods("GET")
	api.HandleFunc("/mappings", r.saveMapping).Methods("PUT")

	api.HandleFunc("/products", r.listProducts).Methods("GET")

	// Live progress (job ID works as the capability)
	r.HandleFunc("/ws/jobs/{id}", r.jobProgressWs).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (r *Router) jobProgressWs(w http.ResponseWriter, req *http.Request) {
	jobID := mux.Vars(req)["id"]
	websocket.ServeWs(r.hub, jobID, w, req)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
