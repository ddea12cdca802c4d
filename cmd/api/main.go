package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hikyaku-io/dataport/internal/config"
	"github.com/hikyaku-io/dataport/internal/database"
	"github.com/hikyaku-io/dataport/internal/handlers"
	"github.com/hikyaku-io/dataport/internal/importer"
	"github.com/hikyaku-io/dataport/internal/models"
	"github.com/hikyaku-io/dataport/internal/storage"
	"github.com/hikyaku-io/dataport/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.Tenant{},
		&models.UserAuth{},
		&models.Product{},
		&models.ImportJob{},
		&models.ColumnMapping{},
		&models.UploadTicket{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Blob store for uploaded files
	blobs, err := storage.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		log.Fatalf("Failed to init blob store: %v", err)
	}

	// 5. Live progress hub
	hub := websocket.NewHub()
	go hub.Run()

	// 6. Import engine
	stores := importer.NewStores(db)
	controller := importer.NewController(stores, blobs, cfg.Import)
	controller.SetNotify(func(job *models.ImportJob) {
		hub.Publish(job.ID, job)
		if job.Terminal() {
			hub.CloseJob(job.ID)
		}
	})

	runner := importer.NewRunner(controller, stores.Jobs, cfg.Import.PollInterval)
	runner.Start()

	// 7. Set up HTTP router
	router := handlers.NewRouter(db, cfg, controller, stores, blobs, hub)

	// 8. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop import runner
	runner.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
