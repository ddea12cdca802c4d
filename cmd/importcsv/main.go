package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hikyaku-io/dataport/internal/config"
	"github.com/hikyaku-io/dataport/internal/database"
	"github.com/hikyaku-io/dataport/internal/importer"
	"github.com/hikyaku-io/dataport/internal/models"
	"github.com/hikyaku-io/dataport/internal/storage"
)

// importcsv runs one CSV file through the import engine synchronously.
// Useful for bulk backfills and for testing mappings from the shell.
func main() {
	tenantID := flag.String("tenant", "", "tenant UUID to import into")
	file := flag.String("file", "", "path to the CSV file")
	flag.Parse()

	if *tenantID == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "usage: importcsv -tenant <uuid> -file <path>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Product{},
		&models.ImportJob{},
		&models.ColumnMapping{},
	); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	}

	blobs, err := storage.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		log.Fatalf("Failed to init blob store: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	stores := importer.NewStores(db)
	controller := importer.NewController(stores, blobs, cfg.Import)

	ctx := context.Background()
	job, err := controller.CreateJob(ctx, *tenantID, filepath.Base(*file), data)
	if err != nil {
		log.Fatalf("Failed to register import: %v", err)
	}

	done, err := controller.Process(ctx, job.ID)
	if err != nil {
		log.Fatalf("Import %s did not finish: %v", job.ID, err)
	}

	res := importer.Summarize(done)
	fmt.Printf("Job:      %s\n", res.JobID)
	fmt.Printf("Status:   %s\n", res.Status)
	fmt.Printf("Rows:     %d\n", res.TotalRows)
	fmt.Printf("Inserted: %d\n", res.Inserted)
	fmt.Printf("Updated:  %d\n", res.Updated)
	fmt.Printf("Errors:   %d\n", res.ErrorRows)
	if res.Reason != "" {
		fmt.Printf("Reason:   %s\n", res.Reason)
	}
	for _, re := range res.Errors {
		fmt.Printf("  row %d: %s\n", re.Row, re.Message)
	}
	if res.Status == models.JobStatusFailed {
		os.Exit(1)
	}
}
