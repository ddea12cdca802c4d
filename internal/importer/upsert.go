package importer

import (
	"context"
	"fmt"
	"log"

	"github.com/hikyaku-io/dataport/internal/models"
)

// RowRecord pairs a normalized product with its 1-based data-row number so
// batch errors can point back at the source line.
type RowRecord struct {
	Row     int
	Product *models.Product
}

// BatchResult reports per-row classification for one upserted batch.
type BatchResult struct {
	Inserted int
	Updated  int
	Errors   []models.RowError
}

// Upserter classifies a batch of rows as insert vs. update against the
// existing (tenant, code) key space, then writes them with one bulk keyed
// upsert. A failed bulk statement falls back to per-row upserts so a single
// poison row cannot sink the whole batch.
type Upserter struct {
	products ProductStore
}

// NewUpserter creates an Upserter over the given product store.
func NewUpserter(products ProductStore) *Upserter {
	return &Upserter{products: products}
}

// Upsert processes one batch. A returned error means not even best-effort
// writes were possible (the existing-key read failed); the caller propagates
// it without checkpointing so the chunk can be re-run safely.
func (u *Upserter) Upsert(ctx context.Context, tenantID string, batch []RowRecord) (BatchResult, error) {
	var result BatchResult
	if len(batch) == 0 {
		return result, nil
	}

	codes := make([]string, 0, len(batch))
	for _, rec := range batch {
		codes = append(codes, rec.Product.Code)
	}

	existing, err := u.products.ExistingCodes(ctx, tenantID, codes)
	if err != nil {
		return result, err
	}

	// Deduplicate for the write: Postgres rejects the same conflict key
	// twice in one INSERT, and the later row wins anyway.
	deduped := dedupeLastWins(batch)

	writeList := make([]*models.Product, len(deduped))
	for i, rec := range deduped {
		writeList[i] = rec.Product
	}

	if err := u.products.BulkUpsert(ctx, writeList); err == nil {
		result.Inserted, result.Updated = classify(batch, existing, nil)
		return result, nil
	} else {
		log.Printf("⚠️  Bulk upsert failed for %d rows, retrying row by row: %v", len(deduped), err)
	}

	// Fallback: per-row upserts, best-effort counts. Rows whose code still
	// fails are reclassified as error rows.
	failed := make(map[string]bool)
	for _, rec := range deduped {
		if err := u.products.UpsertOne(ctx, rec.Product); err != nil {
			failed[rec.Product.Code] = true
			result.Errors = append(result.Errors, models.RowError{
				Row:     rec.Row,
				Message: fmt.Sprintf("upsert failed: %v", err),
			})
		}
	}
	for _, rec := range batch {
		if failed[rec.Product.Code] && !lastOccurrence(deduped, rec) {
			// Earlier duplicate of a failed code; it never reached storage
			// either.
			result.Errors = append(result.Errors, models.RowError{
				Row:     rec.Row,
				Message: "upsert failed for product code " + rec.Product.Code,
			})
		}
	}

	result.Inserted, result.Updated = classify(batch, existing, failed)
	return result, nil
}

// classify counts each surviving row as insert or update in row order. A
// code repeated within the batch is an insert on first sight and an update
// after, matching sequential processing semantics.
func classify(batch []RowRecord, existing, failed map[string]bool) (inserted, updated int) {
	seen := make(map[string]bool)
	for _, rec := range batch {
		code := rec.Product.Code
		if failed[code] {
			continue
		}
		if existing[code] || seen[code] {
			updated++
		} else {
			inserted++
		}
		seen[code] = true
	}
	return inserted, updated
}

func dedupeLastWins(batch []RowRecord) []RowRecord {
	lastByCode := make(map[string]int, len(batch))
	for i, rec := range batch {
		lastByCode[rec.Product.Code] = i
	}
	deduped := make([]RowRecord, 0, len(lastByCode))
	for i, rec := range batch {
		if lastByCode[rec.Product.Code] == i {
			deduped = append(deduped, rec)
		}
	}
	return deduped
}

func lastOccurrence(deduped []RowRecord, rec RowRecord) bool {
	for _, d := range deduped {
		if d.Row == rec.Row {
			return true
		}
	}
	return false
}
