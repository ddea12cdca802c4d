package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hikyaku-io/dataport/internal/config"
	"github.com/hikyaku-io/dataport/internal/models"
	"github.com/hikyaku-io/dataport/internal/storage"
	"gorm.io/datatypes"
)

// Controller drives an import job through its chunked, checkpointed life
// cycle. Each chunk's checkpoint is written before the next chunk starts, so
// a crash costs at most the in-flight chunk; a fresh pickup reads the job
// row and resumes from lastProcessedRow with no other state.
type Controller struct {
	stores   *Stores
	blobs    storage.BlobStore
	upserter *Upserter
	cfg      config.ImportConfig

	// notify, when set, receives the job after every checkpoint write and
	// terminal transition.
	notify func(*models.ImportJob)

	// now is swappable for budget tests
	now func() time.Time
}

// NewController wires the import engine.
func NewController(stores *Stores, blobs storage.BlobStore, cfg config.ImportConfig) *Controller {
	return &Controller{
		stores:   stores,
		blobs:    blobs,
		upserter: NewUpserter(stores.Products),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetNotify installs a progress hook.
func (c *Controller) SetNotify(fn func(*models.ImportJob)) {
	c.notify = fn
}

// CreateJob stores the raw file and registers a pending import job.
func (c *Controller) CreateJob(ctx context.Context, tenantID, fileName string, data []byte) (*models.ImportJob, error) {
	ref, err := c.blobs.Save(tenantID, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	job := &models.ImportJob{
		TenantID:  tenantID,
		FileName:  fileName,
		FileBytes: int64(len(data)),
		BlobRef:   ref,
		Status:    models.JobStatusPending,
	}
	if err := c.stores.Jobs.Create(ctx, job); err != nil {
		c.blobs.Delete(tenantID, ref)
		return nil, err
	}
	return job, nil
}

// session is the in-memory state for one process pickup. It lives only for
// the duration of one Process call; resumption rebuilds it from the blob.
type session struct {
	job     *models.ImportJob
	rows    [][]string
	cols    map[string]int
	details []models.RowError
}

// Process runs the job from its current checkpoint to a terminal state. A
// returned error is infrastructure-transient: no state was mutated past the
// last durable checkpoint and the caller may safely invoke Process again.
func (c *Controller) Process(ctx context.Context, jobID string) (*models.ImportJob, error) {
	job, err := c.stores.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		// An operator may have failed the job out of band; terminal is final.
		log.Printf("⏭️  Import job %s already %s, not resuming", job.ID, job.Status)
		return job, nil
	}

	sess, fatal, err := c.begin(ctx, job)
	if err != nil {
		return nil, err
	}
	if fatal {
		return job, nil
	}

	for {
		done, err := c.runChunk(ctx, sess)
		if err != nil {
			return nil, err
		}
		c.broadcast(sess.job)
		if done {
			break
		}
	}

	if err := c.finalize(ctx, sess); err != nil {
		return nil, err
	}
	return sess.job, nil
}

// begin performs the one-time pickup work: fetch, decode, tokenize, resolve
// columns, compute totals. fatal=true means the job was marked failed (a
// job-level error, not an infrastructure one).
func (c *Controller) begin(ctx context.Context, job *models.ImportJob) (*session, bool, error) {
	raw, err := c.blobs.Fetch(job.TenantID, job.BlobRef)
	if err != nil {
		return nil, true, c.fail(ctx, job, fmt.Sprintf("source file unreachable: %v", err))
	}

	encoding := DetectEncoding(raw)
	text, err := DecodeText(raw, encoding)
	if err != nil {
		return nil, true, c.fail(ctx, job, fmt.Sprintf("failed to decode file: %v", err))
	}

	rows := Tokenize(text)
	if len(rows) <= 1 {
		return nil, true, c.fail(ctx, job, "file has no data rows")
	}

	mapping, err := c.stores.Mappings.GetByTenant(ctx, job.TenantID)
	if err != nil {
		return nil, false, err
	}
	cols, err := ResolveColumns(rows[0], mapping)
	if errors.Is(err, ErrProductCodeUnmapped) {
		return nil, true, c.fail(ctx, job, err.Error())
	}
	if err != nil {
		return nil, true, c.fail(ctx, job, fmt.Sprintf("column mapping unusable: %v", err))
	}

	totalRows := len(rows) - 1

	fields := map[string]interface{}{
		"status":     models.JobStatusProcessing,
		"encoding":   encoding,
		"total_rows": totalRows,
	}
	if job.StartedAt == nil {
		now := c.now().UTC()
		fields["started_at"] = &now
		job.StartedAt = &now
	}
	if err := c.stores.Jobs.Update(ctx, job.ID, fields); err != nil {
		return nil, false, err
	}
	job.Status = models.JobStatusProcessing
	job.Encoding = encoding
	job.TotalRows = totalRows

	details, err := decodeDetails(job.ErrorDetails)
	if err != nil {
		// A corrupt detail list should not strand the job; start over.
		log.Printf("⚠️  Import job %s has unreadable error details, resetting: %v", job.ID, err)
		details = nil
	}

	return &session{job: job, rows: rows, cols: cols, details: details}, false, nil
}

// runChunk processes the next chunk and persists the checkpoint before
// returning. The chunk ends at the row-count ceiling or when the wall-clock
// budget runs out, whichever comes first.
func (c *Controller) runChunk(ctx context.Context, sess *session) (bool, error) {
	job := sess.job

	start := job.LastProcessedRow + 1
	if start > job.TotalRows {
		return true, nil
	}
	size := c.cfg.ChunkSize
	if size < 1 {
		// A chunk must always consume at least one row or the loop
		// would checkpoint without progress forever.
		size = 1
	}
	limit := start + size - 1
	if limit > job.TotalRows {
		limit = job.TotalRows
	}

	deadline := c.now().Add(c.cfg.ChunkBudget)

	var batch []RowRecord
	var rowErrors []models.RowError
	end := start - 1

	for r := start; r <= limit; r++ {
		// Budget check before each row; the first row always runs so the
		// job cannot stall without progress.
		if r > start && c.now().After(deadline) {
			break
		}

		product, err := NormalizeRow(sess.rows[r], sess.cols, job.TenantID, job.ID)
		if err != nil {
			rowErrors = append(rowErrors, models.RowError{Row: r, Message: err.Error()})
		} else {
			batch = append(batch, RowRecord{Row: r, Product: product})
		}
		end = r
	}

	res, err := c.upserter.Upsert(ctx, job.TenantID, batch)
	if err != nil {
		// Nothing checkpointed; the chunk will be re-run from start.
		return false, err
	}

	job.InsertedRows += res.Inserted
	job.UpdatedRows += res.Updated
	job.ErrorRows += len(rowErrors) + len(res.Errors)
	job.LastProcessedRow = end
	sess.details = appendCapped(sess.details, rowErrors)
	sess.details = appendCapped(sess.details, res.Errors)

	encoded, err := encodeDetails(sess.details)
	if err != nil {
		return false, fmt.Errorf("failed to encode error details: %w", err)
	}
	job.ErrorDetails = encoded

	// Checkpoint-then-continue: this write is the resumption contract.
	checkpoint := map[string]interface{}{
		"last_processed_row": job.LastProcessedRow,
		"inserted_rows":      job.InsertedRows,
		"updated_rows":       job.UpdatedRows,
		"error_rows":         job.ErrorRows,
		"error_details":      job.ErrorDetails,
	}
	if err := c.stores.Jobs.Update(ctx, job.ID, checkpoint); err != nil {
		return false, err
	}

	return job.LastProcessedRow >= job.TotalRows, nil
}

// finalize decides completed vs failed once every row is consumed. The blob
// is deleted only on completion; a failed job keeps it for inspection.
func (c *Controller) finalize(ctx context.Context, sess *session) error {
	job := sess.job

	if job.InsertedRows+job.UpdatedRows == 0 {
		return c.fail(ctx, job, "every row failed to import")
	}

	now := c.now().UTC()
	fields := map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"completed_at": &now,
	}
	if err := c.stores.Jobs.Update(ctx, job.ID, fields); err != nil {
		return err
	}
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now

	c.blobs.Delete(job.TenantID, job.BlobRef)

	log.Printf("✅ Import job %s completed: %d inserted, %d updated, %d errors",
		job.ID, job.InsertedRows, job.UpdatedRows, job.ErrorRows)
	c.broadcast(job)
	return nil
}

// fail marks the job failed with a job-level reason. The blob is retained.
func (c *Controller) fail(ctx context.Context, job *models.ImportJob, reason string) error {
	fields := map[string]interface{}{
		"status":      models.JobStatusFailed,
		"fail_reason": reason,
	}
	if err := c.stores.Jobs.Update(ctx, job.ID, fields); err != nil {
		return err
	}
	job.Status = models.JobStatusFailed
	job.FailReason = reason

	log.Printf("❌ Import job %s failed: %s", job.ID, reason)
	c.broadcast(job)
	return nil
}

func (c *Controller) broadcast(job *models.ImportJob) {
	if c.notify != nil {
		c.notify(job)
	}
}

// appendCapped keeps at most MaxErrorDetails entries; the earliest errors
// are the ones worth keeping.
func appendCapped(details, more []models.RowError) []models.RowError {
	for _, e := range more {
		if len(details) >= models.MaxErrorDetails {
			break
		}
		details = append(details, e)
	}
	return details
}

func decodeDetails(raw datatypes.JSON) ([]models.RowError, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var details []models.RowError
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, err
	}
	return details, nil
}

func encodeDetails(details []models.RowError) (datatypes.JSON, error) {
	if details == nil {
		details = []models.RowError{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Result is the synchronous import response: final counters plus the first
// few error details.
type Result struct {
	JobID     string            `json:"jobId"`
	Status    string            `json:"status"`
	TotalRows int               `json:"totalRows"`
	Inserted  int               `json:"insertedRows"`
	Updated   int               `json:"updatedRows"`
	ErrorRows int               `json:"errorRows"`
	Errors    []models.RowError `json:"errors,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// resultErrorLimit bounds the error excerpt on the synchronous path.
const resultErrorLimit = 10

// Summarize condenses a terminal job into a Result.
func Summarize(job *models.ImportJob) Result {
	res := Result{
		JobID:     job.ID,
		Status:    job.Status,
		TotalRows: job.TotalRows,
		Inserted:  job.InsertedRows,
		Updated:   job.UpdatedRows,
		ErrorRows: job.ErrorRows,
		Reason:    job.FailReason,
	}
	if details, err := decodeDetails(job.ErrorDetails); err == nil {
		if len(details) > resultErrorLimit {
			details = details[:resultErrorLimit]
		}
		res.Errors = details
	}
	return res
}
