package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hikyaku-io/dataport/internal/config"
	"github.com/hikyaku-io/dataport/internal/models"
	"gorm.io/datatypes"
)

// --- In-memory fakes -------------------------------------------------------

type checkpoint struct {
	LastProcessedRow int
	Inserted         int
	Updated          int
	ErrorRows        int
}

type memJobStore struct {
	jobs        map[string]*models.ImportJob
	checkpoints []checkpoint
	nextID      int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*models.ImportJob)}
}

func (s *memJobStore) Create(_ context.Context, job *models.ImportJob) error {
	s.nextID++
	job.ID = fmt.Sprintf("job-%d", s.nextID)
	job.CreatedAt = time.Now()
	copy := *job
	s.jobs[job.ID] = &copy
	return nil
}

func (s *memJobStore) Get(_ context.Context, id string) (*models.ImportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	copy := *job
	return &copy, nil
}

func (s *memJobStore) Update(_ context.Context, id string, fields map[string]interface{}) error {
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	for key, value := range fields {
		switch key {
		case "status":
			job.Status = value.(string)
		case "encoding":
			job.Encoding = value.(string)
		case "total_rows":
			job.TotalRows = value.(int)
		case "last_processed_row":
			job.LastProcessedRow = value.(int)
		case "inserted_rows":
			job.InsertedRows = value.(int)
		case "updated_rows":
			job.UpdatedRows = value.(int)
		case "error_rows":
			job.ErrorRows = value.(int)
		case "error_details":
			job.ErrorDetails = value.(datatypes.JSON)
		case "fail_reason":
			job.FailReason = value.(string)
		case "started_at":
			job.StartedAt = value.(*time.Time)
		case "completed_at":
			job.CompletedAt = value.(*time.Time)
		default:
			return fmt.Errorf("unexpected update field %q", key)
		}
	}
	job.UpdatedAt = time.Now()
	if _, ok := fields["last_processed_row"]; ok {
		s.checkpoints = append(s.checkpoints, checkpoint{
			LastProcessedRow: job.LastProcessedRow,
			Inserted:         job.InsertedRows,
			Updated:          job.UpdatedRows,
			ErrorRows:        job.ErrorRows,
		})
	}
	return nil
}

func (s *memJobStore) NextRunnable(_ context.Context, staleBefore time.Time) (*models.ImportJob, error) {
	var oldest *models.ImportJob
	for _, job := range s.jobs {
		if job.Terminal() {
			continue
		}
		if job.Status == models.JobStatusProcessing && job.UpdatedAt.After(staleBefore) {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copy := *oldest
	return &copy, nil
}

type memMappingStore struct {
	mapping *models.ColumnMapping
	err     error
}

func (s *memMappingStore) GetByTenant(_ context.Context, _ string) (*models.ColumnMapping, error) {
	return s.mapping, s.err
}

type memProductStore struct {
	products map[string]*models.Product // keyed tenant|code

	failScans int             // fail the next N ExistingCodes calls
	failBulk  bool            // force the per-row fallback path
	failCodes map[string]bool // codes that fail even row by row
	scanCalls int
}

func newMemProductStore() *memProductStore {
	return &memProductStore{
		products:  make(map[string]*models.Product),
		failCodes: make(map[string]bool),
	}
}

func (s *memProductStore) key(tenantID, code string) string {
	return tenantID + "|" + code
}

func (s *memProductStore) ExistingCodes(_ context.Context, tenantID string, codes []string) (map[string]bool, error) {
	s.scanCalls++
	if s.failScans > 0 {
		s.failScans--
		return nil, errors.New("connection reset")
	}
	existing := make(map[string]bool)
	for _, code := range codes {
		if _, ok := s.products[s.key(tenantID, code)]; ok {
			existing[code] = true
		}
	}
	return existing, nil
}

func (s *memProductStore) BulkUpsert(ctx context.Context, products []*models.Product) error {
	if s.failBulk {
		return errors.New("bulk statement rejected")
	}
	for _, p := range products {
		if err := s.UpsertOne(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *memProductStore) UpsertOne(_ context.Context, product *models.Product) error {
	if s.failCodes[product.Code] {
		return errors.New("constraint violation")
	}
	copy := *product
	s.products[s.key(product.TenantID, product.Code)] = &copy
	return nil
}

type memBlobStore struct {
	blobs   map[string][]byte
	deleted []string
	nextRef int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Save(_ string, data []byte) (string, error) {
	s.nextRef++
	ref := fmt.Sprintf("blob-%d", s.nextRef)
	s.blobs[ref] = data
	return ref, nil
}

func (s *memBlobStore) Fetch(_ string, ref string) ([]byte, error) {
	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", ref)
	}
	return data, nil
}

func (s *memBlobStore) Delete(_ string, ref string) {
	delete(s.blobs, ref)
	s.deleted = append(s.deleted, ref)
}

// --- Harness ---------------------------------------------------------------

type engine struct {
	controller *Controller
	jobs       *memJobStore
	mappings   *memMappingStore
	products   *memProductStore
	blobs      *memBlobStore
}

func newEngine(cfg config.ImportConfig) *engine {
	e := &engine{
		jobs:     newMemJobStore(),
		mappings: &memMappingStore{},
		products: newMemProductStore(),
		blobs:    newMemBlobStore(),
	}
	stores := &Stores{Jobs: e.jobs, Mappings: e.mappings, Products: e.products}
	e.controller = NewController(stores, e.blobs, cfg)
	return e
}

func testConfig() config.ImportConfig {
	return config.ImportConfig{
		ChunkSize:   1000,
		ChunkBudget: time.Hour, // never hit unless a test installs a fake clock
	}
}

const testTenant = "tenant-1"

func (e *engine) run(t *testing.T, csv string) *models.ImportJob {
	t.Helper()
	ctx := context.Background()
	job, err := e.controller.CreateJob(ctx, testTenant, "products.csv", []byte(csv))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	done, err := e.controller.Process(ctx, job.ID)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return done
}

func productCSV(rows int) string {
	var b strings.Builder
	b.WriteString("商品コード,商品名,在庫数\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "P-%04d,Item %d,%d\n", i, i, i)
	}
	return b.String()
}

// --- Tests -----------------------------------------------------------------

func TestProcess_CompletesSmallFile(t *testing.T) {
	e := newEngine(testConfig())
	job := e.run(t, productCSV(3))

	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.FailReason)
	}
	if job.TotalRows != 3 {
		t.Errorf("Expected 3 total rows, got %d", job.TotalRows)
	}
	if job.InsertedRows != 3 || job.UpdatedRows != 0 || job.ErrorRows != 0 {
		t.Errorf("Expected 3/0/0, got %d/%d/%d", job.InsertedRows, job.UpdatedRows, job.ErrorRows)
	}
	if job.Encoding != EncodingUTF8 {
		t.Errorf("Expected utf-8 tag, got %q", job.Encoding)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("Timestamps not stamped")
	}
	if len(e.products.products) != 3 {
		t.Errorf("Expected 3 stored products, got %d", len(e.products.products))
	}
}

func TestProcess_BlobDeletedOnlyOnCompletion(t *testing.T) {
	e := newEngine(testConfig())
	job := e.run(t, productCSV(2))

	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s", job.Status)
	}
	if len(e.blobs.deleted) != 1 {
		t.Errorf("Expected blob deleted after completion, deletes: %v", e.blobs.deleted)
	}

	// A failed job keeps the blob for inspection
	e2 := newEngine(testConfig())
	failed := e2.run(t, "商品コード,商品名\n,no code here\n")
	if failed.Status != models.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", failed.Status)
	}
	if len(e2.blobs.deleted) != 0 {
		t.Error("Blob of a failed job must be retained")
	}
}

func TestProcess_UpdatesExistingProducts(t *testing.T) {
	e := newEngine(testConfig())

	// Seed one product, then import it plus a new one
	e.products.UpsertOne(context.Background(), &models.Product{
		TenantID: testTenant, Code: "P-0001", Name: "Old name", StockAvailable: 1,
	})

	job := e.run(t, productCSV(2))
	if job.InsertedRows != 1 || job.UpdatedRows != 1 {
		t.Errorf("Expected 1 insert + 1 update, got %d/%d", job.InsertedRows, job.UpdatedRows)
	}

	stored := e.products.products[e.products.key(testTenant, "P-0001")]
	if stored.Name != "Item 1" || stored.StockAvailable != 1 {
		t.Errorf("Existing product not overwritten: %+v", stored)
	}
}

func TestProcess_CheckpointInvariant(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 10
	e := newEngine(cfg)

	// 25 data rows, every 5th has an empty code
	var b strings.Builder
	b.WriteString("商品コード,商品名\n")
	for i := 1; i <= 25; i++ {
		if i%5 == 0 {
			b.WriteString(",missing code\n")
		} else {
			fmt.Fprintf(&b, "P-%04d,Item %d\n", i, i)
		}
	}

	job := e.run(t, b.String())
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.FailReason)
	}
	if job.InsertedRows != 20 || job.ErrorRows != 5 {
		t.Errorf("Expected 20 inserts and 5 errors, got %d/%d", job.InsertedRows, job.ErrorRows)
	}
	if len(e.jobs.checkpoints) != 3 {
		t.Errorf("Expected 3 checkpoints for 25 rows at chunk size 10, got %d", len(e.jobs.checkpoints))
	}

	// After every checkpoint the counters must account for exactly the
	// rows processed so far
	for i, cp := range e.jobs.checkpoints {
		if cp.Inserted+cp.Updated+cp.ErrorRows != cp.LastProcessedRow {
			t.Errorf("Checkpoint %d violates accounting: %d+%d+%d != %d",
				i, cp.Inserted, cp.Updated, cp.ErrorRows, cp.LastProcessedRow)
		}
	}
}

func TestProcess_ResumeAfterCrash(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 4
	e := newEngine(cfg)
	ctx := context.Background()

	job, err := e.controller.CreateJob(ctx, testTenant, "big.csv", []byte(productCSV(10)))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	// First pickup dies on the second chunk's key scan. The first chunk's
	// checkpoint is already durable.
	firstOnly := &scanFuse{inner: e.products, allow: 1}
	e.controller.stores.Products = firstOnly
	e.controller.upserter = NewUpserter(firstOnly)

	if _, err := e.controller.Process(ctx, job.ID); err == nil {
		t.Fatal("Expected transient error from interrupted run")
	}

	mid, _ := e.jobs.Get(ctx, job.ID)
	if mid.Status != models.JobStatusProcessing {
		t.Fatalf("Interrupted job should stay processing, got %s", mid.Status)
	}
	if mid.LastProcessedRow != 4 {
		t.Fatalf("Expected checkpoint at row 4, got %d", mid.LastProcessedRow)
	}

	// Second pickup resumes from the checkpoint and finishes
	e.controller.stores.Products = e.products
	e.controller.upserter = NewUpserter(e.products)

	done, err := e.controller.Process(ctx, job.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if done.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed after resume, got %s (%s)", done.Status, done.FailReason)
	}
	if done.InsertedRows != 10 || done.UpdatedRows != 0 || done.ErrorRows != 0 {
		t.Errorf("Resume double-counted: %d/%d/%d", done.InsertedRows, done.UpdatedRows, done.ErrorRows)
	}
	if done.LastProcessedRow != 10 {
		t.Errorf("Expected all 10 rows consumed, got %d", done.LastProcessedRow)
	}
	if len(e.products.products) != 10 {
		t.Errorf("Expected 10 products, got %d", len(e.products.products))
	}
}

// scanFuse lets a fixed number of ExistingCodes calls through, then fails.
type scanFuse struct {
	inner *memProductStore
	allow int
}

func (f *scanFuse) ExistingCodes(ctx context.Context, tenantID string, codes []string) (map[string]bool, error) {
	if f.allow <= 0 {
		return nil, errors.New("connection lost")
	}
	f.allow--
	return f.inner.ExistingCodes(ctx, tenantID, codes)
}

func (f *scanFuse) BulkUpsert(ctx context.Context, products []*models.Product) error {
	return f.inner.BulkUpsert(ctx, products)
}

func (f *scanFuse) UpsertOne(ctx context.Context, product *models.Product) error {
	return f.inner.UpsertOne(ctx, product)
}

func TestProcess_DuplicateCodeLastWriteWins(t *testing.T) {
	e := newEngine(testConfig())

	csv := "商品コード,商品名,在庫数\n" +
		"P-0001,First,10\n" +
		"P-0001,Second,20\n"

	job := e.run(t, csv)
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.FailReason)
	}
	if job.InsertedRows != 1 || job.UpdatedRows != 1 {
		t.Errorf("Expected insert then update for duplicate code, got %d/%d",
			job.InsertedRows, job.UpdatedRows)
	}

	stored := e.products.products[e.products.key(testTenant, "P-0001")]
	if stored == nil || stored.StockAvailable != 20 || stored.Name != "Second" {
		t.Errorf("Later duplicate should win: %+v", stored)
	}
}

func TestProcess_ProductCodeUnmappedFailsJob(t *testing.T) {
	e := newEngine(testConfig())
	ctx := context.Background()

	job, err := e.controller.CreateJob(ctx, testTenant, "bad.csv", []byte("備考,メモ\nfoo,bar\n"))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	done, err := e.controller.Process(ctx, job.ID)
	if err != nil {
		t.Fatalf("Process returned transient error for job-level failure: %v", err)
	}
	if done.Status != models.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", done.Status)
	}
	if !strings.Contains(done.FailReason, "product code") {
		t.Errorf("Fail reason should name the missing column, got %q", done.FailReason)
	}
	if done.LastProcessedRow != 0 || done.InsertedRows != 0 {
		t.Error("Unmappable job must not touch any rows")
	}
}

func TestProcess_EmptyFileFailsJob(t *testing.T) {
	for _, csv := range []string{"", "商品コード,商品名\n", "\n\n"} {
		e := newEngine(testConfig())
		job := e.run(t, csv)
		if job.Status != models.JobStatusFailed {
			t.Errorf("Expected failure for %q, got %s", csv, job.Status)
		}
		if job.FailReason != "file has no data rows" {
			t.Errorf("Unexpected reason %q", job.FailReason)
		}
	}
}

func TestProcess_AllRowsFailedFailsJob(t *testing.T) {
	e := newEngine(testConfig())

	job := e.run(t, "商品コード,商品名\n,one\n,two\n")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("Expected failed, got %s", job.Status)
	}
	if job.FailReason != "every row failed to import" {
		t.Errorf("Unexpected reason %q", job.FailReason)
	}
	if job.ErrorRows != 2 || job.LastProcessedRow != 2 {
		t.Errorf("Rows should still be consumed and counted: %d errors at row %d",
			job.ErrorRows, job.LastProcessedRow)
	}
}

func TestProcess_SavedMappingUsed(t *testing.T) {
	e := newEngine(testConfig())
	e.mappings.mapping = savedMapping(t, map[string]*int{
		FieldProductCode: intPtr(1),
		FieldProductName: intPtr(0),
	})

	// Headers carry no dictionary matches at all; only the saved mapping
	// can make this file importable
	job := e.run(t, "col_a,col_b\nWidget,P-0001\n")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed via saved mapping, got %s (%s)", job.Status, job.FailReason)
	}

	stored := e.products.products[e.products.key(testTenant, "P-0001")]
	if stored == nil || stored.Name != "Widget" {
		t.Errorf("Saved mapping not applied: %+v", stored)
	}
}

func TestProcess_WallClockBudgetBoundsChunks(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 1000
	cfg.ChunkBudget = time.Second
	e := newEngine(cfg)

	// Every clock read advances a full minute, so each chunk blows its
	// budget after the first row and checkpoints immediately.
	clock := time.Unix(1700000000, 0)
	e.controller.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	job := e.run(t, productCSV(3))
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.FailReason)
	}
	if job.InsertedRows != 3 {
		t.Errorf("Expected all rows imported, got %d", job.InsertedRows)
	}
	if len(e.jobs.checkpoints) != 3 {
		t.Errorf("Expected one checkpoint per row under a blown budget, got %d", len(e.jobs.checkpoints))
	}
}

func TestProcess_TerminalJobNotResumed(t *testing.T) {
	e := newEngine(testConfig())
	ctx := context.Background()

	job := e.run(t, productCSV(1))
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s", job.Status)
	}

	checkpointsBefore := len(e.jobs.checkpoints)
	again, err := e.controller.Process(ctx, job.ID)
	if err != nil {
		t.Fatalf("Re-processing a terminal job errored: %v", err)
	}
	if again.Status != models.JobStatusCompleted {
		t.Errorf("Terminal status changed to %s", again.Status)
	}
	if len(e.jobs.checkpoints) != checkpointsBefore {
		t.Error("Terminal job must not be re-run")
	}
}

func TestProcess_ErrorDetailsCapped(t *testing.T) {
	e := newEngine(testConfig())

	var b strings.Builder
	b.WriteString("商品コード,商品名\n")
	b.WriteString("P-0001,Keeper\n")
	for i := 0; i < 150; i++ {
		b.WriteString(",broken\n")
	}

	job := e.run(t, b.String())
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.FailReason)
	}
	if job.ErrorRows != 150 {
		t.Errorf("Expected all 150 error rows counted, got %d", job.ErrorRows)
	}

	details, err := decodeDetails(job.ErrorDetails)
	if err != nil {
		t.Fatalf("Failed to decode details: %v", err)
	}
	if len(details) != models.MaxErrorDetails {
		t.Errorf("Expected details capped at %d, got %d", models.MaxErrorDetails, len(details))
	}
	// The earliest errors survive the cap
	if details[0].Row != 2 {
		t.Errorf("Expected first error at row 2, got %d", details[0].Row)
	}
}

func TestProcess_NotifiesAfterEveryCheckpoint(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 2
	e := newEngine(cfg)

	var events []string
	e.controller.SetNotify(func(job *models.ImportJob) {
		events = append(events, fmt.Sprintf("%s:%d", job.Status, job.LastProcessedRow))
	})

	job := e.run(t, productCSV(4))
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s", job.Status)
	}

	// Two chunk broadcasts plus the terminal one
	if len(events) != 3 {
		t.Fatalf("Expected 3 progress events, got %d: %v", len(events), events)
	}
	if events[0] != "processing:2" || events[1] != "processing:4" || events[2] != "completed:4" {
		t.Errorf("Unexpected event sequence: %v", events)
	}
}

func TestProcess_ShiftJISFile(t *testing.T) {
	e := newEngine(testConfig())

	// "商品コード,商品名\nP-0001,テスト\n" in Shift_JIS
	data := []byte{
		0x8F, 0xA4, 0x95, 0x69, 0x83, 0x52, 0x81, 0x5B, 0x83, 0x68, 0x2C,
		0x8F, 0xA4, 0x95, 0x69, 0x96, 0xBC, 0x0A,
		0x50, 0x2D, 0x30, 0x30, 0x30, 0x31, 0x2C,
		0x83, 0x65, 0x83, 0x58, 0x83, 0x67, 0x0A,
	}

	ctx := context.Background()
	job, err := e.controller.CreateJob(ctx, testTenant, "sjis.csv", data)
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	done, err := e.controller.Process(ctx, job.ID)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if done.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", done.Status, done.FailReason)
	}
	if done.Encoding != EncodingShiftJIS {
		t.Errorf("Expected shift_jis tag, got %q", done.Encoding)
	}

	stored := e.products.products[e.products.key(testTenant, "P-0001")]
	if stored == nil || stored.Name != "テスト" {
		t.Errorf("Shift_JIS content mangled: %+v", stored)
	}
}

func TestProcess_ChunkSizeFloor(t *testing.T) {
	// A misconfigured chunk size must never stall the loop: every chunk
	// consumes at least one row.
	cfg := testConfig()
	cfg.ChunkSize = 0
	e := newEngine(cfg)

	job := e.run(t, productCSV(2))
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", job.Status, job.FailReason)
	}
	if job.InsertedRows != 2 || job.LastProcessedRow != 2 {
		t.Errorf("Expected both rows imported, got %d at row %d",
			job.InsertedRows, job.LastProcessedRow)
	}
	if len(e.jobs.checkpoints) != 2 {
		t.Errorf("Expected one checkpoint per row, got %d", len(e.jobs.checkpoints))
	}
	for i, cp := range e.jobs.checkpoints {
		if cp.LastProcessedRow != i+1 {
			t.Errorf("Checkpoint %d made no progress: row %d", i, cp.LastProcessedRow)
		}
	}
}

func TestRunner_SkipsFreshlyClaimedJob(t *testing.T) {
	e := newEngine(testConfig())
	ctx := context.Background()

	job, err := e.controller.CreateJob(ctx, testTenant, "sync.csv", []byte(productCSV(2)))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	// The synchronous upload path claims the job by flipping it to
	// processing; the runner must leave such a job alone.
	if err := e.jobs.Update(ctx, job.ID, map[string]interface{}{
		"status": models.JobStatusProcessing,
	}); err != nil {
		t.Fatalf("Failed to claim job: %v", err)
	}

	r := NewRunner(e.controller, e.jobs, time.Hour)
	r.runOnce()

	cur, _ := e.jobs.Get(ctx, job.ID)
	if cur.Status != models.JobStatusProcessing || cur.LastProcessedRow != 0 {
		t.Fatalf("Runner must skip a freshly claimed job, got %s at row %d",
			cur.Status, cur.LastProcessedRow)
	}

	// Once the claim goes stale the owner is presumed dead and the runner
	// resumes the job.
	e.jobs.jobs[job.ID].UpdatedAt = time.Now().Add(-processingGrace - time.Minute)
	r.runOnce()

	cur, _ = e.jobs.Get(ctx, job.ID)
	if cur.Status != models.JobStatusCompleted {
		t.Errorf("Runner should resume a stale claimed job, got %s", cur.Status)
	}
}

func TestRunner_PicksUpPendingJob(t *testing.T) {
	e := newEngine(testConfig())
	ctx := context.Background()

	job, err := e.controller.CreateJob(ctx, testTenant, "queued.csv", []byte(productCSV(2)))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	r := NewRunner(e.controller, e.jobs, time.Hour)
	r.runOnce()

	done, _ := e.jobs.Get(ctx, job.ID)
	if done.Status != models.JobStatusCompleted {
		t.Errorf("Runner should have completed the job, got %s", done.Status)
	}

	// Nothing left to do; another scan is a no-op
	r.runOnce()
}

func TestSummarize(t *testing.T) {
	details, _ := encodeDetails([]models.RowError{
		{Row: 2, Message: "product code is empty"},
	})
	job := &models.ImportJob{
		ID:           "job-1",
		Status:       models.JobStatusCompleted,
		TotalRows:    5,
		InsertedRows: 3,
		UpdatedRows:  1,
		ErrorRows:    1,
		ErrorDetails: details,
	}

	res := Summarize(job)
	if res.Inserted != 3 || res.Updated != 1 || res.ErrorRows != 1 {
		t.Errorf("Counters lost: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 2 {
		t.Errorf("Error excerpt lost: %+v", res.Errors)
	}
}
