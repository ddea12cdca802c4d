package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hikyaku-io/dataport/internal/database"
	"github.com/hikyaku-io/dataport/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobStore persists import jobs and their checkpoints.
type JobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, id string) (*models.ImportJob, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	// NextRunnable returns the oldest job with work left, or nil when there
	// is nothing to do. Processing jobs touched after staleBefore are
	// skipped: a recent checkpoint means another path is actively running
	// the job.
	NextRunnable(ctx context.Context, staleBefore time.Time) (*models.ImportJob, error)
}

// MappingStore reads the tenant's saved column mapping (owned by the
// mapping admin surface, consumed read-only here).
type MappingStore interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.ColumnMapping, error)
}

// ProductStore is the keyed upsert surface over the product table.
type ProductStore interface {
	ExistingCodes(ctx context.Context, tenantID string, codes []string) (map[string]bool, error)
	BulkUpsert(ctx context.Context, products []*models.Product) error
	UpsertOne(ctx context.Context, product *models.Product) error
}

// TicketStore manages deferred-upload tickets. Claim must be atomic: of any
// number of concurrent claims for one token, exactly one wins.
type TicketStore interface {
	Create(ctx context.Context, ticket *models.UploadTicket) error
	Get(ctx context.Context, tenantID, token string) (*models.UploadTicket, error)
	// Claim consumes a usable ticket and returns it, or nil when the ticket
	// is unknown, expired or already consumed.
	Claim(ctx context.Context, tenantID, token string, now time.Time) (*models.UploadTicket, error)
	// Release un-consumes a claimed ticket after a failed upload.
	Release(ctx context.Context, id string) error
}

// Stores bundles the GORM-backed implementations.
type Stores struct {
	Jobs     JobStore
	Mappings MappingStore
	Products ProductStore
	Tickets  TicketStore
}

// NewStores wires all stores against one database handle.
func NewStores(db *database.DB) *Stores {
	return &Stores{
		Jobs:     &gormJobStore{db: db},
		Mappings: &gormMappingStore{db: db},
		Products: &gormProductStore{db: db},
		Tickets:  &gormTicketStore{db: db},
	}
}

type gormJobStore struct {
	db *database.DB
}

func (s *gormJobStore) Create(ctx context.Context, job *models.ImportJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func (s *gormJobStore) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load import job %s: %w", id, err)
	}
	return &job, nil
}

func (s *gormJobStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.ImportJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update import job %s: %w", id, result.Error)
	}
	return nil
}

func (s *gormJobStore) NextRunnable(ctx context.Context, staleBefore time.Time) (*models.ImportJob, error) {
	var job models.ImportJob
	err := s.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND updated_at < ?)",
			models.JobStatusPending, models.JobStatusProcessing, staleBefore).
		Order("created_at ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan for runnable jobs: %w", err)
	}
	return &job, nil
}

type gormMappingStore struct {
	db *database.DB
}

func (s *gormMappingStore) GetByTenant(ctx context.Context, tenantID string) (*models.ColumnMapping, error) {
	var mapping models.ColumnMapping
	err := s.db.WithContext(ctx).First(&mapping, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load column mapping: %w", err)
	}
	return &mapping, nil
}

type gormProductStore struct {
	db *database.DB
}

func (s *gormProductStore) ExistingCodes(ctx context.Context, tenantID string, codes []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return existing, nil
	}

	var found []string
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND code IN ?", tenantID, codes).
		Pluck("code", &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing product codes: %w", err)
	}

	for _, code := range found {
		existing[code] = true
	}
	return existing, nil
}

// productUpsertColumns are the mutable columns rewritten on conflict.
// Numeric fields stay typed end to end; GORM binds them as numerics, never
// strings.
var productUpsertColumns = []string{
	"name", "jan_code", "supplier_code", "supplier_name",
	"stock_available", "stock_reserved", "stock_incoming",
	"unit_price", "retail_price", "category",
	"last_import_job_id", "updated_at",
}

func productConflict() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns(productUpsertColumns),
	}
}

func (s *gormProductStore) BulkUpsert(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Clauses(productConflict()).Create(&products).Error; err != nil {
		return fmt.Errorf("bulk upsert failed: %w", err)
	}
	return nil
}

func (s *gormProductStore) UpsertOne(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Clauses(productConflict()).Create(product).Error; err != nil {
		return fmt.Errorf("upsert failed for code %s: %w", product.Code, err)
	}
	return nil
}

type gormTicketStore struct {
	db *database.DB
}

func (s *gormTicketStore) Create(ctx context.Context, ticket *models.UploadTicket) error {
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("failed to create upload ticket: %w", err)
	}
	return nil
}

func (s *gormTicketStore) Get(ctx context.Context, tenantID, token string) (*models.UploadTicket, error) {
	var ticket models.UploadTicket
	err := s.db.WithContext(ctx).
		First(&ticket, "token = ? AND tenant_id = ?", token, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload ticket: %w", err)
	}
	return &ticket, nil
}

func (s *gormTicketStore) Claim(ctx context.Context, tenantID, token string, now time.Time) (*models.UploadTicket, error) {
	// The conditional update is the whole concurrency story: the row is
	// flipped to consumed in one statement, so a second claim sees zero
	// affected rows.
	res := s.db.WithContext(ctx).Model(&models.UploadTicket{}).
		Where("token = ? AND tenant_id = ? AND consumed = false AND expires_at > ?",
			token, tenantID, now).
		Update("consumed", true)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim upload ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.Get(ctx, tenantID, token)
}

func (s *gormTicketStore) Release(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&models.UploadTicket{}).
		Where("id = ?", id).
		Update("consumed", false).Error
	if err != nil {
		return fmt.Errorf("failed to release upload ticket %s: %w", id, err)
	}
	return nil
}
