package models

import (
	"time"

	"gorm.io/datatypes"
)

// Import job states. Transitions only move forward:
// pending -> processing -> completed | failed.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// MaxErrorDetails caps the stored per-row error list.
const MaxErrorDetails = 100

// RowError is one bounded error-detail entry.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportJob is one uploaded file and the durable checkpoint of its import.
// LastProcessedRow is the sole resumption contract: a fresh pickup reads the
// row and continues from there with no other hidden state.
type ImportJob struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TenantID string `gorm:"type:uuid;index;not null" json:"tenantId"`

	FileName  string `gorm:"not null" json:"fileName"`
	FileBytes int64  `json:"fileBytes"`
	Encoding  string `json:"encoding"`

	// BlobRef addresses the raw file in the blob store. The blob is
	// deleted only after the job completes, never on failure.
	BlobRef string `gorm:"type:uuid;not null" json:"-"`

	Status string `gorm:"default:'pending';index" json:"status"`

	// TotalRows is known only after the file is fully tokenized.
	TotalRows        int `gorm:"default:0" json:"totalRows"`
	LastProcessedRow int `gorm:"default:0" json:"lastProcessedRow"`

	InsertedRows int `gorm:"default:0" json:"insertedRows"`
	UpdatedRows  int `gorm:"default:0" json:"updatedRows"`
	ErrorRows    int `gorm:"default:0" json:"errorRows"`

	ErrorDetails datatypes.JSON `gorm:"type:jsonb" json:"errorDetails,omitempty"`

	// FailReason carries the job-level fatal error, if any.
	FailReason string `json:"failReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for ImportJob model
func (ImportJob) TableName() string {
	return "import_jobs"
}

// Terminal reports whether the job reached a final state.
func (j *ImportJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Progress returns completion as a percentage of tokenized rows.
func (j *ImportJob) Progress() float64 {
	if j.TotalRows == 0 {
		return 0
	}
	return float64(j.LastProcessedRow) / float64(j.TotalRows) * 100
}
