package models

import (
	"time"

	"gorm.io/datatypes"
)

// ColumnMapping is the tenant-saved field-name -> column-index table, at most
// one active row per tenant. Fields holds a JSON object of field name to
// nullable column index (null = explicitly not mapped). Once IsConfigured is
// set, the product-code and JAN-code fields must have non-null indices; that
// rule is enforced when the mapping is saved, not when it is read.
type ColumnMapping struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TenantID string `gorm:"type:uuid;uniqueIndex;not null" json:"tenantId"`

	Headers     datatypes.JSON `gorm:"type:jsonb" json:"headers"` // sample header row, as last observed
	Fields      datatypes.JSON `gorm:"type:jsonb" json:"fields"`
	ColumnCount int            `json:"columnCount"`

	IsConfigured   bool   `gorm:"default:false" json:"isConfigured"`
	SampleFileName string `json:"sampleFileName,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for ColumnMapping model
func (ColumnMapping) TableName() string {
	return "column_mappings"
}
