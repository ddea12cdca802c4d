package models

import "time"

// Product is the upserted master-data record. The (tenant_id, code) pair is
// the natural key and the conflict target for the import upsert; the record
// is overwritten in place on every import that carries the same code.
type Product struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TenantID string `gorm:"type:uuid;not null;uniqueIndex:idx_products_tenant_code" json:"tenantId"`
	Code     string `gorm:"not null;uniqueIndex:idx_products_tenant_code" json:"code"`

	Name    string `gorm:"not null" json:"name"`
	JanCode string `gorm:"index" json:"janCode"` // EAN13 barcode

	SupplierCode string `json:"supplierCode"`
	SupplierName string `json:"supplierName"`

	StockAvailable int `gorm:"default:0" json:"stockAvailable"`
	StockReserved  int `gorm:"default:0" json:"stockReserved"`
	StockIncoming  int `gorm:"default:0" json:"stockIncoming"`

	UnitPrice   float64 `json:"unitPrice"`
	RetailPrice float64 `json:"retailPrice"`

	Category string `json:"category"`

	// LastImportJobID points at the job that last wrote this record
	LastImportJobID *string `gorm:"type:uuid" json:"lastImportJobId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Product model
func (Product) TableName() string {
	return "products"
}
