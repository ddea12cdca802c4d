package importer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/hikyaku-io/dataport/internal/models"
)

// ErrEmptyProductCode marks a row that cannot be keyed. The row is counted
// as an error row and excluded from the upsert, never defaulted.
var ErrEmptyProductCode = errors.New("product code is empty")

// NormalizeRow converts one raw CSV row into a product draft. String fields
// are trimmed; the product name falls back to the code when blank. Numeric
// fields default to zero on anything unparseable so a sloppy quantity cell
// never loses the whole row.
func NormalizeRow(row []string, cols map[string]int, tenantID, jobID string) (*models.Product, error) {
	code := strings.TrimSpace(cell(row, cols, FieldProductCode))
	if code == "" {
		return nil, ErrEmptyProductCode
	}

	name := strings.TrimSpace(cell(row, cols, FieldProductName))
	if name == "" {
		name = code
	}

	return &models.Product{
		TenantID:        tenantID,
		Code:            code,
		Name:            name,
		JanCode:         strings.TrimSpace(cell(row, cols, FieldJanCode)),
		SupplierCode:    strings.TrimSpace(cell(row, cols, FieldSupplierCode)),
		SupplierName:    strings.TrimSpace(cell(row, cols, FieldSupplierName)),
		StockAvailable:  parseIntField(cell(row, cols, FieldStockAvailable)),
		StockReserved:   parseIntField(cell(row, cols, FieldStockReserved)),
		StockIncoming:   parseIntField(cell(row, cols, FieldStockIncoming)),
		UnitPrice:       parseDecimalField(cell(row, cols, FieldUnitPrice)),
		RetailPrice:     parseDecimalField(cell(row, cols, FieldRetailPrice)),
		Category:        strings.TrimSpace(cell(row, cols, FieldCategory)),
		LastImportJobID: &jobID,
	}, nil
}

// cell looks up a field's value through the column map. Unmapped fields and
// short rows read as empty.
func cell(row []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseIntField(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func parseDecimalField(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}
