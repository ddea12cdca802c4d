package importer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hikyaku-io/dataport/internal/models"
)

// Field names used by the import engine. These are the keys of a tenant's
// saved column mapping and of the built-in header dictionary.
const (
	FieldProductCode    = "productCode"
	FieldProductName    = "productName"
	FieldJanCode        = "janCode"
	FieldSupplierCode   = "supplierCode"
	FieldSupplierName   = "supplierName"
	FieldStockAvailable = "stockAvailable"
	FieldStockReserved  = "stockReserved"
	FieldStockIncoming  = "stockIncoming"
	FieldUnitPrice      = "unitPrice"
	FieldRetailPrice    = "retailPrice"
	FieldCategory       = "category"
)

// MandatoryFields must both carry non-null indices before a tenant mapping
// may be marked configured. Only the product code is a hard precondition for
// an import run itself.
var MandatoryFields = []string{FieldProductCode, FieldJanCode}

// ErrProductCodeUnmapped fails the whole job: without a product-code column
// nothing can be keyed.
var ErrProductCodeUnmapped = errors.New("mandatory product code column is not mapped")

// headerDictionary maps exact header text to a field name. Used only when
// the tenant has no configured mapping.
var headerDictionary = map[string]string{
	"商品コード":        FieldProductCode,
	"商品CD":         FieldProductCode,
	"product_code": FieldProductCode,

	"商品名":          FieldProductName,
	"品名":           FieldProductName,
	"product_name": FieldProductName,

	"ＪＡＮコード":   FieldJanCode,
	"JANコード":   FieldJanCode,
	"バーコード":    FieldJanCode,
	"jan_code": FieldJanCode,

	"仕入先コード":        FieldSupplierCode,
	"supplier_code": FieldSupplierCode,

	"仕入先名":          FieldSupplierName,
	"supplier_name": FieldSupplierName,

	"在庫数":   FieldStockAvailable,
	"stock": FieldStockAvailable,

	"引当数":            FieldStockReserved,
	"reserved_stock": FieldStockReserved,

	"入荷予定数":          FieldStockIncoming,
	"incoming_stock": FieldStockIncoming,

	"原価":         FieldUnitPrice,
	"仕入単価":       FieldUnitPrice,
	"unit_price": FieldUnitPrice,

	"売価":           FieldRetailPrice,
	"retail_price": FieldRetailPrice,

	"カテゴリ":     FieldCategory,
	"category": FieldCategory,
}

// ResolveColumns reconciles CSV headers with the tenant's saved mapping. A
// configured saved mapping is used verbatim, dropping indices that are null
// or out of range for the headers actually present (the header count may
// have drifted since the mapping was configured). Without one, each header
// is matched exactly against the built-in dictionary and the first header
// wins on duplicates.
func ResolveColumns(headers []string, saved *models.ColumnMapping) (map[string]int, error) {
	resolved := make(map[string]int)

	if saved != nil && saved.IsConfigured {
		fields, err := DecodeFieldMap(saved.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode saved column mapping: %w", err)
		}
		for name, idx := range fields {
			if idx == nil {
				continue
			}
			if *idx < 0 || *idx >= len(headers) {
				continue
			}
			resolved[name] = *idx
		}
	} else {
		for idx, header := range headers {
			name, ok := headerDictionary[header]
			if !ok {
				continue
			}
			if _, taken := resolved[name]; taken {
				continue
			}
			resolved[name] = idx
		}
	}

	if _, ok := resolved[FieldProductCode]; !ok {
		return nil, ErrProductCodeUnmapped
	}

	return resolved, nil
}

// DecodeFieldMap parses the JSONB field table of a saved mapping. A null
// index means "explicitly not mapped".
func DecodeFieldMap(raw []byte) (map[string]*int, error) {
	fields := make(map[string]*int)
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
