package importer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hikyaku-io/dataport/internal/models"
	"gorm.io/datatypes"
)

func savedMapping(t *testing.T, fields map[string]*int) *models.ColumnMapping {
	t.Helper()
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Failed to encode fields: %v", err)
	}
	return &models.ColumnMapping{
		TenantID:     "tenant-1",
		Fields:       datatypes.JSON(raw),
		IsConfigured: true,
	}
}

func intPtr(n int) *int { return &n }

func TestResolveColumns_Dictionary(t *testing.T) {
	headers := []string{"ＪＡＮコード", "商品コード", "商品名", "在庫数"}

	cols, err := ResolveColumns(headers, nil)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	if cols[FieldJanCode] != 0 {
		t.Errorf("Expected janCode at 0, got %d", cols[FieldJanCode])
	}
	if cols[FieldProductCode] != 1 {
		t.Errorf("Expected productCode at 1, got %d", cols[FieldProductCode])
	}
	if cols[FieldProductName] != 2 {
		t.Errorf("Expected productName at 2, got %d", cols[FieldProductName])
	}
	if cols[FieldStockAvailable] != 3 {
		t.Errorf("Expected stockAvailable at 3, got %d", cols[FieldStockAvailable])
	}
}

func TestResolveColumns_FirstMatchWins(t *testing.T) {
	// Two headers map to the same field; the earlier column wins
	headers := []string{"商品コード", "product_code", "商品名"}

	cols, err := ResolveColumns(headers, nil)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if cols[FieldProductCode] != 0 {
		t.Errorf("Expected first match to win, got %d", cols[FieldProductCode])
	}
}

func TestResolveColumns_UnknownHeadersIgnored(t *testing.T) {
	headers := []string{"備考", "商品コード", "whatever"}

	cols, err := ResolveColumns(headers, nil)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if len(cols) != 1 {
		t.Errorf("Expected only productCode mapped, got %v", cols)
	}
}

func TestResolveColumns_ProductCodeUnmapped(t *testing.T) {
	headers := []string{"商品名", "在庫数"}

	_, err := ResolveColumns(headers, nil)
	if !errors.Is(err, ErrProductCodeUnmapped) {
		t.Errorf("Expected ErrProductCodeUnmapped, got %v", err)
	}
}

func TestResolveColumns_SavedMapping(t *testing.T) {
	saved := savedMapping(t, map[string]*int{
		FieldProductCode: intPtr(2),
		FieldProductName: intPtr(0),
		FieldJanCode:     nil, // explicitly not mapped
	})
	// Headers would dictionary-match differently; the saved mapping wins
	headers := []string{"商品コード", "在庫数", "備考"}

	cols, err := ResolveColumns(headers, saved)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if cols[FieldProductCode] != 2 {
		t.Errorf("Expected saved index 2, got %d", cols[FieldProductCode])
	}
	if cols[FieldProductName] != 0 {
		t.Errorf("Expected saved index 0, got %d", cols[FieldProductName])
	}
	if _, ok := cols[FieldJanCode]; ok {
		t.Error("Null-mapped field should be absent")
	}
}

func TestResolveColumns_SavedMappingOutOfRange(t *testing.T) {
	// The file shrank since the mapping was configured; the stale index
	// is dropped, and losing the product code fails the resolution.
	saved := savedMapping(t, map[string]*int{
		FieldProductCode: intPtr(5),
		FieldProductName: intPtr(0),
	})
	headers := []string{"商品名", "在庫数"}

	_, err := ResolveColumns(headers, saved)
	if !errors.Is(err, ErrProductCodeUnmapped) {
		t.Errorf("Expected ErrProductCodeUnmapped for stale index, got %v", err)
	}
}

func TestResolveColumns_UnconfiguredSavedMappingIgnored(t *testing.T) {
	saved := savedMapping(t, map[string]*int{FieldProductCode: intPtr(5)})
	saved.IsConfigured = false

	headers := []string{"商品コード"}
	cols, err := ResolveColumns(headers, saved)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if cols[FieldProductCode] != 0 {
		t.Errorf("Expected dictionary fallback for unconfigured mapping, got %v", cols)
	}
}
