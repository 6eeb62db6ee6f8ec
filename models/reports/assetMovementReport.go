package reports

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetMovementFilter narrows the report. WarehouseId takes precedence over
// BranchId when both are given; Subcategory only applies together with
// Category.
type AssetMovementFilter struct {
	Category    string
	Subcategory string
	BranchId    int
	WarehouseId int
}

type AssetMovementRow struct {
	AssetId     int             `json:"asset_id"`
	AssetNameEn string          `json:"asset_name_en"`
	AssetNameAr string          `json:"asset_name_ar"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	InQty       int64           `json:"in_qty"`
	OutQty      int64           `json:"out_qty"`
	NetQty      int64           `json:"net_qty"`
	InValue     decimal.Decimal `json:"in_value"`
	OutValue    decimal.Decimal `json:"out_value"`
	NetValue    decimal.Decimal `json:"net_value"`
}

type AssetMovementTotals struct {
	InQty    int64           `json:"in_qty"`
	OutQty   int64           `json:"out_qty"`
	NetQty   int64           `json:"net_qty"`
	InValue  decimal.Decimal `json:"in_value"`
	OutValue decimal.Decimal `json:"out_value"`
	NetValue decimal.Decimal `json:"net_value"`
}

type AssetMovementReport struct {
	Date   string              `json:"date"`
	Rows   []*AssetMovementRow `json:"rows"`
	Totals AssetMovementTotals `json:"totals"`
}

// GetAssetMovementReport aggregates committed ledger lines for one movement
// date: per-asset IN/OUT/net quantity and value, plus a grand total. A day
// with no matching transactions yields empty rows and zero-filled totals,
// never an error.
func GetAssetMovementReport(ctx context.Context, date time.Time, filter AssetMovementFilter) (*AssetMovementReport, error) {
	start := time.Now()
	defer logSlowReport(ctx, "asset_movement_report", start, map[string]any{
		"date": date.Format("2006-01-02"),
	})

	if config.ReportCacheEnabled() {
		key := fmt.Sprintf("report:asset_movement:%s:%s:%s:%d:%d",
			date.Format("2006-01-02"), filter.Category, filter.Subcategory, filter.BranchId, filter.WarehouseId)
		var cached *AssetMovementReport
		if ok, err := cacheGet(key, &cached); err == nil && ok && cached != nil {
			return cached, nil
		}
		report, err := queryAssetMovementReport(ctx, date, filter)
		if err != nil {
			return nil, err
		}
		_ = cacheSet(key, report, reportCacheTTL())
		return report, nil
	}

	return queryAssetMovementReport(ctx, date, filter)
}

func queryAssetMovementReport(ctx context.Context, date time.Time, filter AssetMovementFilter) (*AssetMovementReport, error) {
	db := config.GetDB()

	dbCtx := db.WithContext(ctx).
		Model(&models.AssetTransactionLine{}).
		Select(`fixed_assets.id AS asset_id,
			fixed_assets.name_en AS asset_name_en,
			fixed_assets.name_ar AS asset_name_ar,
			categories.category AS category,
			categories.subcategory AS subcategory,
			COALESCE(SUM(CASE WHEN transactions.direction = 'IN' THEN asset_transaction_lines.quantity ELSE 0 END), 0) AS in_qty,
			COALESCE(SUM(CASE WHEN transactions.direction = 'OUT' THEN asset_transaction_lines.quantity ELSE 0 END), 0) AS out_qty,
			COALESCE(SUM(CASE WHEN transactions.direction = 'IN' THEN asset_transaction_lines.total_value ELSE 0 END), 0) AS in_value,
			COALESCE(SUM(CASE WHEN transactions.direction = 'OUT' THEN asset_transaction_lines.total_value ELSE 0 END), 0) AS out_value`).
		Joins("JOIN transactions ON transactions.id = asset_transaction_lines.transaction_id").
		Joins("JOIN fixed_assets ON fixed_assets.id = asset_transaction_lines.asset_id").
		Joins("JOIN categories ON categories.id = fixed_assets.category_id").
		Where("transactions.date = ?", date.Format("2006-01-02"))

	if filter.WarehouseId > 0 {
		dbCtx = dbCtx.Where("transactions.warehouse_id = ?", filter.WarehouseId)
	} else if filter.BranchId > 0 {
		dbCtx = dbCtx.Where("transactions.branch_id = ?", filter.BranchId)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("categories.category = ?", filter.Category)
		if filter.Subcategory != "" {
			dbCtx = dbCtx.Where("categories.subcategory = ?", filter.Subcategory)
		}
	}

	var rows []*AssetMovementRow
	err := dbCtx.
		Group("fixed_assets.id, fixed_assets.name_en, fixed_assets.name_ar, categories.category, categories.subcategory").
		Order("fixed_assets.name_en").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*AssetMovementRow{}
	}

	return &AssetMovementReport{
		Date:   date.Format("2006-01-02"),
		Rows:   rows,
		Totals: sumMovementRows(rows),
	}, nil
}

// sumMovementRows fills per-row nets and accumulates the grand-total row.
// Pure over its input; zero rows yield zero-filled totals.
func sumMovementRows(rows []*AssetMovementRow) AssetMovementTotals {
	totals := AssetMovementTotals{
		InValue:  decimal.Zero,
		OutValue: decimal.Zero,
		NetValue: decimal.Zero,
	}
	for _, row := range rows {
		row.NetQty = row.InQty - row.OutQty
		row.NetValue = row.InValue.Sub(row.OutValue)
		totals.InQty += row.InQty
		totals.OutQty += row.OutQty
		totals.InValue = totals.InValue.Add(row.InValue)
		totals.OutValue = totals.OutValue.Add(row.OutValue)
	}
	totals.NetQty = totals.InQty - totals.OutQty
	totals.NetValue = totals.InValue.Sub(totals.OutValue)
	return totals
}

// GetAverageInboundCost returns the mean unit amount over the asset's IN
// lines with a positive unit amount, or zero when none exist.
func GetAverageInboundCost(ctx context.Context, assetId int) (decimal.Decimal, error) {
	start := time.Now()
	defer logSlowReport(ctx, "average_inbound_cost", start, map[string]any{
		"asset_id": assetId,
	})

	if _, err := models.ResolveAsset(ctx, assetId); err != nil {
		return decimal.Zero, err
	}

	db := config.GetDB()
	var avg decimal.Decimal
	err := db.WithContext(ctx).
		Model(&models.AssetTransactionLine{}).
		Select("COALESCE(AVG(asset_transaction_lines.unit_amount), 0)").
		Joins("JOIN transactions ON transactions.id = asset_transaction_lines.transaction_id").
		Where("asset_transaction_lines.asset_id = ?", assetId).
		Where("transactions.direction = ?", models.DirectionIn).
		Where("asset_transaction_lines.unit_amount IS NOT NULL AND asset_transaction_lines.unit_amount > 0").
		Scan(&avg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return avg, nil
}
