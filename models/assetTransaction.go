package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is a ledger movement header. Direction applies to every line;
// CustomId is branch-scoped ("<branchID>-<sequence>") and immutable once
// assigned.
type Transaction struct {
	ID              int       `gorm:"primary_key" json:"id"`
	CustomId        string    `gorm:"size:50;not null;uniqueIndex" json:"custom_id"`
	BranchId        int       `gorm:"not null;uniqueIndex:idx_branch_sequence,priority:1" json:"branch_id"`
	SequenceNo      int64     `gorm:"not null;uniqueIndex:idx_branch_sequence,priority:2" json:"sequence_no"`
	Date            time.Time `gorm:"type:date;not null;index" json:"date"`
	Description     string    `gorm:"type:text" json:"description"`
	ReferenceNumber string    `gorm:"size:100" json:"reference_number"`
	// AttachedFile stores a file reference string only; upload machinery is
	// out of scope.
	AttachedFile string     `gorm:"size:255" json:"attached_file"`
	WarehouseId  int        `gorm:"not null;index" json:"warehouse_id"`
	Warehouse    *Warehouse `json:"warehouse,omitempty"`
	UserId       int        `gorm:"index" json:"user_id"`
	Direction    Direction  `gorm:"type:enum('IN','OUT');not null" json:"direction"`

	Lines []AssetTransactionLine `gorm:"foreignKey:TransactionId" json:"lines"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AssetTransactionLine struct {
	ID            int              `gorm:"primary_key" json:"id"`
	TransactionId int              `gorm:"not null;index" json:"transaction_id"`
	AssetId       int              `gorm:"not null;index" json:"asset_id"`
	Asset         *FixedAsset      `json:"asset,omitempty"`
	Quantity      int              `gorm:"not null" json:"quantity"`
	UnitAmount    *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_amount"`
	TotalValue    decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"total_value"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// ComputeTotalValue keeps TotalValue consistent with Quantity and UnitAmount.
// Called on every mutation of either operand; pure and idempotent.
func (line *AssetTransactionLine) ComputeTotalValue() {
	if line.UnitAmount == nil {
		line.TotalValue = decimal.Zero
		return
	}
	line.TotalValue = line.UnitAmount.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

type NewAssetTransactionLine struct {
	AssetId    int              `json:"asset_id" binding:"required"`
	Quantity   int              `json:"quantity" binding:"required"`
	UnitAmount *decimal.Decimal `json:"unit_amount"`
}

type NewAssetTransaction struct {
	Date            string                    `json:"date" binding:"required"`
	WarehouseId     int                       `json:"warehouse_id" binding:"required"`
	Direction       string                    `json:"direction" binding:"required,oneof=IN OUT"`
	Description     string                    `json:"description"`
	ReferenceNumber string                    `json:"reference_number"`
	AttachedFile    string                    `json:"attached_file"`
	Lines           []NewAssetTransactionLine `json:"lines" binding:"required,min=1,dive"`
}

// UpdateAssetTransactionInput patches header fields. Nil means "unchanged".
// CustomId is present only so an attempt to change it can be rejected
// explicitly instead of silently stripped.
type UpdateAssetTransactionInput struct {
	CustomId        *string `json:"custom_id"`
	Date            *string `json:"date"`
	Description     *string `json:"description"`
	ReferenceNumber *string `json:"reference_number"`
	AttachedFile    *string `json:"attached_file"`
	WarehouseId     *int    `json:"warehouse_id"`
	Direction       *string `json:"direction" binding:"omitempty,oneof=IN OUT"`
}

type UpdateAssetTransactionLineInput struct {
	AssetId    *int             `json:"asset_id"`
	Quantity   *int             `json:"quantity"`
	UnitAmount *decimal.Decimal `json:"unit_amount"`
}

// ParseDateString parses the wire date format (YYYY-MM-DD).
func ParseDateString(field string, value string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, utils.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func GetAssetTransaction(ctx context.Context, id int) (*Transaction, error) {
	txn, err := utils.FetchSingleModel[Transaction](ctx, id, "Lines", "Lines.Asset", "Warehouse", "Warehouse.Branch")
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("transaction", id)
		}
		return nil, err
	}
	return txn, nil
}

func GetTransactionLine(ctx context.Context, id int) (*AssetTransactionLine, error) {
	line, err := utils.FetchSingleModel[AssetTransactionLine](ctx, id, "Asset")
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("transaction line", id)
		}
		return nil, err
	}
	return line, nil
}

// TransactionFilter narrows list/summary queries. WarehouseId takes
// precedence over BranchId when both are given.
type TransactionFilter struct {
	BranchId    int
	WarehouseId int
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string
}

func (filter *TransactionFilter) apply(dbCtx *gorm.DB) *gorm.DB {
	if filter.WarehouseId > 0 {
		dbCtx = dbCtx.Where("transactions.warehouse_id = ?", filter.WarehouseId)
	} else if filter.BranchId > 0 {
		dbCtx = dbCtx.Where("transactions.branch_id = ?", filter.BranchId)
	}
	if filter.DateFrom != nil {
		dbCtx = dbCtx.Where("transactions.date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		dbCtx = dbCtx.Where("transactions.date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		dbCtx = dbCtx.Where("transactions.description LIKE ? OR transactions.reference_number LIKE ?", pattern, pattern)
	}
	return dbCtx
}

// PaginateAssetTransactions lists headers newest first with a total count for
// the pagination envelope.
func PaginateAssetTransactions(ctx context.Context, filter TransactionFilter, page int, perPage int) ([]*Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = config.SearchLimit
	}
	if perPage > 100 {
		perPage = 100
	}

	db := config.GetDB()
	dbCtx := filter.apply(db.WithContext(ctx).Model(&Transaction{}))

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*Transaction
	err := dbCtx.
		Preload("Lines").
		Preload("Warehouse").
		Order("transactions.date DESC, transactions.id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// GetTransactionLines lists the lines of one transaction.
func GetTransactionLines(ctx context.Context, transactionId int) ([]*AssetTransactionLine, error) {
	if err := utils.ValidateResourceId[Transaction](ctx, transactionId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("transaction", transactionId)
		}
		return nil, err
	}
	db := config.GetDB()
	var lines []*AssetTransactionLine
	err := db.WithContext(ctx).
		Preload("Asset").
		Where("transaction_id = ?", transactionId).
		Order("id").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

type TransactionSummary struct {
	TotalTransactions int64           `json:"total_transactions"`
	TotalInLines      int64           `json:"total_in_lines"`
	TotalOutLines     int64           `json:"total_out_lines"`
	TotalInValue      decimal.Decimal `json:"total_in_value"`
	TotalOutValue     decimal.Decimal `json:"total_out_value"`
	NetValue          decimal.Decimal `json:"net_value"`
}

// AssetTransactionSummary aggregates header and line statistics over the
// filter set.
func AssetTransactionSummary(ctx context.Context, filter TransactionFilter) (*TransactionSummary, error) {
	db := config.GetDB()

	summary := TransactionSummary{
		TotalInValue:  decimal.Zero,
		TotalOutValue: decimal.Zero,
		NetValue:      decimal.Zero,
	}

	if err := filter.apply(db.WithContext(ctx).Model(&Transaction{})).
		Count(&summary.TotalTransactions).Error; err != nil {
		return nil, err
	}

	type lineAgg struct {
		Direction Direction
		Lines     int64
		Value     decimal.Decimal
	}
	var aggs []lineAgg
	err := filter.apply(
		db.WithContext(ctx).
			Model(&AssetTransactionLine{}).
			Select("transactions.direction AS direction, COUNT(asset_transaction_lines.id) AS lines, COALESCE(SUM(asset_transaction_lines.total_value), 0) AS value").
			Joins("JOIN transactions ON transactions.id = asset_transaction_lines.transaction_id"),
	).Group("transactions.direction").Scan(&aggs).Error
	if err != nil {
		return nil, err
	}

	for _, agg := range aggs {
		switch agg.Direction {
		case DirectionIn:
			summary.TotalInLines = agg.Lines
			summary.TotalInValue = agg.Value
		case DirectionOut:
			summary.TotalOutLines = agg.Lines
			summary.TotalOutValue = agg.Value
		}
	}
	summary.NetValue = summary.TotalInValue.Sub(summary.TotalOutValue)
	return &summary, nil
}
