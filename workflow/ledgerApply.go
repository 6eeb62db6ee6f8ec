package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("assets_backend/workflow")

// DeltaSet is the working set of per-asset signed quantity deltas for one
// atomic batch. Two lines referencing the same asset accumulate into a single
// cumulative delta, so sufficiency is checked against the combined effect
// before any persisted mutation.
type DeltaSet struct {
	deltas map[int]int
}

func NewDeltaSet() *DeltaSet {
	return &DeltaSet{deltas: make(map[int]int)}
}

func (s *DeltaSet) Add(assetId int, delta int) {
	s.deltas[assetId] += delta
}

func (s *DeltaSet) Delta(assetId int) int {
	return s.deltas[assetId]
}

// AssetIds returns the touched asset ids in ascending order, the locking
// order for the batch.
func (s *DeltaSet) AssetIds() []int {
	ids := make([]int, 0, len(s.deltas))
	for id := range s.deltas {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ValidateLineInput is the DB-free shape check for one movement line:
// quantity must be positive, unit amount (when present) non-negative.
func ValidateLineInput(field string, quantity int, unitAmount *decimal.Decimal) error {
	if quantity <= 0 {
		return utils.NewValidationError(field+".quantity", "must be greater than zero")
	}
	if unitAmount != nil && unitAmount.IsNegative() {
		return utils.NewValidationError(field+".unit_amount", "must not be negative")
	}
	return nil
}

// CheckSufficient rejects a cumulative delta the locked asset row cannot
// absorb without going negative.
func CheckSufficient(asset *models.FixedAsset, delta int) error {
	if asset.Quantity+delta < 0 {
		return &utils.InsufficientStockError{
			AssetId:   asset.ID,
			Requested: -delta,
			Available: asset.Quantity,
		}
	}
	return nil
}

// ApplyDeltaSet locks every touched asset, validates all cumulative deltas
// against the locked rows, then applies them. All-or-nothing: the first
// failure returns before any quantity is written, and the surrounding DB
// transaction rolls the lot back.
func ApplyDeltaSet(tx *gorm.DB, set *DeltaSet) error {
	ids := set.AssetIds()
	if len(ids) == 0 {
		return nil
	}

	ctx := tx.Statement.Context
	ctx, span := tracer.Start(ctx, "ApplyDeltaSet")
	defer span.End()
	span.SetAttributes(attribute.Int("assets", len(ids)))
	tx = tx.WithContext(ctx)

	locked, err := LockAssetsForUpdate(tx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := CheckSufficient(locked[id], set.Delta(id)); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if delta := set.Delta(id); delta != 0 {
			if err := AdjustAssetQuantity(tx, id, delta); err != nil {
				return err
			}
		}
	}
	return nil
}
