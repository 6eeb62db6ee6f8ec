package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetForUpdate loads one asset row under SELECT ... FOR UPDATE. Concurrent
// movements on the same asset serialize here; movements on other assets are
// not blocked.
func AssetForUpdate(tx *gorm.DB, assetId int) (*models.FixedAsset, error) {
	var asset models.FixedAsset
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&asset, assetId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("asset", assetId)
		}
		return nil, err
	}
	return &asset, nil
}

// LockAssetsForUpdate locks a batch of asset rows in ascending id order so
// concurrent multi-line posts cannot deadlock on each other. Every requested
// id must resolve; a missing asset fails the whole batch.
func LockAssetsForUpdate(tx *gorm.DB, assetIds []int) (map[int]*models.FixedAsset, error) {
	ids := utils.UniqueSlice(assetIds)
	sort.Ints(ids)

	locked := make(map[int]*models.FixedAsset, len(ids))
	for _, id := range ids {
		asset, err := AssetForUpdate(tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = asset
	}
	return locked, nil
}

// AdjustAssetQuantity applies a signed delta (+qty for IN, -qty for OUT) with
// a relative UPDATE. Callers must hold the row lock and have validated the
// whole batch first.
func AdjustAssetQuantity(tx *gorm.DB, assetId int, delta int) error {
	return tx.Exec("UPDATE fixed_assets SET quantity = quantity + ? WHERE id = ?", delta, assetId).Error
}
