package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/utils"
)

// FixedAsset carries a mutable on-hand Quantity that is owned exclusively by
// the ledger: the only writers are the workflow apply/reverse operations and
// the offline quantity-rebuild tool. Nothing assigns Quantity directly.
type FixedAsset struct {
	ID          int       `gorm:"primary_key" json:"id"`
	NameEn      string    `gorm:"size:255;not null" json:"name_en"`
	NameAr      string    `gorm:"size:255" json:"name_ar"`
	ProductCode *string   `gorm:"size:100;unique" json:"product_code"`
	CategoryId  int       `gorm:"not null;index" json:"category_id"`
	Category    *Category `json:"category,omitempty"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ResolveAsset(ctx context.Context, id int) (*FixedAsset, error) {
	asset, err := utils.FetchSingleModel[FixedAsset](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("asset", id)
		}
		return nil, err
	}
	return asset, nil
}

func ResolveActiveAsset(ctx context.Context, id int) (*FixedAsset, error) {
	asset, err := ResolveAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.IsActive != nil && !*asset.IsActive {
		return nil, utils.NewNotFoundError("asset", id)
	}
	return asset, nil
}
