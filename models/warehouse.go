package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/utils"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  int       `gorm:"index;not null" json:"branch_id"`
	Branch    *Branch   `json:"branch,omitempty"`
	NameEn    string    `gorm:"size:255;not null" json:"name_en"`
	NameAr    string    `gorm:"size:255;not null" json:"name_ar"`
	AddressEn string    `gorm:"size:500" json:"address_en"`
	AddressAr string    `gorm:"size:500" json:"address_ar"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveWarehouse looks up a warehouse by id. The transaction orchestrator
// derives the owning branch from the returned BranchId.
func ResolveWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	warehouse, err := utils.FetchSingleModel[Warehouse](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("warehouse", id)
		}
		return nil, err
	}
	return warehouse, nil
}
