package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/utils"
)

type Branch struct {
	ID         int         `gorm:"primary_key" json:"id"`
	NameEn     string      `gorm:"size:255;not null" json:"name_en"`
	NameAr     string      `gorm:"size:255;not null" json:"name_ar"`
	AddressEn  string      `gorm:"size:500" json:"address_en"`
	AddressAr  string      `gorm:"size:500" json:"address_ar"`
	Warehouses []Warehouse `gorm:"foreignKey:BranchId" json:"warehouses,omitempty"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveBranch looks up a branch by id. Branch management is handled by seed
// tooling; the ledger only needs the lookup.
func ResolveBranch(ctx context.Context, id int) (*Branch, error) {
	branch, err := utils.FetchSingleModel[Branch](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("branch", id)
		}
		return nil, err
	}
	return branch, nil
}
