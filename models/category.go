package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/utils"
)

type Category struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Category    string    `gorm:"size:100;not null;uniqueIndex:idx_category_subcategory,priority:1" json:"category"`
	Subcategory string    `gorm:"size:100;uniqueIndex:idx_category_subcategory,priority:2" json:"subcategory"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ResolveCategory(ctx context.Context, id int) (*Category, error) {
	category, err := utils.FetchSingleModel[Category](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("category", id)
		}
		return nil, err
	}
	return category, nil
}
