package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/utils"
)

type User struct {
	ID           int    `gorm:"primary_key" json:"id"`
	Username     string `gorm:"size:100;not null;unique" json:"username"`
	FullName     string `gorm:"size:255;not null" json:"full_name"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         string `gorm:"size:100;not null" json:"role"`
	IsActive     *bool  `gorm:"not null;default:true" json:"is_active"`

	// Permission flags, copied from the job role at creation time.
	CanReadAsset         bool `gorm:"not null;default:false" json:"can_read_asset"`
	CanEditAsset         bool `gorm:"not null;default:false" json:"can_edit_asset"`
	CanDeleteAsset       bool `gorm:"not null;default:false" json:"can_delete_asset"`
	CanMakeTransaction   bool `gorm:"not null;default:false" json:"can_make_transaction"`
	CanDeleteTransaction bool `gorm:"not null;default:false" json:"can_delete_transaction"`
	CanMakeReport        bool `gorm:"not null;default:false" json:"can_make_report"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

/*
caches:
	User:$id
*/

func (user User) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[User](user.ID)
}

func (user *User) HasPermission(permission string) (bool, error) {
	switch permission {
	case PermissionReadAsset:
		return user.CanReadAsset, nil
	case PermissionEditAsset:
		return user.CanEditAsset, nil
	case PermissionDeleteAsset:
		return user.CanDeleteAsset, nil
	case PermissionMakeTransaction:
		return user.CanMakeTransaction, nil
	case PermissionDeleteTransaction:
		return user.CanDeleteTransaction, nil
	case PermissionMakeReport:
		return user.CanMakeReport, nil
	}
	return false, fmt.Errorf("unknown permission %q", permission)
}

func ResolveUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchSingleModel[User](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError("user", id)
		}
		return nil, err
	}
	return user, nil
}

// resolveUserCached serves permission checks from Redis when available; a
// cache miss or Redis outage falls through to the DB.
func resolveUserCached(ctx context.Context, id int) (*User, error) {
	if cached, err := utils.RetrieveRedis[User](id); err == nil && cached != nil {
		return cached, nil
	}
	user, err := ResolveUser(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[User](user, user.ID)
	return user, nil
}

// CheckPermission authorizes the calling user (from context) for the named
// permission. Inactive users are denied everything.
func CheckPermission(ctx context.Context, permission string) error {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return utils.ErrorUnauthenticated
	}
	user, err := resolveUserCached(ctx, userId)
	if err != nil {
		return err
	}
	if user.IsActive != nil && !*user.IsActive {
		return &utils.PermissionDeniedError{Permission: permission}
	}
	allowed, err := user.HasPermission(permission)
	if err != nil {
		return err
	}
	if !allowed {
		return &utils.PermissionDeniedError{Permission: permission}
	}
	return nil
}
