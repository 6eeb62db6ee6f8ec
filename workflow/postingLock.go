package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireBranchPostingLock fences bulk maintenance (quantity rebuild) from
// live posting for one branch using a MySQL advisory lock. The request path
// relies on row locks only and never takes this.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the maintenance transaction.
func AcquireBranchPostingLock(tx *gorm.DB, branchId int) error {
	lockName := fmt.Sprintf("posting:branch:%d", branchId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for branch_id=%d", branchId)
	}
	return nil
}

func ReleaseBranchPostingLock(tx *gorm.DB, branchId int) {
	lockName := fmt.Sprintf("posting:branch:%d", branchId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
