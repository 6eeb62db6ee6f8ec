package models

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BranchSequence is the per-branch atomic counter behind transaction custom
// ids. The row is locked FOR UPDATE inside the posting transaction, so two
// concurrent posts for the same branch serialize on it and a rollback
// releases the reserved number: a rejected post consumes no custom id.
type BranchSequence struct {
	BranchId  int       `gorm:"primaryKey;autoIncrement:false" json:"branch_id"`
	NextNo    int64     `gorm:"not null;default:1" json:"next_no"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextTransactionNumber reserves the next custom id for the branch, in the
// external format "<branchID>-<n>". Must be called on the posting *gorm.DB
// transaction, never on the bare connection.
func NextTransactionNumber(tx *gorm.DB, branchId int) (string, int64, error) {
	seq := BranchSequence{BranchId: branchId}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ?", branchId).
		FirstOrCreate(&seq).Error
	if utils.IsDuplicateKeyErr(err) {
		// Two first posts for the branch can both miss the locking SELECT and
		// race the INSERT. MySQL does not abort the transaction on a 1062, so
		// the loser re-reads the winner's row under lock.
		seq = BranchSequence{BranchId: branchId}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("branch_id = ?", branchId).
			FirstOrCreate(&seq).Error
	}
	if err != nil {
		return "", 0, err
	}

	// A freshly created row comes back with the struct zero value; the column
	// default is 1.
	n := seq.NextNo
	if n < 1 {
		n = 1
	}

	if err := tx.Exec("UPDATE branch_sequences SET next_no = ? WHERE branch_id = ?", n+1, branchId).Error; err != nil {
		return "", 0, err
	}

	return fmt.Sprintf("%d-%d", branchId, n), n, nil
}
