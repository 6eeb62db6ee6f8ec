package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func lineField(index int) string {
	return fmt.Sprintf("lines[%d]", index)
}

func validateNewTransaction(ctx context.Context, input *models.NewAssetTransaction) (time.Time, models.Direction, error) {
	date, err := models.ParseDateString("date", input.Date)
	if err != nil {
		return time.Time{}, "", err
	}
	direction, err := models.ParseDirection(input.Direction)
	if err != nil {
		return time.Time{}, "", utils.NewValidationError("direction", "must be IN or OUT")
	}
	if len(input.Lines) == 0 {
		return time.Time{}, "", utils.NewValidationError("lines", "at least one line is required")
	}
	for i, line := range input.Lines {
		if err := ValidateLineInput(lineField(i), line.Quantity, line.UnitAmount); err != nil {
			return time.Time{}, "", err
		}
		// Deactivated assets accept no new movements; reversals of already
		// posted lines are unaffected.
		if _, err := models.ResolveActiveAsset(ctx, line.AssetId); err != nil {
			return time.Time{}, "", err
		}
	}
	return date, direction, nil
}

// translateCreateErr maps the unique-constraint backstop on custom_id /
// (branch_id, sequence_no) into the conflict taxonomy.
func translateCreateErr(err error, customId string) error {
	if utils.IsDuplicateKeyErr(err) {
		return &utils.DuplicateTransactionNumberError{TransactionNumber: customId}
	}
	return err
}

// lockTransaction loads a header (with lines) under FOR UPDATE so concurrent
// edits of the same transaction serialize.
func lockTransaction(tx *gorm.DB, id int) (*models.Transaction, error) {
	var txn models.Transaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Lines").
		First(&txn, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("transaction", id)
		}
		return nil, err
	}
	return &txn, nil
}

// lockLineWithHeader locks the owning header first, then the line row, so
// line-level and transaction-level operations always take locks in the same
// order.
func lockLineWithHeader(tx *gorm.DB, lineId int) (*models.AssetTransactionLine, *models.Transaction, error) {
	var ref models.AssetTransactionLine
	if err := tx.Select("id", "transaction_id").First(&ref, lineId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, utils.NewNotFoundError("transaction line", lineId)
		}
		return nil, nil, err
	}
	txn, err := lockTransaction(tx, ref.TransactionId)
	if err != nil {
		return nil, nil, err
	}
	var line models.AssetTransactionLine
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&line, lineId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, utils.NewNotFoundError("transaction line", lineId)
		}
		return nil, nil, err
	}
	return &line, txn, nil
}

// CreateAssetTransaction posts a new movement: all lines validated
// cumulatively against row-locked assets, custom id stamped from the branch
// counter, header and lines persisted, quantities adjusted. Fully commits or
// fully rolls back; a rejected post consumes no custom id.
func CreateAssetTransaction(ctx context.Context, input *models.NewAssetTransaction) (*models.Transaction, error) {
	date, direction, err := validateNewTransaction(ctx, input)
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	var created models.Transaction
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var warehouse models.Warehouse
		if err := tx.First(&warehouse, input.WarehouseId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.NewNotFoundError("warehouse", input.WarehouseId)
			}
			return err
		}

		set := NewDeltaSet()
		for _, line := range input.Lines {
			set.Add(line.AssetId, ApplyDelta(line.Quantity, direction))
		}
		if err := ApplyDeltaSet(tx, set); err != nil {
			return err
		}

		// Stamp the header last so the branch counter row is held for the
		// shortest possible time.
		customId, seqNo, err := models.NextTransactionNumber(tx, warehouse.BranchId)
		if err != nil {
			return err
		}

		created = models.Transaction{
			CustomId:        customId,
			BranchId:        warehouse.BranchId,
			SequenceNo:      seqNo,
			Date:            date,
			Description:     input.Description,
			ReferenceNumber: input.ReferenceNumber,
			AttachedFile:    input.AttachedFile,
			WarehouseId:     warehouse.ID,
			UserId:          userId,
			Direction:       direction,
		}
		for _, line := range input.Lines {
			l := models.AssetTransactionLine{
				AssetId:    line.AssetId,
				Quantity:   line.Quantity,
				UnitAmount: line.UnitAmount,
			}
			l.ComputeTotalValue()
			created.Lines = append(created.Lines, l)
		}
		if err := tx.Create(&created).Error; err != nil {
			return translateCreateErr(err, customId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetAssetTransaction(ctx, created.ID)
}

// UpdateAssetTransaction patches header fields. A direction change reverses
// every line under the old direction and reapplies under the new one, stock
// checked, inside the same DB transaction. Any failure restores the exact
// pre-update state.
func UpdateAssetTransaction(ctx context.Context, id int, input *models.UpdateAssetTransactionInput) (*models.Transaction, error) {
	if input.CustomId != nil {
		return nil, utils.NewValidationError("custom_id", "is immutable")
	}
	var date *time.Time
	if input.Date != nil {
		d, err := models.ParseDateString("date", *input.Date)
		if err != nil {
			return nil, err
		}
		date = &d
	}
	var newDirection *models.Direction
	if input.Direction != nil {
		d, err := models.ParseDirection(*input.Direction)
		if err != nil {
			return nil, utils.NewValidationError("direction", "must be IN or OUT")
		}
		newDirection = &d
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := lockTransaction(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if date != nil {
			updates["date"] = *date
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.ReferenceNumber != nil {
			updates["reference_number"] = *input.ReferenceNumber
		}
		if input.AttachedFile != nil {
			updates["attached_file"] = *input.AttachedFile
		}

		if input.WarehouseId != nil && *input.WarehouseId != txn.WarehouseId {
			var warehouse models.Warehouse
			if err := tx.First(&warehouse, *input.WarehouseId).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return utils.NewNotFoundError("warehouse", *input.WarehouseId)
				}
				return err
			}
			// The custom id is branch-scoped and immutable, so a transaction
			// cannot move to a warehouse owned by another branch.
			if warehouse.BranchId != txn.BranchId {
				return &utils.ConflictError{Reason: "cannot move a transaction to a warehouse on another branch"}
			}
			updates["warehouse_id"] = warehouse.ID
		}

		if newDirection != nil && *newDirection != txn.Direction {
			set := NewDeltaSet()
			for _, line := range txn.Lines {
				set.Add(line.AssetId, ReversalDelta(line.Quantity, txn.Direction))
				set.Add(line.AssetId, ApplyDelta(line.Quantity, *newDirection))
			}
			if err := ApplyDeltaSet(tx, set); err != nil {
				return err
			}
			updates["direction"] = *newDirection
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Transaction{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return models.GetAssetTransaction(ctx, id)
}

// DeleteAssetTransaction reverses every line's quantity effect, then removes
// the lines and the header, all in one DB transaction. Sequence numbers are
// never reclaimed.
func DeleteAssetTransaction(ctx context.Context, id int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := lockTransaction(tx, id)
		if err != nil {
			return err
		}
		if err := ReverseTransactionLines(tx, txn.Lines, txn.Direction); err != nil {
			return err
		}
		if err := tx.Where("transaction_id = ?", id).Delete(&models.AssetTransactionLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Transaction{}, id).Error
	})
}

// AddTransactionLine appends a movement line to an existing transaction under
// the header's direction, adjusting stock atomically.
func AddTransactionLine(ctx context.Context, transactionId int, input *models.NewAssetTransactionLine) (*models.AssetTransactionLine, error) {
	if err := ValidateLineInput("line", input.Quantity, input.UnitAmount); err != nil {
		return nil, err
	}
	if _, err := models.ResolveActiveAsset(ctx, input.AssetId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var created models.AssetTransactionLine
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := lockTransaction(tx, transactionId)
		if err != nil {
			return err
		}

		set := NewDeltaSet()
		set.Add(input.AssetId, ApplyDelta(input.Quantity, txn.Direction))
		if err := ApplyDeltaSet(tx, set); err != nil {
			return err
		}

		created = models.AssetTransactionLine{
			TransactionId: txn.ID,
			AssetId:       input.AssetId,
			Quantity:      input.Quantity,
			UnitAmount:    input.UnitAmount,
		}
		created.ComputeTotalValue()
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}
	return models.GetTransactionLine(ctx, created.ID)
}

// UpdateTransactionLine reverses the line's currently-applied effect, then
// validates and applies the patched effect against the reversed state. Asset
// changes restore the old asset and charge the new one. Failure restores the
// pre-call state exactly.
func UpdateTransactionLine(ctx context.Context, lineId int, input *models.UpdateAssetTransactionLineInput) (*models.AssetTransactionLine, error) {
	if input.Quantity != nil && *input.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity", "must be greater than zero")
	}
	if input.UnitAmount != nil && input.UnitAmount.IsNegative() {
		return nil, utils.NewValidationError("unit_amount", "must not be negative")
	}
	if input.AssetId != nil {
		if _, err := models.ResolveActiveAsset(ctx, *input.AssetId); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	var lineIdAfter int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock order: header first, then the line, matching the
		// transaction-level operations.
		line, txn, err := lockLineWithHeader(tx, lineId)
		if err != nil {
			return err
		}

		newAssetId := line.AssetId
		if input.AssetId != nil {
			newAssetId = *input.AssetId
		}
		newQuantity := line.Quantity
		if input.Quantity != nil {
			newQuantity = *input.Quantity
		}

		set := NewDeltaSet()
		set.Add(line.AssetId, ReversalDelta(line.Quantity, txn.Direction))
		set.Add(newAssetId, ApplyDelta(newQuantity, txn.Direction))
		if err := ApplyDeltaSet(tx, set); err != nil {
			return err
		}

		line.AssetId = newAssetId
		line.Quantity = newQuantity
		if input.UnitAmount != nil {
			line.UnitAmount = input.UnitAmount
		}
		line.ComputeTotalValue()
		lineIdAfter = line.ID
		return tx.Save(line).Error
	})
	if err != nil {
		return nil, err
	}
	return models.GetTransactionLine(ctx, lineIdAfter)
}

// DeleteTransactionLine reverses the line's quantity effect and removes it.
func DeleteTransactionLine(ctx context.Context, lineId int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, txn, err := lockLineWithHeader(tx, lineId)
		if err != nil {
			return err
		}
		if err := ReverseTransactionLines(tx, []models.AssetTransactionLine{*line}, txn.Direction); err != nil {
			return err
		}
		return tx.Delete(&models.AssetTransactionLine{}, lineId).Error
	})
}
