package workflow

import (
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ApplyDelta is the signed quantity a line contributes to its asset when
// applied under the given direction.
func ApplyDelta(quantity int, direction models.Direction) int {
	if direction == models.DirectionIn {
		return quantity
	}
	return -quantity
}

// ReversalDelta is the signed quantity that undoes a line previously applied
// under the given direction. Update and delete share this single source of
// truth for "undo".
func ReversalDelta(quantity int, direction models.Direction) int {
	return -ApplyDelta(quantity, direction)
}

// ReverseTransactionLines undoes the quantity effect of every line, applied
// as one atomic batch (rows locked in ascending asset-id order).
func ReverseTransactionLines(tx *gorm.DB, lines []models.AssetTransactionLine, direction models.Direction) error {
	ctx := tx.Statement.Context
	ctx, span := tracer.Start(ctx, "ReverseTransactionLines")
	defer span.End()
	span.SetAttributes(attribute.Int("lines", len(lines)))

	set := NewDeltaSet()
	for _, line := range lines {
		set.Add(line.AssetId, ReversalDelta(line.Quantity, direction))
	}
	return ApplyDeltaSet(tx.WithContext(ctx), set)
}
