package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Direction is the header-level movement direction. Every line of a
// transaction shares it: IN adds to on-hand stock, OUT removes from it.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

func ParseDirection(value string) (Direction, error) {
	d := Direction(value)
	if !d.Valid() {
		return "", fmt.Errorf("invalid direction %q", value)
	}
	return d, nil
}

func (d *Direction) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*d = Direction(v)
	case string:
		*d = Direction(v)
	default:
		return errors.New("direction must be string")
	}
	if !d.Valid() {
		return fmt.Errorf("invalid direction %q", string(*d))
	}
	return nil
}

func (d Direction) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %q", string(d))
	}
	return string(d), nil
}

// Permission names match the user table's flag columns.
const (
	PermissionReadAsset         = "can_read_asset"
	PermissionEditAsset         = "can_edit_asset"
	PermissionDeleteAsset       = "can_delete_asset"
	PermissionMakeTransaction   = "can_make_transaction"
	PermissionDeleteTransaction = "can_delete_transaction"
	PermissionMakeReport        = "can_make_report"
)
