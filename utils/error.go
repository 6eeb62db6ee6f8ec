package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

var ErrorUnauthenticated = errors.New("unauthenticated")

// NotFoundError is a referential failure: the caller sent an identifier that
// does not resolve to a stored resource.
type NotFoundError struct {
	Resource string
	Id       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.Id)
}

// Is lets errors.Is(err, ErrorRecordNotFound) match typed not-founds too.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrorRecordNotFound
}

func NewNotFoundError(resource string, id int) *NotFoundError {
	return &NotFoundError{Resource: resource, Id: id}
}

// ValidationError reports bad input shape, field by field. It is raised
// before any persistence attempt; the caller must fix the input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func NewValidationError(field string, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// ConflictError is a business-rule rejection. The stored state is unchanged
// and the caller may retry once the conflict clears.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

type InsufficientStockError struct {
	AssetId   int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for asset %d: requested %d, available %d",
		e.AssetId, e.Requested, e.Available)
}

type DuplicateTransactionNumberError struct {
	TransactionNumber string
}

func (e *DuplicateTransactionNumberError) Error() string {
	return fmt.Sprintf("transaction number %q already exists", e.TransactionNumber)
}

type PermissionDeniedError struct {
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission %q denied", e.Permission)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrorRecordNotFound)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	var is *InsufficientStockError
	var dn *DuplicateTransactionNumberError
	return errors.As(err, &ce) || errors.As(err, &is) || errors.As(err, &dn)
}

func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}

// IsDuplicateKeyErr reports MySQL duplicate-entry constraint failures (1062).
// Storage integrity errors are translated into the conflict taxonomy at the
// model layer, never surfaced raw.
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
