package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation marks malformed input. Use errors.As with *ValidationError
	// to get the offending fields.
	ErrValidation = errors.New("validation failed")
	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrForbidden is returned when a referenced product belongs to another owner.
	ErrForbidden = errors.New("product does not belong to caller")
	// ErrSaleNotFound is returned by sale lookups that match nothing visible.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrIdempotencyKeyInUse is returned when an external_id was already used
	// by a different owner.
	ErrIdempotencyKeyInUse = errors.New("external_id already used by another owner")
)

// ValidationError collects per-field problems. Field names use the JSON path
// of the request (e.g. "items[1].quantity").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = reason
	}
}

// orNil returns e when at least one field was recorded.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}
