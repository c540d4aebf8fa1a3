package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrUnauthorized      = errors.New("authorization failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrNotFound          = errors.New("not found")
)

type Shortfall struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// InventoryError is returned when a sale would drive stock below zero.
type InventoryError struct {
	Shortfalls []Shortfall
}

func (e *InventoryError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (available=%d requested=%d)", s.ProductID, s.Available, s.Requested))
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientStock, strings.Join(parts, ", "))
}

func (e *InventoryError) Is(target error) bool {
	return target == ErrInsufficientStock
}
