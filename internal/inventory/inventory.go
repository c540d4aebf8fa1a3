// Package inventory applies signed stock deltas to a product catalog.
package inventory

import (
	"fmt"
	"log"
	"strings"

	"salonpos/backend/internal/domain"
)

// Policy decides what happens when a delta would push stock below zero.
type Policy string

const (
	// PolicyReject fails the whole adjustment with *domain.InventoryError.
	PolicyReject Policy = "reject"
	// PolicyClamp floors the quantity at zero and reports the shortfall. Stock
	// that is already negative is left where it is.
	PolicyClamp Policy = "clamp"
	// PolicyAllowNegative keeps the negative quantity and reports the shortfall.
	PolicyAllowNegative Policy = "allow_negative"
)

func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicyReject, nil
	case PolicyReject, PolicyClamp, PolicyAllowNegative:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown stock policy %q", domain.ErrValidation, raw)
	}
}

type Delta struct {
	ProductID string
	Delta     int
}

// Adjustment is the result of ApplyDeltas. Shortfalls is only populated under
// the clamp and allow-negative policies.
type Adjustment struct {
	Products   []domain.Product
	Shortfalls []domain.Shortfall
	// Applied holds, per input delta, the change that actually reached the
	// catalog. It differs from the requested delta when clamping or skipping.
	Applied []int
	// Skipped lists delta product ids that matched nothing in the catalog.
	Skipped []string
}

type Adjuster struct {
	policy Policy
}

func NewAdjuster(policy Policy) *Adjuster {
	if policy == "" {
		policy = PolicyReject
	}
	return &Adjuster{policy: policy}
}

// ApplyDeltas returns an updated copy of products; the input is not modified.
// Deltas for unknown products are skipped so that a line item pointing at a
// deleted product does not block the rest of the adjustment.
func (a *Adjuster) ApplyDeltas(products []domain.Product, deltas []Delta) (Adjustment, error) {
	updated := make([]domain.Product, len(products))
	copy(updated, products)

	index := make(map[string]int, len(updated))
	for i, p := range updated {
		index[p.ID] = i
	}

	result := Adjustment{Applied: make([]int, len(deltas))}
	for n, d := range deltas {
		i, ok := index[d.ProductID]
		if !ok {
			log.Printf("[inventory] WARN: skipping delta for unknown product id=%s delta=%d", d.ProductID, d.Delta)
			result.Skipped = append(result.Skipped, d.ProductID)
			continue
		}

		current := updated[i].Quantity
		next := current + d.Delta
		// Only a decrement can oversell. Restocking a product that is already
		// negative always goes through.
		if d.Delta < 0 && next < 0 {
			shortfall := domain.Shortfall{ProductID: d.ProductID, Available: current, Requested: -d.Delta}
			result.Shortfalls = append(result.Shortfalls, shortfall)
			switch a.policy {
			case PolicyClamp:
				log.Printf("[inventory] WARN: clamping stock at zero product=%s available=%d requested=%d", d.ProductID, current, -d.Delta)
				next = max(current, 0)
			case PolicyAllowNegative:
				log.Printf("[inventory] WARN: stock going negative product=%s quantity=%d", d.ProductID, next)
			}
		}
		updated[i].Quantity = next
		result.Applied[n] = next - current
	}

	if a.policy == PolicyReject && len(result.Shortfalls) > 0 {
		return Adjustment{}, &domain.InventoryError{Shortfalls: result.Shortfalls}
	}

	result.Products = updated
	return result, nil
}

// SaleDeltas converts line items into deltas with the given sign (-1 when
// selling, +1 when returning stock).
func SaleDeltas(items []domain.LineItem, sign int) []Delta {
	deltas := make([]Delta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, Delta{ProductID: item.ID, Delta: sign * item.Quantity})
	}
	return deltas
}

// RestockDeltas gives back only what a sale actually took from stock, so a
// cancellation lands on the pre-sale quantities even after a clamped sale.
func RestockDeltas(items []domain.LineItem) []Delta {
	deltas := make([]Delta, 0, len(items))
	for _, item := range items {
		taken := item.Quantity - item.Unstocked
		if taken < 0 {
			taken = 0
		}
		deltas = append(deltas, Delta{ProductID: item.ID, Delta: taken})
	}
	return deltas
}
