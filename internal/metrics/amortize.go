package metrics

import (
	"log"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
)

type CreditSummary struct {
	Total   decimal.Decimal
	Paid    decimal.Decimal
	Pending decimal.Decimal
	Profit  decimal.Decimal
}

// Amortize recognises credit profit in proportion to what has been paid:
// realized = (finalPrice - originalPrice) × paid / finalPrice.
// Overpayment is not capped. A credit with finalPrice <= 0 counts as fully
// unpaid for profit purposes.
func Amortize(credits []domain.Credit) CreditSummary {
	sum := CreditSummary{
		Total:   decimal.Zero,
		Paid:    decimal.Zero,
		Pending: decimal.Zero,
		Profit:  decimal.Zero,
	}

	for _, credit := range credits {
		paid := credit.TotalPaid()
		sum.Total = sum.Total.Add(credit.FinalPrice)
		sum.Paid = sum.Paid.Add(paid)
		sum.Pending = sum.Pending.Add(credit.FinalPrice.Sub(paid))
		sum.Profit = sum.Profit.Add(RealizedProfit(credit.OriginalPrice, credit.FinalPrice, paid))
	}

	return sum
}

func RealizedProfit(originalPrice, finalPrice, paid decimal.Decimal) decimal.Decimal {
	if !finalPrice.IsPositive() {
		if !paid.IsZero() {
			log.Printf("[metrics] WARN: credit with non-positive final price %s has payments %s; profit treated as zero", finalPrice, paid)
		}
		return decimal.Zero
	}
	return finalPrice.Sub(originalPrice).Mul(paid).Div(finalPrice)
}
