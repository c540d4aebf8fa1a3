// Package metrics turns a date-filtered transaction set into the financial
// snapshot shown on the reports screen. Everything here is pure.
package metrics

import (
	"log"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/daterange"
	"salonpos/backend/internal/domain"
)

// Calculate parses the range and delegates to Compute. An unparseable range
// excludes every expense and credit but still reports the given sales.
func Calculate(filteredSales []domain.Sale, products []domain.Product, expenses []domain.Expense, credits []domain.Credit, startDate string, endDate string, loc *time.Location) domain.FinancialMetrics {
	r, err := daterange.Parse(startDate, endDate, loc)
	if err != nil {
		log.Printf("[metrics] WARN: invalid range start=%q end=%q, expenses and credits excluded: %v", startDate, endDate, err)
		return Compute(filteredSales, products, nil, nil, daterange.Range{})
	}
	return Compute(filteredSales, products, expenses, credits, r)
}

// Compute builds the snapshot. filteredSales is expected to already be
// restricted to active sales in r; expenses and credits are filtered here.
func Compute(filteredSales []domain.Sale, products []domain.Product, expenses []domain.Expense, credits []domain.Credit, r daterange.Range) domain.FinancialMetrics {
	m := zero()
	m.InventoryCost = InventoryCost(products)

	if len(filteredSales) == 0 {
		return m
	}

	for _, sale := range filteredSales {
		m.TotalSales = m.TotalSales.Add(sale.Total)
		for _, item := range sale.Products {
			m.CostOfSales = m.CostOfSales.Add(item.Cost())
		}

		switch sale.PaymentMethod {
		case domain.PaymentCash:
			m.CashPayments = m.CashPayments.Add(sale.Total)
		case domain.PaymentCard:
			m.CardPayments = m.CardPayments.Add(sale.Total)
		case domain.PaymentTransfer:
			m.TransferPayments = m.TransferPayments.Add(sale.Total)
		}
	}

	if len(expenses) > 0 {
		for _, expense := range daterange.Expenses(expenses, r) {
			m.TotalExpenses = m.TotalExpenses.Add(expense.Amount)
		}
	}

	if len(credits) > 0 {
		c := Amortize(daterange.Credits(credits, r))
		m.CreditTotal = c.Total
		m.CreditPaid = c.Paid
		m.CreditPending = c.Pending
		m.CreditProfit = c.Profit
	}

	m.NetProfit = m.TotalSales.Sub(m.CostOfSales).Sub(m.TotalExpenses)
	m.TotalProfit = m.NetProfit.Add(m.CreditProfit)
	m.CashBalance = m.TotalSales.Sub(m.TotalExpenses)

	return m
}

// InventoryCost values current stock at cost, independent of any date range.
func InventoryCost(products []domain.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.CostPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total
}

func zero() domain.FinancialMetrics {
	return domain.FinancialMetrics{
		InventoryCost:    decimal.Zero,
		TotalSales:       decimal.Zero,
		TotalExpenses:    decimal.Zero,
		CostOfSales:      decimal.Zero,
		NetProfit:        decimal.Zero,
		CashBalance:      decimal.Zero,
		TotalProfit:      decimal.Zero,
		CashPayments:     decimal.Zero,
		CardPayments:     decimal.Zero,
		TransferPayments: decimal.Zero,
		CreditTotal:      decimal.Zero,
		CreditPaid:       decimal.Zero,
		CreditPending:    decimal.Zero,
		CreditProfit:     decimal.Zero,
	}
}
