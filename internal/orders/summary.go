package orders

import "github.com/shopspring/decimal"

// Summarize computes the global totals of a dataset. An empty dataset yields
// a zero summary.
func Summarize(ds Dataset) ExecutiveSummary {
	s := ExecutiveSummary{
		TotalValue:        decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	if len(ds) == 0 {
		return s
	}

	customers := make(map[string]struct{})
	s.FirstOrderDate = ds[0].OrderDate
	s.LastOrderDate = ds[0].OrderDate
	for _, rec := range ds {
		s.TotalOrders++
		s.TotalQuantity += rec.Quantity
		s.TotalValue = s.TotalValue.Add(rec.Value())
		customers[rec.Customer] = struct{}{}
		if rec.OrderDate.Before(s.FirstOrderDate) {
			s.FirstOrderDate = rec.OrderDate
		}
		if rec.OrderDate.After(s.LastOrderDate) {
			s.LastOrderDate = rec.OrderDate
		}
	}
	s.DistinctCustomers = len(customers)
	s.AverageOrderValue = s.TotalValue.DivRound(decimal.NewFromInt(int64(s.TotalOrders)), 2)
	return s
}
