package orders

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// AggregateByCustomer groups records by exact customer name. The result is
// ordered by total value descending, then customer name ascending.
func AggregateByCustomer(ds Dataset) []CustomerTotal {
	out := make([]CustomerTotal, 0)
	index := make(map[string]int)
	for _, rec := range ds {
		i, ok := index[rec.Customer]
		if !ok {
			i = len(out)
			index[rec.Customer] = i
			out = append(out, CustomerTotal{
				Customer:       rec.Customer,
				TotalValue:     decimal.Zero,
				FirstOrderDate: rec.OrderDate,
			})
		}
		ct := &out[i]
		ct.TotalQuantity += rec.Quantity
		ct.TotalValue = ct.TotalValue.Add(rec.Value())
		ct.OrderCount++
		if rec.OrderDate.Before(ct.FirstOrderDate) {
			ct.FirstOrderDate = rec.OrderDate
		}
	}

	slices.SortFunc(out, func(a, b CustomerTotal) int {
		if c := b.TotalValue.Cmp(a.TotalValue); c != 0 {
			return c
		}
		return strings.Compare(a.Customer, b.Customer)
	})
	return out
}
