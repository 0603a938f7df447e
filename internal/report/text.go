package report

import (
	"fmt"
	"io"
	"strings"
)

const topCustomers = 5

// WriteText prints the console summary: totals, the top customers by
// value and every urgent freight entry.
func WriteText(w io.Writer, r Report) error {
	rule := strings.Repeat("=", 72)
	s := r.Summary

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "ORDER PROCESSING REPORT  run %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated %s  reference date %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"), r.ReferenceDate)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Total orders:        %d\n", s.TotalOrders)
	fmt.Fprintf(&b, "Total quantity:      %d\n", s.TotalQuantity)
	fmt.Fprintf(&b, "Total value:         %s\n", s.TotalValue.StringFixed(2))
	fmt.Fprintf(&b, "Distinct customers:  %d\n", s.DistinctCustomers)
	fmt.Fprintf(&b, "Average order value: %s\n", s.AverageOrderValue.StringFixed(2))
	fmt.Fprintf(&b, "Order period:        %s to %s\n", s.FirstOrderDate, s.LastOrderDate)
	fmt.Fprintf(&b, "Invalid rows:        %d\n", r.InvalidRows.InvalidRowCount)

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "TOP %d CUSTOMERS (by value)\n", topCustomers)
	for i, c := range r.Customers {
		if i == topCustomers {
			break
		}
		fmt.Fprintf(&b, "  %d. %-24s %12s  (%d orders)\n", i+1, c.Customer, c.TotalValue.StringFixed(2), c.OrderCount)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "URGENT FREIGHT")
	urgent := 0
	for _, e := range r.Freight {
		if !e.IsUrgent {
			continue
		}
		urgent++
		fmt.Fprintf(&b, "  #%d %s / %s  dispatch %s (%+d days)\n", e.Sequence, e.Customer, e.Product, e.MinimumDispatchDate, e.DaysUntilDispatch)
	}
	if urgent == 0 {
		fmt.Fprintln(&b, "  none")
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}
