package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderrpa/internal/orders"
)

const (
	KindAlert  = "alert"
	KindReport = "report"
)

// Message is one outbound notification. Attachment is a local file path.
type Message struct {
	Kind        string    `json:"kind"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Attachment  string    `json:"attachment,omitempty"`
	RunID       string    `json:"runId"`
	UrgentCount int       `json:"urgentCount,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi delivers to every notifier even when some fail.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildAlert composes the urgent-freight alert for management.
func BuildAlert(runID string, urgent []orders.FreightEntry, to string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d freight orders need immediate attention.\n\n", len(urgent))
	for _, e := range urgent {
		fmt.Fprintf(&b, "#%d %s / %s: qty %d, value %s, dispatch %s (%+d days)\n",
			e.Sequence, e.Customer, e.Product, e.Quantity, e.Value.StringFixed(2), e.MinimumDispatchDate, e.DaysUntilDispatch)
	}
	fmt.Fprintf(&b, "\nRun %s\n", runID)
	return Message{
		Kind:        KindAlert,
		To:          to,
		Subject:     fmt.Sprintf("ALERT: %d urgent freight orders", len(urgent)),
		Body:        b.String(),
		RunID:       runID,
		UrgentCount: len(urgent),
	}
}

// BuildReportMail composes the report delivery with the workbook attached.
func BuildReportMail(runID string, s orders.ExecutiveSummary, reportPath, to string) Message {
	var b strings.Builder
	fmt.Fprintln(&b, "Order processing report attached.")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Total orders: %d\n", s.TotalOrders)
	fmt.Fprintf(&b, "Total value: %s\n", s.TotalValue.StringFixed(2))
	fmt.Fprintf(&b, "Customers: %d\n", s.DistinctCustomers)
	fmt.Fprintf(&b, "Average order value: %s\n", s.AverageOrderValue.StringFixed(2))
	fmt.Fprintf(&b, "\nRun %s\n", runID)
	return Message{
		Kind:       KindReport,
		To:         to,
		Subject:    fmt.Sprintf("Order processing report %s", runID),
		Body:       b.String(),
		Attachment: reportPath,
		RunID:      runID,
	}
}
