package orders

import (
	"slices"

	"github.com/golang-sql/civil"
)

const (
	DefaultLeadTimeDays      = 3
	DefaultUrgencyWindowDays = 2
)

// Params carries the freight derivation settings for one run.
type Params struct {
	LeadTimeDays      int        `json:"leadTimeDays"`
	UrgencyWindowDays int        `json:"urgencyWindowDays"`
	ReferenceDate     civil.Date `json:"referenceDate"`
}

// DefaultParams returns the default lead time and urgency window against ref.
func DefaultParams(ref civil.Date) Params {
	return Params{
		LeadTimeDays:      DefaultLeadTimeDays,
		UrgencyWindowDays: DefaultUrgencyWindowDays,
		ReferenceDate:     ref,
	}
}

// Validate rejects negative day counts and a missing reference date.
func (p Params) Validate() error {
	if p.LeadTimeDays < 0 {
		return &ConfigError{Field: "lead_time_days", Value: p.LeadTimeDays, Reason: "must not be negative"}
	}
	if p.UrgencyWindowDays < 0 {
		return &ConfigError{Field: "urgency_window_days", Value: p.UrgencyWindowDays, Reason: "must not be negative"}
	}
	if !p.ReferenceDate.IsValid() {
		return &ConfigError{Field: "reference_date", Value: p.ReferenceDate, Reason: "must be a calendar date"}
	}
	return nil
}

// DispatchDate returns the earliest dispatch date for an order placed on d.
func (p Params) DispatchDate(d civil.Date) civil.Date {
	return d.AddDays(p.LeadTimeDays)
}

// BuildFreightQueue derives one freight entry per record, sorted by minimum
// dispatch date. Entries sharing a date keep their input order.
func BuildFreightQueue(ds Dataset, p Params) ([]FreightEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	queue := make([]FreightEntry, 0, len(ds))
	for _, rec := range ds {
		dispatch := p.DispatchDate(rec.OrderDate)
		days := dispatch.DaysSince(p.ReferenceDate)
		queue = append(queue, FreightEntry{
			Row:                 rec.Row,
			Customer:            rec.Customer,
			Product:             rec.Product,
			OrderDate:           rec.OrderDate,
			MinimumDispatchDate: dispatch,
			Quantity:            rec.Quantity,
			Value:               rec.Value(),
			DaysUntilDispatch:   days,
			IsUrgent:            days <= p.UrgencyWindowDays,
		})
	}

	slices.SortStableFunc(queue, func(a, b FreightEntry) int {
		return compareDates(a.MinimumDispatchDate, b.MinimumDispatchDate)
	})
	for i := range queue {
		queue[i].Sequence = i + 1
	}
	return queue, nil
}

// CountUrgent returns how many entries are flagged urgent.
func CountUrgent(queue []FreightEntry) int {
	n := 0
	for _, f := range queue {
		if f.IsUrgent {
			n++
		}
	}
	return n
}

// Urgent returns the urgent entries in queue order.
func Urgent(queue []FreightEntry) []FreightEntry {
	out := make([]FreightEntry, 0)
	for _, f := range queue {
		if f.IsUrgent {
			out = append(out, f)
		}
	}
	return out
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
