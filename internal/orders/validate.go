package orders

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// ValidationReport is the outcome of Validate.
type ValidationReport struct {
	Valid             Dataset    `json:"-"`
	InvalidRowCount   int        `json:"invalidRowCount"`
	InvalidRowReasons []RowError `json:"invalidRowReasons"`
}

// Validate coerces raw rows into order records. Rows failing any check are
// counted and described in the report; Validate itself never fails.
// Row numbers are 1-based positions in rows. A row whose quantity would push
// the dataset total past int64 is rejected, so no aggregate can overflow.
func Validate(rows []RawRow) ValidationReport {
	rep := ValidationReport{Valid: make(Dataset, 0, len(rows))}
	var total int64
	for i, raw := range rows {
		rec, errs := parseRow(i+1, raw)
		if len(errs) == 0 && rec.Quantity > math.MaxInt64-total {
			errs = append(errs, RowError{Row: i + 1, Field: FieldQuantity, Reason: reasonTotalOverflow})
		}
		if len(errs) > 0 {
			rep.InvalidRowCount++
			rep.InvalidRowReasons = append(rep.InvalidRowReasons, errs...)
			continue
		}
		total += rec.Quantity
		rep.Valid = append(rep.Valid, rec)
	}
	return rep
}

// RequireRecords is the fatal check between validation and aggregation.
func RequireRecords(rep ValidationReport) (Dataset, error) {
	if len(rep.Valid) == 0 {
		if rep.InvalidRowCount > 0 {
			return nil, fmt.Errorf("%w: all %d rows rejected", ErrEmptyDataset, rep.InvalidRowCount)
		}
		return nil, ErrEmptyDataset
	}
	return rep.Valid, nil
}

func parseRow(n int, raw RawRow) (OrderRecord, []RowError) {
	var errs []RowError
	fail := func(field, reason string) {
		errs = append(errs, RowError{Row: n, Field: field, Reason: reason})
	}

	rec := OrderRecord{Row: n}
	var reason string
	if rec.Customer, reason = textField(raw, FieldCustomer); reason != "" {
		fail(FieldCustomer, reason)
	}
	if rec.Product, reason = textField(raw, FieldProduct); reason != "" {
		fail(FieldProduct, reason)
	}
	if rec.Quantity, reason = quantityField(raw); reason != "" {
		fail(FieldQuantity, reason)
	}
	if rec.UnitValue, reason = unitValueField(raw); reason != "" {
		fail(FieldUnitValue, reason)
	}
	if rec.OrderDate, reason = dateField(raw); reason != "" {
		fail(FieldOrderDate, reason)
	}
	return rec, errs
}

const (
	reasonMissing       = "missing"
	reasonOutOfRange    = "out of range"
	reasonTotalOverflow = "quantity total exceeds int64 range"
)

func lookup(raw RawRow, field string) (any, bool) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func textField(raw RawRow, field string) (string, string) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", reasonMissing
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "empty"
	}
	return s, ""
}

func quantityField(raw RawRow) (int64, string) {
	v, ok := lookup(raw, FieldQuantity)
	if !ok {
		return 0, reasonMissing
	}
	var q int64
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Sprintf("not an integer: %q", t)
		}
		q = n
	case int:
		q = int64(t)
	case int32:
		q = int64(t)
	case int64:
		q = t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || math.Trunc(t) != t {
			return 0, fmt.Sprintf("not an integer: %v", t)
		}
		if t < 0 {
			return 0, "must not be negative"
		}
		if t >= math.MaxInt64 {
			return 0, reasonOutOfRange
		}
		q = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Sprintf("not an integer: %q", t.String())
		}
		q = n
	case decimal.Decimal:
		if !t.IsInteger() {
			return 0, fmt.Sprintf("not an integer: %s", t)
		}
		if t.Sign() < 0 {
			return 0, "must not be negative"
		}
		if t.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
			return 0, reasonOutOfRange
		}
		q = t.IntPart()
	default:
		return 0, fmt.Sprintf("unsupported type %T", v)
	}
	if q < 0 {
		return 0, "must not be negative"
	}
	return q, ""
}

func unitValueField(raw RawRow) (decimal.Decimal, string) {
	v, ok := lookup(raw, FieldUnitValue)
	if !ok {
		return decimal.Zero, reasonMissing
	}
	var d decimal.Decimal
	switch t := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, fmt.Sprintf("not a decimal: %q", t)
		}
		d = parsed
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Sprintf("not a decimal: %v", t)
		}
		d = decimal.NewFromFloat(t)
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, fmt.Sprintf("not a decimal: %q", t.String())
		}
		d = parsed
	case decimal.Decimal:
		d = t
	default:
		return decimal.Zero, fmt.Sprintf("unsupported type %T", v)
	}
	if d.IsNegative() {
		return decimal.Zero, "must not be negative"
	}
	return d, ""
}

func dateField(raw RawRow) (civil.Date, string) {
	v, ok := lookup(raw, FieldOrderDate)
	if !ok {
		return civil.Date{}, reasonMissing
	}
	switch t := v.(type) {
	case string:
		d, err := civil.ParseDate(strings.TrimSpace(t))
		if err != nil {
			return civil.Date{}, fmt.Sprintf("not an ISO date (YYYY-MM-DD): %q", t)
		}
		return d, ""
	case civil.Date:
		if !t.IsValid() {
			return civil.Date{}, "invalid date"
		}
		return t, ""
	case time.Time:
		return civil.DateOf(t), ""
	default:
		return civil.Date{}, fmt.Sprintf("unsupported type %T", v)
	}
}
