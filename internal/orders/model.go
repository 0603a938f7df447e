package orders

import (
	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// Input column names. The five-field shape is the file contract.
const (
	FieldCustomer  = "customer"
	FieldProduct   = "product"
	FieldQuantity  = "quantity"
	FieldUnitValue = "unit_value"
	FieldOrderDate = "order_date"
)

// RequiredFields lists the input columns in file order.
var RequiredFields = []string{FieldCustomer, FieldProduct, FieldQuantity, FieldUnitValue, FieldOrderDate}

// RawRow is one untyped input row keyed by field name.
type RawRow map[string]any

// OrderRecord is a validated input row.
type OrderRecord struct {
	Row       int             `json:"row"`
	Customer  string          `json:"customer"`
	Product   string          `json:"product"`
	Quantity  int64           `json:"quantity"`
	UnitValue decimal.Decimal `json:"unitValue"`
	OrderDate civil.Date      `json:"orderDate"`
}

// Value returns quantity * unit_value.
func (o OrderRecord) Value() decimal.Decimal {
	return o.UnitValue.Mul(decimal.NewFromInt(o.Quantity))
}

// Dataset is the ordered set of records that passed validation.
type Dataset []OrderRecord

// CustomerTotal aggregates all records of one customer.
type CustomerTotal struct {
	Customer       string          `json:"customer"`
	TotalQuantity  int64           `json:"totalQuantity"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	OrderCount     int             `json:"orderCount"`
	FirstOrderDate civil.Date      `json:"firstOrderDate"`
}

// Freight status labels.
const (
	StatusUrgent    = "URGENT"
	StatusScheduled = "SCHEDULED"
)

// FreightEntry is the dispatch plan for a single order.
type FreightEntry struct {
	Sequence            int             `json:"sequence"`
	Row                 int             `json:"row"`
	Customer            string          `json:"customer"`
	Product             string          `json:"product"`
	OrderDate           civil.Date      `json:"orderDate"`
	MinimumDispatchDate civil.Date      `json:"minimumDispatchDate"`
	Quantity            int64           `json:"quantity"`
	Value               decimal.Decimal `json:"value"`
	DaysUntilDispatch   int             `json:"daysUntilDispatch"`
	IsUrgent            bool            `json:"isUrgent"`
}

func (f FreightEntry) Status() string {
	if f.IsUrgent {
		return StatusUrgent
	}
	return StatusScheduled
}

// ExecutiveSummary holds the global totals of one run.
type ExecutiveSummary struct {
	TotalOrders       int             `json:"totalOrders"`
	TotalQuantity     int64           `json:"totalQuantity"`
	TotalValue        decimal.Decimal `json:"totalValue"`
	DistinctCustomers int             `json:"distinctCustomers"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	FirstOrderDate    civil.Date      `json:"firstOrderDate"`
	LastOrderDate     civil.Date      `json:"lastOrderDate"`
}
