package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"orderrpa/internal/orders"
)

const (
	SheetSummary   = "Executive Summary"
	SheetCustomers = "Customer Totals"
	SheetFreight   = "Freight Queue"
)

// XLSXRenderer writes the three-sheet workbook <dir>/orders_report_<runid>.xlsx.
type XLSXRenderer struct {
	Dir string
}

func (x XLSXRenderer) Render(r Report) (string, error) {
	if r.RunID == "" {
		return "", fmt.Errorf("render xlsx: empty run id")
	}
	if err := os.MkdirAll(x.Dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetCustomers, SheetFreight} {
		if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetSummary, []any{"Metric", "Value"}, summaryRows(r)},
		{SheetCustomers, []any{"Customer", "Total Quantity", "Total Value", "Orders", "First Order"}, customerRows(r)},
		{SheetFreight, []any{"Sequence", "Customer", "Product", "Order Date", "Minimum Dispatch", "Quantity", "Value", "Days Until Dispatch", "Status"}, freightRows(r)},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows, bold); err != nil {
			return "", err
		}
	}
	f.SetActiveSheet(0)

	path := filepath.Join(x.Dir, fmt.Sprintf("orders_report_%s.xlsx", r.RunID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("%s columns: %w", sheet, err)
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func summaryRows(r Report) [][]any {
	s := r.Summary
	return [][]any{
		{"Total Orders", s.TotalOrders},
		{"Total Quantity", s.TotalQuantity},
		{"Total Value", s.TotalValue.InexactFloat64()},
		{"Distinct Customers", s.DistinctCustomers},
		{"Average Order Value", s.AverageOrderValue.InexactFloat64()},
		{"First Order Date", s.FirstOrderDate.String()},
		{"Last Order Date", s.LastOrderDate.String()},
		{"Invalid Rows", r.InvalidRows.InvalidRowCount},
		{"Urgent Freight", orders.CountUrgent(r.Freight)},
		{"Reference Date", r.ReferenceDate.String()},
		{"Generated At", r.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
}

func customerRows(r Report) [][]any {
	rows := make([][]any, 0, len(r.Customers))
	for _, c := range r.Customers {
		rows = append(rows, []any{c.Customer, c.TotalQuantity, c.TotalValue.InexactFloat64(), c.OrderCount, c.FirstOrderDate.String()})
	}
	return rows
}

func freightRows(r Report) [][]any {
	rows := make([][]any, 0, len(r.Freight))
	for _, e := range r.Freight {
		rows = append(rows, []any{
			e.Sequence, e.Customer, e.Product,
			e.OrderDate.String(), e.MinimumDispatchDate.String(),
			e.Quantity, e.Value.InexactFloat64(), e.DaysUntilDispatch, e.Status(),
		})
	}
	return rows
}
