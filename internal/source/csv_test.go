package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orderrpa/internal/orders"
)

func TestCSVSource_Rows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	data := " Customer ,PRODUCT,quantity,unit_value,order_date\n" +
		"Acme,Bolt,10,2.50,2026-01-10\n" +
		"Beta,Nut,abc,1.00,2026-01-09\n" +
		"Gamma,Washer\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := CSVSource{Path: path}.Rows(context.Background())
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	if rows[0]["customer"] != "Acme" || rows[0]["product"] != "Bolt" {
		t.Fatalf("row0=%v", rows[0])
	}
	if _, ok := rows[2]["quantity"]; ok {
		t.Fatalf("short record should not carry quantity: %v", rows[2])
	}

	rep := orders.Validate(rows)
	if len(rep.Valid) != 1 || rep.InvalidRowCount != 2 {
		t.Fatalf("valid=%d invalid=%d", len(rep.Valid), rep.InvalidRowCount)
	}
}

func TestCSVSource_Unavailable(t *testing.T) {
	_, err := CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}.Rows(context.Background())
	if !errors.Is(err, orders.ErrSourceUnavailable) {
		t.Fatalf("want ErrSourceUnavailable, got %v", err)
	}

	_, err = ReadRows(context.Background(), strings.NewReader(""))
	if !errors.Is(err, orders.ErrSourceUnavailable) {
		t.Fatalf("empty file: want ErrSourceUnavailable, got %v", err)
	}
}

func TestReadRows_HeaderOnly(t *testing.T) {
	rows, err := ReadRows(context.Background(), strings.NewReader("customer,product,quantity,unit_value,order_date\n"))
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("want no rows, got %d", len(rows))
	}
}

func TestReadRows_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadRows(ctx, strings.NewReader("customer\nA\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	_ = w.Write(map[string]string{"customer": "Acme", "product": "Bolt", "quantity": "3", "unit_value": "1.10", "order_date": "2026-01-02"})
	_ = w.Write(map[string]string{"customer": "Beta"})
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	rows, err := ReadRows(context.Background(), &buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	rep := orders.Validate(rows)
	if len(rep.Valid) != 1 || rep.Valid[0].Quantity != 3 || rep.InvalidRowCount != 1 {
		t.Fatalf("report=%+v", rep)
	}
}
