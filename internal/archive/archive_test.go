package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderrpa/internal/orders"
	"orderrpa/internal/report"
)

// Requires a disposable database: ORDERRPA_TEST_DATABASE_URL=postgres://...
func testURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("ORDERRPA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ORDERRPA_TEST_DATABASE_URL not set")
	}
	return url
}

func sample(t *testing.T) report.Report {
	t.Helper()
	return sampleFrom(t, []orders.RawRow{
		{"customer": "A", "product": "P1", "quantity": "100", "unit_value": "50.00", "order_date": "2026-01-10"},
		{"customer": "B", "product": "P3", "quantity": "300", "unit_value": "100.00", "order_date": "2026-01-12"},
	})
}

func sampleFrom(t *testing.T, rows []orders.RawRow) report.Report {
	t.Helper()
	ref := civil.Date{Year: 2026, Month: time.January, Day: 11}
	p := orders.DefaultParams(ref)
	rep := orders.Validate(rows)
	queue, err := orders.BuildFreightQueue(rep.Valid, p)
	if err != nil {
		t.Fatalf("freight: %v", err)
	}
	return report.Report{
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		ReferenceDate: ref,
		Params:        p,
		Summary:       orders.Summarize(rep.Valid),
		Customers:     orders.AggregateByCustomer(rep.Valid),
		Freight:       queue,
		InvalidRows:   rep,
	}
}

func TestSaveRun_Postgres(t *testing.T) {
	url := testURL(t)
	if err := Migrate(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer a.Close()

	r := sample(t)
	if err := a.SaveRun(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	// second save of the same run is ignored
	if err := a.SaveRun(ctx, r); err != nil {
		t.Fatalf("save again: %v", err)
	}

	var customers, freight, urgent int
	var total string
	err = a.Pool.QueryRow(ctx, `SELECT total_value::text, urgent_freight FROM runs WHERE run_id = $1`, r.RunID).Scan(&total, &urgent)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if !decimal.RequireFromString(total).Equal(decimal.NewFromInt(35000)) || urgent != 1 {
		t.Fatalf("total=%s urgent=%d", total, urgent)
	}
	if err := a.Pool.QueryRow(ctx, `SELECT count(*) FROM customer_totals WHERE run_id = $1`, r.RunID).Scan(&customers); err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if err := a.Pool.QueryRow(ctx, `SELECT count(*) FROM freight_entries WHERE run_id = $1`, r.RunID).Scan(&freight); err != nil {
		t.Fatalf("count freight: %v", err)
	}
	if customers != 2 || freight != 2 {
		t.Fatalf("customers=%d freight=%d", customers, freight)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "::not a url::"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveRun_KeepsFullPrecision(t *testing.T) {
	url := testURL(t)
	if err := Migrate(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer a.Close()

	r := sampleFrom(t, []orders.RawRow{
		{"customer": "C", "product": "P", "quantity": "3", "unit_value": "3.333", "order_date": "2026-01-10"},
	})
	if err := a.SaveRun(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	var runTotal, customerTotal, value string
	if err := a.Pool.QueryRow(ctx, `SELECT total_value::text FROM runs WHERE run_id = $1`, r.RunID).Scan(&runTotal); err != nil {
		t.Fatalf("query run: %v", err)
	}
	if err := a.Pool.QueryRow(ctx, `SELECT total_value::text FROM customer_totals WHERE run_id = $1`, r.RunID).Scan(&customerTotal); err != nil {
		t.Fatalf("query customer: %v", err)
	}
	if err := a.Pool.QueryRow(ctx, `SELECT value::text FROM freight_entries WHERE run_id = $1`, r.RunID).Scan(&value); err != nil {
		t.Fatalf("query freight: %v", err)
	}
	for _, got := range []string{runTotal, customerTotal, value} {
		if !decimal.RequireFromString(got).Equal(decimal.RequireFromString("9.999")) {
			t.Fatalf("stored %s, want 9.999", got)
		}
	}
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := embedMigrations.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) != 2 || entries[1].Name() != "00002_numeric_precision.sql" {
		t.Fatalf("migrations=%v", entries)
	}
}
