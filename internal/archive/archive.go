package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"orderrpa/internal/orders"
	"orderrpa/internal/report"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate applies the embedded schema migrations.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Archive stores finished reports in Postgres.
type Archive struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Archive{Pool: pool}, nil
}

func (a *Archive) Close() { a.Pool.Close() }

// SaveRun writes the run with its customer totals and freight queue in one
// transaction. Saving the same RunID twice is a no-op.
func (a *Archive) SaveRun(ctx context.Context, r report.Report) error {
	tx, err := a.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	s := r.Summary
	tag, err := tx.Exec(ctx,
		`INSERT INTO runs
			(run_id, generated_at, reference_date, lead_time_days, urgency_window_days,
			 total_orders, total_quantity, total_value, average_order_value,
			 distinct_customers, invalid_rows, urgent_freight)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (run_id) DO NOTHING`,
		r.RunID, r.GeneratedAt, dateValue(r.ReferenceDate), r.Params.LeadTimeDays, r.Params.UrgencyWindowDays,
		s.TotalOrders, s.TotalQuantity, s.TotalValue.String(), s.AverageOrderValue.String(),
		s.DistinctCustomers, r.InvalidRows.InvalidRowCount, orders.CountUrgent(r.Freight),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, c := range r.Customers {
		batch.Queue(
			`INSERT INTO customer_totals
				(run_id, rank, customer, total_quantity, total_value, order_count, first_order_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.RunID, i+1, c.Customer, c.TotalQuantity, c.TotalValue.String(), c.OrderCount, dateValue(c.FirstOrderDate),
		)
	}
	for _, f := range r.Freight {
		batch.Queue(
			`INSERT INTO freight_entries
				(run_id, sequence, source_row, customer, product, order_date, minimum_dispatch_date,
				 quantity, value, days_until_dispatch, urgent)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			r.RunID, f.Sequence, f.Row, f.Customer, f.Product, dateValue(f.OrderDate), dateValue(f.MinimumDispatchDate),
			f.Quantity, f.Value.String(), f.DaysUntilDispatch, f.IsUrgent,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func dateValue(d civil.Date) time.Time { return d.In(time.UTC) }
