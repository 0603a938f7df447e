package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"

	"orderrpa/internal/logger"
	"orderrpa/internal/source"
)

type Config struct {
	Count      int
	Output     string
	InvalidPct float64
	Days       int
	Seed       int64
}

func main() {
	cfg := readFlags()
	if err := logger.Init("info", true); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if err := generateOrders(cfg); err != nil {
		logger.Error("generation failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func readFlags() Config {
	var cfg Config
	flag.IntVar(&cfg.Count, "count", 100, "number of orders to generate")
	flag.StringVar(&cfg.Output, "output", "data/orders.csv", "output CSV file")
	flag.Float64Var(&cfg.InvalidPct, "invalid", 0, "fraction of rows to corrupt, 0..1")
	flag.IntVar(&cfg.Days, "days", 14, "spread order dates over the last N days")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	return cfg
}

var (
	customers = []string{"Acme Corp", "Beta Industries", "Gamma Logistics", "Delta Foods", "Epsilon Retail", "Zeta Tools"}
	products  = []string{"Steel Bolt", "Hex Nut", "Washer", "Bearing", "Gear", "Spring", "Valve"}
)

func generateOrders(cfg Config) error {
	if cfg.InvalidPct < 0 || cfg.InvalidPct > 1 {
		return fmt.Errorf("invalid fraction %v outside 0..1", cfg.InvalidPct)
	}
	if dir := filepath.Dir(cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	file, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	w, err := source.NewWriter(file)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	today := civil.DateOf(time.Now())

	corrupted := 0
	for i := 0; i < cfg.Count; i++ {
		row := map[string]string{
			"customer":   customers[rng.Intn(len(customers))],
			"product":    products[rng.Intn(len(products))],
			"quantity":   strconv.Itoa(1 + rng.Intn(500)),
			"unit_value": decimal.New(int64(100+rng.Intn(49900)), -2).StringFixed(2), // 1.00-499.99
			"order_date": today.AddDays(-rng.Intn(cfg.Days + 1)).String(),
		}
		if rng.Float64() < cfg.InvalidPct {
			corrupt(rng, row)
			corrupted++
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write order %d: %w", i+1, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	logger.Info("orders generated", "count", cfg.Count, "corrupted", corrupted, "output", cfg.Output)
	return nil
}

func corrupt(rng *rand.Rand, row map[string]string) {
	switch rng.Intn(5) {
	case 0:
		row["quantity"] = "abc"
	case 1:
		row["quantity"] = "-" + row["quantity"]
	case 2:
		row["unit_value"] = "n/a"
	case 3:
		row["order_date"] = "31/12/2025"
	default:
		row["customer"] = ""
	}
}
