package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orderrpa/internal/history"
	"orderrpa/internal/journal"
	"orderrpa/internal/manifest"
	"orderrpa/internal/orders"
	"orderrpa/internal/pipeline"
	"orderrpa/internal/report"
)

type rowsSource []orders.RawRow

func (s rowsSource) Rows(context.Context) ([]orders.RawRow, error) { return s, nil }

// produce runs the pipeline once against dir so reportctl has real artifacts.
func produce(t *testing.T, dir string) pipeline.Result {
	t.Helper()
	jw, err := journal.NewFileWriter(filepath.Join(dir, "journal"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	ps, err := history.NewPebbleStore(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("pebble: %v", err)
	}
	defer ps.Close()

	r := &pipeline.Runner{
		Source: rowsSource{
			{"customer": "A", "product": "P1", "quantity": "100", "unit_value": "50.00", "order_date": "2026-01-10"},
			{"customer": "B", "product": "P3", "quantity": "300", "unit_value": "100.00", "order_date": "2026-01-12"},
		},
		Params:   orders.Params{LeadTimeDays: 3, UrgencyWindowDays: 2},
		Workbook: report.XLSXRenderer{Dir: filepath.Join(dir, "out")},
		JSON:     report.JSONRenderer{Dir: filepath.Join(dir, "out")},
		History:  ps,
		Journal:  jw,
		Manifest: manifest.NewFilesystemManifest(filepath.Join(dir, "out")),
		Now:      func() time.Time { return time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC) },
	}
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	res := produce(t, dir)

	var out bytes.Buffer
	cfg := Config{Command: "latest", OutputDir: filepath.Join(dir, "out"), ManifestSource: "file"}
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !strings.Contains(out.String(), res.RunID) || !strings.Contains(out.String(), "workbook: "+res.ReportPath) {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestHistory_JournalAndPebble(t *testing.T) {
	dir := t.TempDir()
	res := produce(t, dir)

	for _, src := range []string{"journal", "pebble"} {
		var out bytes.Buffer
		cfg := Config{
			Command:       "history",
			HistorySource: src,
			HistoryDir:    filepath.Join(dir, "history"),
			JournalDir:    filepath.Join(dir, "journal"),
			Limit:         10,
		}
		if err := run(context.Background(), cfg, &out); err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if !strings.Contains(out.String(), res.RunID) || !strings.Contains(out.String(), history.StatusSucceeded) {
			t.Fatalf("%s output:\n%s", src, out.String())
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(context.Background(), Config{Command: "bogus"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error")
	}
}
