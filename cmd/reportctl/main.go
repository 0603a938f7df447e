package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"orderrpa/internal/config"
	"orderrpa/internal/history"
	"orderrpa/internal/journal"
	"orderrpa/internal/logger"
	"orderrpa/internal/manifest"
	"orderrpa/internal/report"
)

type Config struct {
	Command        string // latest|history
	OutputDir      string
	ManifestSource string // file|kafka
	HistorySource  string // pebble|journal|kafka
	HistoryDir     string
	JournalDir     string
	KafkaBootstrap string
	TopicManifest  string
	TopicRuns      string
	Limit          int
}

func main() {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := readFlags(env)
	if err := logger.Init(env.LogLevel, env.LogDevelopment); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "reportctl: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func readFlags(env config.Config) Config {
	cfg := Config{Command: "latest"}
	flag.StringVar(&cfg.OutputDir, "output", env.OutputDir, "report output directory")
	flag.StringVar(&cfg.ManifestSource, "manifest-source", "file", "file|kafka")
	flag.StringVar(&cfg.HistorySource, "history-source", "journal", "pebble|journal|kafka")
	flag.StringVar(&cfg.HistoryDir, "history-dir", env.HistoryDir, "pebble directory")
	flag.StringVar(&cfg.JournalDir, "journal-dir", env.JournalDir, "journal directory")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", env.KafkaBootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.TopicManifest, "topic-manifest", env.TopicManifest, "manifest topic (compacted)")
	flag.StringVar(&cfg.TopicRuns, "topic-runs", env.TopicRuns, "run journal topic")
	flag.IntVar(&cfg.Limit, "limit", 20, "history rows to print")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: reportctl [flags] latest|history\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 0 {
		cfg.Command = flag.Arg(0)
	}
	return cfg
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	switch cfg.Command {
	case "latest":
		return showLatest(cfg, out)
	case "history":
		return showHistory(ctx, cfg, out)
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

// showLatest follows the manifest to the newest report.json and prints it.
func showLatest(cfg Config, out io.Writer) error {
	var mr manifest.Reader
	switch cfg.ManifestSource {
	case "file":
		mr = manifest.NewFilesystemManifest(cfg.OutputDir)
	case "kafka":
		if cfg.KafkaBootstrap == "" {
			return errors.New("manifest source kafka requires -kafka-bootstrap")
		}
		mr = manifest.NewKafkaReader(config.Brokers(cfg.KafkaBootstrap), cfg.TopicManifest)
	default:
		return fmt.Errorf("unknown manifest source %q", cfg.ManifestSource)
	}

	m, err := mr.ReadLatest()
	if err != nil {
		return err
	}
	jsonPath := m.JSONPath
	if jsonPath == "" {
		jsonPath = filepath.Join(cfg.OutputDir, m.RunID, "report.json")
	}
	r, err := report.ReadJSON(jsonPath)
	if err != nil {
		return err
	}
	if err := report.WriteText(out, r); err != nil {
		return err
	}
	fmt.Fprintf(out, "workbook: %s\n", m.ReportPath)
	return nil
}

func showHistory(ctx context.Context, cfg Config, out io.Writer) error {
	st, err := loadHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []history.RunRecord
	if err := st.Range(func(rec history.RunRecord) error {
		runs = append(runs, rec)
		return nil
	}); err != nil {
		return err
	}
	if len(runs) > cfg.Limit && cfg.Limit > 0 {
		runs = runs[len(runs)-cfg.Limit:]
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTATUS\tVALID\tINVALID\tURGENT\tTOTAL\tDURATION")
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, r.Status,
			r.ValidRows, r.InvalidRows, r.UrgentFreight, r.TotalValue,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	return tw.Flush()
}

func loadHistory(ctx context.Context, cfg Config) (history.Store, error) {
	switch cfg.HistorySource {
	case "pebble":
		ps, err := history.NewPebbleStore(cfg.HistoryDir)
		if err != nil {
			return nil, err
		}
		return ps, nil
	case "journal":
		st := history.NewInMemoryStore()
		res, err := history.Replay(st, filepath.Join(cfg.JournalDir, journal.FileName))
		if err != nil {
			return nil, err
		}
		logger.Debug("journal replayed", "applied", res.Applied, "skipped", res.Skipped)
		return st, nil
	case "kafka":
		if cfg.KafkaBootstrap == "" {
			return nil, errors.New("history source kafka requires -kafka-bootstrap")
		}
		st := history.NewInMemoryStore()
		res, err := history.ReplayKafka(ctx, st, config.Brokers(cfg.KafkaBootstrap), cfg.TopicRuns, 5*time.Second)
		if err != nil {
			return nil, err
		}
		logger.Debug("kafka replayed", "applied", res.Applied, "skipped", res.Skipped)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown history source %q", cfg.HistorySource)
	}
}
