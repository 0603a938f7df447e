package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-sql/civil"

	"orderrpa/internal/archive"
	"orderrpa/internal/config"
	"orderrpa/internal/history"
	"orderrpa/internal/httpapi"
	"orderrpa/internal/journal"
	"orderrpa/internal/logger"
	"orderrpa/internal/manifest"
	"orderrpa/internal/metrics"
	"orderrpa/internal/notify"
	"orderrpa/internal/pipeline"
	"orderrpa/internal/report"
	"orderrpa/internal/scheduler"
	"orderrpa/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg = readFlags(cfg)
	if err := logger.Init(cfg.LogLevel, cfg.LogDevelopment); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("orderrpa failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

// readFlags lets command-line flags override the environment.
func readFlags(cfg config.Config) config.Config {
	flag.StringVar(&cfg.InputCSV, "input", cfg.InputCSV, "orders CSV file")
	flag.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "report output directory")
	flag.IntVar(&cfg.LeadTimeDays, "lead-time", cfg.LeadTimeDays, "days between order and earliest dispatch")
	flag.IntVar(&cfg.UrgencyWindowDays, "urgency-window", cfg.UrgencyWindowDays, "days until dispatch at or below which freight is urgent")
	flag.StringVar(&cfg.ReferenceDate, "reference-date", cfg.ReferenceDate, "reference date YYYY-MM-DD (default today)")
	flag.BoolVar(&cfg.ScheduleEnabled, "schedule", cfg.ScheduleEnabled, "run continuously on a timer and serve HTTP")
	flag.DurationVar(&cfg.ScheduleInterval, "interval", cfg.ScheduleInterval, "timer interval in scheduled mode")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "http listen address in scheduled mode")
	flag.StringVar(&cfg.HistoryBackend, "history-backend", cfg.HistoryBackend, "run history backend: memory|pebble")
	flag.StringVar(&cfg.HistoryDir, "history-dir", cfg.HistoryDir, "pebble directory for run history")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	flag.Parse()
	return cfg
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params, err := cfg.Params(civil.DateOf(time.Now()))
	if err != nil {
		return err
	}
	if cfg.ReferenceDate == "" {
		// resolved from the clock on every run
		params.ReferenceDate = civil.Date{}
	}

	mreg := metrics.NewRegistry()
	runner := &pipeline.Runner{
		Source:   source.CSVSource{Path: cfg.InputCSV},
		Params:   params,
		Workbook: report.XLSXRenderer{Dir: cfg.OutputDir},
		JSON:     report.JSONRenderer{Dir: cfg.OutputDir},
		AlertTo:  cfg.AlertRecipient,
		ReportTo: cfg.ReportRecipient,
		Metrics:  mreg,
	}
	if !cfg.ScheduleEnabled {
		runner.Console = os.Stdout
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	st, err := openHistory(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, func() { _ = st.Close() })
	runner.History = st

	jw, closeJournal, err := buildJournal(cfg)
	closers = append(closers, closeJournal.closeAll)
	if err != nil {
		return err
	}
	runner.Journal = jw

	pub, closeManifest, err := buildManifest(cfg)
	closers = append(closers, closeManifest.closeAll)
	if err != nil {
		return err
	}
	runner.Manifest = pub

	n, closeNotifiers, err := buildNotifier(cfg)
	closers = append(closers, closeNotifiers.closeAll)
	if err != nil {
		return err
	}
	runner.Notifier = n

	if cfg.DatabaseURL != "" {
		if err := archive.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		a, err := archive.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		closers = append(closers, a.Close)
		runner.Archive = a
	}

	if !cfg.ScheduleEnabled {
		_, err := runner.Run(ctx)
		return err
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	return serve(ctx, cfg, runner, st, mreg, sigCh)
}

// serve runs the scheduler and HTTP API until a signal arrives on sigCh.
func serve(ctx context.Context, cfg config.Config, runner *pipeline.Runner, st history.Store, mreg *metrics.Registry, sigCh <-chan os.Signal) error {
	sched, err := scheduler.New(cfg.ScheduleInterval, runner.Run, mreg)
	if err != nil {
		return err
	}

	sched.Start(ctx)

	r := chi.NewRouter()
	r.Mount("/", httpapi.New(st, sched, mreg.Handler()).Routes())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("listening", "addr", cfg.HTTPAddr)

	// first run immediately, then on the timer
	initial := make(chan struct{})
	go func() {
		defer close(initial)
		if _, err := sched.Trigger(ctx); err != nil {
			logger.Warn("initial run failed", "error", err)
		}
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop", "error", err)
	}
	select {
	case <-initial:
	case <-shutdownCtx.Done():
		logger.Warn("initial run still in flight at shutdown")
	}
	return runErr
}

func openHistory(cfg config.Config) (history.Store, error) {
	switch cfg.HistoryBackend {
	case "pebble":
		ps, err := history.NewPebbleStore(cfg.HistoryDir)
		if err != nil {
			return nil, fmt.Errorf("init pebble: %w", err)
		}
		return ps, nil
	case "memory", "":
		st := history.NewInMemoryStore()
		// warm the in-memory history from the journal of earlier runs
		path := filepath.Join(cfg.JournalDir, journal.FileName)
		if _, err := os.Stat(path); err == nil {
			res, err := history.Replay(st, path)
			if err != nil {
				logger.Warn("journal replay failed", "error", err)
			} else {
				logger.Info("history restored", "applied", res.Applied, "skipped", res.Skipped)
			}
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

// closerList closes every registered sink in order, logging failures.
type closerList []func() error

func (cl *closerList) add(c func() error) { *cl = append(*cl, c) }

func (cl closerList) closeAll() {
	for _, c := range cl {
		if err := c(); err != nil {
			logger.Warn("sink close failed", "error", err)
		}
	}
}

func buildJournal(cfg config.Config) (journal.Writer, closerList, error) {
	var ws []journal.Writer
	var cl closerList
	if config.Has(cfg.JournalSink, "file") {
		fw, err := journal.NewFileWriter(cfg.JournalDir)
		if err != nil {
			return nil, cl, fmt.Errorf("init journal: %w", err)
		}
		ws = append(ws, fw)
	}
	if config.Has(cfg.JournalSink, "kafka") {
		if cfg.KafkaBootstrap == "" {
			return nil, cl, errors.New("journal sink kafka requires KAFKA_BOOTSTRAP")
		}
		kw := journal.NewKafkaWriter(config.Brokers(cfg.KafkaBootstrap), cfg.TopicRuns)
		cl.add(kw.Close)
		ws = append(ws, kw)
	}
	if len(ws) == 0 {
		return nil, cl, nil
	}
	return journal.NewMultiWriter(ws...), cl, nil
}

func buildManifest(cfg config.Config) (manifest.Publisher, closerList, error) {
	var pubs []manifest.Publisher
	var cl closerList
	if config.Has(cfg.ManifestSink, "file") {
		pubs = append(pubs, manifest.NewFilesystemManifest(cfg.OutputDir))
	}
	if config.Has(cfg.ManifestSink, "kafka") {
		if cfg.KafkaBootstrap == "" {
			return nil, cl, errors.New("manifest sink kafka requires KAFKA_BOOTSTRAP")
		}
		km := manifest.NewKafkaManifest(config.Brokers(cfg.KafkaBootstrap), cfg.TopicManifest)
		cl.add(km.Close)
		pubs = append(pubs, km)
	}
	if len(pubs) == 0 {
		return nil, cl, nil
	}
	return manifest.NewMultiPublisher(pubs...), cl, nil
}

func buildNotifier(cfg config.Config) (notify.Notifier, closerList, error) {
	var sinks notify.Multi
	var cl closerList
	for _, name := range cfg.NotifySinks {
		switch name {
		case "log":
			sinks = append(sinks, notify.LogNotifier{})
		case "file":
			fn, err := notify.NewFileNotifier(filepath.Join(cfg.OutputDir, "outbox"))
			if err != nil {
				return nil, cl, err
			}
			sinks = append(sinks, fn)
		case "kafka":
			if cfg.KafkaBootstrap == "" {
				return nil, cl, errors.New("notify sink kafka requires KAFKA_BOOTSTRAP")
			}
			kn := notify.NewKafkaNotifier(config.Brokers(cfg.KafkaBootstrap), cfg.TopicNotifications)
			cl.add(kn.Close)
			sinks = append(sinks, kn)
		case "confluent":
			if cfg.KafkaBootstrap == "" {
				return nil, cl, errors.New("notify sink confluent requires KAFKA_BOOTSTRAP")
			}
			cn, err := notify.NewConfluentNotifier(cfg.KafkaBootstrap, cfg.TopicNotifications)
			if err != nil {
				return nil, cl, err
			}
			cl.add(func() error { cn.Close(); return nil })
			sinks = append(sinks, cn)
		case "smtp":
			sn, err := notify.NewSMTPNotifier(notify.SMTPConfig(cfg.SMTP))
			if errors.Is(err, notify.ErrMissingCredentials) {
				logger.Warn("smtp credentials missing, simulating email instead")
				sinks = append(sinks, notify.LogNotifier{})
				continue
			}
			if err != nil {
				return nil, cl, err
			}
			sinks = append(sinks, sn)
		default:
			return nil, cl, fmt.Errorf("unknown notify sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return nil, cl, nil
	}
	return sinks, cl, nil
}
