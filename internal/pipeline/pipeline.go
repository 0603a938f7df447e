package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"orderrpa/internal/history"
	"orderrpa/internal/journal"
	"orderrpa/internal/logger"
	"orderrpa/internal/manifest"
	"orderrpa/internal/metrics"
	"orderrpa/internal/notify"
	"orderrpa/internal/orders"
	"orderrpa/internal/report"
)

// Source yields the raw rows of one run.
type Source interface {
	Rows(ctx context.Context) ([]orders.RawRow, error)
}

// Archiver stores a finished report outside the local filesystem.
type Archiver interface {
	SaveRun(ctx context.Context, r report.Report) error
}

// Runner executes one end-to-end processing run. Only Source, Workbook
// and Params are required; every other collaborator is optional.
type Runner struct {
	Source   Source
	Params   orders.Params // zero ReferenceDate means today
	Workbook report.Renderer
	JSON     report.Renderer
	Console  io.Writer

	Notifier notify.Notifier
	AlertTo  string
	ReportTo string

	History  history.Store
	Journal  journal.Writer
	Manifest manifest.Publisher
	Archive  Archiver
	Metrics  *metrics.Registry

	Now   func() time.Time
	NewID func() string
}

type Result struct {
	RunID      string
	ReportPath string
	JSONPath   string
	Report     report.Report
	Urgent     int
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run processes the source once. Configuration errors surface before the
// source is read. Failed runs are still recorded in history and the journal.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	if r.NewID != nil {
		runID = r.NewID()
	}
	started := r.now()
	rec := history.RunRecord{RunID: runID, StartedAt: started}
	logger.Info("run started", "run_id", runID)

	res, err := r.run(ctx, runID, started, &rec)

	rec.FinishedAt = r.now()
	rec.Status = history.StatusSucceeded
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
	}
	r.record(rec)
	r.observe(rec)

	if err != nil {
		logger.Error("run failed", "run_id", runID, "error", err)
		return res, err
	}
	logger.Info("run finished", "run_id", runID,
		"duration", rec.FinishedAt.Sub(started).String(),
		"report", res.ReportPath,
		"urgent", res.Urgent,
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, runID string, started time.Time, rec *history.RunRecord) (Result, error) {
	res := Result{RunID: runID}

	params := r.Params
	if params.ReferenceDate == (civil.Date{}) {
		params.ReferenceDate = civil.DateOf(started)
	}
	if err := params.Validate(); err != nil {
		return res, fmt.Errorf("params: %w", err)
	}

	rows, err := r.Source.Rows(ctx)
	if err != nil {
		return res, fmt.Errorf("read source: %w", err)
	}
	logger.Info("rows read", "run_id", runID, "rows", len(rows))

	validation := orders.Validate(rows)
	rec.ValidRows = len(validation.Valid)
	rec.InvalidRows = validation.InvalidRowCount
	if r.Metrics != nil {
		r.Metrics.RowsValid.Add(float64(rec.ValidRows))
		r.Metrics.RowsInvalid.Add(float64(rec.InvalidRows))
	}
	if validation.InvalidRowCount > 0 {
		first := validation.InvalidRowReasons
		if len(first) > 5 {
			first = first[:5]
		}
		logger.Warn("invalid rows excluded", "run_id", runID, "count", validation.InvalidRowCount, "first", first)
	}

	ds, err := orders.RequireRecords(validation)
	if err != nil {
		return res, fmt.Errorf("validate: %w", err)
	}

	customers := orders.AggregateByCustomer(ds)
	queue, err := orders.BuildFreightQueue(ds, params)
	if err != nil {
		return res, fmt.Errorf("freight: %w", err)
	}
	summary := orders.Summarize(ds)
	res.Urgent = orders.CountUrgent(queue)
	rec.Customers = len(customers)
	rec.UrgentFreight = res.Urgent
	rec.TotalValue = summary.TotalValue.String()
	logger.Info("orders processed", "run_id", runID, "customers", len(customers), "freight", len(queue), "urgent", res.Urgent)

	rep := report.Report{
		RunID:         runID,
		GeneratedAt:   started,
		ReferenceDate: params.ReferenceDate,
		Params:        params,
		Summary:       summary,
		Customers:     customers,
		Freight:       queue,
		InvalidRows:   validation,
	}
	res.Report = rep

	path, err := r.Workbook.Render(rep)
	if err != nil {
		return res, fmt.Errorf("render report: %w", err)
	}
	res.ReportPath = path
	rec.ReportPath = path
	if r.JSON != nil {
		if res.JSONPath, err = r.JSON.Render(rep); err != nil {
			return res, fmt.Errorf("render json: %w", err)
		}
	}
	if r.Console != nil {
		if err := report.WriteText(r.Console, rep); err != nil {
			logger.Warn("console report failed", "run_id", runID, "error", err)
		}
	}

	r.notify(ctx, rep, path, queue)

	if r.Manifest != nil {
		m := manifest.Manifest{RunID: runID, ReportPath: path, JSONPath: res.JSONPath, CreatedAtEpochSecond: r.now().Unix()}
		if err := r.Manifest.PublishLatest(m); err != nil {
			logger.Warn("manifest publish failed", "run_id", runID, "error", err)
		}
	}
	if r.Archive != nil {
		if err := r.Archive.SaveRun(ctx, rep); err != nil {
			logger.Warn("archive failed", "run_id", runID, "error", err)
		}
	}
	return res, nil
}

// notify sends the urgent alert and the report mail. Failures are logged
// and counted; they never fail the run.
func (r *Runner) notify(ctx context.Context, rep report.Report, path string, queue []orders.FreightEntry) {
	if r.Notifier == nil {
		return
	}
	var msgs []notify.Message
	if urgent := orders.Urgent(queue); len(urgent) > 0 {
		msgs = append(msgs, notify.BuildAlert(rep.RunID, urgent, r.AlertTo))
	}
	msgs = append(msgs, notify.BuildReportMail(rep.RunID, rep.Summary, path, r.ReportTo))

	for _, m := range msgs {
		m.CreatedAt = r.now()
		if err := r.Notifier.Notify(ctx, m); err != nil {
			logger.Warn("notification failed", "run_id", rep.RunID, "kind", m.Kind, "error", err)
			if r.Metrics != nil {
				r.Metrics.NotificationsFailed.WithLabelValues(m.Kind).Inc()
			}
			continue
		}
		if r.Metrics != nil {
			r.Metrics.NotificationsSent.WithLabelValues(m.Kind).Inc()
		}
	}
}

func (r *Runner) record(rec history.RunRecord) {
	if r.Journal != nil {
		if err := r.Journal.Append(rec); err != nil {
			logger.Warn("journal append failed", "run_id", rec.RunID, "error", err)
		}
	}
	if r.History != nil {
		if _, err := r.History.Put(rec); err != nil {
			logger.Warn("history put failed", "run_id", rec.RunID, "error", err)
		}
	}
}

func (r *Runner) observe(rec history.RunRecord) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.Runs.Inc()
	if rec.Status == history.StatusFailed {
		r.Metrics.RunFailures.Inc()
	}
	r.Metrics.RunDuration.Observe(rec.FinishedAt.Sub(rec.StartedAt).Seconds())
	r.Metrics.LastRunTime.Set(float64(rec.FinishedAt.Unix()))
	r.Metrics.UrgentFreight.Set(float64(rec.UrgentFreight))
}
