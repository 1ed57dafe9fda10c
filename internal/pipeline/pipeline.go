// Package pipeline runs one extraction: it reads every configured sheet,
// validates and aggregates the rows, publishes the datasets and reports what
// was rejected.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finanze/internal/aggregate"
	"finanze/internal/amqp"
	"finanze/internal/core"
	"finanze/internal/extract"
	"finanze/internal/log"
	"finanze/internal/output"
	"finanze/internal/report"
	"finanze/internal/sheets"
	"finanze/internal/storage"
)

// Notifier announces a completed run. *amqp.Client satisfies it.
type Notifier interface {
	PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error
}

type Options struct {
	Source sheets.Source
	// Snapshots, when set, is refreshed after every good read and serves the
	// sheet when Source fails.
	Snapshots  sheets.SnapshotStore
	Extractor  *extract.Extractor
	Sheets     []string
	Sink       output.Sink
	Notifier   Notifier
	Breakdown  core.Period
	SourceName string
	// AllowMissing turns a missing sheet into an empty kind instead of a failure.
	AllowMissing bool
	Logger       *log.Logger
}

type Pipeline struct {
	opts   Options
	logger *log.Logger
	newID  func() string
}

// Outcome is the result of a successful run.
type Outcome struct {
	RunID         string
	Report        report.Report
	Dataset       output.Dataset
	Artifacts     []string
	MissingSheets []string
	FromSnapshot  []string
	Duration      time.Duration
}

func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline requires a source")
	}
	if opts.Extractor == nil {
		return nil, errors.New("pipeline requires an extractor")
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline requires an output sink")
	}
	if len(opts.Sheets) == 0 {
		return nil, errors.New("no sheets configured")
	}
	for _, name := range opts.Sheets {
		if _, ok := opts.Extractor.KindOf(name); !ok {
			return nil, fmt.Errorf("%w: %q", extract.ErrUnmappedSheet, name)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Pipeline{
		opts:   opts,
		logger: logger.WithComponent(log.ComponentPipeline),
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// snapshotInfo is implemented by stores that record when a sheet was saved.
type snapshotInfo interface {
	Info(ctx context.Context, sheet string) (storage.SnapshotInfo, error)
}

type sheetOutcome struct {
	result       extract.Result
	missing      bool
	fromSnapshot bool
}

// Run executes one full extraction. Nothing is published when any sheet
// fails to load.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	runID := p.newID()
	logger := p.logger.With(log.FieldRunID, runID)
	logger.InfoContext(ctx, "Run started", log.FieldSource, p.opts.SourceName, "sheets", len(p.opts.Sheets))

	slots := make([]sheetOutcome, len(p.opts.Sheets))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range p.opts.Sheets {
		g.Go(func() error {
			out, err := p.loadSheet(gctx, logger, name)
			if err != nil {
				return err
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "Run failed", log.NewFields().WithOperation(log.OpExtract).WithError(err, errorType(err)).ToSlice()...)
		return nil, err
	}

	outcome := &Outcome{RunID: runID}
	var results []extract.Result
	for _, s := range slots {
		switch {
		case s.missing:
			outcome.MissingSheets = append(outcome.MissingSheets, s.result.Sheet)
		default:
			results = append(results, s.result)
			if s.fromSnapshot {
				outcome.FromSnapshot = append(outcome.FromSnapshot, s.result.Sheet)
			}
		}
	}

	outcome.Dataset = p.aggregate(results)
	outcome.Report = report.Build(results, outcome.MissingSheets)
	p.logReport(ctx, logger, outcome.Report)

	artifacts, err := output.Publish(ctx, p.opts.Sink, outcome.Dataset, outcome.Report)
	outcome.Artifacts = artifacts
	for _, a := range artifacts {
		logger.DebugContext(ctx, "Artifact stored", log.FieldArtifact, a)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Publishing datasets failed",
			log.NewFields().WithOperation(log.OpPublish).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		return nil, fmt.Errorf("publish datasets: %w", err)
	}

	p.notify(ctx, logger, outcome)

	outcome.Duration = time.Since(start)
	logger.InfoContext(ctx, "Run completed",
		log.FieldAccepted, outcome.Report.TotalAccepted,
		log.FieldRejected, outcome.Report.TotalRejected,
		"artifacts", len(outcome.Artifacts),
		log.FieldDuration, outcome.Duration.Milliseconds())
	return outcome, nil
}

// loadSheet reads and extracts one sheet, falling back to the snapshot when
// the primary source cannot be read.
func (p *Pipeline) loadSheet(ctx context.Context, logger *log.Logger, name string) (sheetOutcome, error) {
	kind, _ := p.opts.Extractor.KindOf(name)
	logger = logger.With(log.FieldSheet, name, log.FieldKind, string(kind))

	r := &fallbackReader{p: p, logger: logger}
	res, err := p.opts.Extractor.ExtractSheet(ctx, r, name)
	if err != nil {
		var missing *extract.MissingSheetError
		if errors.As(err, &missing) && p.opts.AllowMissing {
			return sheetOutcome{result: extract.Result{Sheet: name, Kind: kind}, missing: true}, nil
		}
		return sheetOutcome{}, err
	}
	logger.DebugContext(ctx, "Sheet extracted",
		log.NewFields().WithOperation(log.OpExtract).
			WithCounts(len(res.Transactions), len(res.Rejections), res.Excluded).ToSlice()...)
	return sheetOutcome{result: res, fromSnapshot: r.fromSnapshot}, nil
}

// fallbackReader reads from the primary source and serves the snapshot when
// the source fails. One reader per sheet.
type fallbackReader struct {
	p            *Pipeline
	logger       *log.Logger
	fromSnapshot bool
}

func (r *fallbackReader) ReadSheet(ctx context.Context, name string) ([][]any, error) {
	p := r.p
	values, err := p.opts.Source.ReadSheet(ctx, name)
	if err == nil {
		p.saveSnapshot(ctx, r.logger, name, values)
		return values, nil
	}
	if errors.Is(err, sheets.ErrSheetNotFound) || p.opts.Snapshots == nil || ctx.Err() != nil {
		return nil, err
	}

	r.logger.WarnContext(ctx, "Source read failed, using snapshot",
		log.NewFields().WithOperation(log.OpRead).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
	cached, serr := p.opts.Snapshots.ReadSheet(ctx, name)
	if serr != nil {
		return nil, fmt.Errorf("%w (no usable snapshot: %v)", err, serr)
	}
	if st, ok := p.opts.Snapshots.(snapshotInfo); ok {
		if info, ierr := st.Info(ctx, name); ierr == nil {
			r.logger.InfoContext(ctx, "Loaded snapshot", log.FieldSnapshotAt, info.SavedAt, "rows", info.Rows)
		}
	}
	r.fromSnapshot = true
	return cached, nil
}

// saveSnapshot refreshes the cached copy. Failures only cost the fallback.
func (p *Pipeline) saveSnapshot(ctx context.Context, logger *log.Logger, name string, values [][]any) {
	if p.opts.Snapshots == nil {
		return
	}
	if err := p.opts.Snapshots.SaveSnapshot(ctx, name, values); err != nil {
		logger.WarnContext(ctx, "Failed to save snapshot",
			log.NewFields().WithOperation(log.OpSnapshot).WithError(err, log.ErrorTypeDatabase).ToSlice()...)
	}
}

func (p *Pipeline) aggregate(results []extract.Result) output.Dataset {
	byKind := map[core.Kind][]core.Transaction{}
	for _, r := range results {
		byKind[r.Kind] = append(byKind[r.Kind], r.Transactions...)
	}
	expenses := aggregate.Standardize(byKind[core.KindExpense])
	income := aggregate.Standardize(byKind[core.KindIncome])
	savings := aggregate.Standardize(byKind[core.KindSavings])

	return output.Dataset{
		Monthly:          aggregate.MonthlySummary(expenses, income),
		ExpenseBreakdown: aggregate.SortedBreakdown(aggregate.CategoryBreakdown(expenses, p.opts.Breakdown)),
		IncomeBreakdown:  aggregate.SortedBreakdown(aggregate.CategoryBreakdown(income, p.opts.Breakdown)),
		ExpenseMonthly:   aggregate.MonthlyCategoryBreakdown(expenses, p.opts.Breakdown),
		IncomeMonthly:    aggregate.MonthlyCategoryBreakdown(income, p.opts.Breakdown),
		Savings:          aggregate.SavingsMetrics(savings),
		SavingsTotals:    aggregate.SavingsTotals(savings),
		Expenses:         expenses,
		Income:           income,
		SavingsRecords:   savings,
	}
}

func (p *Pipeline) logReport(ctx context.Context, logger *log.Logger, rep report.Report) {
	rl := logger.WithComponent(log.ComponentReport)
	for _, s := range rep.Sheets {
		rl.InfoContext(ctx, "Sheet summary",
			log.NewFields().WithSheet(s.Sheet, string(s.Kind)).WithCounts(s.Accepted, s.Rejected, s.Excluded).ToSlice()...)
		categories := make([]string, 0, len(s.Remapped))
		for c := range s.Remapped {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			rl.InfoContext(ctx, "Category replaced by fallback",
				log.FieldSheet, s.Sheet, "category", c, log.FieldRemapped, s.Remapped[c])
		}
	}
	for _, c := range rep.Summary {
		rl.WarnContext(ctx, "Rows rejected",
			log.FieldSheet, c.Sheet, log.FieldReason, string(c.Reason), log.FieldCount, c.Count)
	}
	for _, m := range rep.MissingSheets {
		rl.WarnContext(ctx, "Sheet missing", log.FieldSheet, m)
	}
}

// notify publishes the run announcement. The datasets are already stored, so
// a failure is logged and the run still succeeds.
func (p *Pipeline) notify(ctx context.Context, logger *log.Logger, outcome *Outcome) {
	if p.opts.Notifier == nil {
		return
	}
	msg := amqp.NewRunCompletedMessage(outcome.RunID, p.opts.SourceName, outcome.Report, outcome.Artifacts)
	msg.FromSnapshot = outcome.FromSnapshot
	if err := p.opts.Notifier.PublishRunCompleted(ctx, msg); err != nil {
		logger.WithComponent(log.ComponentAMQP).WarnContext(ctx, "Failed to publish run notification",
			log.NewFields().WithOperation(log.OpNotify).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
	}
}

func errorType(err error) string {
	var missing *extract.MissingSheetError
	switch {
	case errors.As(err, &missing):
		return log.ErrorTypeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeInternal
	default:
		return log.ErrorTypeNetwork
	}
}
