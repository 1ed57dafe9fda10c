package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron"

	"finanze/internal/amqp"
	"finanze/internal/backend"
	"finanze/internal/cli"
	"finanze/internal/config"
	"finanze/internal/extract"
	"finanze/internal/log"
	"finanze/internal/output"
	"finanze/internal/pipeline"
	"finanze/internal/validator"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if cfg.RunSchedule == "" {
		if err := run(ctx, cfg, logger); err != nil {
			logger.Error("Run failed", log.FieldError, err)
			cancel()
			os.Exit(1)
		}
		return
	}

	if err := schedule(ctx, cfg, logger); err != nil {
		logger.Error("Scheduler failed", log.FieldError, err)
		cancel()
		os.Exit(1)
	}
}

// schedule runs once at startup and then on every tick of RUN_SCHEDULE until
// the process is signalled. A tick that fires while a run is in progress is
// skipped.
func schedule(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	var mu sync.Mutex
	tick := func() {
		if !mu.TryLock() {
			logger.Warn("Previous run still in progress, skipping tick")
			return
		}
		defer mu.Unlock()
		if err := run(ctx, cfg, logger); err != nil {
			logger.Error("Run failed", log.FieldError, err)
		}
	}

	tick()

	c := cron.New()
	if err := c.AddFunc(cfg.RunSchedule, tick); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.RunSchedule, err)
	}
	c.Start()
	logger.Info("Scheduler started", "schedule", cfg.RunSchedule)

	<-ctx.Done()
	c.Stop()
	mu.Lock()
	defer mu.Unlock()
	logger.Info("Scheduler stopped")
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	logger.Info("Starting finanze",
		log.FieldOperation, log.OpStartup,
		"backend", cfg.SourceBackend,
		"sheets", cfg.Pipeline.SheetNames())

	v, err := validator.New(cfg.Pipeline.ValidatorConfig())
	if err != nil {
		return err
	}
	extractor, err := extract.New(v, cfg.Pipeline.ExtractConfig())
	if err != nil {
		return err
	}
	period, err := cfg.BreakdownPeriod()
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	src, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if src.Cleanup != nil {
		defer func() {
			if err := src.Cleanup(); err != nil {
				logger.Warn("Failed to close source", log.FieldError, err)
			}
		}()
	}

	sink, closeSink, err := newSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := pipeline.Options{
		Source:       src.Source,
		Snapshots:    src.Snapshots,
		Extractor:    extractor,
		Sheets:       cfg.Pipeline.SheetNames(),
		Sink:         sink,
		Breakdown:    period,
		SourceName:   cfg.SourceBackend,
		AllowMissing: cfg.AllowMissingSheets,
		Logger:       logger,
	}

	// AMQP is optional; the datasets are still written without it
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			defer client.Close()
			opts.Notifier = client
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	outcome, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("run exceeded %v: %w", cfg.RunTimeout, err)
		}
		return err
	}

	logger.Info("Datasets published",
		log.FieldRunID, outcome.RunID,
		log.FieldAccepted, outcome.Report.TotalAccepted,
		log.FieldRejected, outcome.Report.TotalRejected,
		"from_snapshot", outcome.FromSnapshot,
		"missing_sheets", outcome.MissingSheets)
	return nil
}

// newSink writes to GCS when a bucket is configured and to OUTPUT_DIR otherwise.
func newSink(ctx context.Context, cfg *config.Config) (output.Sink, func(), error) {
	if cfg.OutputGCSBucket != "" {
		s, err := output.NewGCSSink(ctx, cfg.OutputGCSBucket, cfg.OutputGCSPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	s, err := output.NewDirSink(cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}
