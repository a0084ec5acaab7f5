package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/ecam-fetch/config"
	"github.com/aluiziolira/ecam-fetch/display"
	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/aluiziolira/ecam-fetch/parser"
	"github.com/aluiziolira/ecam-fetch/pipeline"
	"github.com/aluiziolira/ecam-fetch/scraper"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type fetchFlags struct {
	commonFlags
	outputDir      string
	force          bool
	maxConcurrent  int
	delay          time.Duration
	bandwidthLimit int64
	reportFile     string
	reportFormat   string
	metricsAddr    string
	noProgress     bool
}

func (f *fetchFlags) apply(name string, cfg *config.Config) {
	switch name {
	case "output-dir":
		cfg.OutputDir = f.outputDir
	case "force":
		cfg.Force = f.force
	case "max-concurrent":
		cfg.MaxConcurrent = f.maxConcurrent
	case "delay":
		cfg.DispatchDelay = f.delay
	case "bandwidth-limit":
		cfg.BandwidthLimit = f.bandwidthLimit
	case "report":
		cfg.ReportFile = f.reportFile
	case "report-format":
		cfg.ReportFormat = f.reportFormat
	case "metrics-addr":
		cfg.MetricsAddr = f.metricsAddr
	default:
		f.commonFlags.apply(name, cfg)
	}
}

func runFetch(args []string, stdout, stderr io.Writer) int {
	def := config.DefaultConfig()
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: ecam fetch DATE [flags]")
		fs.PrintDefaults()
	}

	var opts fetchFlags
	opts.register(fs, def)
	fs.StringVar(&opts.outputDir, "output-dir", def.OutputDir, "Directory that receives {DATE}/ subdirectories")
	fs.BoolVar(&opts.force, "force", false, "Download even when a complete local copy exists")
	fs.IntVar(&opts.maxConcurrent, "max-concurrent", def.MaxConcurrent, "Maximum simultaneous downloads")
	fs.DurationVar(&opts.delay, "delay", def.DispatchDelay, "Pause between starting downloads")
	fs.Int64Var(&opts.bandwidthLimit, "bandwidth-limit", 0, "Total bytes per second across downloads (0 = unlimited)")
	fs.StringVar(&opts.reportFile, "report", "", "Write a per-file report to this path")
	fs.StringVar(&opts.reportFormat, "report-format", def.ReportFormat, "Report format: csv, json, or dual")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&opts.noProgress, "no-progress", false, "Print file results without a progress bar")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return flagError(stderr, err)
	}
	out := opts.display(stdout)
	if len(positional) != 1 {
		out.ShowError("fetch takes exactly one DATE argument (YYYYMMDD)")
		return 1
	}
	date := positional[0]

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		out.ShowError(err.Error())
		return 1
	}
	fs.Visit(func(f *flag.Flag) { opts.apply(f.Name, cfg) })

	if !parser.IsDate(date) {
		out.ShowError("Invalid date format. Use YYYYMMDD (e.g. 20250704)")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		out.ShowError(fmt.Sprintf("Invalid configuration: %v", err))
		return 1
	}

	logger := newLogger(cfg.Verbose, stderr).With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received, waiting for in-flight downloads")
	}()

	metrics := scraper.NewMetrics()
	shutdownMetrics := serveMetrics(cfg.MetricsAddr, metrics, logger)
	defer shutdownMetrics()

	free, err := pipeline.FreeSpace(ctx, cfg.OutputDir)
	if err != nil {
		logger.Warn("could not determine free space", slog.Any("error", err))
	}
	out.ShowConfiguration(display.Settings{
		BaseURL:       cfg.NormalizedBaseURL(),
		Date:          date,
		OutputDir:     cfg.OutputDir,
		Force:         cfg.Force,
		MaxConcurrent: cfg.MaxConcurrent,
		FreeSpace:     free,
	})
	if err == nil && free < cfg.MinFreeSpace {
		out.ShowWarning(fmt.Sprintf("Only %s free under %s", humanize.IBytes(free), cfg.OutputDir))
	}

	lister, err := scraper.NewLister(cfg, nil, metrics, logger)
	if err != nil {
		out.ShowError(err.Error())
		return 1
	}
	fsys := afero.NewOsFs()
	downloader := scraper.NewDownloader(cfg, fsys, metrics, logger)

	batch := pipeline.NewBatch(cfg, lister, downloader, fsys, logger)
	batch.Metrics = metrics

	view := &batchView{d: out, maxConcurrent: cfg.MaxConcurrent}
	if !opts.noProgress {
		view.progress = out.NewProgress(0)
	}
	batch.Observer = view

	var recorder *pipeline.Pipeline
	var report pipeline.OutputWriter
	if cfg.ReportFile != "" {
		report, err = pipeline.OpenReport(fsys, cfg.ReportFormat, cfg.ReportFile)
		if err != nil {
			out.ShowError(err.Error())
			return 1
		}
		recorder = pipeline.NewPipeline(report)
		recorder.Start(2)
		batch.Recorder = recorder
	}

	summary := batch.Run(ctx, date)
	if view.progress != nil && summary.Total > 0 {
		view.progress.Done()
	}

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			logger.Error("report pipeline failed", slog.Any("error", err))
		}
		if summary.Total > 0 {
			if err := report.Validate(); err != nil {
				logger.Warn("report validation failed", slog.Any("error", err))
			} else {
				out.ShowInfo("Report written to " + cfg.ReportFile)
			}
		}
		if err := report.Close(); err != nil {
			logger.Error("close report", slog.Any("error", err))
		}
	}

	if summary.Error != "" {
		out.ShowError(summary.Error)
		return 1
	}

	out.ShowDownloadSummary(summary)
	if summary.Success {
		out.ShowSuccess("")
		return 0
	}
	if ctx.Err() != nil {
		out.ShowWarning("Interrupted, partially written files may remain")
	}
	out.ShowWarning(fmt.Sprintf("%d of %d files failed to download", summary.Failed, summary.Total))
	return 1
}

// batchView adapts the display to the batch observer.
type batchView struct {
	d             *display.Display
	progress      *display.Progress
	maxConcurrent int
}

func (v *batchView) BatchStarted(date string, total int) {
	v.d.ShowDownloadStart(date, total, v.maxConcurrent)
	if v.progress != nil {
		v.progress.BatchStarted(date, total)
	}
}

func (v *batchView) FileFinished(r *models.DownloadResult) {
	if v.progress != nil {
		v.progress.FileFinished(r)
		return
	}
	v.d.ShowFileStatus(r)
}
