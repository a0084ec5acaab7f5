package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/ecam-fetch/config"
	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/aluiziolira/ecam-fetch/parser"
	"github.com/aluiziolira/ecam-fetch/scraper"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"
)

// Lister lists the files published for a date.
type Lister interface {
	ListFiles(ctx context.Context, date string) ([]string, error)
}

// Fetcher downloads one file. Failures are reported in the result.
type Fetcher interface {
	Download(ctx context.Context, url, dest string, force bool) *models.DownloadResult
}

// Observer is told about batch progress. FileFinished may be called from
// several goroutines at once.
type Observer interface {
	BatchStarted(date string, total int)
	FileFinished(result *models.DownloadResult)
}

// Recorder receives every finished result.
type Recorder interface {
	Process(results ...*models.DownloadResult) error
}

var errNotDispatched = errors.New("not dispatched")

// Batch downloads every file of a date with bounded concurrency.
type Batch struct {
	cfg     *config.Config
	lister  Lister
	fetcher Fetcher
	fs      afero.Fs
	log     *slog.Logger

	Observer Observer
	Recorder Recorder
	Metrics  *scraper.Metrics
}

// NewBatch wires a batch. A nil fs uses the real filesystem.
func NewBatch(cfg *config.Config, lister Lister, fetcher Fetcher, fs afero.Fs, log *slog.Logger) *Batch {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batch{cfg: cfg, lister: lister, fetcher: fetcher, fs: fs, log: log}
}

// Run downloads all files listed for date into {OutputDir}/{date}. It
// returns once every dispatched download has finished. Files left
// undispatched by cancellation are counted as failed.
func (b *Batch) Run(ctx context.Context, date string) *models.BatchSummary {
	outDir := filepath.Join(b.cfg.OutputDir, date)
	summary := &models.BatchSummary{
		Date:          date,
		OutputDir:     outDir,
		MaxConcurrent: b.cfg.MaxConcurrent,
		StartTime:     time.Now(),
	}
	fail := func(msg string) *models.BatchSummary {
		summary.Error = msg
		summary.Success = false
		summary.EndTime = time.Now()
		b.log.Error("batch aborted", slog.String("date", date), slog.String("error", msg))
		return summary
	}

	if !parser.IsDate(date) {
		return fail(fmt.Sprintf("invalid date %q, expected YYYYMMDD", date))
	}
	if b.cfg.MaxConcurrent < 1 {
		return fail("max concurrent must be at least 1")
	}

	files, err := b.lister.ListFiles(ctx, date)
	if err != nil {
		return fail(fmt.Sprintf("list files: %v", err))
	}
	if len(files) == 0 {
		return fail(fmt.Sprintf("no %s files found for %s", b.cfg.FileExtension, date))
	}
	summary.Total = len(files)

	if err := b.fs.MkdirAll(outDir, 0o755); err != nil {
		return fail((&scraper.FileSystemError{Op: "mkdir", Path: outDir, Err: err}).Error())
	}

	b.log.Info("batch started",
		slog.String("date", date),
		slog.Int("files", len(files)),
		slog.Int("max_concurrent", b.cfg.MaxConcurrent),
	)
	if b.Observer != nil {
		b.Observer.BatchStarted(date, len(files))
	}

	results := b.dispatch(ctx, date, outDir, files)

	summary.Results = results
	summary.Tally()
	summary.EndTime = time.Now()
	b.log.Info("batch finished",
		slog.String("date", date),
		slog.Int("downloaded", summary.Downloaded),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration()),
	)
	return summary
}

func (b *Batch) dispatch(ctx context.Context, date, outDir string, files []string) []*models.DownloadResult {
	results := make([]*models.DownloadResult, len(files))
	sem := semaphore.NewWeighted(int64(b.cfg.MaxConcurrent))
	var wg sync.WaitGroup

	for i, name := range files {
		if i > 0 && !b.pause(ctx) {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = b.fetch(ctx, date, outDir, name)
		}(i, name)
	}
	wg.Wait()

	for i, name := range files {
		if results[i] != nil {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = errNotDispatched
		}
		r := models.NewResult(b.fileURL(date, name), filepath.Join(outDir, name))
		r.Date = date
		r.Outcome = models.OutcomeFailed
		r.Err = cause
		r.Error = fmt.Sprintf("not started: %v", cause)
		r.FinishedAt = time.Now()
		b.finish(r)
		results[i] = r
	}
	return results
}

// pause waits DispatchDelay. It returns false if ctx ends first.
func (b *Batch) pause(ctx context.Context) bool {
	if b.cfg.DispatchDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(b.cfg.DispatchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (b *Batch) fetch(ctx context.Context, date, outDir, name string) *models.DownloadResult {
	url := b.fileURL(date, name)
	dest := filepath.Join(outDir, name)

	b.Metrics.DownloadStarted()
	r := b.fetcher.Download(ctx, url, dest, b.cfg.Force)
	b.Metrics.DownloadFinished()

	if r == nil {
		r = models.NewResult(url, dest)
		r.Outcome = models.OutcomeFailed
		r.Error = "downloader returned no result"
		r.FinishedAt = time.Now()
	}
	r.Date = date
	b.finish(r)
	return r
}

func (b *Batch) finish(r *models.DownloadResult) {
	if b.Observer != nil {
		b.Observer.FileFinished(r)
	}
	if b.Recorder != nil {
		if err := b.Recorder.Process(r); err != nil {
			b.log.Warn("recording result failed", slog.String("file", r.File), slog.Any("error", err))
		}
	}
}

func (b *Batch) fileURL(date, name string) string {
	return scraper.FileURL(b.cfg.NormalizedBaseURL(), date, name)
}
