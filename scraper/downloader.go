package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aluiziolira/ecam-fetch/config"
	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

// Downloader fetches single files to disk, skipping ones that are already
// complete.
type Downloader struct {
	cfg     *config.Config
	client  *http.Client
	fs      afero.Fs
	limiter *rate.Limiter
	Metrics *Metrics
	log     *slog.Logger
}

// NewDownloader builds a downloader writing to fs. A nil fs writes to the
// real filesystem.
func NewDownloader(cfg *config.Config, fs afero.Fs, metrics *Metrics, log *slog.Logger) *Downloader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = slog.Default()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConcurrent,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	d := &Downloader{
		cfg:     cfg,
		client:  &http.Client{Transport: transport, Timeout: cfg.DownloadTimeout},
		fs:      fs,
		Metrics: metrics,
		log:     log,
	}
	if cfg.BandwidthLimit > 0 {
		burst := int(cfg.BandwidthLimit)
		if burst < 32*1024 {
			burst = 32 * 1024
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.BandwidthLimit), burst)
	}
	return d
}

// WithTransport replaces the HTTP transport used for HEAD and GET requests.
func (d *Downloader) WithTransport(rt http.RoundTripper) {
	d.client.Transport = rt
}

// RemoteSize asks the server for the declared size of url. It returns -1
// when the server does not declare one.
func (d *Downloader) RemoteSize(ctx context.Context, url string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	d.Metrics.IncRequest("head")
	start := time.Now()
	resp, err := d.client.Do(req)
	d.Metrics.ObserveDuration("head", time.Since(start))
	if err != nil {
		return -1, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return -1, statusError(url, resp.StatusCode)
	}
	return contentLength(resp), nil
}

// Download saves url to dest. Unless force is set, an existing file whose
// size matches the server's declared size is left alone. Failures are
// reported in the result, never returned.
func (d *Downloader) Download(ctx context.Context, url, dest string, force bool) *models.DownloadResult {
	start := time.Now()
	result := models.NewResult(url, dest)
	defer func() {
		result.Duration = time.Since(start)
		result.FinishedAt = time.Now()
		d.Metrics.ObserveResult(result)
	}()

	if !force && d.complete(ctx, url, dest, result) {
		result.Outcome = models.OutcomeSkipped
		d.log.Debug("skipping complete file", slog.String("path", dest), slog.String("reason", result.Reason))
		return result
	}

	written, remote, err := d.fetch(ctx, url, dest)
	result.Bytes = written
	if remote >= 0 {
		result.RemoteSize = remote
	}
	if err != nil {
		category := classifyError(err)
		d.Metrics.IncError(category)
		d.log.Warn("download failed",
			slog.String("url", url),
			slog.String("category", category),
			slog.Any("error", err),
		)
		result.Outcome = models.OutcomeFailed
		result.Err = err
		result.Error = err.Error()
		return result
	}

	result.Outcome = models.OutcomeDownloaded
	d.log.Debug("downloaded", slog.String("path", dest), slog.Int64("bytes", written))
	return result
}

// complete reports whether dest already holds the whole remote file. It
// leaves a reason on result either way when a local file was found.
func (d *Downloader) complete(ctx context.Context, url, dest string, result *models.DownloadResult) bool {
	info, err := d.fs.Stat(dest)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	local := info.Size()

	remote, err := d.RemoteSize(ctx, url)
	if err != nil {
		result.Reason = fmt.Sprintf("could not verify file size: %v", err)
		return false
	}
	result.RemoteSize = remote

	switch {
	case remote > 0 && local == remote:
		result.Reason = fmt.Sprintf("already exists, size: %s bytes", humanize.Comma(local))
		return true
	case remote <= 0:
		result.Reason = fmt.Sprintf("remote size unknown, local: %s bytes", humanize.Comma(local))
	default:
		result.Reason = fmt.Sprintf("incomplete file, expected: %s, actual: %s",
			humanize.Comma(remote), humanize.Comma(local))
	}
	return false
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) (int64, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, -1, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	d.Metrics.IncRequest("get")
	start := time.Now()
	defer func() { d.Metrics.ObserveDuration("get", time.Since(start)) }()

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, -1, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, -1, statusError(url, resp.StatusCode)
	}
	remote := contentLength(resp)

	f, err := d.fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, remote, &FileSystemError{Op: "open", Path: dest, Err: err}
	}

	var body io.Reader = resp.Body
	if d.limiter != nil {
		body = &rateLimitedReader{ctx: ctx, r: resp.Body, limiter: d.limiter}
	}
	written, copyErr := io.Copy(fileWriter{w: f, path: dest}, body)
	closeErr := f.Close()

	if copyErr != nil {
		var fsErr *FileSystemError
		if errors.As(copyErr, &fsErr) {
			return written, remote, copyErr
		}
		return written, remote, &NetworkError{URL: url, Err: copyErr}
	}
	if closeErr != nil {
		return written, remote, &FileSystemError{Op: "close", Path: dest, Err: closeErr}
	}
	if remote >= 0 && written != remote {
		return written, remote, &NetworkError{
			URL: url,
			Err: fmt.Errorf("short body, got %d of %d bytes: %w", written, remote, io.ErrUnexpectedEOF),
		}
	}
	return written, remote, nil
}

func contentLength(resp *http.Response) int64 {
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return -1
}

type fileWriter struct {
	w    io.Writer
	path string
}

func (fw fileWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, &FileSystemError{Op: "write", Path: fw.path, Err: err}
	}
	return n, nil
}

// rateLimitedReader throttles reads through a shared limiter so the
// configured bandwidth covers all concurrent downloads.
type rateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	if burst := r.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
