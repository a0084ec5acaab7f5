package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/ecam-fetch/config"
	"github.com/aluiziolira/ecam-fetch/parser"
	"github.com/gocolly/colly/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Lister wraps a colly collector that reads directory index pages from the
// data server.
type Lister struct {
	cfg       *config.Config
	baseURL   string
	collector *colly.Collector
	parser    parser.Parser
	Metrics   *Metrics
	log       *slog.Logger

	cache *expirable.LRU[string, []string]
	group singleflight.Group
}

// NewLister builds a lister configured from cfg. A nil parser selects the
// goquery implementation.
func NewLister(cfg *config.Config, p parser.Parser, metrics *Metrics, log *slog.Logger) (*Lister, error) {
	base := cfg.NormalizedBaseURL()
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if p == nil {
		p = parser.New()
	}
	if log == nil {
		log = slog.Default()
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	l := &Lister{
		cfg:       cfg,
		baseURL:   base,
		collector: collector,
		parser:    p,
		Metrics:   metrics,
		log:       log,
	}
	if cfg.ListingCacheTTL > 0 {
		l.cache = expirable.NewLRU[string, []string](cfg.ListingCacheSize, nil, cfg.ListingCacheTTL)
	}
	return l, nil
}

// WithTransport replaces the HTTP transport used for index requests.
func (l *Lister) WithTransport(rt http.RoundTripper) {
	l.collector.WithTransport(rt)
}

// BaseURL returns the normalised server root.
func (l *Lister) BaseURL() string {
	return l.baseURL
}

// ListDates returns the YYYYMMDD directories published under the base URL.
func (l *Lister) ListDates(ctx context.Context) ([]string, error) {
	entries, err := l.index(ctx, l.baseURL)
	if err != nil {
		return nil, err
	}
	return parser.FilterDates(entries), nil
}

// ListFiles returns the file names with the configured extension published
// for date.
func (l *Lister) ListFiles(ctx context.Context, date string) ([]string, error) {
	entries, err := l.index(ctx, DateURL(l.baseURL, date))
	if err != nil {
		return nil, err
	}
	return parser.FilterFiles(entries, l.cfg.FileExtension), nil
}

func (l *Lister) index(ctx context.Context, pageURL string) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.cache != nil {
		if entries, ok := l.cache.Get(pageURL); ok {
			l.log.Debug("listing cache hit", slog.String("url", pageURL))
			return entries, nil
		}
	}

	v, err, shared := l.group.Do(pageURL, func() (any, error) {
		return l.visit(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.log.Debug("listing request shared", slog.String("url", pageURL))
	}

	entries, _ := v.([]string)
	if l.cache != nil {
		l.cache.Add(pageURL, entries)
	}
	return entries, nil
}

func (l *Lister) visit(ctx context.Context, pageURL string) ([]string, error) {
	c := l.collector.Clone()
	c.Context = ctx

	var (
		body   []byte
		status int
	)
	start := time.Now()
	c.OnRequest(func(r *colly.Request) {
		l.Metrics.IncRequest("listing")
		l.log.Debug("fetching index", slog.String("url", r.URL.String()))
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	err := c.Visit(pageURL)
	l.Metrics.ObserveDuration("listing", time.Since(start))
	if err != nil {
		netErr := &NetworkError{URL: pageURL, StatusCode: status, Err: err}
		category := classifyError(netErr)
		l.Metrics.IncError(category)
		l.log.Error("index request failed",
			slog.String("url", pageURL),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return nil, netErr
	}

	entries, err := l.parser.Entries(body)
	if err != nil {
		parseErr := &ParseError{URL: pageURL, Err: err}
		l.Metrics.IncError(classifyError(parseErr))
		l.log.Warn("treating unparsable index as empty", slog.Any("error", parseErr))
		return nil, nil
	}
	return entries, nil
}

// DateURL returns the index URL of a date directory.
func DateURL(base, date string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(date) + "/"
}

// FileURL returns the URL of a file inside a date directory.
func FileURL(base, date, name string) string {
	return DateURL(base, date) + url.PathEscape(name)
}
