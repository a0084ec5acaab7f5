package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the ECAM directory on the MRO data server.
const DefaultBaseURL = "http://72.233.250.83/data/ecam/"

// Config holds downloader configuration. It is passed explicitly to every
// component; nothing reads package-level state.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	OutputDir        string        `yaml:"output_dir"`
	FileExtension    string        `yaml:"file_extension"`
	Force            bool          `yaml:"force"`
	MaxConcurrent    int           `yaml:"max_concurrent"`
	DispatchDelay    time.Duration `yaml:"dispatch_delay"`
	Timeout          time.Duration `yaml:"timeout"`
	DownloadTimeout  time.Duration `yaml:"download_timeout"`
	BandwidthLimit   int64         `yaml:"bandwidth_limit"` // bytes per second, 0 = unlimited
	ListingCacheTTL  time.Duration `yaml:"listing_cache_ttl"`
	ListingCacheSize int           `yaml:"listing_cache_size"`
	UserAgent        string        `yaml:"user_agent"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	ReportFile       string        `yaml:"report_file"`
	ReportFormat     string        `yaml:"report_format"` // csv, json, or dual
	MinFreeSpace     uint64        `yaml:"min_free_space"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultConfig returns conservative defaults for the MRO server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		OutputDir:        "data",
		FileExtension:    ".fits",
		Force:            false,
		MaxConcurrent:    5,
		DispatchDelay:    100 * time.Millisecond,
		Timeout:          30 * time.Second,
		DownloadTimeout:  10 * time.Minute,
		BandwidthLimit:   0,
		ListingCacheTTL:  time.Minute,
		ListingCacheSize: 128,
		UserAgent:        "ecam-fetch/1.0 (+https://github.com/aluiziolira/ecam-fetch)",
		ReportFormat:     "csv",
		MinFreeSpace:     512 << 20,
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if !strings.HasPrefix(c.FileExtension, ".") || len(c.FileExtension) < 2 {
		return fmt.Errorf("file extension must start with a dot")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent must be at least 1")
	}
	if c.DispatchDelay < 0 {
		return fmt.Errorf("dispatch delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DownloadTimeout < 0 {
		return fmt.Errorf("download timeout cannot be negative")
	}
	if c.BandwidthLimit < 0 {
		return fmt.Errorf("bandwidth limit cannot be negative")
	}
	if c.ListingCacheTTL < 0 {
		return fmt.Errorf("listing cache ttl cannot be negative")
	}
	if c.ListingCacheTTL > 0 && c.ListingCacheSize <= 0 {
		return fmt.Errorf("listing cache size must be positive when caching is enabled")
	}
	if c.ReportFile != "" {
		switch c.ReportFormat {
		case "csv", "json", "dual":
		default:
			return fmt.Errorf("report format must be csv, json, or dual")
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// NormalizedBaseURL returns BaseURL with exactly one trailing slash so that
// directory requests do not bounce through a redirect.
func (c *Config) NormalizedBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/"
}
