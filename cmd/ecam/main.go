package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/ecam-fetch/config"
	"github.com/aluiziolira/ecam-fetch/display"
	"github.com/aluiziolira/ecam-fetch/scraper"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `Usage:
  ecam fetch DATE [flags]   download every FITS file published for DATE (YYYYMMDD)
  ecam days [flags]         list the dates available on the server

Run "ecam <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 1
	}
	switch args[0] {
	case "fetch", "download":
		return runFetch(args[1:], stdout, stderr)
	case "days", "list":
		return runDays(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}
}

// commonFlags are shared by every subcommand. They are applied over the
// file and environment configuration only when given explicitly.
type commonFlags struct {
	configPath string
	baseURL    string
	timeout    time.Duration
	verbose    bool
	noColor    bool
}

func (c *commonFlags) register(fs *flag.FlagSet, def *config.Config) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.baseURL, "base-url", def.BaseURL, "Base URL of the ECAM data directory")
	fs.DurationVar(&c.timeout, "timeout", def.Timeout, "Timeout for listing and HEAD requests")
	fs.BoolVar(&c.verbose, "v", false, "Enable verbose logging")
	fs.BoolVar(&c.noColor, "no-color", false, "Disable colors and styling")
}

func (c *commonFlags) display(stdout io.Writer) *display.Display {
	var opts []display.Option
	if c.noColor {
		opts = append(opts, display.WithColorProfile(termenv.Ascii))
	}
	return display.New(display.NewTerminal(stdout), opts...)
}

func (c *commonFlags) apply(name string, cfg *config.Config) {
	switch name {
	case "base-url":
		cfg.BaseURL = c.baseURL
	case "timeout":
		cfg.Timeout = c.timeout
	case "v":
		cfg.Verbose = c.verbose
	}
}

// loadConfig layers defaults, the YAML file, .env and ECAM_* variables.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// parseArgs parses fs allowing flags before and after positional
// arguments, which it returns in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func serveMetrics(addr string, metrics *scraper.Metrics, log *slog.Logger) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	log.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

// newLogger writes to w, which is stderr in practice: stdout belongs to the
// display. Warnings and errors only unless verbose.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func flagError(stderr io.Writer, err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintln(stderr, strings.TrimSpace(err.Error()))
	return 1
}
