package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/ecam-fetch/config"
	"github.com/aluiziolira/ecam-fetch/display"
	"github.com/aluiziolira/ecam-fetch/pipeline"
	"github.com/aluiziolira/ecam-fetch/scraper"
	"github.com/spf13/afero"
)

func runDays(args []string, stdout, stderr io.Writer) int {
	def := config.DefaultConfig()
	fs := flag.NewFlagSet("days", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: ecam days [flags]")
		fs.PrintDefaults()
	}

	var (
		common  commonFlags
		output  string
		noTable bool
	)
	common.register(fs, def)
	fs.StringVar(&output, "output", "", "Save the dates to this file, one per line")
	fs.BoolVar(&noTable, "no-table", false, "Skip the dates table")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return flagError(stderr, err)
	}
	out := common.display(stdout)
	if len(positional) != 0 {
		out.ShowError(fmt.Sprintf("days takes no arguments, got %q", positional))
		return 1
	}

	cfg, err := loadConfig(common.configPath)
	if err != nil {
		out.ShowError(err.Error())
		return 1
	}
	fs.Visit(func(f *flag.Flag) { common.apply(f.Name, cfg) })
	if err := cfg.Validate(); err != nil {
		out.ShowError(fmt.Sprintf("Invalid configuration: %v", err))
		return 1
	}

	logger := newLogger(cfg.Verbose, stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lister, err := scraper.NewLister(cfg, nil, nil, logger)
	if err != nil {
		out.ShowError(err.Error())
		return 1
	}

	out.ShowServerInfo(lister.BaseURL())
	dates, err := lister.ListDates(ctx)
	if err != nil {
		out.ShowError(fmt.Sprintf("Failed to fetch directory listing: %v", err))
		return 1
	}
	if len(dates) == 0 {
		out.ShowError("No date directories found")
		return 1
	}

	out.ShowDatesFound(len(dates))
	if !noTable {
		out.ShowDatesTable(dates)
	}
	out.ShowDatesSummary(dates)

	if output != "" {
		if err := pipeline.WriteDateList(afero.NewOsFs(), output, dates); err != nil {
			out.ShowSaveError(err)
			return 1
		}
		out.ShowSaveSuccess(output, len(dates))
	}
	return 0
}
