// Package display renders listings, progress and summaries for the ecam
// command line.
package display

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

const dateLayout = "20060102"

// Display formats output onto a Console.
type Display struct {
	console  Console
	r        *lipgloss.Renderer
	profile  *termenv.Profile
	barWidth int

	title   lipgloss.Style
	accent  lipgloss.Style
	muted   lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	info    lipgloss.Style
	border  lipgloss.Style
	panel   lipgloss.Style
	heading lipgloss.Style
}

// Option customises a Display.
type Option func(*Display)

// WithRenderer sets the lipgloss renderer used for styling.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(d *Display) { d.r = r }
}

// WithColorProfile forces a color profile, e.g. termenv.Ascii for plain
// output on a terminal.
func WithColorProfile(p termenv.Profile) Option {
	return func(d *Display) { d.profile = &p }
}

// WithBarWidth sets the progress bar width in cells.
func WithBarWidth(n int) Option {
	return func(d *Display) {
		if n > 0 {
			d.barWidth = n
		}
	}
}

// New returns a Display writing to c. Styling follows the capabilities of
// the terminal behind c; other consoles get plain text.
func New(c Console, opts ...Option) *Display {
	if c == nil {
		c = Nop()
	}
	d := &Display{console: c, barWidth: 40}
	for _, opt := range opts {
		opt(d)
	}
	if d.r == nil {
		var w io.Writer = io.Discard
		if t, ok := c.(*Terminal); ok {
			w = t.Writer()
		}
		d.r = lipgloss.NewRenderer(w)
	}
	if d.profile != nil {
		d.r.SetColorProfile(*d.profile)
	}

	d.title = d.r.NewStyle().Bold(true).Foreground(lipgloss.Color("211"))
	d.accent = d.r.NewStyle().Foreground(lipgloss.Color("45"))
	d.muted = d.r.NewStyle().Foreground(lipgloss.Color("241"))
	d.good = d.r.NewStyle().Foreground(lipgloss.Color("42"))
	d.warn = d.r.NewStyle().Foreground(lipgloss.Color("214"))
	d.bad = d.r.NewStyle().Foreground(lipgloss.Color("196"))
	d.info = d.r.NewStyle().Foreground(lipgloss.Color("39"))
	d.border = d.r.NewStyle().Foreground(lipgloss.Color("62"))
	d.heading = d.r.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	d.panel = d.r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingLeft(1).
		PaddingRight(1)
	return d
}

// Settings is the configuration echoed before a download.
type Settings struct {
	BaseURL       string
	Date          string
	OutputDir     string
	Force         bool
	MaxConcurrent int
	// FreeSpace is the free bytes at OutputDir, 0 when unknown.
	FreeSpace uint64
}

func (d *Display) ShowConfiguration(s Settings) {
	force := "No"
	if s.Force {
		force = "Yes"
	}
	lines := []string{
		d.title.Render("MRO ECAM Downloader"),
		"Base URL: " + d.accent.Render(s.BaseURL),
		"Date: " + d.accent.Render(s.Date),
		"Output: " + d.accent.Render(s.OutputDir),
		"Force mode: " + d.accent.Render(force),
		"Max concurrent: " + d.accent.Render(strconv.Itoa(s.MaxConcurrent)),
	}
	if s.FreeSpace > 0 {
		lines = append(lines, "Free space: "+d.accent.Render(humanize.IBytes(s.FreeSpace)))
	}
	d.console.Println(d.heading.Render("Configuration"))
	d.console.Println(d.panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func (d *Display) ShowServerInfo(url string) {
	d.console.Println(d.info.Bold(true).Render("Fetching available days from MRO data server..."))
	d.console.Println(d.muted.Render("URL: " + url))
}

func (d *Display) ShowDatesFound(n int) {
	d.console.Println(d.good.Render(fmt.Sprintf("Found %d available days", n)))
}

// ShowDatesTable lists dates with their calendar form and weekday.
func (d *Display) ShowDatesTable(dates []string) {
	if len(dates) == 0 {
		d.console.Println(d.warn.Render("No date directories found"))
		return
	}

	rows := make([][]string, 0, len(dates))
	for i, date := range dates {
		formatted, weekday := "Invalid format", "Unknown"
		if t, err := time.Parse(dateLayout, date); err == nil {
			formatted, weekday = t.Format("2006-01-02"), t.Weekday().String()
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), date, formatted, weekday})
	}

	columns := []lipgloss.Style{d.accent, d.r.NewStyle(), d.good, d.warn}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(d.border).
		Headers("Index", "Date", "Formatted Date", "Day of Week").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := d.r.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			style = style.Inherit(columns[col])
			if col == 0 {
				style = style.Align(lipgloss.Right)
			}
			return style
		})

	d.console.Println("")
	d.console.Println(d.heading.Render("Available Days for Download"))
	d.console.Println(t.String())
}

// ShowDatesSummary prints the count and, when non-empty, the lexical range.
func (d *Display) ShowDatesSummary(dates []string) {
	d.console.Println("")
	d.console.Println(d.heading.Render("Summary:"))
	d.console.Println("Total available days: " + d.good.Render(strconv.Itoa(len(dates))))
	if len(dates) == 0 {
		return
	}
	earliest, latest := dates[0], dates[0]
	for _, date := range dates[1:] {
		if date < earliest {
			earliest = date
		}
		if date > latest {
			latest = date
		}
	}
	d.console.Println(fmt.Sprintf("Date range: %s to %s", d.accent.Render(earliest), d.accent.Render(latest)))
}

func (d *Display) ShowDownloadStart(date string, files, maxConcurrent int) {
	d.console.Println(d.info.Bold(true).Render(fmt.Sprintf("Fetching directory listing for %s...", date)))
	d.console.Println(d.good.Render(fmt.Sprintf("Found %d FITS files to download", files)))
	d.console.Println(d.accent.Render(fmt.Sprintf("Using %d concurrent downloads", maxConcurrent)))
}

// ShowFileStatus prints one line per finished file, preceded by a
// re-download note when an existing file was replaced.
func (d *Display) ShowFileStatus(r *models.DownloadResult) {
	if r == nil {
		panic("display: nil download result")
	}
	switch r.Outcome {
	case models.OutcomeSkipped:
		d.console.Println(d.muted.Render(fmt.Sprintf("Skipping %s (%s)", r.File, r.Reason)))
	case models.OutcomeDownloaded:
		if r.Reason != "" {
			d.console.Println(d.warn.Render(fmt.Sprintf("Re-downloading %s (%s)", r.File, r.Reason)))
		}
		d.console.Println(d.good.Render(fmt.Sprintf("✓ Downloaded %s (%s)", r.File, humanize.Bytes(uint64(max(r.Bytes, 0))))))
	case models.OutcomeFailed:
		msg := fmt.Sprintf("✗ Failed to download %s", r.File)
		if r.Error != "" {
			msg += ": " + r.Error
		}
		d.console.Println(d.bad.Render(msg))
	default:
		panic(fmt.Sprintf("display: unknown outcome %q", r.Outcome))
	}
}

// ShowDownloadSummary prints the per-date totals table.
func (d *Display) ShowDownloadSummary(s *models.BatchSummary) {
	if s == nil {
		panic("display: nil batch summary")
	}

	rows := [][]string{
		{"Total files found", strconv.Itoa(s.Total)},
		{"Files downloaded", d.good.Render(strconv.Itoa(s.Downloaded))},
		{"Files skipped", d.warn.Render(strconv.Itoa(s.Skipped))},
		{"Files failed", d.bad.Render(strconv.Itoa(s.Failed))},
		{"Files saved to", s.OutputDir},
	}
	if s.MaxConcurrent > 0 {
		rows = append(rows, []string{"Concurrent downloads", strconv.Itoa(s.MaxConcurrent)})
	}
	if s.Bytes > 0 {
		rows = append(rows, []string{"Data downloaded", humanize.Bytes(uint64(s.Bytes))})
	}
	if dur := s.Duration(); dur > 0 {
		rows = append(rows, []string{"Duration", dur.Round(time.Millisecond).String()})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(d.border).
		Headers("Metric", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := d.r.NewStyle().PaddingLeft(1).PaddingRight(1)
			switch {
			case row == table.HeaderRow:
				return style.Bold(true)
			case col == 0:
				return style.Inherit(d.accent)
			}
			return style
		})

	d.console.Println("")
	d.console.Println(d.heading.Render("Download Summary"))
	d.console.Println(t.String())
}

// ShowSuccess prints msg, or a default completion message when msg is empty.
func (d *Display) ShowSuccess(msg string) {
	if msg == "" {
		msg = "✅ All files processed successfully!"
	}
	d.console.Println("")
	d.console.Println(d.good.Bold(true).Render(msg))
}

func (d *Display) ShowError(msg string) {
	d.console.Println("")
	d.console.Println(d.bad.Bold(true).Render("❌ " + msg))
}

func (d *Display) ShowWarning(msg string) {
	d.console.Println("")
	d.console.Println(d.warn.Bold(true).Render("⚠️  " + msg))
}

func (d *Display) ShowInfo(msg string) {
	d.console.Println(d.info.Render(msg))
}

func (d *Display) ShowSaveSuccess(filename string, count int) {
	d.console.Println("")
	d.console.Println(d.good.Render(fmt.Sprintf("✓ Saved %d dates to %s", count, filename)))
}

func (d *Display) ShowSaveError(err error) {
	d.console.Println(d.bad.Render(fmt.Sprintf("Error saving to file: %v", err)))
}
