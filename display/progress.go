package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/charmbracelet/bubbles/progress"
)

// Progress tracks a running batch. It prints a status line per finished
// file and keeps a bar redrawn underneath them.
type Progress struct {
	d *Display

	mu       sync.Mutex
	bar      progress.Model
	date     string
	total    int
	finished int
	failed   int
	start    time.Time
}

// NewProgress returns a tracker for total files.
func (d *Display) NewProgress(total int) *Progress {
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(d.barWidth),
		progress.WithColorProfile(d.r.ColorProfile()),
	)
	return &Progress{d: d, bar: bar, total: total, start: time.Now()}
}

// BatchStarted resets the tracker for a date's file count.
func (p *Progress) BatchStarted(date string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.date = date
	p.total = total
	p.finished = 0
	p.failed = 0
	p.start = time.Now()
	p.d.console.Redraw(p.line())
}

// FileFinished reports one result and advances the bar.
func (p *Progress) FileFinished(r *models.DownloadResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.d.ShowFileStatus(r)
	p.finished++
	if r.Outcome == models.OutcomeFailed {
		p.failed++
	}
	p.d.console.Redraw(p.line())
}

// Done prints the final bar as a permanent line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.d.console.Println(p.line())
}

// Percent is the completed fraction, 0 when the total is unknown.
func (p *Progress) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent()
}

func (p *Progress) percent() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.finished) / float64(p.total)
}

func (p *Progress) line() string {
	label := "Downloading"
	if p.date != "" {
		label = "Downloading " + p.date
	}
	status := fmt.Sprintf("%d/%d", p.finished, p.total)
	if p.failed > 0 {
		status += p.d.bad.Render(fmt.Sprintf(" (%d failed)", p.failed))
	}
	elapsed := time.Since(p.start).Round(time.Second)
	return fmt.Sprintf("%s %s %s %s", p.d.info.Render(label), p.bar.ViewAs(p.percent()), status, p.d.muted.Render(elapsed.String()))
}
