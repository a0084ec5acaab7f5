// Package models defines the values exchanged between the listing fetcher,
// the downloader, the batch orchestrator and the display.
package models

import (
	"path"
	"time"
)

// Outcome is the terminal state of a single file download.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeDownloaded, OutcomeSkipped, OutcomeFailed:
		return true
	}
	return false
}

// DownloadResult records what happened to one file.
type DownloadResult struct {
	Date       string        `csv:"date" json:"date"`
	File       string        `csv:"file" json:"file"`
	URL        string        `csv:"url" json:"url"`
	Path       string        `csv:"path" json:"path"`
	Outcome    Outcome       `csv:"outcome" json:"outcome"`
	Bytes      int64         `csv:"bytes" json:"bytes"`
	RemoteSize int64         `csv:"remote_size" json:"remote_size"`
	Reason     string        `csv:"reason" json:"reason,omitempty"`
	Error      string        `csv:"error" json:"error,omitempty"`
	Duration   time.Duration `csv:"duration_ms" json:"duration_ns"`
	FinishedAt time.Time     `csv:"finished_at" json:"finished_at"`

	// Err keeps the typed error for classification; it is not serialised.
	Err error `csv:"-" json:"-"`
}

// NewResult starts a result for url saved at dest, with an unknown remote
// size. Date is filled in by the batch.
func NewResult(url, dest string) *DownloadResult {
	return &DownloadResult{
		File:       path.Base(dest),
		URL:        url,
		Path:       dest,
		RemoteSize: -1,
	}
}

// BatchSummary aggregates the results of downloading one date.
type BatchSummary struct {
	Date          string
	Downloaded    int
	Skipped       int
	Failed        int
	Total         int
	OutputDir     string
	MaxConcurrent int
	Success       bool
	Error         string
	Bytes         int64
	Results       []*DownloadResult
	StartTime     time.Time
	EndTime       time.Time
}

// Duration is the wall time of the batch.
func (s *BatchSummary) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Tally recomputes the counters and the success flag from Results.
// Total is left untouched: it is the number of listed files.
func (s *BatchSummary) Tally() {
	s.Downloaded, s.Skipped, s.Failed, s.Bytes = 0, 0, 0, 0
	for _, r := range s.Results {
		if r == nil {
			continue
		}
		switch r.Outcome {
		case OutcomeDownloaded:
			s.Downloaded++
			s.Bytes += r.Bytes
		case OutcomeSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	s.Success = s.Failed == 0 && s.Total > 0
}
