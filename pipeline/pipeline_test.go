package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/ecam-fetch/models"
)

type mockWriter struct {
	mu      sync.Mutex
	batches [][]*models.DownloadResult
	err     error
}

func (mw *mockWriter) Write(results []*models.DownloadResult) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.err != nil {
		return mw.err
	}
	batch := make([]*models.DownloadResult, len(results))
	copy(batch, results)
	mw.batches = append(mw.batches, batch)
	return nil
}

func (mw *mockWriter) Close() error    { return nil }
func (mw *mockWriter) Validate() error { return nil }

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func sampleResult(i int, outcome models.Outcome) *models.DownloadResult {
	r := models.NewResult(
		fmt.Sprintf("http://example.test/data/ecam/20250704/f%03d.fits", i),
		fmt.Sprintf("data/20250704/f%03d.fits", i),
	)
	r.Date = "20250704"
	r.Outcome = outcome
	r.FinishedAt = time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)
	return r
}

func TestPipelineValidationAndDedup(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	valid := sampleResult(1, models.OutcomeDownloaded)
	invalid := sampleResult(2, models.Outcome("pending"))
	duplicate := sampleResult(1, models.OutcomeSkipped)

	if err := p.Process(valid, invalid, nil, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 1 {
		t.Fatalf("written = %d, want 1", got)
	}
	snap := p.GetMetrics()
	if snap.Recorded != 1 {
		t.Fatalf("recorded = %d, want 1", snap.Recorded)
	}
	if snap.Rejected["invalid_record"] != 1 {
		t.Fatalf("invalid_record = %d, want 1", snap.Rejected["invalid_record"])
	}
	if snap.Rejected["duplicate_path"] != 1 {
		t.Fatalf("duplicate_path = %d, want 1", snap.Rejected["duplicate_path"])
	}
	if snap.Outcomes[models.OutcomeDownloaded] != 1 {
		t.Fatalf("downloaded = %d, want 1", snap.Outcomes[models.OutcomeDownloaded])
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	for i := 0; i < 33; i++ {
		if err := p.Process(sampleResult(i, models.OutcomeDownloaded)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 || sizes[0] != 32 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [32 1]", sizes)
	}
}

func TestPipelineCloseDrainsPending(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(3)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := p.Process(sampleResult(g*100+i, models.OutcomeSkipped)); err != nil {
					t.Errorf("process: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := writer.totalWritten(); got != 100 {
		t.Fatalf("written = %d, want 100", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{})
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(sampleResult(1, models.OutcomeDownloaded)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineWriteErrorSurfaces(t *testing.T) {
	writeErr := errors.New("disk full")
	p := NewPipeline(&mockWriter{err: writeErr})
	p.Start(1)

	if err := p.Process(sampleResult(1, models.OutcomeDownloaded)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); !errors.Is(err, writeErr) {
		t.Fatalf("close = %v, want %v", err, writeErr)
	}
}

func BenchmarkPipelineThroughput(b *testing.B) {
	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			p := NewPipeline(&mockWriter{})
			p.Start(workers)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := p.Process(sampleResult(i, models.OutcomeDownloaded)); err != nil {
					b.Fatalf("process: %v", err)
				}
			}
			b.StopTimer()
			if err := p.Close(); err != nil {
				b.Fatalf("close: %v", err)
			}
		})
	}
}
