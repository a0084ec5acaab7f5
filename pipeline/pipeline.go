// Package pipeline runs a date's downloads and records their results.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/ecam-fetch/models"
)

// ErrPipelineClosed is returned when Process is called after shutdown.
var ErrPipelineClosed = errors.New("pipeline: closed")

// OutputWriter persists batches of download results.
type OutputWriter interface {
	Write(results []*models.DownloadResult) error
	Close() error
	Validate() error
}

// Pipeline is an asynchronous result sink. Results are checked, repeats of
// a destination path are dropped, and the rest reach the writer in batches.
type Pipeline struct {
	writer    OutputWriter
	resultCh  chan *models.DownloadResult
	batchSize int

	wg sync.WaitGroup

	seen   map[string]struct{}
	seenMu sync.Mutex

	stats stats

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{
		writer:    writer,
		resultCh:  make(chan *models.DownloadResult, 256),
		batchSize: 32,
		seen:      make(map[string]struct{}),
		stats:     stats{rejected: make(map[string]int), outcomes: make(map[models.Outcome]int)},
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	if closed, _ := p.state(); closed {
		return
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process queues results for recording. It is safe for concurrent use.
func (p *Pipeline) Process(results ...*models.DownloadResult) error {
	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		if err := p.enqueue(r); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued results and stops the workers. It does not close the
// writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() { close(p.resultCh) })
	p.wg.Wait()
	return p.Err()
}

// Err returns the first write error.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Snapshot is a copy of the pipeline counters.
type Snapshot struct {
	Recorded int64
	Outcomes map[models.Outcome]int
	Rejected map[string]int
}

// GetMetrics returns the current counters.
func (p *Pipeline) GetMetrics() Snapshot {
	return p.stats.snapshot()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.DownloadResult, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := p.writer.Write(batch)
		batch = batch[:0]
		return err
	}

	for r := range p.resultCh {
		if !p.accept(r) {
			continue
		}
		batch = append(batch, r)
		if len(batch) < p.batchSize {
			continue
		}
		if err := flush(); err != nil {
			p.setErr(fmt.Errorf("write batch: %w", err))
			return
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) accept(r *models.DownloadResult) bool {
	if r.Path == "" || r.URL == "" || !r.Outcome.Valid() {
		p.stats.reject("invalid_record")
		return false
	}

	p.seenMu.Lock()
	_, dup := p.seen[r.Path]
	if !dup {
		p.seen[r.Path] = struct{}{}
	}
	p.seenMu.Unlock()
	if dup {
		p.stats.reject("duplicate_path")
		return false
	}

	p.stats.record(r.Outcome)
	return true
}

func (p *Pipeline) enqueue(r *models.DownloadResult) (err error) {
	// A concurrent setErr may close resultCh between the state check and
	// the send.
	defer func() {
		if recover() != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.resultCh <- r:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() { close(p.resultCh) })
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
}

type stats struct {
	mu       sync.Mutex
	recorded int64
	outcomes map[models.Outcome]int
	rejected map[string]int
}

func (s *stats) record(o models.Outcome) {
	s.mu.Lock()
	s.recorded++
	s.outcomes[o]++
	s.mu.Unlock()
}

func (s *stats) reject(kind string) {
	s.mu.Lock()
	s.rejected[kind]++
	s.mu.Unlock()
}

func (s *stats) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Recorded: s.recorded,
		Outcomes: make(map[models.Outcome]int, len(s.outcomes)),
		Rejected: make(map[string]int, len(s.rejected)),
	}
	for k, v := range s.outcomes {
		out.Outcomes[k] = v
	}
	for k, v := range s.rejected {
		out.Rejected[k] = v
	}
	return out
}
