package queue

import (
	"sync"
	"time"

	"github.com/poiesic/chunkflow/core"
)

// progressTracker accumulates per-job progress, including a running average
// of per-chunk ingestion latency used to estimate time remaining. It is
// advisory only; chunk state in the repository remains authoritative.
type progressTracker struct {
	mu           sync.Mutex
	total        int
	processed    int
	current      int
	totalLatency time.Duration
	samples      int
	startTime    time.Time
}

// begin resets the tracker for a fresh run over total chunks.
func (p *progressTracker) begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.processed = 0
	p.current = 0
	p.totalLatency = 0
	p.samples = 0
	p.startTime = time.Now()
}

// record notes that the chunk at chunkNumber finished an ingestion attempt.
// A zero latency (chunk skipped because it was already synced) does not feed
// the running average.
func (p *progressTracker) record(chunkNumber int, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	p.current = chunkNumber
	if latency > 0 {
		p.totalLatency += latency
		p.samples++
	}
}

// snapshot builds a progress report for the given job.
func (p *progressTracker) snapshot(jobId, documentId string) core.ProcessingProgress {
	p.mu.Lock()
	defer p.mu.Unlock()

	var eta time.Duration
	if p.samples > 0 && p.processed < p.total {
		avg := p.totalLatency / time.Duration(p.samples)
		eta = avg * time.Duration(p.total-p.processed)
	}

	return core.ProcessingProgress{
		JobId:                  jobId,
		DocumentId:             documentId,
		TotalChunks:            p.total,
		ProcessedChunks:        p.processed,
		CurrentChunk:           p.current,
		EstimatedTimeRemaining: eta,
		UpdatedAt:              time.Now().UTC(),
	}
}
