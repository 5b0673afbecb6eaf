package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chunkflow/chunker"
	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/ingest"
	"github.com/poiesic/chunkflow/storage"
	"golang.org/x/time/rate"
)

const (
	// DefaultWorkers bounds how many jobs run concurrently, which in turn
	// bounds load on the downstream service.
	DefaultWorkers = 3

	// DefaultMaxInfraAttempts caps transparent retries of
	// infrastructure-level failures (storage errors) inside one job run.
	DefaultMaxInfraAttempts = 3

	// DefaultInfraRetryBase is the initial backoff for infrastructure retries.
	DefaultInfraRetryBase = 500 * time.Millisecond

	// DefaultRetention is how long terminal jobs are kept before
	// garbage collection.
	DefaultRetention = 24 * time.Hour

	defaultGCInterval    = time.Hour
	defaultQueueCapacity = 1024
)

// Request describes a document-processing submission.
type Request struct {
	DocumentId string
	Content    string
	UserId     string

	// Options overrides the processor's chunking options for this job.
	Options *chunker.Options
}

// Stats reports job counts by state.
type Stats struct {
	Waiting   int
	Active    int
	Completed int
	Failed    int
	Cancelled int

	// Delayed counts jobs currently waiting out an infrastructure-retry
	// backoff.
	Delayed int
}

// jobState is the processor's in-memory record of one job. Chunk sync state
// lives in the repository; this holds only orchestration bookkeeping.
type jobState struct {
	job             core.ProcessingJob
	content         string
	opts            chunker.Options
	cancelRequested bool
	delayed         bool
	tracker         progressTracker

	// attempted holds chunk ids whose ingestion outcome was recorded in the
	// current run, so an infrastructure retry never re-pushes a chunk that
	// already failed at the application level. Reset on each fresh run.
	attempted map[string]bool
}

// Processor accepts document-processing requests and drives them through
// chunking and ingestion with bounded concurrency.
type Processor struct {
	repo    storage.ChunkRepository
	client  ingest.Client
	logger  *slog.Logger
	pool    *ants.Pool
	limiter *rate.Limiter

	workers          int
	chunkOpts        chunker.Options
	maxInfraAttempts int
	infraRetryBase   time.Duration
	retention        time.Duration
	gcInterval       time.Duration

	mu        sync.Mutex
	jobs      map[string]*jobState
	subs      map[int]func(Event)
	nextSubId int
	closed    bool

	pending chan string
	stop    chan struct{}
	done    chan struct{}
}

// Option configures a Processor.
type Option func(*Processor) error

// WithWorkers sets how many jobs run concurrently. Default is 3.
func WithWorkers(n int) Option {
	return func(p *Processor) error {
		if n < 1 {
			n = 1
		}
		p.workers = n
		return nil
	}
}

// WithChunkOptions sets the default chunking options for submitted jobs.
func WithChunkOptions(opts chunker.Options) Option {
	return func(p *Processor) error {
		p.chunkOpts = opts
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRateLimit bounds downstream pushes to perSecond with the given burst.
// A zero perSecond disables rate limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Processor) error {
		if perSecond <= 0 {
			p.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithInfraRetry configures infrastructure-level retry: attempts per job run
// and the base backoff delay.
func WithInfraRetry(maxAttempts int, base time.Duration) Option {
	return func(p *Processor) error {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		p.maxInfraAttempts = maxAttempts
		if base > 0 {
			p.infraRetryBase = base
		}
		return nil
	}
}

// WithRetention sets how long terminal jobs are kept before GC.
func WithRetention(d time.Duration) Option {
	return func(p *Processor) error {
		if d > 0 {
			p.retention = d
		}
		return nil
	}
}

// New creates a queue processor. The caller owns its lifecycle: construct
// once at startup, share by reference, and Close on shutdown.
func New(repo storage.ChunkRepository, client ingest.Client, opts ...Option) (*Processor, error) {
	if repo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if client == nil {
		return nil, ErrIngestClientRequired
	}

	p := &Processor{
		repo:             repo,
		client:           client,
		logger:           slog.Default(),
		workers:          DefaultWorkers,
		chunkOpts:        chunker.DefaultOptions(),
		maxInfraAttempts: DefaultMaxInfraAttempts,
		infraRetryBase:   DefaultInfraRetryBase,
		retention:        DefaultRetention,
		gcInterval:       defaultGCInterval,
		jobs:             make(map[string]*jobState),
		subs:             make(map[int]func(Event)),
		pending:          make(chan string, defaultQueueCapacity),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	go p.dispatch()

	return p, nil
}

// Close stops accepting work, waits for the dispatcher to exit, and releases
// the worker pool. Jobs already running finish their current chunk but may
// be interrupted by pool release.
func (p *Processor) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done
	p.pool.Release()
}

// dispatch pulls submissions off the queue in FIFO order and hands them to
// the worker pool, blocking when all workers are busy. It also runs the
// terminal-job garbage collector.
func (p *Processor) dispatch() {
	defer close(p.done)

	ticker := time.NewTicker(p.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweep(time.Now().UTC())
		case jobId := <-p.pending:
			id := jobId
			if err := p.pool.Submit(func() { p.runJob(id) }); err != nil {
				p.logger.Error("submitting job to worker pool", "jobId", id, "err", err)
				p.finishJob(id, core.JobFailed, err.Error())
			}
		}
	}
}

// Submit queues a document-processing job and returns its id immediately.
func (p *Processor) Submit(ctx context.Context, req Request) (string, error) {
	if req.DocumentId == "" {
		return "", ErrEmptyDocumentId
	}

	opts := p.chunkOpts
	if req.Options != nil {
		opts = *req.Options
	}

	state := &jobState{
		job: core.ProcessingJob{
			Id:         uuid.NewString(),
			DocumentId: req.DocumentId,
			UserId:     req.UserId,
			Status:     core.JobQueued,
			EnqueuedAt: time.Now().UTC(),
		},
		content: req.Content,
		opts:    opts,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrProcessorClosed
	}
	p.jobs[state.job.Id] = state
	p.mu.Unlock()

	select {
	case p.pending <- state.job.Id:
	default:
		p.mu.Lock()
		delete(p.jobs, state.job.Id)
		p.mu.Unlock()
		return "", ErrQueueFull
	}

	p.emit(Event{Type: EventJobQueued, JobId: state.job.Id, DocumentId: req.DocumentId})
	return state.job.Id, nil
}

// CancelJob requests cooperative cancellation. Returns false if the job is
// unknown or already terminal. Already-ingested chunks keep their state;
// not-yet-attempted chunks stay pending.
func (p *Processor) CancelJob(jobId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.jobs[jobId]
	if !ok || state.job.Status.Terminal() {
		return false
	}
	state.cancelRequested = true
	return true
}

// RetryFailedJob re-queues a failed or cancelled job for a fresh run.
// Returns false if the job is unknown or not in a retryable state.
func (p *Processor) RetryFailedJob(jobId string) bool {
	p.mu.Lock()
	state, ok := p.jobs[jobId]
	if !ok || (state.job.Status != core.JobFailed && state.job.Status != core.JobCancelled) {
		p.mu.Unlock()
		return false
	}
	state.job.Status = core.JobQueued
	state.job.Error = ""
	state.job.EnqueuedAt = time.Now().UTC()
	state.job.FinishedAt = time.Time{}
	state.cancelRequested = false
	documentId := state.job.DocumentId
	p.mu.Unlock()

	select {
	case p.pending <- jobId:
	default:
		p.finishJob(jobId, core.JobFailed, ErrQueueFull.Error())
		return false
	}

	p.emit(Event{Type: EventJobQueued, JobId: jobId, DocumentId: documentId})
	return true
}

// GetJob returns a copy of the job record, or nil if unknown.
func (p *Processor) GetJob(jobId string) *core.ProcessingJob {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.jobs[jobId]
	if !ok {
		return nil
	}
	job := state.job
	job.ChunkIds = append([]string(nil), state.job.ChunkIds...)
	return &job
}

// GetJobProgress returns the job's progress snapshot, or nil if unknown.
func (p *Processor) GetJobProgress(jobId string) *core.ProcessingProgress {
	p.mu.Lock()
	state, ok := p.jobs[jobId]
	p.mu.Unlock()

	if !ok {
		return nil
	}
	progress := state.tracker.snapshot(jobId, state.job.DocumentId)
	return &progress
}

// GetQueueStats counts jobs by state.
func (p *Processor) GetQueueStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stats Stats
	for _, state := range p.jobs {
		switch state.job.Status {
		case core.JobQueued:
			stats.Waiting++
		case core.JobProcessing:
			stats.Active++
			if state.delayed {
				stats.Delayed++
			}
		case core.JobCompleted:
			stats.Completed++
		case core.JobFailed:
			stats.Failed++
		case core.JobCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// sweep drops terminal jobs older than the retention window.
func (p *Processor) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, state := range p.jobs {
		if state.job.Status.Terminal() && !state.job.FinishedAt.IsZero() &&
			now.Sub(state.job.FinishedAt) > p.retention {
			delete(p.jobs, id)
		}
	}
}

// runJob executes one job, retrying infrastructure failures with exponential
// backoff. Chunk-level ingestion failures never fail the job; they are left
// as failed chunks for the recovery service.
func (p *Processor) runJob(jobId string) {
	p.mu.Lock()
	state, ok := p.jobs[jobId]
	if !ok {
		p.mu.Unlock()
		return
	}
	if state.cancelRequested {
		p.mu.Unlock()
		p.finishJob(jobId, core.JobCancelled, "")
		return
	}
	state.job.Status = core.JobProcessing
	state.job.StartedAt = time.Now().UTC()
	state.attempted = make(map[string]bool)
	documentId := state.job.DocumentId
	p.mu.Unlock()

	p.emit(Event{Type: EventJobStarted, JobId: jobId, DocumentId: documentId})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.infraRetryBase
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	operation := func() error {
		err := p.processDocument(state)
		if err == nil {
			p.setDelayed(state, false)
			return nil
		}
		if errors.Is(err, errJobCancelled) {
			return backoff.Permanent(err)
		}

		p.mu.Lock()
		state.job.Attempts++
		p.mu.Unlock()
		p.setDelayed(state, true)
		p.logger.Warn("job run failed, will retry", "jobId", jobId, "err", err)
		return err
	}

	err := backoff.Retry(operation, backoff.WithMaxRetries(b, uint64(p.maxInfraAttempts-1)))
	p.setDelayed(state, false)

	switch {
	case err == nil:
		p.finishJob(jobId, core.JobCompleted, "")
	case errors.Is(err, errJobCancelled):
		p.finishJob(jobId, core.JobCancelled, "")
	default:
		p.finishJob(jobId, core.JobFailed, err.Error())
	}
}

// processDocument performs one run over a job's chunks. It is safe to call
// again after an infrastructure failure: chunk state is reloaded from the
// repository, and already-synced chunks are skipped.
func (p *Processor) processDocument(state *jobState) error {
	ctx := context.Background()

	p.mu.Lock()
	jobId := state.job.Id
	documentId := state.job.DocumentId
	content := state.content
	opts := state.opts
	p.mu.Unlock()

	chunks, err := p.repo.FetchChunksByDocument(ctx, documentId)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		chunks = chunker.Split(documentId, content, opts)
		if len(chunks) == 0 {
			state.tracker.begin(0)
			return nil
		}
		if _, err := p.repo.SaveChunks(ctx, chunks...); err != nil {
			return err
		}
	}

	chunkIds := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunkIds[i] = chunk.Id
	}
	p.mu.Lock()
	state.job.ChunkIds = chunkIds
	p.mu.Unlock()

	state.tracker.begin(len(chunks))

	for _, chunk := range chunks {
		if p.isCancelRequested(state) {
			return errJobCancelled
		}

		// Skip chunks already synced, and chunks whose outcome was recorded
		// earlier in this run: an infrastructure retry must not re-push a
		// chunk that failed at the application level, or it would burn the
		// chunk's recovery budget here instead of in the recovery service.
		if chunk.SyncStatus == core.SyncSynced || p.wasAttempted(state, chunk.Id) {
			state.tracker.record(chunk.ChunkNumber, 0)
			continue
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := p.ingestChunk(ctx, chunk, state); err != nil {
			return err
		}

		progress := state.tracker.snapshot(jobId, documentId)
		p.emit(Event{Type: EventJobProgress, JobId: jobId, DocumentId: documentId, Progress: &progress})
	}

	return nil
}

// ingestChunk pushes one chunk downstream, recording the outcome in the
// repository. A push failure marks the chunk failed and returns nil; only
// repository errors propagate.
func (p *Processor) ingestChunk(ctx context.Context, chunk *core.Chunk, state *jobState) error {
	now := time.Now().UTC()
	attempt := chunk.SyncAttemptCount + 1

	if _, err := p.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
		SyncStatus:       storage.Ptr(core.SyncSyncing),
		SyncAttemptCount: storage.Ptr(attempt),
		LastSyncAttempt:  storage.Ptr(now),
	}); err != nil {
		return err
	}

	start := time.Now()
	result, pushErr := p.client.Push(ctx, chunk)
	latency := time.Since(start)

	if pushErr != nil {
		p.logger.Warn("chunk ingestion failed", "chunkId", chunk.Id, "attempt", attempt, "err", pushErr)
		if _, err := p.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
			SyncStatus:    storage.Ptr(core.SyncFailed),
			LastSyncError: storage.Ptr(pushErr.Error()),
		}); err != nil {
			return err
		}
	} else {
		if _, err := p.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
			SyncStatus:      storage.Ptr(core.SyncSynced),
			RemoteId:        storage.Ptr(result.RemoteId),
			LastSyncError:   storage.Ptr(""),
			LastSyncAttempt: storage.Ptr(time.Time{}),
		}); err != nil {
			return err
		}
	}

	p.mu.Lock()
	state.attempted[chunk.Id] = true
	p.mu.Unlock()

	state.tracker.record(chunk.ChunkNumber, latency)
	return nil
}

func (p *Processor) wasAttempted(state *jobState, chunkId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return state.attempted[chunkId]
}

func (p *Processor) isCancelRequested(state *jobState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return state.cancelRequested
}

func (p *Processor) setDelayed(state *jobState, delayed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state.delayed = delayed
}

// finishJob moves a job to a terminal state and emits the matching event.
func (p *Processor) finishJob(jobId string, status core.JobStatus, errMsg string) {
	p.mu.Lock()
	state, ok := p.jobs[jobId]
	if !ok {
		p.mu.Unlock()
		return
	}
	state.job.Status = status
	state.job.Error = errMsg
	state.job.FinishedAt = time.Now().UTC()
	documentId := state.job.DocumentId
	p.mu.Unlock()

	switch status {
	case core.JobCompleted:
		p.emit(Event{Type: EventJobCompleted, JobId: jobId, DocumentId: documentId})
	case core.JobCancelled:
		p.emit(Event{Type: EventJobCancelled, JobId: jobId, DocumentId: documentId})
	case core.JobFailed:
		p.emit(Event{Type: EventJobFailed, JobId: jobId, DocumentId: documentId, Error: errMsg})
	}
}
