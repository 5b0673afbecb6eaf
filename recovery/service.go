package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/ingest"
	"github.com/poiesic/chunkflow/storage"
)

const breakerIngest = "ingest"

// ChunkError records one failed attempt during a recovery pass.
type ChunkError struct {
	ChunkId   string
	Error     string
	Retryable bool
	Attempt   int
}

// Result summarizes one document's recovery pass.
type Result struct {
	OperationId           string
	DocumentId            string
	Successful            int
	Failed                int
	RecoveredChunkIds     []string
	UnrecoverableChunkIds []string
	Errors                []ChunkError
	Duration              time.Duration
}

// RollbackResult summarizes an episode rollback. Success reflects the
// downstream rollback; chunk resets are best effort and failures are listed
// in FailedResets.
type RollbackResult struct {
	Success      bool
	EpisodeId    string
	ChunksReset  int
	FailedResets []string
	Error        string
	Duration     time.Duration
}

// DocumentRecovery is one document's outcome inside a batch.
type DocumentRecovery struct {
	DocumentId string
	Result     *Result
	Error      string
}

// BatchResult summarizes a batch recovery across documents.
type BatchResult struct {
	OperationId    string
	Documents      []DocumentRecovery
	TotalRecovered int
	TotalFailed    int
	Duration       time.Duration
}

type opState struct {
	op        core.RecoveryOperation
	cancelled bool
}

// Service repairs failed chunk ingestion. Safe for concurrent use.
type Service struct {
	repo     storage.ChunkRepository
	client   ingest.Client
	episodes ingest.EpisodeService
	logger   *slog.Logger
	reporter Reporter
	breakers *BreakerRegistry
	cfg      Config

	// sleep is swapped out in tests to observe and skip real delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	ops map[string]*opState
}

// Option configures a Service.
type Option func(*Service) error

// WithConfig replaces the default configuration. Zero fields fall back to
// defaults, except InterDocumentDelay where zero disables the pause between
// documents in a batch.
func WithConfig(cfg Config) Option {
	return func(s *Service) error {
		cfg.normalize()
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithReporter sets a custom failure reporter. Default logs incidents.
func WithReporter(reporter Reporter) Option {
	return func(s *Service) error {
		if reporter != nil {
			s.reporter = reporter
		}
		return nil
	}
}

// NewService creates a recovery service over the given repository, ingestion
// client, and episode service.
func NewService(repo storage.ChunkRepository, client ingest.Client, episodes ingest.EpisodeService, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if client == nil {
		return nil, ErrIngestClientRequired
	}
	if episodes == nil {
		return nil, ErrEpisodeServiceRequired
	}

	s := &Service{
		repo:     repo,
		client:   client,
		episodes: episodes,
		logger:   slog.Default(),
		cfg:      DefaultConfig(),
		sleep:    sleepContext,
		ops:      make(map[string]*opState),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.reporter == nil {
		s.reporter = &logReporter{logger: s.logger}
	}
	s.breakers = NewBreakerRegistry(s.cfg.FailureThreshold, s.cfg.CircuitTimeout)

	return s, nil
}

// RetryFailedChunks retries a document's failed chunks with exponential
// backoff, up to the per-chunk attempt budget. When chunkIds are given, only
// those chunks are considered. Chunks already at the budget are reported
// unrecoverable and never touched. An open circuit breaker aborts the pass.
func (s *Service) RetryFailedChunks(ctx context.Context, documentId string, chunkIds ...string) (*Result, error) {
	if documentId == "" {
		return nil, ErrEmptyDocumentId
	}

	state := s.registerOperation("retry", documentId)
	result, err := s.retryDocument(ctx, state, documentId, chunkIds...)
	if err != nil {
		s.finishOperation(state, core.RecoveryFailed, err.Error())
		return result, err
	}

	s.finishOperation(state, core.RecoveryCompleted, "")
	return result, nil
}

// retryDocument runs one document's recovery pass under an existing
// operation record.
func (s *Service) retryDocument(ctx context.Context, state *opState, documentId string, chunkIds ...string) (*Result, error) {
	start := time.Now()
	result := &Result{OperationId: state.op.Id, DocumentId: documentId}
	defer func() { result.Duration = time.Since(start) }()

	failed, err := s.repo.FetchFailedChunks(ctx, documentId)
	if err != nil {
		return result, err
	}

	if len(chunkIds) > 0 {
		wanted := make(map[string]bool, len(chunkIds))
		for _, id := range chunkIds {
			wanted[id] = true
		}
		kept := failed[:0]
		for _, chunk := range failed {
			if wanted[chunk.Id] {
				kept = append(kept, chunk)
			}
		}
		failed = kept
	}

	s.logger.Info("recovery pass started",
		"documentId", documentId, "operationId", state.op.Id, "failedChunks", len(failed))

	if len(failed) > 0 {
		ids := make([]string, len(failed))
		for i, chunk := range failed {
			ids[i] = chunk.Id
		}
		s.mu.Lock()
		state.op.ChunkIds = append(state.op.ChunkIds, ids...)
		s.mu.Unlock()
	}

	for _, chunk := range failed {
		if s.isCancelled(state) {
			return result, context.Canceled
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if chunk.SyncAttemptCount >= s.cfg.MaxRetryAttempts {
			result.UnrecoverableChunkIds = append(result.UnrecoverableChunkIds, chunk.Id)
			continue
		}

		recovered, err := s.retryChunk(ctx, state, chunk, result)
		if err != nil {
			return result, err
		}
		if recovered {
			result.Successful++
			result.RecoveredChunkIds = append(result.RecoveredChunkIds, chunk.Id)
		} else {
			result.Failed++
		}
	}

	s.logger.Info("recovery pass finished",
		"documentId", documentId, "operationId", state.op.Id,
		"recovered", result.Successful, "stillFailed", result.Failed,
		"unrecoverable", len(result.UnrecoverableChunkIds))

	return result, nil
}

// retryChunk drives one chunk to success or attempt exhaustion. Returns an
// error only for aborts: repository faults, open breaker, cancellation.
func (s *Service) retryChunk(ctx context.Context, state *opState, chunk *core.Chunk, result *Result) (bool, error) {
	attemptsThisPass := 0
	attemptCount := chunk.SyncAttemptCount

	for attemptCount < s.cfg.MaxRetryAttempts {
		if s.isCancelled(state) {
			return false, context.Canceled
		}
		if attemptsThisPass > 0 {
			if err := s.sleep(ctx, backoffDelay(s.cfg, attemptsThisPass)); err != nil {
				return false, err
			}
		}
		attemptsThisPass++
		attemptCount++

		now := time.Now().UTC()
		if _, err := s.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
			SyncStatus:       storage.Ptr(core.SyncSyncing),
			SyncAttemptCount: storage.Ptr(attemptCount),
			LastSyncAttempt:  storage.Ptr(now),
		}); err != nil {
			return false, err
		}

		var pushResult *ingest.PushResult
		pushErr := s.breakers.Execute(breakerIngest, func() error {
			var err error
			pushResult, err = s.client.Push(ctx, chunk)
			return err
		})

		if pushErr == nil {
			if _, err := s.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
				SyncStatus:      storage.Ptr(core.SyncSynced),
				RemoteId:        storage.Ptr(pushResult.RemoteId),
				LastSyncError:   storage.Ptr(""),
				LastSyncAttempt: storage.Ptr(time.Time{}),
			}); err != nil {
				return false, err
			}
			return true, nil
		}

		if errors.Is(pushErr, ErrCircuitOpen) {
			// The push never reached the service, so the attempt is
			// handed back before aborting the pass.
			attemptCount--
			if _, err := s.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
				SyncStatus:       storage.Ptr(core.SyncFailed),
				SyncAttemptCount: storage.Ptr(attemptCount),
				LastSyncError:    storage.Ptr(pushErr.Error()),
			}); err != nil {
				return false, err
			}
			s.reporter.ReportError(breakerIngest, pushErr)
			return false, pushErr
		}

		retryable := ingest.Retryable(pushErr)
		result.Errors = append(result.Errors, ChunkError{
			ChunkId:   chunk.Id,
			Error:     pushErr.Error(),
			Retryable: retryable,
			Attempt:   attemptCount,
		})

		if _, err := s.repo.UpdateChunk(ctx, chunk.Id, storage.ChunkUpdate{
			SyncStatus:    storage.Ptr(core.SyncFailed),
			LastSyncError: storage.Ptr(pushErr.Error()),
		}); err != nil {
			return false, err
		}

		if !retryable {
			break
		}
	}

	if attemptCount >= s.cfg.MaxRetryAttempts {
		result.UnrecoverableChunkIds = append(result.UnrecoverableChunkIds, chunk.Id)
	}
	return false, nil
}

// RollbackEpisode removes a partially ingested document's episode downstream
// and resets its chunks to pending so a later run starts clean. A missing
// episode yields Success=false, not an error.
func (s *Service) RollbackEpisode(ctx context.Context, episodeId string) (*RollbackResult, error) {
	if episodeId == "" {
		return nil, ErrEmptyEpisodeId
	}

	start := time.Now()
	state := s.registerOperation("rollback", "")
	result := &RollbackResult{EpisodeId: episodeId}
	defer func() { result.Duration = time.Since(start) }()

	episode, err := s.episodes.GetEpisodeById(ctx, episodeId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			result.Error = "episode not found"
			s.finishOperation(state, core.RecoveryFailed, result.Error)
			return result, nil
		}
		s.finishOperation(state, core.RecoveryFailed, err.Error())
		return nil, err
	}

	if err := s.episodes.UpdateEpisodeStatus(ctx, episodeId, core.EpisodeFailed, "rollback requested"); err != nil {
		s.logger.Warn("marking episode failed before rollback", "episodeId", episodeId, "err", err)
	}

	if err := s.episodes.RollbackEpisode(ctx, episodeId); err != nil {
		s.reporter.ReportError("rollback", err)
		result.Error = err.Error()
		s.finishOperation(state, core.RecoveryFailed, result.Error)
		return result, nil
	}
	result.Success = true

	for _, chunkId := range episode.ChunkIds {
		_, err := s.repo.UpdateChunk(ctx, chunkId, storage.ChunkUpdate{
			SyncStatus:       storage.Ptr(core.SyncPending),
			SyncAttemptCount: storage.Ptr(0),
			RemoteId:         storage.Ptr(""),
			LastSyncError:    storage.Ptr(""),
		})
		if err != nil {
			s.logger.Warn("resetting chunk after rollback", "chunkId", chunkId, "err", err)
			result.FailedResets = append(result.FailedResets, chunkId)
			continue
		}
		result.ChunksReset++
	}

	s.finishOperation(state, core.RecoveryCompleted, "")
	return result, nil
}

// PerformBatchRecovery runs recovery passes over documents sequentially,
// pausing between them. One document's failure never stops the batch; an
// open breaker abort is recorded for that document and the batch moves on
// once the pause has given the breaker time to probe.
func (s *Service) PerformBatchRecovery(ctx context.Context, documentIds []string) (*BatchResult, error) {
	start := time.Now()
	state := s.registerOperation("batch", "")
	batch := &BatchResult{OperationId: state.op.Id}
	defer func() { batch.Duration = time.Since(start) }()

	for i, documentId := range documentIds {
		if s.isCancelled(state) {
			s.finishOperation(state, core.RecoveryFailed, context.Canceled.Error())
			return batch, context.Canceled
		}
		if err := ctx.Err(); err != nil {
			s.finishOperation(state, core.RecoveryFailed, err.Error())
			return batch, err
		}
		if i > 0 && s.cfg.InterDocumentDelay > 0 {
			if err := s.sleep(ctx, s.cfg.InterDocumentDelay); err != nil {
				s.finishOperation(state, core.RecoveryFailed, err.Error())
				return batch, err
			}
		}

		entry := DocumentRecovery{DocumentId: documentId}
		result, err := s.retryDocument(ctx, state, documentId)
		entry.Result = result
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.finishOperation(state, core.RecoveryFailed, err.Error())
				batch.Documents = append(batch.Documents, entry)
				return batch, err
			}
			entry.Error = err.Error()
			s.reporter.ReportError("batch-recovery:"+documentId, err)
		}
		if result != nil {
			batch.TotalRecovered += result.Successful
			batch.TotalFailed += result.Failed
		}
		batch.Documents = append(batch.Documents, entry)
	}

	s.finishOperation(state, core.RecoveryCompleted, "")
	return batch, nil
}

// ListUnrecoverableChunks returns a document's chunks that exhausted their
// attempt budget and need manual intervention.
func (s *Service) ListUnrecoverableChunks(ctx context.Context, documentId string) ([]*core.Chunk, error) {
	if documentId == "" {
		return nil, ErrEmptyDocumentId
	}
	return s.repo.FetchUnrecoverableChunks(ctx, documentId, s.cfg.MaxRetryAttempts)
}

// GetRecoveryStatus returns a copy of an operation record.
func (s *Service) GetRecoveryStatus(operationId string) (*core.RecoveryOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(time.Now().UTC())

	state, ok := s.ops[operationId]
	if !ok {
		return nil, ErrOperationNotFound
	}
	op := state.op
	op.ChunkIds = append([]string(nil), state.op.ChunkIds...)
	return &op, nil
}

// CancelRecoveryOperation requests cooperative cancellation of an in-flight
// operation. The running pass observes it between chunks.
func (s *Service) CancelRecoveryOperation(operationId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.ops[operationId]
	if !ok {
		return ErrOperationNotFound
	}
	if state.op.Status == core.RecoveryCompleted || state.op.Status == core.RecoveryFailed {
		return ErrOperationNotCancellable
	}
	state.cancelled = true
	return nil
}

// BreakerState reports the ingestion circuit breaker's current state as a
// string: closed, half-open, or open.
func (s *Service) BreakerState() string {
	return s.breakers.State(breakerIngest).String()
}

func (s *Service) registerOperation(opType, documentId string) *opState {
	state := &opState{
		op: core.RecoveryOperation{
			Id:         uuid.NewString(),
			Type:       opType,
			DocumentId: documentId,
			Status:     core.RecoveryInProgress,
			StartedAt:  time.Now().UTC(),
		},
	}

	s.mu.Lock()
	s.pruneLocked(time.Now().UTC())
	s.ops[state.op.Id] = state
	s.mu.Unlock()

	return state
}

func (s *Service) finishOperation(state *opState, status core.RecoveryStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.op.Status = status
	state.op.Error = errMsg
	state.op.FinishedAt = time.Now().UTC()
}

func (s *Service) isCancelled(state *opState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.cancelled
}

// pruneLocked drops finished operations past the retention window.
// Caller holds s.mu.
func (s *Service) pruneLocked(now time.Time) {
	for id, state := range s.ops {
		if !state.op.FinishedAt.IsZero() && now.Sub(state.op.FinishedAt) > s.cfg.OperationRetention {
			delete(s.ops, id)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
