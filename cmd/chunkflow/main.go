// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/poiesic/chunkflow"
	"github.com/poiesic/chunkflow/chunker"
	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/ingest"
	"github.com/poiesic/chunkflow/ingest/graphapi"
	"github.com/poiesic/chunkflow/queue"
	"github.com/poiesic/chunkflow/recovery"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "chunkflow",
		Usage: "Document chunking and recovery-oriented ingestion",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chunk",
				Usage:  "Split a document into chunks and print them",
				Action: chunkCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the document file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "document-id",
						Usage: "Document identifier (defaults to the file name)",
					},
					&cli.IntFlag{
						Name:  "max-chunk-size",
						Usage: "Maximum chunk size in characters",
					},
					&cli.IntFlag{
						Name:  "overlap-size",
						Usage: "Overlap between consecutive chunks in characters",
					},
					&cli.BoolFlag{
						Name:  "no-semantic",
						Usage: "Disable sentence-boundary preservation",
					},
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Print full chunk content instead of a preview",
					},
				},
			},
			{
				Name:   "process",
				Usage:  "Chunk a document and ingest it into the knowledge graph",
				Action: processCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the document file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "document-id",
						Usage: "Document identifier (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "api-url",
						Usage: "Knowledge graph API base URL",
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Knowledge graph API key",
						EnvVars: []string{"CHUNKFLOW_API_KEY"},
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent processing workers",
					},
					&cli.Float64Flag{
						Name:  "rate-limit",
						Usage: "Maximum ingestion requests per second (0 disables)",
					},
					&cli.IntFlag{
						Name:  "max-chunk-size",
						Usage: "Maximum chunk size in characters",
					},
					&cli.IntFlag{
						Name:  "overlap-size",
						Usage: "Overlap between consecutive chunks in characters",
					},
				},
			},
			{
				Name:   "recover",
				Usage:  "Retry failed chunks for one or more documents",
				Action: recoverCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "document-id",
						Usage:    "Document identifier (repeat for batch recovery)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "chunk-id",
						Usage: "Limit recovery to these chunks (single document only)",
					},
					&cli.StringFlag{
						Name:  "api-url",
						Usage: "Knowledge graph API base URL",
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Knowledge graph API key",
						EnvVars: []string{"CHUNKFLOW_API_KEY"},
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Per-chunk sync attempt budget",
					},
					&cli.DurationFlag{
						Name:  "base-delay",
						Usage: "Base delay for exponential backoff",
					},
				},
			},
			{
				Name:   "rollback",
				Usage:  "Roll back an ingestion episode and reset its chunks",
				Action: rollbackCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "episode-id",
						Usage:    "Episode identifier to roll back",
						Required: true,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show sync state for a document's chunks",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "document-id",
						Usage:    "Document identifier",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Per-chunk sync attempt budget",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// chunkOptions merges chunking settings from the config file and flags.
func chunkOptions(c *cli.Context, cfg *fileConfig) chunker.Options {
	opts := chunker.DefaultOptions()
	if cfg.Chunking.MaxChunkSize > 0 {
		opts.MaxChunkSize = cfg.Chunking.MaxChunkSize
	}
	if cfg.Chunking.OverlapSize > 0 {
		opts.OverlapSize = cfg.Chunking.OverlapSize
	}
	if cfg.Chunking.Semantic != nil {
		opts.PreserveSemanticBoundaries = *cfg.Chunking.Semantic
	}
	if c.Int("max-chunk-size") > 0 {
		opts.MaxChunkSize = c.Int("max-chunk-size")
	}
	if c.Int("overlap-size") > 0 {
		opts.OverlapSize = c.Int("overlap-size")
	}
	if c.Bool("no-semantic") {
		opts.PreserveSemanticBoundaries = false
	}
	return opts
}

func readDocument(c *cli.Context) (string, string, error) {
	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read document: %w", err)
	}

	documentId := c.String("document-id")
	if documentId == "" {
		documentId = path
	}
	return documentId, string(data), nil
}

func apiCredentials(c *cli.Context, cfg *fileConfig) (string, string, error) {
	url := c.String("api-url")
	if url == "" {
		url = cfg.API.URL
	}
	if url == "" {
		return "", "", fmt.Errorf("api-url is required (flag or config file)")
	}

	key := c.String("api-key")
	if key == "" {
		key = cfg.API.Key
	}
	return url, key, nil
}

func recoveryConfig(c *cli.Context, cfg *fileConfig) recovery.Config {
	rc := recovery.DefaultConfig()
	if cfg.Recovery.MaxRetryAttempts > 0 {
		rc.MaxRetryAttempts = cfg.Recovery.MaxRetryAttempts
	}
	if cfg.Recovery.BaseRetryDelay > 0 {
		rc.BaseRetryDelay = time.Duration(cfg.Recovery.BaseRetryDelay)
	}
	if cfg.Recovery.MaxRetryDelay > 0 {
		rc.MaxRetryDelay = time.Duration(cfg.Recovery.MaxRetryDelay)
	}
	if cfg.Recovery.BackoffMultiplier >= 1 {
		rc.BackoffMultiplier = cfg.Recovery.BackoffMultiplier
	}
	if cfg.Recovery.FailureThreshold > 0 {
		rc.FailureThreshold = cfg.Recovery.FailureThreshold
	}
	if cfg.Recovery.CircuitTimeout > 0 {
		rc.CircuitTimeout = time.Duration(cfg.Recovery.CircuitTimeout)
	}
	if cfg.Recovery.InterDocumentDelay > 0 {
		rc.InterDocumentDelay = time.Duration(cfg.Recovery.InterDocumentDelay)
	}
	if c.Int("max-attempts") > 0 {
		rc.MaxRetryAttempts = c.Int("max-attempts")
	}
	if c.Duration("base-delay") > 0 {
		rc.BaseRetryDelay = c.Duration("base-delay")
	}
	return rc
}

func chunkCommand(c *cli.Context) error {
	cfg, err := loadFileConfig(c.String("config"))
	if err != nil {
		return err
	}

	documentId, content, err := readDocument(c)
	if err != nil {
		return err
	}

	chunks := chunker.Split(documentId, content, chunkOptions(c, cfg))
	fmt.Fprintf(os.Stderr, "Document: %s (%d characters, %d chunks)\n\n", documentId, len(content), len(chunks))

	for _, chunk := range chunks {
		preview := chunk.Content
		if !c.Bool("full") && len(preview) > 80 {
			preview = preview[:80] + "..."
		}
		fmt.Printf("[%d/%d] %s offsets=%d..%d size=%d\n%s\n\n",
			chunk.ChunkNumber+1, chunk.TotalChunks, chunk.Id,
			chunk.StartIndex, chunk.EndIndex, len(chunk.Content), preview)
	}
	return nil
}

func processCommand(c *cli.Context) error {
	cfg, err := loadFileConfig(c.String("config"))
	if err != nil {
		return err
	}

	documentId, content, err := readDocument(c)
	if err != nil {
		return err
	}

	apiURL, apiKey, err := apiCredentials(c, cfg)
	if err != nil {
		return err
	}

	client := graphapi.New(apiURL, apiKey)

	system, err := chunkflow.NewSystem(c.String("db"), client)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer system.Close()

	workers := c.Int("workers")
	if workers == 0 {
		workers = cfg.Queue.Workers
	}
	if workers == 0 {
		workers = queue.DefaultWorkers
	}

	ratePerSecond := c.Float64("rate-limit")
	if ratePerSecond == 0 {
		ratePerSecond = cfg.Queue.RatePerSecond
	}
	rateBurst := cfg.Queue.RateBurst
	if rateBurst == 0 {
		rateBurst = 1
	}

	processor, err := system.NewQueueProcessor(
		queue.WithWorkers(workers),
		queue.WithChunkOptions(chunkOptions(c, cfg)),
		queue.WithRateLimit(ratePerSecond, rateBurst),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue processor: %w", err)
	}
	defer processor.Close()

	done := make(chan queue.Event, 1)
	unsubscribe := processor.Subscribe(func(e queue.Event) {
		switch e.Type {
		case queue.EventJobProgress:
			if e.Progress != nil {
				fmt.Fprintf(os.Stderr, "\rProcessed %d/%d chunks",
					e.Progress.ProcessedChunks, e.Progress.TotalChunks)
			}
		case queue.EventJobCompleted, queue.EventJobFailed, queue.EventJobCancelled:
			select {
			case done <- e:
			default:
			}
		}
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	jobId, err := processor.Submit(ctx, queue.Request{
		DocumentId: documentId,
		Content:    content,
	})
	if err != nil {
		return fmt.Errorf("failed to submit document: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Job %s queued for document %s\n", jobId, documentId)

	var event queue.Event
	select {
	case event = <-done:
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling job")
		processor.CancelJob(jobId)
		event = <-done
	}
	fmt.Fprintln(os.Stderr)

	failed, err := system.ChunkRepository().FetchFailedChunks(context.Background(), documentId)
	if err != nil {
		return fmt.Errorf("failed to inspect chunk state: %w", err)
	}

	switch event.Type {
	case queue.EventJobCompleted:
		if len(failed) > 0 {
			fmt.Fprintf(os.Stderr, "Job finished with %d failed chunks; run 'chunkflow recover' to retry them\n", len(failed))
			return nil
		}
		fmt.Fprintln(os.Stderr, "Job completed")
		return nil
	case queue.EventJobCancelled:
		return fmt.Errorf("job was cancelled")
	default:
		return fmt.Errorf("job failed: %s", event.Error)
	}
}

func recoverCommand(c *cli.Context) error {
	cfg, err := loadFileConfig(c.String("config"))
	if err != nil {
		return err
	}

	apiURL, apiKey, err := apiCredentials(c, cfg)
	if err != nil {
		return err
	}

	client := graphapi.New(apiURL, apiKey)

	system, err := chunkflow.NewSystem(c.String("db"), client)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer system.Close()

	service, err := system.NewRecoveryService(
		recovery.WithConfig(recoveryConfig(c, cfg)),
	)
	if err != nil {
		return fmt.Errorf("failed to create recovery service: %w", err)
	}

	documentIds := c.StringSlice("document-id")
	ctx := context.Background()

	if len(documentIds) == 1 {
		result, err := service.RetryFailedChunks(ctx, documentIds[0], c.StringSlice("chunk-id")...)
		if err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Recovered %d chunks, %d still failed, %d unrecoverable (%.1fs)\n",
			result.Successful, result.Failed, len(result.UnrecoverableChunkIds),
			result.Duration.Seconds())
		return nil
	}

	batch, err := service.PerformBatchRecovery(ctx, documentIds)
	if err != nil {
		return fmt.Errorf("batch recovery failed: %w", err)
	}
	for _, doc := range batch.Documents {
		if doc.Error != "" {
			fmt.Fprintf(os.Stderr, "%s: error: %s\n", doc.DocumentId, doc.Error)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: recovered %d, still failed %d, unrecoverable %d\n",
			doc.DocumentId, doc.Result.Successful, doc.Result.Failed,
			len(doc.Result.UnrecoverableChunkIds))
	}
	fmt.Fprintf(os.Stderr, "\nTotal: recovered %d, still failed %d (%.1fs)\n",
		batch.TotalRecovered, batch.TotalFailed, batch.Duration.Seconds())
	return nil
}

func rollbackCommand(c *cli.Context) error {
	// Rollback never talks to the ingestion API, but the service requires a
	// client; a push here would be a bug.
	system, err := chunkflow.NewSystem(c.String("db"), noPushClient{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer system.Close()

	service, err := system.NewRecoveryService()
	if err != nil {
		return fmt.Errorf("failed to create recovery service: %w", err)
	}

	result, err := service.RollbackEpisode(context.Background(), c.String("episode-id"))
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("rollback failed: %s", result.Error)
	}

	fmt.Fprintf(os.Stderr, "Episode %s rolled back, %d chunks reset\n", result.EpisodeId, result.ChunksReset)
	if len(result.FailedResets) > 0 {
		fmt.Fprintf(os.Stderr, "Failed to reset %d chunks: %s\n",
			len(result.FailedResets), strings.Join(result.FailedResets, ", "))
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	system, err := chunkflow.NewSystem(c.String("db"), noPushClient{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer system.Close()

	ctx := context.Background()
	documentId := c.String("document-id")

	chunks, err := system.ChunkRepository().FetchChunksByDocument(ctx, documentId)
	if err != nil {
		return fmt.Errorf("failed to fetch chunks: %w", err)
	}

	maxAttempts := c.Int("max-attempts")
	if maxAttempts == 0 {
		maxAttempts = recovery.DefaultConfig().MaxRetryAttempts
	}

	type docStats struct {
		DocumentId    string `json:"document_id"`
		Total         int    `json:"total"`
		Synced        int    `json:"synced"`
		Pending       int    `json:"pending"`
		Failed        int    `json:"failed"`
		Unrecoverable int    `json:"unrecoverable"`
	}
	stats := docStats{DocumentId: documentId, Total: len(chunks)}
	for _, chunk := range chunks {
		switch chunk.SyncStatus {
		case core.SyncSynced:
			stats.Synced++
		case core.SyncFailed:
			stats.Failed++
			if chunk.SyncAttemptCount >= maxAttempts {
				stats.Unrecoverable++
			}
		default:
			stats.Pending++
		}
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// noPushClient satisfies the ingestion client interface for flows that must
// never push, like rollback.
type noPushClient struct{}

func (noPushClient) Push(ctx context.Context, chunk *core.Chunk) (*ingest.PushResult, error) {
	return nil, fmt.Errorf("ingestion is disabled for this command")
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
