package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		set := flag.NewFlagSet("test", 0)
		set.String("log-level", level, "")
		c := cli.NewContext(cli.NewApp(), set, nil)
		assert.NoError(t, setupLogger(c), level)
	}

	set := flag.NewFlagSet("test", 0)
	set.String("log-level", "verbose", "")
	c := cli.NewContext(cli.NewApp(), set, nil)
	assert.Error(t, setupLogger(c))
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  url: https://graph.example.com
  key: secret
chunking:
  max_chunk_size: 5000
  overlap_size: 250
  semantic: false
queue:
  workers: 5
  rate_per_second: 10
recovery:
  max_retry_attempts: 4
  base_retry_delay: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadFileConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://graph.example.com", cfg.API.URL)
	assert.Equal(t, "secret", cfg.API.Key)
	assert.Equal(t, 5000, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 250, cfg.Chunking.OverlapSize)
	require.NotNil(t, cfg.Chunking.Semantic)
	assert.False(t, *cfg.Chunking.Semantic)
	assert.Equal(t, 5, cfg.Queue.Workers)
	assert.Equal(t, 10.0, cfg.Queue.RatePerSecond)
	assert.Equal(t, 4, cfg.Recovery.MaxRetryAttempts)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.Recovery.BaseRetryDelay))
}

func TestLoadFileConfigDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
recovery:
  base_retry_delay: 500ms
  max_retry_delay: 1m30s
  circuit_timeout: 45s
  inter_document_delay: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadFileConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, time.Duration(cfg.Recovery.BaseRetryDelay))
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Recovery.MaxRetryDelay))
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Recovery.CircuitTimeout))
	assert.Equal(t, 2*time.Second, time.Duration(cfg.Recovery.InterDocumentDelay))
}

func TestLoadFileConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recovery:\n  base_retry_delay: fast\n"), 0o600))

	_, err := loadFileConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadFileConfigMissing(t *testing.T) {
	cfg, err := loadFileConfig("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Chunking.MaxChunkSize)

	_, err = loadFileConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestChunkCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("First sentence here. Second sentence here. Third one."), 0o600))

	app := &cli.App{
		Name: "chunkflow",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
		},
		Commands: []*cli.Command{
			{
				Name:   "chunk",
				Action: chunkCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true},
					&cli.StringFlag{Name: "document-id"},
					&cli.IntFlag{Name: "max-chunk-size"},
					&cli.IntFlag{Name: "overlap-size"},
					&cli.BoolFlag{Name: "no-semantic"},
					&cli.BoolFlag{Name: "full"},
				},
			},
		},
	}

	err := app.Run([]string{"chunkflow", "chunk", "--file", path, "--document-id", "doc-1"})
	assert.NoError(t, err)

	err = app.Run([]string{"chunkflow", "chunk", "--file", filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}
