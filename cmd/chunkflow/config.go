package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// duration decodes human-readable YAML values like "30s" or "1m30s".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}

// fileConfig mirrors the optional YAML configuration file. Command-line
// flags override anything set here.
type fileConfig struct {
	API struct {
		URL string `yaml:"url"`
		Key string `yaml:"key"`
	} `yaml:"api"`

	Chunking struct {
		MaxChunkSize int   `yaml:"max_chunk_size"`
		OverlapSize  int   `yaml:"overlap_size"`
		Semantic     *bool `yaml:"semantic"`
	} `yaml:"chunking"`

	Queue struct {
		Workers       int     `yaml:"workers"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RateBurst     int     `yaml:"rate_burst"`
	} `yaml:"queue"`

	Recovery struct {
		MaxRetryAttempts   int      `yaml:"max_retry_attempts"`
		BaseRetryDelay     duration `yaml:"base_retry_delay"`
		MaxRetryDelay      duration `yaml:"max_retry_delay"`
		BackoffMultiplier  float64  `yaml:"backoff_multiplier"`
		FailureThreshold   int      `yaml:"failure_threshold"`
		CircuitTimeout     duration `yaml:"circuit_timeout"`
		InterDocumentDelay duration `yaml:"inter_document_delay"`
	} `yaml:"recovery"`
}

// loadFileConfig reads the YAML file at path. An empty path yields an empty
// config.
func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
