package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReplicate()
	c.normalizeGeneration()
	c.normalizeBrand()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		c.Paths.BlobDir = defaultBlobDir
	}
	if c.Paths.BlobDir, err = expandPath(c.Paths.BlobDir); err != nil {
		return fmt.Errorf("paths.blob_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IngestDir) == "" {
		c.Paths.IngestDir = defaultIngestDir
	}
	if c.Paths.IngestDir, err = expandPath(c.Paths.IngestDir); err != nil {
		return fmt.Errorf("paths.ingest_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeReplicate() {
	if c.Replicate.APIToken == "" {
		if value, ok := os.LookupEnv("REPLICATE_API_TOKEN"); ok {
			c.Replicate.APIToken = value
		}
	}
	c.Replicate.BaseURL = strings.TrimRight(strings.TrimSpace(c.Replicate.BaseURL), "/")
	if c.Replicate.BaseURL == "" {
		c.Replicate.BaseURL = defaultReplicateBaseURL
	}
	if strings.TrimSpace(c.Replicate.VisionModel) == "" {
		c.Replicate.VisionModel = defaultVisionModel
	}
	if c.Replicate.PollSeconds <= 0 {
		c.Replicate.PollSeconds = defaultPollSeconds
	}
	if c.Replicate.TimeoutSeconds <= 0 {
		c.Replicate.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Replicate.RatePerSecond <= 0 {
		c.Replicate.RatePerSecond = defaultRatePerSecond
	}
	if c.Replicate.RateBurst <= 0 {
		c.Replicate.RateBurst = defaultRateBurst
	}
}

func (c *Config) normalizeGeneration() {
	cleaned := make([]string, 0, len(c.Generation.Variations))
	for _, v := range c.Generation.Variations {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			cleaned = append(cleaned, v)
		}
	}
	c.Generation.Variations = cleaned
	if c.Generation.MaxRetries <= 0 {
		c.Generation.MaxRetries = defaultMaxRetries
	}
	if c.Generation.BackoffSeconds <= 0 {
		c.Generation.BackoffSeconds = defaultBackoffSeconds
	}
	if c.Generation.MaxConcurrent <= 0 {
		c.Generation.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Generation.BatchSize <= 0 {
		c.Generation.BatchSize = defaultBatchSize
	}
}

func (c *Config) normalizeBrand() {
	c.Brand.Name = strings.TrimSpace(c.Brand.Name)
	if c.Brand.Name == "" {
		c.Brand.Name = defaultBrandName
	}
	c.Brand.BaseStyle = strings.TrimSpace(c.Brand.BaseStyle)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
