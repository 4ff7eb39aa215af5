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
	c.normalizeEncoding()
	if err := c.normalizeTeddyCloud(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoding() {
	if c.Encoding.Bitrate == 0 {
		c.Encoding.Bitrate = defaultBitrate
	}
	c.Encoding.FFmpegPath = strings.TrimSpace(c.Encoding.FFmpegPath)
	c.Encoding.OpusencPath = strings.TrimSpace(c.Encoding.OpusencPath)
}

func (c *Config) normalizeTeddyCloud() error {
	tc := &c.TeddyCloud
	tc.URL = strings.TrimRight(strings.TrimSpace(tc.URL), "/")
	if tc.Username == "" {
		if value, ok := os.LookupEnv("TEDDYCLOUD_USERNAME"); ok {
			tc.Username = strings.TrimSpace(value)
		}
	}
	if tc.Password == "" {
		if value, ok := os.LookupEnv("TEDDYCLOUD_PASSWORD"); ok {
			tc.Password = value
		}
	}
	var err error
	if tc.ClientCertPath != "" {
		if tc.ClientCertPath, err = expandPath(tc.ClientCertPath); err != nil {
			return fmt.Errorf("teddycloud.client_cert_path: %w", err)
		}
	}
	if tc.ClientKeyPath != "" {
		if tc.ClientKeyPath, err = expandPath(tc.ClientKeyPath); err != nil {
			return fmt.Errorf("teddycloud.client_key_path: %w", err)
		}
	}
	if tc.ConnectionTimeout <= 0 {
		tc.ConnectionTimeout = defaultConnectionTimeout
	}
	if tc.ReadTimeout <= 0 {
		tc.ReadTimeout = defaultReadTimeout
	}
	if tc.MaxRetries < 0 {
		tc.MaxRetries = defaultMaxRetries
	}
	if tc.RetryDelay < 0 {
		tc.RetryDelay = defaultRetryDelay
	}
	tc.Path = strings.Trim(strings.TrimSpace(tc.Path), "/")
	tc.SpecialFolder = strings.TrimSpace(tc.SpecialFolder)
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
