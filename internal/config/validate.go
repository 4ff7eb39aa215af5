package config

import (
	"errors"
	"fmt"
	"strings"
)

// Valid Opus bitrate range accepted by opusenc, in kbit/s.
const (
	minBitrate = 6
	maxBitrate = 510
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateTeddyCloud(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.Bitrate < minBitrate || c.Encoding.Bitrate > maxBitrate {
		return fmt.Errorf("encoding.bitrate must be between %d and %d kbit/s", minBitrate, maxBitrate)
	}
	return nil
}

func (c *Config) validateTeddyCloud() error {
	tc := c.TeddyCloud
	if tc.URL != "" && !strings.HasPrefix(tc.URL, "http://") && !strings.HasPrefix(tc.URL, "https://") {
		return errors.New("teddycloud.url must start with http:// or https://")
	}
	if (tc.ClientCertPath == "") != (tc.ClientKeyPath == "") {
		return errors.New("teddycloud.client_cert_path and teddycloud.client_key_path must be set together")
	}
	if err := ensurePositiveMap(map[string]int{
		"teddycloud.connection_timeout": tc.ConnectionTimeout,
		"teddycloud.read_timeout":       tc.ReadTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
