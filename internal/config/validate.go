package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/fpang/noteppt-cli/internal/provider"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if _, err := provider.Parse(c.Convert.Provider); err != nil {
		return fmt.Errorf("convert.provider: %w", err)
	}
	if c.Convert.DPI < 0 {
		return errors.New("convert.dpi must be >= 0")
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	return c.validateHistory()
}

func (c *Config) validateBackend() error {
	if c.BackendBaseURL == "" {
		return errors.New("backend_base_url is required")
	}
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil {
		return fmt.Errorf("backend_base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend_base_url must use http or https, got %q", c.BackendBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("backend_base_url has no host: %q", c.BackendBaseURL)
	}
	if c.RequestTimeoutSeconds < 0 {
		return errors.New("request_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	switch c.Delivery.Sink {
	case SinkLocal, SinkDialog:
		return nil
	case SinkS3:
		if c.Delivery.S3Bucket == "" {
			return errors.New("delivery.s3_bucket is required when delivery.sink = \"s3\"")
		}
		return nil
	default:
		return fmt.Errorf("delivery.sink must be one of local, dialog, s3; got %q", c.Delivery.Sink)
	}
}

func (c *Config) validateHistory() error {
	switch c.History.Backend {
	case HistorySQLite, HistoryNone:
		return nil
	case HistoryDynamo:
		if c.History.DynamoTable == "" {
			return errors.New("history.dynamo_table is required when history.backend = \"dynamodb\"")
		}
		return nil
	default:
		return fmt.Errorf("history.backend must be one of sqlite, dynamodb, none; got %q", c.History.Backend)
	}
}
