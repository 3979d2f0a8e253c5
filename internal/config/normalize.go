package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.BackendBaseURL = strings.TrimRight(strings.TrimSpace(c.BackendBaseURL), "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Convert.Provider = strings.ToLower(strings.TrimSpace(c.Convert.Provider))
	if c.Convert.Provider == "" {
		c.Convert.Provider = defaultProvider
	}
	if err := c.normalizeDelivery(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	var err error
	if c.MetricsFile, err = expandPath(c.MetricsFile); err != nil {
		return fmt.Errorf("metrics_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeDelivery() error {
	c.Delivery.Sink = strings.ToLower(strings.TrimSpace(c.Delivery.Sink))
	if c.Delivery.Sink == "" {
		c.Delivery.Sink = defaultSink
	}
	if strings.TrimSpace(c.Delivery.OutputDir) == "" {
		c.Delivery.OutputDir = defaultOutputDir
	}
	var err error
	if c.Delivery.OutputDir, err = expandPath(c.Delivery.OutputDir); err != nil {
		return fmt.Errorf("delivery.output_dir: %w", err)
	}
	c.Delivery.S3Prefix = strings.Trim(strings.TrimSpace(c.Delivery.S3Prefix), "/")
	if c.Delivery.PresignTTLMinutes <= 0 {
		c.Delivery.PresignTTLMinutes = defaultPresignTTLMinutes
	}
	return nil
}

func (c *Config) normalizeHistory() error {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	if c.History.Backend == "" {
		c.History.Backend = defaultHistoryBackend
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}
