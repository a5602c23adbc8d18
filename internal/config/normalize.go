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
	if err := c.normalizeShotgrid(); err != nil {
		return err
	}
	c.normalizeDeadline()
	c.normalizeDelivery()
	if err := c.normalizeTranscode(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DeliveryRoot, err = expandPath(c.Paths.DeliveryRoot); err != nil {
		return fmt.Errorf("paths.delivery_root: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeShotgrid() error {
	c.Shotgrid.URL = strings.TrimRight(strings.TrimSpace(c.Shotgrid.URL), "/")
	c.Shotgrid.ScriptName = strings.TrimSpace(c.Shotgrid.ScriptName)
	if c.Shotgrid.APIKey == "" {
		if value, ok := os.LookupEnv("SHOTGRID_API_KEY"); ok {
			c.Shotgrid.APIKey = value
		}
	}
	if c.Shotgrid.TimeoutSeconds <= 0 {
		c.Shotgrid.TimeoutSeconds = defaultShotgridTimeout
	}
	return nil
}

func (c *Config) normalizeDeadline() {
	c.Deadline.URL = strings.TrimRight(strings.TrimSpace(c.Deadline.URL), "/")
	if strings.TrimSpace(c.Deadline.Plugin) == "" {
		c.Deadline.Plugin = defaultDeadlinePlugin
	}
	if strings.TrimSpace(c.Deadline.Group) == "" {
		c.Deadline.Group = defaultDeadlineGroup
	}
	if c.Deadline.Priority <= 0 {
		c.Deadline.Priority = defaultDeadlinePriority
	}
	if c.Deadline.ChunkSize <= 0 {
		c.Deadline.ChunkSize = defaultDeadlineChunkSize
	}
}

func (c *Config) normalizeDelivery() {
	if strings.TrimSpace(c.Delivery.SequenceTemplate) == "" {
		c.Delivery.SequenceTemplate = defaultSequenceTemplate
	}
	if strings.TrimSpace(c.Delivery.SingleFileTemplate) == "" {
		c.Delivery.SingleFileTemplate = defaultSingleFileTemplate
	}
}

func (c *Config) normalizeTranscode() error {
	if strings.TrimSpace(c.Transcode.OiiotoolBinary) == "" {
		c.Transcode.OiiotoolBinary = defaultOiiotoolBinary
	}
	var err error
	if c.Transcode.OCIOConfig != "" {
		if c.Transcode.OCIOConfig, err = expandPath(c.Transcode.OCIOConfig); err != nil {
			return fmt.Errorf("transcode.ocio_config: %w", err)
		}
	}
	if c.Transcode.TempDir != "" {
		if c.Transcode.TempDir, err = expandPath(c.Transcode.TempDir); err != nil {
			return fmt.Errorf("transcode.temp_dir: %w", err)
		}
	}
	return nil
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
