package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateShotgrid(); err != nil {
		return err
	}
	if err := c.validateDeadline(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateShotgrid() error {
	if strings.TrimSpace(c.Shotgrid.URL) == "" {
		return errors.New("shotgrid.url must be set")
	}
	if strings.TrimSpace(c.Shotgrid.ScriptName) == "" {
		return errors.New("shotgrid.script_name must be set")
	}
	if c.Shotgrid.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shuttle/config.toml"
		}
		return fmt.Errorf("shotgrid.api_key is required. Set SHOTGRID_API_KEY env var or edit %s (create with 'shuttle config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateDeadline() error {
	if strings.TrimSpace(c.Deadline.URL) == "" {
		return errors.New("deadline.url must be set")
	}
	if c.Deadline.Priority < 0 || c.Deadline.Priority > 100 {
		return errors.New("deadline.priority must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if strings.TrimSpace(c.Delivery.SequenceTemplate) == "" {
		return errors.New("delivery.sequence_template must be set")
	}
	if strings.TrimSpace(c.Delivery.SingleFileTemplate) == "" {
		return errors.New("delivery.single_file_template must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
