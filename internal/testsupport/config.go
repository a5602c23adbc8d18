package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DeliveryRoot = filepath.Join(base, "proj")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Transcode.TempDir = filepath.Join(base, "transcode")
	cfg.Shotgrid.URL = "https://example.shotgrid.test"
	cfg.Shotgrid.ScriptName = "shuttle_test"
	cfg.Shotgrid.APIKey = "test"
	cfg.Deadline.URL = "https://deadline.test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDeliveryTemplates overrides the destination templates on the test
// config.
func WithDeliveryTemplates(sequenceTemplate, singleFileTemplate string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Delivery.SequenceTemplate = sequenceTemplate
		cfg.Delivery.SingleFileTemplate = singleFileTemplate
	}
}

// WithOCIOConfig points the transcode section at a color config path.
func WithOCIOConfig(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcode.OCIOConfig = path
	}
}
