package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DeliveryRoot string `toml:"delivery_root"`
	StagingDir   string `toml:"staging_dir"`
	LogDir       string `toml:"log_dir"`
}

// Shotgrid contains connection settings for the production tracking site.
type Shotgrid struct {
	URL            string `toml:"url"`
	ScriptName     string `toml:"script_name"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Deadline contains render farm submission settings.
type Deadline struct {
	URL       string `toml:"url"`
	Plugin    string `toml:"plugin"`
	Group     string `toml:"group"`
	Pool      string `toml:"pool"`
	Priority  int    `toml:"priority"`
	ChunkSize int    `toml:"chunk_size"`
}

// Delivery contains the path templates that name client deliverables.
type Delivery struct {
	SequenceTemplate   string `toml:"sequence_template"`
	SingleFileTemplate string `toml:"single_file_template"`
}

// Transcode contains settings for colorspace conversion of frames.
type Transcode struct {
	OiiotoolBinary string `toml:"oiiotool_binary"`
	OCIOConfig     string `toml:"ocio_config"`
	TempDir        string `toml:"temp_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Shuttle.
//
// Configuration sections by subsystem:
//   - Paths: delivery root, staging, and log directories
//   - Shotgrid: production tracking connection and credentials
//   - Deadline: render farm submission defaults
//   - Delivery: client path templates
//   - Transcode: oiiotool and OCIO configuration
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Shotgrid  Shotgrid  `toml:"shotgrid"`
	Deadline  Deadline  `toml:"deadline"`
	Delivery  Delivery  `toml:"delivery"`
	Transcode Transcode `toml:"transcode"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shuttle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/shuttle/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shuttle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for operation. The
// delivery root is created on a best-effort basis so commands can still
// run when client storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DeliveryRoot) != "" {
		_ = os.MkdirAll(c.Paths.DeliveryRoot, 0o755)
	}
	if strings.TrimSpace(c.Transcode.TempDir) != "" {
		if err := os.MkdirAll(c.Transcode.TempDir, 0o755); err != nil {
			return fmt.Errorf("create transcode temp directory %q: %w", c.Transcode.TempDir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
