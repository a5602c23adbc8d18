package oiio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"shuttle/internal/services"
)

var commandContext = exec.CommandContext

// Job describes one colorspace conversion. Either TargetColorspace or the
// Display/View pair must be set; the source colorspace always comes from
// the representation's collected metadata.
type Job struct {
	InputPath        string
	OutputPath       string
	ConfigPath       string
	SourceColorspace string
	TargetColorspace string
	Display          string
	View             string
	ExtraArgs        []string
}

// Converter defines colorspace conversion behaviour.
type Converter interface {
	Convert(ctx context.Context, job Job) error
}

// Option configures the CLI converter.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the oiiotool command-line converter.
type CLI struct {
	binary string
}

var _ Converter = (*CLI)(nil)

// NewCLI constructs a CLI converter using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "oiiotool"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs one conversion. Sequence inputs use the collapsed
// "head{first}-{last}#tail" token, which the tool expands itself.
func (c *CLI) Convert(ctx context.Context, job Job) error {
	args, err := buildArgs(job)
	if err != nil {
		return err
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = job.InputPath
		}
		return services.Wrap(services.ErrExternalTool, "convert colorspace", detail, err)
	}
	return nil
}

func buildArgs(job Job) ([]string, error) {
	if job.InputPath == "" {
		return nil, errors.New("input path required")
	}
	if job.OutputPath == "" {
		return nil, errors.New("output path required")
	}
	if job.ConfigPath == "" {
		return nil, errors.New("color config path required")
	}

	args := []string{"--colorconfig", job.ConfigPath, "-i", job.InputPath}
	switch {
	case job.TargetColorspace != "":
		source := job.SourceColorspace
		if source == "" {
			return nil, errors.New("source colorspace required for colorspace conversion")
		}
		args = append(args, "--colorconvert", source, job.TargetColorspace)
	case job.Display != "" && job.View != "":
		args = append(args, "--ociodisplay", job.Display, job.View)
	default:
		return nil, fmt.Errorf("conversion needs a target colorspace or display+view pair")
	}
	args = append(args, job.ExtraArgs...)
	args = append(args, "-o", job.OutputPath)
	return args, nil
}

// SetCommandContextForTests swaps the command constructor and returns a
// restore function.
func SetCommandContextForTests(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) func() {
	previous := commandContext
	commandContext = fn
	return func() { commandContext = previous }
}
