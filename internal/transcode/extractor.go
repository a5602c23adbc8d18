package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/manifest"
	"shuttle/internal/sequence"
	"shuttle/internal/services"
	"shuttle/internal/services/oiio"
)

// Result summarizes one extraction run.
type Result struct {
	// Converted counts conversion tool invocations.
	Converted int
	// Created holds the names of the representations added to the
	// instance.
	Created []string
	// CleanupPaths are the transcoded files to remove once the publish
	// finishes uploading them.
	CleanupPaths []string
}

// Extractor expands source representations into color-converted client
// outputs according to a profile.
type Extractor struct {
	cfg       *config.Config
	converter oiio.Converter
	logger    *slog.Logger
	tempDir   func() (string, error)
}

// ExtractorOption adjusts Extractor construction.
type ExtractorOption func(*Extractor)

// WithTempDir overrides how per-output staging directories are created.
func WithTempDir(fn func() (string, error)) ExtractorOption {
	return func(e *Extractor) {
		e.tempDir = fn
	}
}

// NewExtractor builds an Extractor around a conversion backend.
func NewExtractor(cfg *config.Config, converter oiio.Converter, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	extractor := &Extractor{
		cfg:       cfg,
		converter: converter,
		logger:    logging.NewComponentLogger(logger, "transcode"),
	}
	extractor.tempDir = func() (string, error) {
		return os.MkdirTemp(cfg.Transcode.TempDir, "transcode_")
	}
	for _, opt := range opts {
		opt(extractor)
	}
	return extractor
}

// Process converts every eligible representation on the instance into the
// profile's outputs, replaces originals marked for deletion, and appends
// the new representations. Ambiguous frame collections and conversion
// tool failures abort the run.
func (e *Extractor) Process(ctx context.Context, instance *manifest.Instance, profile Profile) (*Result, error) {
	result := &Result{}
	if len(profile.Outputs) == 0 {
		e.logger.Debug("no outputs configured, skipping transcode")
		return result, nil
	}
	if len(instance.Representations) == 0 {
		e.logger.Debug("no representations, skipping transcode")
		return result, nil
	}

	var created []manifest.Representation
	for i := range instance.Representations {
		source := &instance.Representations[i]
		if !e.eligible(source) {
			continue
		}

		configPath := source.ColorspaceData.Config.Path
		if configPath == "" {
			e.logger.Warn("representation has no color config path, skipping",
				logging.String("representation", source.Name))
			continue
		}
		if _, err := os.Stat(configPath); err != nil {
			e.logger.Warn("color config does not exist, skipping",
				logging.String("representation", source.Name),
				logging.String("config", configPath))
			continue
		}

		added := false
		for _, outputName := range profile.OutputNames() {
			output := profile.Outputs[outputName]
			converted, err := e.convertOutput(ctx, source, outputName, output, result)
			if err != nil {
				return result, err
			}
			created = append(created, *converted)
			result.Created = append(result.Created, converted.Name)
			added = true
		}

		if added && profile.DeleteOriginal {
			source.AddTag("delete")
		}
	}

	kept := instance.Representations[:0]
	for _, representation := range instance.Representations {
		if representation.HasTag("delete") && !representation.HasTag("thumbnail") {
			continue
		}
		kept = append(kept, representation)
	}
	instance.Representations = append(kept, created...)
	return result, nil
}

// convertOutput produces one transcoded representation from a source.
func (e *Extractor) convertOutput(ctx context.Context, source *manifest.Representation, outputName string, output OutputDefinition, result *Result) (*manifest.Representation, error) {
	target := cloneRepresentation(source)

	stagingDir, err := e.tempDir()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "create staging directory", err)
	}
	sourceStaging := target.StagingDir
	target.StagingDir = stagingDir

	sourceFiles := append([]string{}, source.Files...)
	if outputName != "passthrough" {
		target.Name = outputName
	}
	extension := strings.TrimPrefix(output.Extension, ".")
	if extension != "" {
		target.Ext = extension
		renamed := make([]string, 0, len(sourceFiles))
		for _, name := range sourceFiles {
			renamed = append(renamed, swapExtension(name, extension))
		}
		target.Files = renamed
	}

	colorspaceData := source.ColorspaceData
	var targetColorspace, display, view string
	if output.Mode == ModeDisplayView {
		display = output.Display
		view = output.View
		if display == "" {
			display = colorspaceData.Display
		}
		if view == "" {
			view = colorspaceData.View
		}
	} else {
		targetColorspace = output.Colorspace
		if targetColorspace == "" {
			targetColorspace = colorspaceData.Colorspace
		}
	}
	target.ColorspaceData = &manifest.ColorspaceData{
		Colorspace: colorspaceData.Colorspace,
		Config:     colorspaceData.Config,
		Display:    colorspaceData.Display,
		View:       colorspaceData.View,
	}
	if targetColorspace != "" {
		target.ColorspaceData.Colorspace = targetColorspace
	}
	if display != "" {
		target.ColorspaceData.Display = display
	}
	if view != "" {
		target.ColorspaceData.View = view
	}

	tokens, err := sequence.Collapse(sourceFiles)
	if err != nil {
		return nil, fmt.Errorf("representation %q: %w", source.Name, err)
	}
	for _, token := range tokens {
		inputPath := filepath.Join(sourceStaging, token)
		outputPath := filepath.Join(stagingDir, swapExtension(token, extension))
		job := oiio.Job{
			InputPath:        inputPath,
			OutputPath:       outputPath,
			ConfigPath:       colorspaceData.Config.Path,
			SourceColorspace: colorspaceData.Colorspace,
			TargetColorspace: targetColorspace,
			Display:          display,
			View:             view,
			ExtraArgs:        output.AdditionalArgs,
		}
		if err := e.converter.Convert(ctx, job); err != nil {
			return nil, err
		}
		result.Converted++
		e.logger.Info("converted representation files",
			logging.String("input", inputPath),
			logging.String("output", outputPath),
			logging.String("colorspace", targetColorspace))
	}

	for _, name := range target.Files {
		result.CleanupPaths = append(result.CleanupPaths, filepath.Join(stagingDir, name))
	}

	if len(output.CustomTags) > 0 {
		target.CustomTags = append(target.CustomTags, output.CustomTags...)
	}
	target.RemoveTag("shotgridreview")
	for _, tag := range output.Tags {
		target.AddTag(tag)
	}
	return target, nil
}

// eligible reports whether a representation can be transcoded.
func (e *Extractor) eligible(representation *manifest.Representation) bool {
	if !SupportedExtension(representation.Ext) {
		e.logger.Debug("unsupported extension, skipping",
			logging.String("representation", representation.Name),
			logging.String("ext", representation.Ext))
		return false
	}
	if len(representation.Files) == 0 {
		e.logger.Debug("no files, skipping",
			logging.String("representation", representation.Name))
		return false
	}
	if representation.ColorspaceData == nil {
		e.logger.Debug("no colorspace data, skipping",
			logging.String("representation", representation.Name))
		return false
	}
	return true
}

func cloneRepresentation(source *manifest.Representation) *manifest.Representation {
	clone := *source
	clone.Files = append([]string{}, source.Files...)
	clone.Tags = append([]string{}, source.Tags...)
	clone.CustomTags = append([]string{}, source.CustomTags...)
	return &clone
}

// swapExtension replaces the file extension, keeping the name untouched
// when ext is empty.
func swapExtension(name, ext string) string {
	if ext == "" {
		return name
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + "." + ext
}
