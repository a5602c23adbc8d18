package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/manifest"
	"shuttle/internal/overrides"
	"shuttle/internal/report"
	"shuttle/internal/transcode"
)

// newTranscodeCommand converts the frame representations of a publish
// manifest into client outputs. The farm publish job runs this after the
// frames land, before integration picks the manifest up.
func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	var (
		manifestPath  string
		versionID     int64
		deliveryTypes []string
	)

	cmd := &cobra.Command{
		Use:   "transcode",
		Short: "Convert manifest frame representations into client outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestPath == "" {
				return errors.New("--manifest is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			converter, err := ctx.converter()
			if err != nil {
				return err
			}

			job, err := manifest.Read(manifestPath)
			if err != nil {
				return err
			}

			types := deliveryTypes
			if len(types) == 0 {
				types = overrides.Types()
			}

			// Tracking overrides are optional here. The submitting side
			// already resolved them when it filled the manifest, but a
			// version id lets the farm side re-resolve fresher settings.
			var set *overrides.Set
			if versionID != 0 {
				session, err := ctx.trackingSession()
				if err != nil {
					return err
				}
				set, err = overrides.NewResolver(session, logger).ForVersion(cmd.Context(), versionID)
				if err != nil {
					return err
				}
			}

			extractor := transcode.NewExtractor(cfg, converter, logger)
			rep := report.New()

			for i := range job.Instances {
				instance := &job.Instances[i]
				profile := transcode.BaseProfile()
				profile.ApplyOverrides(set, types)
				profile.ApplyFamilies(instance.Families)

				result, err := extractor.Process(cmd.Context(), instance, profile)
				if err != nil {
					return fmt.Errorf("transcode instance %q: %w", instance.Subset, err)
				}
				for _, name := range result.Created {
					rep.Add("Transcoded representations", fmt.Sprintf("%s / %s", instance.Subset, name))
				}
			}

			if err := manifest.Write(manifestPath, job); err != nil {
				return err
			}

			printReport(cmd, rep)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to the publish manifest to process")
	cmd.Flags().Int64Var(&versionID, "version", 0, "SG Version id to resolve delivery overrides from")
	cmd.Flags().StringSliceVar(&deliveryTypes, "type", nil, "Delivery types to transcode (review, final)")
	return cmd
}
