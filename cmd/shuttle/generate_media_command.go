package main

import (
	"errors"

	"github.com/spf13/cobra"

	"shuttle/internal/report"
	"shuttle/internal/republish"
)

func newGenerateMediaCommand(ctx *commandContext) *cobra.Command {
	flags := &targetFlags{}
	var force bool
	var description string
	var overrideVersion int

	cmd := &cobra.Command{
		Use:   "generate-media",
		Short: "Submit farm jobs that publish delivery media as a new subset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			planner, closeStore, err := newPlanner(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			runCtx, release, err := ctx.beginRun(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			opts := republish.MediaOptions{
				Options: republish.Options{
					DeliveryTypes:       flags.deliveryTypes,
					RepresentationNames: flags.representationNames,
					Force:               force,
				},
				Description:     description,
				OverrideVersion: overrideVersion,
			}

			var rep *report.Report
			if flags.playlistID != 0 {
				rep, err = planner.GenerateMediaPlaylist(runCtx, flags.playlistID, opts)
			} else {
				rep, err = planner.GenerateMediaVersion(runCtx, flags.versionID, opts)
			}
			if err != nil {
				return err
			}

			printReport(cmd, rep)
			if !rep.OK() {
				return errors.New("generate media completed with failures")
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Submit even when the delivery media already exists")
	cmd.Flags().StringVar(&description, "description", "", "Suffix for the delivery subset name")
	cmd.Flags().IntVar(&overrideVersion, "delivery-version", 0, "Pin the delivery version number")
	return cmd
}
