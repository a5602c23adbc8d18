package main

import (
	"errors"

	"github.com/spf13/cobra"

	"shuttle/internal/report"
	"shuttle/internal/republish"
)

func newRepublishCommand(ctx *commandContext) *cobra.Command {
	flags := &targetFlags{}
	var force bool

	cmd := &cobra.Command{
		Use:   "republish",
		Short: "Submit farm jobs that regenerate client outputs for published versions",
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

			opts := republish.Options{
				DeliveryTypes:       flags.deliveryTypes,
				RepresentationNames: flags.representationNames,
				Force:               force,
			}

			var rep *report.Report
			if flags.playlistID != 0 {
				rep, err = planner.RepublishPlaylist(runCtx, flags.playlistID, opts)
			} else {
				rep, err = planner.RepublishVersion(runCtx, flags.versionID, opts)
			}
			if err != nil {
				return err
			}

			printReport(cmd, rep)
			if !rep.OK() {
				return errors.New("republish completed with failures")
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Submit even when the representations already exist")
	return cmd
}

// newPlanner wires a republish planner from the command context.
func newPlanner(ctx *commandContext) (*republish.Planner, func(), error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := ctx.openStore()
	if err != nil {
		return nil, nil, err
	}
	session, err := ctx.trackingSession()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	farm, err := ctx.farmSubmitter()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return republish.NewPlanner(cfg, store, session, farm, logger), closeStore, nil
}
