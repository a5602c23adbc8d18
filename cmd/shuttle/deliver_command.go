package main

import (
	"errors"

	"github.com/spf13/cobra"

	"shuttle/internal/deliver"
	"shuttle/internal/report"
)

// targetFlags selects what a delivery-style command operates on.
type targetFlags struct {
	playlistID int64
	versionID  int64

	deliveryTypes       []string
	representationNames []string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.playlistID, "playlist", 0, "SG Playlist id to process")
	cmd.Flags().Int64Var(&f.versionID, "version", 0, "SG Version id to process")
	cmd.Flags().StringSliceVar(&f.deliveryTypes, "type", nil, "Delivery types to process (review, final)")
	cmd.Flags().StringSliceVar(&f.representationNames, "representation", nil, "Representation names to process")
}

func (f *targetFlags) validate() error {
	if (f.playlistID == 0) == (f.versionID == 0) {
		return errors.New("exactly one of --playlist or --version is required")
	}
	return nil
}

func newDeliverCommand(ctx *commandContext) *cobra.Command {
	flags := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Deliver published representations to the client delivery area",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, closeStore, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			session, err := ctx.trackingSession()
			if err != nil {
				return err
			}

			runCtx, release, err := ctx.beginRun(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			service := deliver.NewService(cfg, store, session, logger)
			opts := deliver.Options{
				DeliveryTypes:       flags.deliveryTypes,
				RepresentationNames: flags.representationNames,
			}

			var rep *report.Report
			if flags.playlistID != 0 {
				rep, err = service.DeliverPlaylist(runCtx, flags.playlistID, opts)
			} else {
				rep, err = service.DeliverVersion(runCtx, flags.versionID, opts)
			}
			if err != nil {
				return err
			}

			printReport(cmd, rep)
			if !rep.OK() {
				return errors.New("delivery completed with failures")
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
