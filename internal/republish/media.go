package republish

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"shuttle/internal/logging"
	"shuttle/internal/pipeline"
	"shuttle/internal/report"
	"shuttle/internal/services"
	"shuttle/internal/services/shotgrid"
	"shuttle/internal/session"
)

// MediaOptions controls a generate-delivery-media run.
type MediaOptions struct {
	Options
	// Description suffixes the delivery subset name, keeping variants of
	// the same source version apart.
	Description string
	// OverrideVersion pins the delivery version number instead of reusing
	// the source version's.
	OverrideVersion int
}

// GenerateMediaPlaylist submits delivery media generation for every
// version attached to a playlist.
func (p *Planner) GenerateMediaPlaylist(ctx context.Context, playlistID int64, opts MediaOptions) (*report.Report, error) {
	return p.forEachPlaylistVersion(ctx, playlistID, func(ctx context.Context, version shotgrid.Version, projectName string) (*report.Report, error) {
		return p.generateMediaVersion(ctx, version, projectName, opts)
	})
}

// GenerateMediaVersion submits delivery media generation for a single
// tracking version by id.
func (p *Planner) GenerateMediaVersion(ctx context.Context, versionID int64, opts MediaOptions) (*report.Report, error) {
	return p.forVersionID(ctx, versionID, func(ctx context.Context, version shotgrid.Version, projectName string) (*report.Report, error) {
		return p.generateMediaVersion(ctx, version, projectName, opts)
	})
}

func (p *Planner) generateMediaVersion(ctx context.Context, version shotgrid.Version, projectName string, opts MediaOptions) (*report.Report, error) {
	ctx = services.WithVersionID(ctx, version.ID)
	logger := logging.WithContext(ctx, p.logger)
	rep := report.New()

	versionDoc, exrRep, ok, err := p.loadPublishedVersion(ctx, rep, version)
	if err != nil || !ok {
		return rep, err
	}

	subset, err := p.store.GetSubsetByID(ctx, versionDoc.SubsetID)
	if err != nil {
		if services.Recoverable(err) {
			rep.Fail("No pipeline subset found for SG Versions", version.Label()+"<br>")
			return rep, nil
		}
		return rep, err
	}

	deliverySubset := "delivery_" + subset.Name
	if opts.Description != "" {
		deliverySubset += "_" + opts.Description
	}

	deliveryTypes := opts.deliveryTypes()
	if !opts.Force {
		done, err := p.deliveryMediaAlreadyExists(ctx, rep, version, subset, deliverySubset, deliveryTypes, opts.RepresentationNames)
		if err != nil {
			return rep, err
		}
		if done {
			return rep, nil
		}
	}

	renderPath := filepath.Dir(exrRep.Path)
	stagingDir := filepath.Join(p.cfg.Paths.StagingDir, "temp_delivery", version.Code, deliverySubset)

	families := append([]string{}, versionDoc.Data.Families...)
	for _, deliveryType := range deliveryTypes {
		families = append(families, "client_"+deliveryType)
	}

	instance := p.buildInstance(versionDoc, exrRep, projectName, families)
	instance.Subset = deliverySubset
	instance.JobBatchName = fmt.Sprintf("Generate delivery media - %s - %s", version.Code, deliverySubset)
	instance.OutputDir = stagingDir
	if opts.OverrideVersion > 0 {
		instance.Version = opts.OverrideVersion
	} else {
		instance.Version = versionDoc.Number
	}
	if opts.Description != "" {
		instance.CustomData = map[string]string{"description": opts.Description}
	}

	expected := expectedFrameFiles(exrRep.Path, instance.FrameStartHandle, instance.FrameEndHandle)
	logger.Debug("expected files computed", logging.Int("count", len(expected)))

	representations, err := buildRepresentations(instance, expected, true)
	if err != nil {
		rep.Fail("Could not assemble frame sequence", fmt.Sprintf("%s: %v<br>", version.Label(), err))
		return rep, nil
	}
	p.injectColorspace(representations, instance.Colorspace)
	instance.Representations = representations

	snapshot := session.Session{
		Project: projectName,
		Asset:   instance.Asset,
		Task:    instance.Task,
		Workdir: renderPath,
		App:     "traypublisher",
	}.Snapshot()

	jobName := fmt.Sprintf("Generate delivery media - %s - %s", instance.Asset, deliverySubset)
	jobID, err := p.submitPublishJob(ctx, instance, snapshot, jobName)
	if err != nil {
		return rep, err
	}
	rep.Add("Submitted generate delivery media job to Deadline", jobID)
	logger.Info("submitted generate delivery media job", logging.String("job_id", jobID))

	if err := p.writeManifest(instance, snapshot, jobID); err != nil {
		return rep, err
	}
	return rep, nil
}

// deliveryMediaAlreadyExists short-circuits when the delivery subset's
// latest version already carries everything requested.
func (p *Planner) deliveryMediaAlreadyExists(ctx context.Context, rep *report.Report, version shotgrid.Version, subset *pipeline.Subset, deliverySubset string, deliveryTypes, names []string) (bool, error) {
	if len(names) == 0 {
		set, err := p.resolver.ForVersion(ctx, version.ID)
		if err != nil {
			if services.Recoverable(err) {
				return false, nil
			}
			return false, err
		}
		names, _ = set.RepresentationNames(deliveryTypes)
	}
	if len(names) == 0 {
		return false, nil
	}

	existing, err := p.store.FindSubset(ctx, subset.Project, subset.Asset, deliverySubset)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	last, err := p.store.GetLastVersion(ctx, existing.ID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	published, err := p.store.GetRepresentations(ctx, last.ID, nil)
	if err != nil {
		return false, err
	}
	publishedNames := make(map[string]bool, len(published))
	for _, representation := range published {
		publishedNames[representation.Name] = true
	}
	for _, name := range names {
		if !publishedNames[name] {
			return false, nil
		}
	}

	msg := fmt.Sprintf("Requested '%s' representations already exist", strings.Join(deliveryTypes, ", "))
	rep.Add(msg, version.Label()+"<br>")
	logging.WithContext(ctx, p.logger).Info(msg, logging.String("version", version.Label()))
	return true, nil
}
