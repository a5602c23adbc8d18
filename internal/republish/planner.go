package republish

import (
	"context"
	"fmt"
	"log/slog"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/manifest"
	"shuttle/internal/overrides"
	"shuttle/internal/pipeline"
	"shuttle/internal/report"
	"shuttle/internal/sequence"
	"shuttle/internal/services"
	"shuttle/internal/services/deadline"
	"shuttle/internal/services/shotgrid"
	"shuttle/internal/session"
)

// Options controls a republish run.
type Options struct {
	// DeliveryTypes selects which client output classes to regenerate.
	// Empty means all supported types.
	DeliveryTypes []string
	// RepresentationNames are the names expected to exist after the farm
	// job publishes. Empty means they come from the tracking overrides.
	RepresentationNames []string
	// Force submits the job even when the representations already exist.
	Force bool
}

func (o Options) deliveryTypes() []string {
	if len(o.DeliveryTypes) == 0 {
		return overrides.Types()
	}
	return o.DeliveryTypes
}

// Planner builds publish-on-farm jobs that regenerate client outputs for
// already published versions.
type Planner struct {
	cfg      *config.Config
	store    *pipeline.Store
	sg       shotgrid.Session
	resolver *overrides.Resolver
	farm     deadline.Submitter
	logger   *slog.Logger
	username func() string
}

// Option adjusts Planner construction.
type Option func(*Planner)

// WithUsername overrides how the submitting user is resolved.
func WithUsername(username func() string) Option {
	return func(p *Planner) {
		p.username = username
	}
}

// NewPlanner builds a republish Planner.
func NewPlanner(cfg *config.Config, store *pipeline.Store, sg shotgrid.Session, farm deadline.Submitter, logger *slog.Logger, opts ...Option) *Planner {
	planner := &Planner{
		cfg:      cfg,
		store:    store,
		sg:       sg,
		resolver: overrides.NewResolver(sg, logger),
		farm:     farm,
		logger:   logging.NewComponentLogger(logger, "republish"),
		username: currentUsername,
	}
	for _, opt := range opts {
		opt(planner)
	}
	return planner
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// RepublishPlaylist republishes every version attached to a playlist.
func (p *Planner) RepublishPlaylist(ctx context.Context, playlistID int64, opts Options) (*report.Report, error) {
	return p.forEachPlaylistVersion(ctx, playlistID, func(ctx context.Context, version shotgrid.Version, projectName string) (*report.Report, error) {
		return p.republishVersion(ctx, version, projectName, opts)
	})
}

// RepublishVersion republishes a single tracking version by id.
func (p *Planner) RepublishVersion(ctx context.Context, versionID int64, opts Options) (*report.Report, error) {
	return p.forVersionID(ctx, versionID, func(ctx context.Context, version shotgrid.Version, projectName string) (*report.Report, error) {
		return p.republishVersion(ctx, version, projectName, opts)
	})
}

type versionFunc func(ctx context.Context, version shotgrid.Version, projectName string) (*report.Report, error)

func (p *Planner) forEachPlaylistVersion(ctx context.Context, playlistID int64, fn versionFunc) (*report.Report, error) {
	rep := report.New()

	playlist, err := p.sg.FindOne(
		ctx,
		shotgrid.EntityPlaylist,
		[]shotgrid.Filter{shotgrid.Eq("id", playlistID)},
		[]string{"project"},
	)
	if err != nil {
		return rep, services.Wrap(services.ErrTransport, "republish", fmt.Sprintf("query playlist %d", playlistID), err)
	}
	if playlist == nil {
		rep.Fail("SG Playlist not found", fmt.Sprintf("id: %d", playlistID))
		return rep, nil
	}
	projectRef, ok := playlist.Ref("project")
	if !ok {
		rep.Fail("SG Playlist has no project", fmt.Sprintf("id: %d", playlistID))
		return rep, nil
	}

	versions, err := p.sg.Find(
		ctx,
		shotgrid.EntityVersion,
		[]shotgrid.Filter{shotgrid.In("playlists", shotgrid.Ref{Type: shotgrid.EntityPlaylist, ID: playlistID})},
		[]string{"project", "code", "entity", shotgrid.FieldCrossReference},
	)
	if err != nil {
		return rep, services.Wrap(services.ErrTransport, "republish", fmt.Sprintf("query playlist %d versions", playlistID), err)
	}

	for _, record := range versions {
		version, parseErr := shotgrid.ParseVersion(record)
		if parseErr != nil {
			rep.Fail("Malformed SG Version", parseErr.Error())
			continue
		}
		sub, err := fn(ctx, version, projectRef.Name)
		rep.Merge(sub)
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (p *Planner) forVersionID(ctx context.Context, versionID int64, fn versionFunc) (*report.Report, error) {
	rep := report.New()

	record, err := p.sg.FindOne(
		ctx,
		shotgrid.EntityVersion,
		[]shotgrid.Filter{shotgrid.Eq("id", versionID)},
		[]string{"project", "code", "entity", shotgrid.FieldCrossReference},
	)
	if err != nil {
		return rep, services.Wrap(services.ErrTransport, "republish", fmt.Sprintf("query version %d", versionID), err)
	}
	if record == nil {
		rep.Fail("SG Version not found", fmt.Sprintf("id: %d", versionID))
		return rep, nil
	}
	version, parseErr := shotgrid.ParseVersion(record)
	if parseErr != nil {
		rep.Fail("Malformed SG Version", parseErr.Error())
		return rep, nil
	}

	sub, err := fn(ctx, version, version.Project.Name)
	rep.Merge(sub)
	return rep, err
}

func (p *Planner) republishVersion(ctx context.Context, version shotgrid.Version, projectName string, opts Options) (*report.Report, error) {
	ctx = services.WithVersionID(ctx, version.ID)
	logger := logging.WithContext(ctx, p.logger)
	rep := report.New()

	versionDoc, exrRep, ok, err := p.loadPublishedVersion(ctx, rep, version)
	if err != nil || !ok {
		return rep, err
	}

	deliveryTypes := opts.deliveryTypes()
	if !opts.Force {
		done, err := p.representationsAlreadyExist(ctx, rep, version, version.CrossID, deliveryTypes, opts.RepresentationNames)
		if err != nil {
			return rep, err
		}
		if done {
			return rep, nil
		}
	}

	renderPath := filepath.Dir(exrRep.Path)

	families := append([]string{}, versionDoc.Data.Families...)
	families = append(families, "review")
	for _, deliveryType := range deliveryTypes {
		families = append(families, "client_"+deliveryType)
	}

	instance := p.buildInstance(versionDoc, exrRep, projectName, families)
	instance.JobBatchName = fmt.Sprintf("Republish - %s - %d", version.Code, versionDoc.Number)
	instance.Version = versionDoc.Number
	instance.OutputDir = renderPath

	expected := expectedFrameFiles(exrRep.Path, instance.FrameStartHandle, instance.FrameEndHandle)
	logger.Debug("expected files computed", logging.Int("count", len(expected)))

	representations, err := buildRepresentations(instance, expected, false)
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

	jobName := fmt.Sprintf("Republish - %s - %s", instance.Asset, instance.Subset)
	jobID, err := p.submitPublishJob(ctx, instance, snapshot, jobName)
	if err != nil {
		return rep, err
	}
	rep.Add("Submitted republish job to Deadline", jobID)
	logger.Info("submitted republish job", logging.String("job_id", jobID))

	if err := p.writeManifest(instance, snapshot, jobID); err != nil {
		return rep, err
	}
	return rep, nil
}

// loadPublishedVersion resolves the pipeline version and its exr master
// for a tracking version, reporting the standard failures when absent.
func (p *Planner) loadPublishedVersion(ctx context.Context, rep *report.Report, version shotgrid.Version) (*pipeline.Version, *pipeline.Representation, bool, error) {
	logger := logging.WithContext(ctx, p.logger)

	if !version.HasCrossReference() {
		msg := "Missing 'sg_op_instance_id' field on SG Versions"
		detail := version.Label() + "<br>"
		rep.Fail(msg, detail)
		logger.Error(msg, logging.String("version", version.Label()))
		return nil, nil, false, nil
	}

	versionDoc, err := p.store.GetVersionByID(ctx, version.CrossID)
	if err != nil {
		if services.Recoverable(err) {
			msg := "No pipeline version found for SG Versions"
			detail := version.Label() + "<br>"
			rep.Fail(msg, detail)
			logger.Error(msg, logging.String("version", version.Label()))
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	exrRep, err := p.store.GetRepresentationByName(ctx, version.CrossID, "exr")
	if err != nil {
		return nil, nil, false, err
	}
	if exrRep == nil {
		msg := "No 'exr' representation found on SG versions"
		detail := version.Label() + "<br>"
		rep.Fail(msg, detail)
		logger.Error(msg, logging.String("version", version.Label()))
		return nil, nil, false, nil
	}
	return versionDoc, exrRep, true, nil
}

// representationsAlreadyExist reports success when everything requested is
// already published against versionID, short-circuiting the submission.
func (p *Planner) representationsAlreadyExist(ctx context.Context, rep *report.Report, version shotgrid.Version, versionID string, deliveryTypes, names []string) (bool, error) {
	logger := logging.WithContext(ctx, p.logger)

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

	existing, err := p.store.GetRepresentations(ctx, versionID, nil)
	if err != nil {
		return false, err
	}
	existingNames := make(map[string]bool, len(existing))
	for _, representation := range existing {
		existingNames[representation.Name] = true
	}
	for _, name := range names {
		if !existingNames[name] {
			return false, nil
		}
	}

	msg := fmt.Sprintf("Requested '%s' representations already exist", strings.Join(deliveryTypes, ", "))
	detail := version.Label() + "<br>"
	rep.Add(msg, detail)
	logger.Info(msg, logging.String("version", version.Label()))
	return true, nil
}

func (p *Planner) buildInstance(versionDoc *pipeline.Version, exrRep *pipeline.Representation, projectName string, families []string) *manifest.Instance {
	data := versionDoc.Data
	return &manifest.Instance{
		Project:               projectName,
		Family:                exrRep.Context.Family,
		Subset:                exrRep.Context.Subset,
		Families:              families,
		Asset:                 exrRep.Context.Asset,
		Task:                  exrRep.Context.Task.Name,
		FrameStart:            data.FrameStart,
		FrameEnd:              data.FrameEnd,
		HandleStart:           data.HandleStart,
		HandleEnd:             data.HandleEnd,
		FrameStartHandle:      data.FrameStart - data.HandleStart,
		FrameEndHandle:        data.FrameEnd + data.HandleEnd,
		Comment:               data.Comment,
		Fps:                   data.Fps,
		Source:                data.Source,
		OverrideExistingFrame: false,
		UseSequenceForReview:  true,
		Colorspace:            data.Colorspace,
	}
}

func (p *Planner) injectColorspace(representations []manifest.Representation, colorspace string) {
	if colorspace == "" {
		colorspace = "scene_linear"
	}
	for i := range representations {
		representations[i].ColorspaceData = &manifest.ColorspaceData{
			Colorspace: colorspace,
			Config:     manifest.ColorspaceConfig{Path: p.cfg.Transcode.OCIOConfig},
		}
	}
}

func (p *Planner) writeManifest(instance *manifest.Instance, snapshot map[string]string, jobID string) error {
	username := p.username()
	instance.DeadlineURL = p.cfg.Deadline.URL

	job := &manifest.PublishJob{
		Asset:      instance.Asset,
		FrameStart: instance.FrameStartHandle,
		FrameEnd:   instance.FrameEndHandle,
		Fps:        instance.Fps,
		Source:     instance.Source,
		User:       username,
		Version:    nil,
		Intent:     nil,
		Comment:    instance.Comment,
		Job: &manifest.RenderJob{Props: manifest.RenderJobProps{
			Batch: instance.JobBatchName,
			User:  username,
		}},
		Session:              snapshot,
		Instances:            []manifest.Instance{*instance},
		DeadlinePublishJobID: jobID,
	}

	path := manifest.Path(instance.OutputDir, instance.Asset, instance.Subset)
	if err := manifest.Write(path, job); err != nil {
		return services.Wrap(services.ErrConfiguration, "republish", "write publish manifest", err)
	}
	p.logger.Info("wrote publish manifest", logging.String("path", path))
	return nil
}

// expectedFrameFiles expands a published frame path into the files the
// farm job must produce across the full handle range.
func expectedFrameFiles(framePath string, frameStart, frameEnd int) []string {
	hashes := sequence.HashPath(framePath)
	return sequence.ExpectedFiles(hashes, frameStart, frameEnd)
}

// buildRepresentations groups expected files into per-extension manifest
// representations. File entries are base names; the directory becomes the
// staging dir. Review tags are attached unless skipReview is set.
func buildRepresentations(instance *manifest.Instance, expected []string, skipReview bool) ([]manifest.Representation, error) {
	type group struct {
		ext     string
		files   []string
		staging string
	}
	groups := make(map[string]*group)
	var order []string

	for _, path := range expected {
		base := filepath.Base(path)
		head, frame, tail := sequence.Split(base)
		key := head + tail
		if frame == "" {
			tail = filepath.Ext(base)
			key = base
		}
		g, ok := groups[key]
		if !ok {
			g = &group{
				ext:     strings.TrimPrefix(tail, "."),
				staging: filepath.Dir(path),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.files = append(g.files, base)
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("no files to represent")
	}

	representations := make([]manifest.Representation, 0, len(order))
	for _, key := range order {
		g := groups[key]
		sort.Strings(g.files)
		tags := []string{}
		if !skipReview {
			tags = []string{"review", "shotgridreview"}
			solveFamilies(instance)
		}
		representations = append(representations, manifest.Representation{
			Name:       g.ext,
			Ext:        g.ext,
			Files:      g.files,
			FrameStart: instance.FrameStartHandle,
			FrameEnd:   instance.FrameEndHandle,
			StagingDir: g.staging,
			Fps:        instance.Fps,
			Tags:       tags,
		})
	}
	return representations, nil
}

// solveFamilies flags the instance for review once any representation
// carries a review tag.
func solveFamilies(instance *manifest.Instance) {
	for _, family := range instance.Families {
		if family == "review" {
			return
		}
	}
	instance.Families = append(instance.Families, "review")
}
