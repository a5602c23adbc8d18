package deliver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/naming"
	"shuttle/internal/overrides"
	"shuttle/internal/pipeline"
	"shuttle/internal/report"
	"shuttle/internal/sequence"
	"shuttle/internal/services"
	"shuttle/internal/services/shotgrid"
)

// Template keys recognized in custom delivery template sets. Versions with
// a zero version number use the "V0 " prefixed variants.
const (
	TemplateSequence   = "Sequence"
	TemplateSingleFile = "Single File"
)

// Options controls what a delivery run ships.
type Options struct {
	// DeliveryTypes selects which client output classes to deliver.
	// Empty means all supported types.
	DeliveryTypes []string
	// RepresentationNames restricts delivery to the named representations.
	// Empty means the names come from the tracking overrides.
	RepresentationNames []string
	// Templates maps "Sequence", "Single File" and their "V0 " variants to
	// custom path templates. Nil uses the configured defaults.
	Templates map[string]string
}

func (o Options) deliveryTypes() []string {
	if len(o.DeliveryTypes) == 0 {
		return overrides.Types()
	}
	return o.DeliveryTypes
}

// Service delivers published representations to client destinations.
type Service struct {
	cfg      *config.Config
	store    *pipeline.Store
	sg       shotgrid.Session
	resolver *overrides.Resolver
	executor Executor
	logger   *slog.Logger
	now      func() time.Time
}

// Option adjusts Service construction.
type Option func(*Service)

// WithExecutor overrides the file delivery executor.
func WithExecutor(executor Executor) Option {
	return func(s *Service) {
		s.executor = executor
	}
}

// WithClock overrides the time source used for datetime path tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService builds a delivery Service.
func NewService(cfg *config.Config, store *pipeline.Store, sg shotgrid.Session, logger *slog.Logger, opts ...Option) *Service {
	service := &Service{
		cfg:      cfg,
		store:    store,
		sg:       sg,
		resolver: overrides.NewResolver(sg, logger),
		executor: CopyExecutor{},
		logger:   logging.NewComponentLogger(logger, "deliver"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// DeliverPlaylist delivers every version attached to a tracking playlist.
// The returned report aggregates per-version outcomes; a non-nil error
// means the run aborted before completing.
func (s *Service) DeliverPlaylist(ctx context.Context, playlistID int64, opts Options) (*report.Report, error) {
	rep := report.New()

	playlist, err := s.sg.FindOne(
		ctx,
		shotgrid.EntityPlaylist,
		[]shotgrid.Filter{shotgrid.Eq("id", playlistID)},
		[]string{"project"},
	)
	if err != nil {
		return rep, services.Wrap(services.ErrTransport, "deliver", fmt.Sprintf("query playlist %d", playlistID), err)
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

	versions, err := s.sg.Find(
		ctx,
		shotgrid.EntityVersion,
		[]shotgrid.Filter{shotgrid.In("playlists", shotgrid.Ref{Type: shotgrid.EntityPlaylist, ID: playlistID})},
		[]string{shotgrid.FieldCrossReference, "entity", "code", "project"},
	)
	if err != nil {
		return rep, services.Wrap(services.ErrTransport, "deliver", fmt.Sprintf("query playlist %d versions", playlistID), err)
	}

	for _, record := range versions {
		version, parseErr := shotgrid.ParseVersion(record)
		if parseErr != nil {
			rep.Fail("Malformed SG Version", parseErr.Error())
			continue
		}
		sub, err := s.deliverVersion(ctx, version, projectRef.Name, opts)
		rep.Merge(sub)
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// DeliverVersion delivers a single tracking version by id.
func (s *Service) DeliverVersion(ctx context.Context, versionID int64, opts Options) (*report.Report, error) {
	rep := report.New()

	record, err := s.sg.FindOne(
		ctx,
		shotgrid.EntityVersion,
		[]shotgrid.Filter{shotgrid.Eq("id", versionID)},
		[]string{shotgrid.FieldCrossReference, "entity", "code", "project"},
	)
	if err != nil {
		return rep, services.Wrap(services.ErrTransport, "deliver", fmt.Sprintf("query version %d", versionID), err)
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

	sub, err := s.deliverVersion(ctx, version, version.Project.Name, opts)
	rep.Merge(sub)
	return rep, err
}

func (s *Service) deliverVersion(ctx context.Context, version shotgrid.Version, projectName string, opts Options) (*report.Report, error) {
	ctx = services.WithVersionID(ctx, version.ID)
	logger := logging.WithContext(ctx, s.logger)
	rep := report.New()

	if !version.HasCrossReference() {
		msg := "Missing 'sg_op_instance_id' field on SG Versions"
		detail := version.Label() + "<br>"
		rep.Fail(msg, detail)
		logger.Error(msg, logging.String("version", version.Label()))
		return rep, nil
	}

	project, err := s.store.GetProject(ctx, projectName)
	if err != nil {
		if services.Recoverable(err) {
			rep.Fail(fmt.Sprintf("Didn't find project '%s' in the publish database", projectName), "")
			return rep, nil
		}
		return rep, err
	}

	set, err := s.resolver.ForVersion(ctx, version.ID)
	if err != nil {
		if services.Recoverable(err) {
			rep.Fail("SG Version not found", version.Label())
			return rep, nil
		}
		return rep, err
	}

	deliveryTypes := opts.deliveryTypes()
	names := append([]string{}, opts.RepresentationNames...)
	if len(names) == 0 {
		var entity string
		names, entity = set.RepresentationNames(deliveryTypes)
		switch {
		case len(names) > 0 && entity != shotgrid.EntityProject:
			msg := fmt.Sprintf("Override of outputs for '%s' (id: %d) at the %s level", version.Code, version.ID, entity)
			rep.Set(msg, names)
			logger.Info(msg, logging.Any("names", names))
		case len(names) > 0:
			msg := "Project delivery representation names"
			rep.Set(msg, names)
			logger.Info(msg, logging.Any("names", names))
		default:
			rep.Add("No representation names specified", "All representations will be delivered.")
		}
	}

	// Thumbnails ship with every delivery.
	if len(names) > 0 {
		names = append(names, "thumbnail")
	}

	reps, err := s.store.GetRepresentations(ctx, version.CrossID, names)
	if err != nil {
		return rep, err
	}
	if len(reps) == 0 {
		msg := "None of the representations requested found on SG Versions"
		detail := version.Label() + "<br>"
		rep.Fail(msg, detail)
		logger.Error(msg, logging.String("version", version.Label()))
		return rep, nil
	}

	data := naming.MergeData(naming.DatetimeData(s.now()))
	projectDeliveryName := set.DeliveryName(shotgrid.EntityProject)
	shotDeliveryName := set.DeliveryName(shotgrid.EntityShot)

	for _, representation := range reps {
		if err := s.deliverRepresentation(ctx, rep, version, project, representation, opts, data, projectDeliveryName, shotDeliveryName); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (s *Service) deliverRepresentation(
	ctx context.Context,
	rep *report.Report,
	version shotgrid.Version,
	project *pipeline.Project,
	representation *pipeline.Representation,
	opts Options,
	datetimeData map[string]any,
	projectDeliveryName, shotDeliveryName string,
) error {
	logger := logging.WithContext(ctx, s.logger)
	repCtx := representation.Context

	frame := repCtx.Frame
	isSequence := frame != ""

	template, err := s.destinationTemplate(project.Code, repCtx.Version, isSequence, opts.Templates)
	if err != nil {
		rep.Fail("No delivery template found", fmt.Sprintf("representation '%s': %v", representation.Name, err))
		return nil
	}

	data := map[string]any{
		"project": map[string]any{"name": project.Name, "code": project.Code},
		"asset":   repCtx.Asset,
		"task":    map[string]any{"name": repCtx.Task.Name},
		"subset":  repCtx.Subset,
		"family":  repCtx.Family,
		"version":        repCtx.Version,
		"representation": repCtx.Ext,
		"ext":            repCtx.Ext,
	}
	if isSequence {
		data["frame"] = strings.Repeat("#", len(frame))
	}

	if projectDeliveryName != "" {
		msg := "Project name overridden"
		detail := fmt.Sprintf("%s -> %s", project.Name, projectDeliveryName)
		rep.Add(msg, detail)
		logger.Info(msg, logging.String("override", detail))
		data["project"].(map[string]any)["name"] = projectDeliveryName
	}
	if shotDeliveryName != "" {
		msg := "Shot name overridden"
		detail := fmt.Sprintf("%s -> %s", repCtx.Asset, shotDeliveryName)
		rep.Add(msg, detail)
		logger.Info(msg, logging.String("override", detail))
		data["asset"] = shotDeliveryName
	}

	merged := naming.MergeData(data, datetimeData)

	if _, err := naming.Fill(template, merged); err != nil {
		var missing *naming.MissingTokensError
		if errors.As(err, &missing) {
			rep.Fail(
				"Missing keys in representation's context",
				fmt.Sprintf("representation '%s' missing: %s<br>", representation.Name, strings.Join(missing.Tokens, ", ")),
			)
			return nil
		}
		return services.Wrap(services.ErrConfiguration, "deliver", "fill delivery template", err)
	}

	srcPaths := make([]string, 0, len(representation.Files))
	for _, file := range representation.Files {
		srcPaths = append(srcPaths, file.Path)
	}
	frames := sequence.CollectFrames(srcPaths)

	ordered := make([]string, 0, len(frames))
	for src := range frames {
		ordered = append(ordered, src)
	}
	sort.Strings(ordered)

	for _, src := range ordered {
		fileData := merged
		if fileFrame := frames[src]; fileFrame != "" {
			fileData = naming.MergeData(merged, map[string]any{"frame": fileFrame})
		}
		dest, err := naming.Fill(template, fileData)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "deliver", "fill delivery template", err)
		}

		if err := s.executor.Deliver(src, dest); err != nil {
			if errors.Is(err, ErrDestinationCollision) {
				msg := "Delivery files already exist"
				detail := dest + "<br>"
				rep.Fail(msg, detail)
				logger.Error(msg, logging.String("destination", dest))
				continue
			}
			msg := "Failed to deliver files"
			detail := fmt.Sprintf("%s -> %s: %v<br>", src, dest, err)
			rep.Fail(msg, detail)
			logger.Error(msg, logging.Error(err))
			continue
		}

		detail := fmt.Sprintf("%s -> %s<br>", src, dest)
		rep.Add("Successful delivered representations", detail)
		logger.Info("delivered file",
			logging.String("source", src),
			logging.String("destination", dest))

		delivery := &pipeline.Delivery{
			Project:        project.Name,
			VersionID:      version.CrossID,
			Representation: representation.Name,
			SourcePath:     src,
			Destination:    dest,
		}
		if runID, ok := services.RunIDFromContext(ctx); ok {
			delivery.RunID = runID
		}
		if err := s.store.RecordDelivery(ctx, delivery); err != nil {
			logger.Warn("failed to record delivery in ledger", logging.Error(err))
		}
	}
	return nil
}

// destinationTemplate picks the path template for a representation. A
// custom template set keyed by "Sequence"/"Single File" (with "V0 "
// variants for version zero) wins over the configured defaults. The
// result is always anchored under the project's io/out folder.
func (s *Service) destinationTemplate(projectCode string, contextVersion int, isSequence bool, custom map[string]string) (string, error) {
	var template string
	if len(custom) > 0 {
		key := TemplateSingleFile
		if isSequence {
			key = TemplateSequence
		}
		if contextVersion == 0 {
			key = "V0 " + key
		}
		template = custom[key]
		if template == "" {
			return "", fmt.Errorf("template %q not defined", key)
		}
	} else {
		if isSequence {
			template = s.cfg.Delivery.SequenceTemplate
		} else {
			template = s.cfg.Delivery.SingleFileTemplate
		}
	}
	return filepath.Join(s.cfg.Paths.DeliveryRoot, projectCode, "io", "out", template), nil
}
