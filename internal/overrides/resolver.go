package overrides

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/services/shotgrid"
)

// Fields queried on each hierarchy entity for delivery purposes.
var deliveryFields = []string{
	"sg_delivery_name",
	"sg_slate_subtitle",
	"sg_final_fps",
	"sg_final_output_type",
	"sg_final_tags",
	"sg_review_fps",
	"sg_review_lut",
	"sg_review_output_type",
	"sg_review_tags",
}

// hierarchyStep names one hierarchy level and the field on it that links
// to the level above.
type hierarchyStep struct {
	entity      string
	parentField string
}

// Hierarchy from most specific to most generic. The parent field on each
// entity is what resolves the next level up.
var hierarchy = []hierarchyStep{
	{shotgrid.EntityVersion, "entity"},
	{shotgrid.EntityShot, "sg_sequence"},
	{shotgrid.EntitySequence, "episode"},
	{shotgrid.EntityEpisode, "project"},
	{shotgrid.EntityProject, ""},
}

// Resolver walks the tracking hierarchy and collects delivery overrides.
type Resolver struct {
	sg     shotgrid.Session
	logger *slog.Logger

	// Output datatype lookups repeat across levels; cache per resolver.
	datatypeCache map[int64]OutputType
}

// NewResolver builds a Resolver over a tracking session.
func NewResolver(sg shotgrid.Session, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{sg: sg, logger: logger, datatypeCache: make(map[int64]OutputType)}
}

// ForVersion resolves the override hierarchy for one tracking version.
// Levels that cannot be reached (a version published against an asset has
// no shot chain) are simply absent from the result.
func (r *Resolver) ForVersion(ctx context.Context, versionID int64) (*Set, error) {
	var levels []Level

	current, err := r.sg.FindOne(
		ctx,
		shotgrid.EntityVersion,
		[]shotgrid.Filter{shotgrid.Eq("id", versionID)},
		append([]string{"entity"}, deliveryFields...),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "overrides", fmt.Sprintf("query version %d", versionID), err)
	}
	if current == nil {
		return nil, services.Wrap(services.ErrNotFound, "overrides", fmt.Sprintf("version %d", versionID), nil)
	}

	for i, step := range hierarchy {
		entity, err := r.entityOverrides(ctx, current)
		if err != nil {
			return nil, err
		}
		levels = append(levels, Level{Entity: step.entity, Overrides: entity})

		if step.parentField == "" {
			break
		}
		parent, ok := current.Ref(step.parentField)
		if !ok || parent.ID == 0 {
			r.logger.Debug("hierarchy link missing",
				slog.String("entity", step.entity),
				slog.String("field", step.parentField))
			break
		}
		next := hierarchy[i+1]
		if parent.Type != "" && parent.Type != next.entity {
			// A version linked to something other than a shot ends the climb.
			r.logger.Debug("hierarchy link points at unexpected entity",
				slog.String("expected", next.entity),
				slog.String("got", parent.Type))
			break
		}
		queryFields := append([]string{}, deliveryFields...)
		if next.parentField != "" {
			queryFields = append(queryFields, next.parentField)
		}
		record, err := r.sg.FindOne(
			ctx,
			next.entity,
			[]shotgrid.Filter{shotgrid.Eq("id", parent.ID)},
			queryFields,
		)
		if err != nil {
			return nil, services.Wrap(services.ErrTransport, "overrides", fmt.Sprintf("query %s %d", next.entity, parent.ID), err)
		}
		if record == nil {
			r.logger.Debug("hierarchy entity not found",
				slog.String("entity", next.entity),
				slog.Int64("id", parent.ID))
			break
		}
		current = record
	}

	return NewSet(levels), nil
}

func (r *Resolver) entityOverrides(ctx context.Context, record shotgrid.Record) (Entity, error) {
	entity := Entity{
		DeliveryName:  record.Str("sg_delivery_name"),
		SlateSubtitle: record.Str("sg_slate_subtitle"),
		ReviewLUT:     record.Bool("sg_review_lut"),
		Outputs:       make(map[string]map[string]OutputType),
		Tags:          make(map[string][]string),
		FPS:           make(map[string]float64),
	}

	for _, deliveryType := range Types() {
		if tags := record.Str("sg_" + deliveryType + "_tags"); tags != "" {
			entity.Tags[deliveryType] = splitTags(tags)
		}
		if fps := asFloat(record["sg_"+deliveryType+"_fps"]); fps > 0 {
			entity.FPS[deliveryType] = fps
		}

		outputs := make(map[string]OutputType)
		for _, ref := range record.Refs("sg_" + deliveryType + "_output_type") {
			output, err := r.outputDatatype(ctx, ref)
			if err != nil {
				return Entity{}, err
			}
			outputs[RepresentationName(output.Name, deliveryType)] = output
		}
		if len(outputs) > 0 {
			entity.Outputs[deliveryType] = outputs
		}
	}

	return entity, nil
}

func (r *Resolver) outputDatatype(ctx context.Context, ref shotgrid.Ref) (OutputType, error) {
	if cached, ok := r.datatypeCache[ref.ID]; ok {
		return cached, nil
	}
	record, err := r.sg.FindOne(
		ctx,
		shotgrid.EntityOutputDatatype,
		[]shotgrid.Filter{shotgrid.Eq("id", ref.ID)},
		[]string{"sg_extension"},
	)
	if err != nil {
		return OutputType{}, services.Wrap(services.ErrTransport, "overrides", fmt.Sprintf("query output datatype %d", ref.ID), err)
	}
	output := OutputType{Name: ref.Name}
	if record != nil {
		output.Extension = strings.TrimPrefix(record.Str("sg_extension"), ".")
	}
	r.datatypeCache[ref.ID] = output
	return output, nil
}

func splitTags(value string) []string {
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func asFloat(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case int64:
		return float64(value)
	case int:
		return float64(value)
	}
	return 0
}
