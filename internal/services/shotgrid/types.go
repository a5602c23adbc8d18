package shotgrid

import (
	"fmt"
	"strconv"
)

// Schema names this tool depends on. The sg_ field names are part of the
// studio's tracking schema and must match it exactly.
const (
	EntityPlaylist = "Playlist"
	EntityVersion  = "Version"
	EntityShot     = "Shot"
	EntitySequence = "Sequence"
	EntityEpisode  = "Episode"
	EntityProject  = "Project"

	// EntityOutputDatatype is the custom entity holding delivery output
	// type definitions (extension per output format).
	EntityOutputDatatype = "CustomNonProjectEntity03"

	// FieldCrossReference links a tracking Version to the pipeline version
	// it was published from.
	FieldCrossReference = "sg_op_instance_id"

	// CrossReferencePlaceholder is what the tracking UI shows for versions
	// that were never published through the pipeline.
	CrossReferencePlaceholder = "-"
)

// Ref is a link to another tracking entity.
type Ref struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Record is a raw tracking entity payload: the queried fields keyed by
// field name. Typed accessors below validate at the call site instead of
// trusting the payload shape.
type Record map[string]any

// ID returns the entity identifier.
func (r Record) ID() int64 {
	return asInt64(r["id"])
}

// Str returns a string field, "" when absent or differently typed.
func (r Record) Str(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Bool returns a boolean field.
func (r Record) Bool(field string) bool {
	if v, ok := r[field].(bool); ok {
		return v
	}
	return false
}

// Ref returns an entity-link field.
func (r Record) Ref(field string) (Ref, bool) {
	return asRef(r[field])
}

// Refs returns a multi-entity field.
func (r Record) Refs(field string) []Ref {
	raw, ok := r[field].([]any)
	if !ok {
		return nil
	}
	refs := make([]Ref, 0, len(raw))
	for _, item := range raw {
		if ref, ok := asRef(item); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Version is the validated view of a tracking Version record used by the
// delivery flows.
type Version struct {
	ID      int64
	Code    string
	CrossID string
	Entity  Ref
	Project Ref
}

// HasCrossReference reports whether the version links to a pipeline
// version. The tracking UI placeholder counts as absent.
func (v Version) HasCrossReference() bool {
	return v.CrossID != "" && v.CrossID != CrossReferencePlaceholder
}

// Label renders the version for report entries.
func (v Version) Label() string {
	return fmt.Sprintf("%s - id: %d", v.Code, v.ID)
}

// ParseVersion validates a Version record at the boundary. A record
// without id or code is malformed and fails fast.
func ParseVersion(rec Record) (Version, error) {
	if rec == nil {
		return Version{}, fmt.Errorf("version record is nil")
	}
	id := rec.ID()
	if id == 0 {
		return Version{}, fmt.Errorf("version record missing id: %v", rec)
	}
	code := rec.Str("code")
	if code == "" {
		return Version{}, fmt.Errorf("version %d missing code field", id)
	}
	version := Version{
		ID:      id,
		Code:    code,
		CrossID: rec.Str(FieldCrossReference),
	}
	if entity, ok := rec.Ref("entity"); ok {
		version.Entity = entity
	}
	if project, ok := rec.Ref("project"); ok {
		version.Project = project
	}
	return version, nil
}

func asRef(v any) (Ref, bool) {
	switch ref := v.(type) {
	case Ref:
		return ref, true
	case map[string]any:
		out := Ref{ID: asInt64(ref["id"])}
		if t, ok := ref["type"].(string); ok {
			out.Type = t
		}
		if name, ok := ref["name"].(string); ok {
			out.Name = name
		}
		return out, out.ID != 0 || out.Name != ""
	default:
		return Ref{}, false
	}
}

func asInt64(v any) int64 {
	switch value := v.(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	case string:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
