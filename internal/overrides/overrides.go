package overrides

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Delivery types supported for client outputs.
const (
	TypeReview = "review"
	TypeFinal  = "final"
)

// Types lists the supported delivery types in canonical order.
func Types() []string {
	return []string{TypeReview, TypeFinal}
}

// OutputType describes one client output configured on the tracking site.
type OutputType struct {
	Name      string
	Extension string
}

var lowerCaser = cases.Lower(language.Und)

// RepresentationName derives the published representation name for an
// output type under a delivery type: the spaceless lowercase output name
// suffixed with the type, such as "h264hq_review".
func RepresentationName(outputName, deliveryType string) string {
	compact := strings.ReplaceAll(outputName, " ", "")
	return lowerCaser.String(compact) + "_" + deliveryType
}

// Entity contains the delivery overrides configured on one level of the
// tracking hierarchy.
type Entity struct {
	DeliveryName  string
	SlateSubtitle string
	ReviewLUT     bool
	// Outputs maps delivery type to representation name to output type.
	Outputs map[string]map[string]OutputType
	// Tags maps delivery type to the tags configured for it.
	Tags map[string][]string
	// FPS maps delivery type to a frame rate override.
	FPS map[string]float64
}

func (e *Entity) outputsFor(deliveryTypes []string) []string {
	var names []string
	for _, deliveryType := range deliveryTypes {
		for name := range e.Outputs[deliveryType] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Level pairs an entity type name with its overrides.
type Level struct {
	Entity    string
	Overrides Entity
}

// Set holds the overrides resolved across the entity hierarchy, ordered
// from the most specific level (Version) to the most generic (Project).
type Set struct {
	levels []Level
}

// NewSet builds a Set from levels ordered most specific first.
func NewSet(levels []Level) *Set {
	return &Set{levels: levels}
}

// Levels returns the resolved levels, most specific first.
func (s *Set) Levels() []Level {
	return s.levels
}

// DeliveryName returns the delivery name override configured at the named
// entity level, or empty when unset.
func (s *Set) DeliveryName(entity string) string {
	for _, level := range s.levels {
		if level.Entity == entity {
			return level.Overrides.DeliveryName
		}
	}
	return ""
}

// RepresentationNames returns the representation names configured at the
// deepest level that defines outputs for any of the requested delivery
// types, along with that level's entity name. Returns nil when no level
// configures outputs.
func (s *Set) RepresentationNames(deliveryTypes []string) ([]string, string) {
	for _, level := range s.levels {
		names := level.Overrides.outputsFor(deliveryTypes)
		if len(names) > 0 {
			return names, level.Entity
		}
	}
	return nil, ""
}

// MergedOutputs flattens the hierarchy into one output set per delivery
// type. A deeper level that configures outputs for a delivery type
// replaces everything the shallower levels configured for that same type;
// other delivery types keep their inherited entries.
func (s *Set) MergedOutputs(deliveryTypes []string) map[string]OutputType {
	merged := make(map[string]OutputType)
	// Walk generic to specific so deeper levels win.
	for i := len(s.levels) - 1; i >= 0; i-- {
		level := s.levels[i]
		for _, deliveryType := range deliveryTypes {
			outputs := level.Overrides.Outputs[deliveryType]
			if len(outputs) == 0 {
				continue
			}
			suffix := "_" + deliveryType
			for name := range merged {
				if strings.HasSuffix(name, suffix) {
					delete(merged, name)
				}
			}
			for name, output := range outputs {
				merged[name] = output
			}
		}
	}
	return merged
}

// ReviewLUT reports whether any level enables the review LUT, preferring
// the most specific level that mentions it.
func (s *Set) ReviewLUT() bool {
	for _, level := range s.levels {
		if level.Overrides.ReviewLUT {
			return true
		}
	}
	return false
}

// Tags returns the tags configured for a delivery type at the deepest
// level that defines any.
func (s *Set) Tags(deliveryType string) []string {
	for _, level := range s.levels {
		if tags := level.Overrides.Tags[deliveryType]; len(tags) > 0 {
			return tags
		}
	}
	return nil
}

// FPS returns the frame rate override for a delivery type, or zero when
// no level configures one.
func (s *Set) FPS(deliveryType string) float64 {
	for _, level := range s.levels {
		if fps := level.Overrides.FPS[deliveryType]; fps > 0 {
			return fps
		}
	}
	return 0
}
