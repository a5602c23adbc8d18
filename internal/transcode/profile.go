package transcode

import (
	"sort"
	"strings"

	"shuttle/internal/overrides"
)

// Transcoding modes. Colorspace conversions name a target colorspace;
// display-view conversions name an OCIO display and view pair instead.
const (
	ModeColorspace  = "colorspace"
	ModeDisplayView = "display_view"
)

// Source extensions the conversion tool accepts.
var supportedExtensions = map[string]bool{
	"exr":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"dpx":  true,
}

// SupportedExtension reports whether ext can be used as transcode input.
func SupportedExtension(ext string) bool {
	return supportedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// OutputDefinition describes one transcode target. An empty Extension
// keeps the source extension.
type OutputDefinition struct {
	Extension      string
	Mode           string
	Colorspace     string
	Display        string
	View           string
	AdditionalArgs []string
	Tags           []string
	CustomTags     []string
}

// Profile is the set of outputs to produce per source representation.
// Output names become representation names; the "passthrough" name keeps
// the source representation's name.
type Profile struct {
	Outputs        map[string]OutputDefinition
	DeleteOriginal bool
}

// OutputNames returns the profile's output names in deterministic order.
func (p Profile) OutputNames() []string {
	names := make([]string, 0, len(p.Outputs))
	for name := range p.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseProfile is the default client output profile. The review colorspace
// assumes the show LUT is applied; ApplyOverrides downgrades it when the
// tracking site disables the review LUT.
func BaseProfile() Profile {
	return Profile{
		Outputs: map[string]OutputDefinition{
			overrides.TypeReview: {
				Mode:       ModeColorspace,
				Colorspace: "input_process",
			},
			overrides.TypeFinal: {
				Mode:       ModeColorspace,
				Colorspace: "delivery_frame",
			},
		},
		DeleteOriginal: true,
	}
}

// ApplyOverrides merges tracking-site output types into the profile.
// Output types with unsupported extensions are skipped. When the review
// LUT is disabled, review outputs convert to the plain delivery
// colorspace instead of the LUT-baked one.
func (p *Profile) ApplyOverrides(set *overrides.Set, deliveryTypes []string) {
	if set == nil {
		return
	}
	lut := set.ReviewLUT()

	merged := set.MergedOutputs(deliveryTypes)
	for name, output := range merged {
		if !SupportedExtension(output.Extension) {
			continue
		}
		deliveryType := deliveryTypeOf(name)
		colorspace := "delivery_frame"
		if deliveryType == overrides.TypeReview && lut {
			colorspace = "input_process"
		}
		p.Outputs[name] = OutputDefinition{
			Extension:  output.Extension,
			Mode:       ModeColorspace,
			Colorspace: colorspace,
			Tags:       set.Tags(deliveryType),
		}
	}

	if !lut {
		if review, ok := p.Outputs[overrides.TypeReview]; ok {
			review.Colorspace = "delivery_frame"
			p.Outputs[overrides.TypeReview] = review
		}
	}
}

// ApplyFamilies drops the outputs of delivery types the instance is not
// publishing for.
func (p *Profile) ApplyFamilies(families []string) {
	wanted := make(map[string]bool, len(families))
	for _, family := range families {
		wanted[family] = true
	}
	for _, deliveryType := range overrides.Types() {
		if wanted["client_"+deliveryType] {
			continue
		}
		for name := range p.Outputs {
			if name == deliveryType || deliveryTypeOf(name) == deliveryType {
				delete(p.Outputs, name)
			}
		}
	}
}

func deliveryTypeOf(outputName string) string {
	for _, deliveryType := range overrides.Types() {
		if outputName == deliveryType || strings.HasSuffix(outputName, "_"+deliveryType) {
			return deliveryType
		}
	}
	return ""
}
