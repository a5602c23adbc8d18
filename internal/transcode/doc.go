// Package transcode expands published representations into color-managed
// client outputs.
//
// A Profile lists the outputs to produce, either from the built-in client
// defaults or merged with the output types configured on the tracking
// site. The Extractor clones each eligible source representation per
// output, collapses frame lists into a single sequence token, and runs
// the conversion tool once per token. Originals can be marked for
// deletion and are dropped unless tagged as thumbnails.
package transcode
