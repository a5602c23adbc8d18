// Package oiio wraps the external colorspace conversion tool. The
// transcode extractor hands it one job per file or collapsed sequence
// token; command construction is injectable so tests can capture
// invocations without the binary installed.
package oiio
