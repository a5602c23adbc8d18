// Package report accumulates per-run outcome entries for delivery and
// republish operations.
//
// A Report is an insertion-ordered multimap from a message key to detail
// lines. Batch operations merge per-version sub-reports into a single run
// report; a run is successful only when no failure entries were recorded,
// regardless of how many informational entries exist. Rendering targets the
// CLI (plain text) and the tracking UI (HTML with <br> detail markers).
package report
